// Package postgres keeps reminder jobs in the reminder_jobs table and fires
// them from a polling worker, so jobs that came due while the process was down
// fire on the first poll after it comes back.
package postgres

import (
	"context"
	"crmTasks/internal/logger"
	"crmTasks/internal/reminder"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Store struct {
	pool *pgxpool.Pool

	mtx  sync.RWMutex
	fire reminder.FireFunc
}

var _ reminder.JobStore = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Start(ctx context.Context, fire reminder.FireFunc) error {
	if fire == nil {
		return errors.New("nil fire func")
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.fire != nil {
		return errors.New("job store already started")
	}
	s.fire = fire

	var pending int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM reminder_jobs`).Scan(&pending); err != nil {
		logger.Warn("Reminder: could not count pending jobs", zap.Error(err))
	}
	logger.Info("Reminder: postgres job store started", zap.Int("pending", pending))
	return nil
}

func (s *Store) Stop() {
	logger.Info("Reminder: postgres job store stopped")
}

func (s *Store) Put(ctx context.Context, taskID uuid.UUID, at time.Time) error {
	query := `INSERT INTO reminder_jobs (task_id, fire_at, created_at, updated_at)
				VALUES ($1, $2, NOW(), NOW())
			ON CONFLICT (task_id) DO UPDATE
				SET fire_at = EXCLUDED.fire_at,
				updated_at = NOW()`

	if _, err := s.pool.Exec(ctx, query, taskID, at); err != nil {
		logger.Error("Reminder: failed to put job", err, zap.String("task_id", taskID.String()))
		return fmt.Errorf("put job: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, taskID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM reminder_jobs WHERE task_id = $1`, taskID); err != nil {
		logger.Error("Reminder: failed to remove job", err, zap.String("task_id", taskID.String()))
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}

// Get reports the pending fire instant for a task.
func (s *Store) Get(ctx context.Context, taskID uuid.UUID) (time.Time, bool, error) {
	var at time.Time
	err := s.pool.QueryRow(ctx, `SELECT fire_at FROM reminder_jobs WHERE task_id = $1`, taskID).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get job: %w", err)
	}
	return at, true, nil
}

// FireDue fires up to limit jobs whose instant has passed and returns how many
// fired.
func (s *Store) FireDue(ctx context.Context, limit int) (int, error) {
	s.mtx.RLock()
	fire := s.fire
	s.mtx.RUnlock()
	if fire == nil {
		return 0, reminder.ErrNotStarted
	}

	fired := 0
	for fired < limit {
		ok, err := s.fireNext(ctx, fire)
		if err != nil {
			return fired, err
		}
		if !ok {
			break
		}
		fired++
	}
	return fired, nil
}

// fireNext claims the earliest due job with a row lock, runs the callback and
// deletes the row in the same transaction. A concurrent Put or Remove for that
// task blocks on the lock until the transaction ends; SKIP LOCKED lets other
// pollers move on to other tasks. If the process dies before commit the row
// survives and fires again.
func (s *Store) fireNext(ctx context.Context, fire reminder.FireFunc) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `SELECT task_id, fire_at
				FROM reminder_jobs
				WHERE fire_at <= NOW()
				ORDER BY fire_at
				LIMIT 1
				FOR UPDATE SKIP LOCKED`

	var (
		taskID uuid.UUID
		fireAt time.Time
	)
	if err := tx.QueryRow(ctx, query).Scan(&taskID, &fireAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("claim job: %w", err)
	}

	logger.Info("Reminder: job fired",
		zap.String("task_id", taskID.String()),
		zap.Time("fire_at", fireAt),
		zap.Duration("late", time.Since(fireAt)))

	fire(ctx, taskID)

	if _, err := tx.Exec(ctx, `DELETE FROM reminder_jobs WHERE task_id = $1`, taskID); err != nil {
		return false, fmt.Errorf("delete fired job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit fired job: %w", err)
	}
	return true, nil
}
