package postgres

import (
	"context"
	"crmTasks/internal/logger"
	"crmTasks/internal/models/task"
	repo "crmTasks/internal/repository"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const slowQuery = 100 * time.Millisecond

const taskColumns = `uuid,
				title,
				description,
				reminder,
				due_date,
				status,
				customer_id,
				created_at,
				updated_at,
				completed_at,
				version`

const insertTaskQuery = `INSERT INTO tasks
				(uuid, title, description, reminder, due_date, status, customer_id, completed_at, created_at, updated_at, version)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW(), 1)
			RETURNING created_at, updated_at, version`

const updateTaskQuery = `UPDATE tasks
				SET title = $2,
				description = $3,
				reminder = $4,
				due_date = $5,
				status = $6,
				customer_id = $7,
				completed_at = $8,
				updated_at = NOW(),
				version = version + 1
			WHERE uuid = $1 AND version = $9
			RETURNING created_at, updated_at, version`

type Storage struct {
	pool *pgxpool.Pool
}

type PoolOptions struct {
	MaxConns        int32
	MinConns        int32
	MaxConnIdleTime time.Duration
}

// NewPool opens and pings a connection pool shared by every postgres-backed store.
func NewPool(ctx context.Context, connString string, opts PoolOptions) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		logger.Error("Repository: failed to parse database config", err)
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnIdleTime = time.Minute * 5
	if opts.MaxConns > 0 {
		config.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		config.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		config.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		logger.Error("Repository: failed to create pool", err)
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: ping failed", err)
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: connected to PostgreSQL")
	return pool, nil
}

func New(pool *pgxpool.Pool) *Storage {
	return &Storage{pool: pool}
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Storage) Save(ctx context.Context, taskToSave *task.Task) error {
	start := time.Now()
	defer warnIfSlow(start, "save task")

	if err := saveTask(ctx, s.pool, taskToSave); err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			logger.Warn("Repository: version conflict on task save",
				zap.String("task_id", taskToSave.UUID.String()),
				zap.Int("expected_version", taskToSave.Version))
			return err
		}
		logger.Error("Repository: failed to save task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("save task: %w", err)
	}
	return nil
}

// SaveAll writes every task in one transaction.
func (s *Storage) SaveAll(ctx context.Context, tasks []*task.Task) error {
	start := time.Now()
	defer warnIfSlow(start, "save tasks")

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	saved := make([]task.Task, len(tasks))
	for i, t := range tasks {
		saved[i] = *t
		if err := saveTask(ctx, tx, &saved[i]); err != nil {
			logger.Error("Repository: failed to save tasks", err, zap.String("task_id", t.UUID.String()))
			return fmt.Errorf("save task %s: %w", t.UUID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	for i, t := range tasks {
		t.CreatedAt = saved[i].CreatedAt
		t.UpdatedAt = saved[i].UpdatedAt
		t.Version = saved[i].Version
	}
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// saveTask inserts a task whose Version is zero and otherwise updates the
// stored row only if its version still matches.
func saveTask(ctx context.Context, q queryRower, t *task.Task) error {
	if t.Version == 0 {
		return q.QueryRow(ctx, insertTaskQuery,
			t.UUID,
			t.Title,
			t.Description,
			t.Reminder,
			t.DueDate,
			t.Status,
			t.CustomerID,
			t.CompletedAt,
		).Scan(&t.CreatedAt, &t.UpdatedAt, &t.Version)
	}

	err := q.QueryRow(ctx, updateTaskQuery,
		t.UUID,
		t.Title,
		t.Description,
		t.Reminder,
		t.DueDate,
		t.Status,
		t.CustomerID,
		t.CompletedAt,
		t.Version,
	).Scan(&t.CreatedAt, &t.UpdatedAt, &t.Version)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tasks WHERE uuid = $1)`, t.UUID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repo.ErrNotFound
	}
	return repo.ErrVersionConflict
}

// MarkCompletedNow stamps completed_at with the database clock.
func (s *Storage) MarkCompletedNow(ctx context.Context, id uuid.UUID) (time.Time, error) {
	query := `UPDATE tasks
				SET completed_at = NOW(),
				updated_at = NOW()
			WHERE uuid = $1
			RETURNING completed_at`

	var completedAt time.Time
	err := s.pool.QueryRow(ctx, query, id).Scan(&completedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, repo.ErrNotFound
		}
		logger.Error("Repository: failed to stamp completed_at", err, zap.String("task_id", id.String()))
		return time.Time{}, fmt.Errorf("mark completed: %w", err)
	}
	return completedAt, nil
}

func (s *Storage) DeleteByID(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	defer warnIfSlow(start, "delete task")

	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE uuid = $1`, id)
	if err != nil {
		logger.Error("Repository: failed to delete task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *Storage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()
	defer warnIfSlow(start, "get task")

	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE uuid = $1`

	t, err := scanTask(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *Storage) GetAll(ctx context.Context) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
				FROM tasks
				ORDER BY created_at, uuid`
	return s.queryTasks(ctx, query)
}

func (s *Storage) GetAllByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE customer_id = $1
				ORDER BY created_at, uuid`
	return s.queryTasks(ctx, query, customerID)
}

func (s *Storage) queryTasks(ctx context.Context, query string, args ...any) ([]*task.Task, error) {
	start := time.Now()
	defer warnIfSlow(start, "list tasks")

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: failed to list tasks", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Repository: row iteration failed", err)
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	err := row.Scan(
		&t.UUID,
		&t.Title,
		&t.Description,
		&t.Reminder,
		&t.DueDate,
		&t.Status,
		&t.CustomerID,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CompletedAt,
		&t.Version,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func warnIfSlow(start time.Time, op string) {
	if elapsed := time.Since(start); elapsed > slowQuery {
		logger.Warn("Repository: slow query", zap.String("op", op), zap.Duration("ms", elapsed))
	}
}
