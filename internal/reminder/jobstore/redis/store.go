// Package redis keeps reminder jobs in a sorted set scored by fire time.
//
// Claiming a due job moves it atomically from the pending set to the
// processing set; it leaves processing once the callback returns. Anything
// still in processing when a store starts was claimed by a process that died
// mid-fire and goes back to pending, so a crash never drops a job.
package redis

import (
	"context"
	"crmTasks/internal/clock"
	"crmTasks/internal/logger"
	"crmTasks/internal/reminder"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var claimDue = goredis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
	local score = redis.call('ZSCORE', KEYS[1], member)
	redis.call('ZREM', KEYS[1], member)
	redis.call('ZADD', KEYS[2], score, member)
end
return due
`)

var requeueProcessing = goredis.NewScript(`
local items = redis.call('ZRANGE', KEYS[2], 0, -1, 'WITHSCORES')
local moved = 0
for i = 1, #items, 2 do
	if not redis.call('ZSCORE', KEYS[1], items[i]) then
		redis.call('ZADD', KEYS[1], items[i + 1], items[i])
		moved = moved + 1
	end
end
redis.call('DEL', KEYS[2])
return moved
`)

type Store struct {
	client     goredis.UniversalClient
	clock      clock.Clock
	pending    string
	processing string

	mtx  sync.RWMutex
	fire reminder.FireFunc
}

var _ reminder.JobStore = (*Store)(nil)

func New(client goredis.UniversalClient, prefix string, clk clock.Clock) *Store {
	if prefix == "" {
		prefix = "reminders"
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{
		client:     client,
		clock:      clk,
		pending:    prefix + ":pending",
		processing: prefix + ":processing",
	}
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

	moved, err := requeueProcessing.Run(ctx, s.client, []string{s.pending, s.processing}).Int()
	if err != nil {
		return fmt.Errorf("requeue interrupted jobs: %w", err)
	}
	if moved > 0 {
		logger.Warn("Reminder: requeued jobs interrupted mid-fire", zap.Int("count", moved))
	}

	s.fire = fire
	logger.Info("Reminder: redis job store started", zap.String("key", s.pending))
	return nil
}

func (s *Store) Stop() {
	logger.Info("Reminder: redis job store stopped")
}

func (s *Store) Put(ctx context.Context, taskID uuid.UUID, at time.Time) error {
	err := s.client.ZAdd(ctx, s.pending, goredis.Z{
		Score:  float64(at.UnixMilli()),
		Member: taskID.String(),
	}).Err()
	if err != nil {
		logger.Error("Reminder: failed to put job", err, zap.String("task_id", taskID.String()))
		return fmt.Errorf("put job: %w", err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, taskID uuid.UUID) error {
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.ZRem(ctx, s.pending, taskID.String())
		pipe.ZRem(ctx, s.processing, taskID.String())
		return nil
	})
	if err != nil {
		logger.Error("Reminder: failed to remove job", err, zap.String("task_id", taskID.String()))
		return fmt.Errorf("remove job: %w", err)
	}
	return nil
}

// Get reports the pending fire instant for a task.
func (s *Store) Get(ctx context.Context, taskID uuid.UUID) (time.Time, bool, error) {
	score, err := s.client.ZScore(ctx, s.pending, taskID.String()).Result()
	if errors.Is(err, goredis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get job: %w", err)
	}
	return time.UnixMilli(int64(score)).UTC(), true, nil
}

func (s *Store) FireDue(ctx context.Context, limit int) (int, error) {
	s.mtx.RLock()
	fire := s.fire
	s.mtx.RUnlock()
	if fire == nil {
		return 0, reminder.ErrNotStarted
	}

	now := s.clock.Now().UnixMilli()
	members, err := claimDue.Run(ctx, s.client, []string{s.pending, s.processing}, now, limit).StringSlice()
	if err != nil {
		return 0, fmt.Errorf("claim due jobs: %w", err)
	}

	fired := 0
	for _, member := range members {
		taskID, err := uuid.Parse(member)
		if err != nil {
			logger.Warn("Reminder: dropping malformed job", zap.String("member", member), zap.Error(err))
			s.client.ZRem(ctx, s.processing, member)
			continue
		}

		logger.Info("Reminder: job fired", zap.String("task_id", member))
		fire(ctx, taskID)
		fired++

		if err := s.client.ZRem(ctx, s.processing, member).Err(); err != nil {
			return fired, fmt.Errorf("release fired job: %w", err)
		}
	}
	return fired, nil
}
