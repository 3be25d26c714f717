// Package inmemory is a process-local reminder job store backed by timers.
// Jobs do not survive a restart; use the postgres or redis store for that.
package inmemory

import (
	"context"
	"crmTasks/internal/clock"
	"crmTasks/internal/logger"
	"crmTasks/internal/reminder"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type job struct {
	at    time.Time
	timer *time.Timer
}

// Store arms one timer per job. Put, Remove and firing for the same task id
// run under that id's lock, and the fire callback runs while the lock is held:
// a Remove racing a firing job either wins (the timer callback sees the job is
// gone and skips) or waits until the callback has returned and then finds
// nothing to remove.
type Store struct {
	clock clock.Clock
	locks *keyLocks

	mtx     sync.Mutex
	jobs    map[uuid.UUID]*job
	fire    reminder.FireFunc
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

var _ reminder.JobStore = (*Store)(nil)

func New(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Store{
		clock: clk,
		locks: newKeyLocks(),
		jobs:  make(map[uuid.UUID]*job),
	}
}

// Start registers the callback and arms every job put before it. Jobs whose
// instant already passed fire right away.
func (s *Store) Start(ctx context.Context, fire reminder.FireFunc) error {
	if fire == nil {
		return errors.New("nil fire func")
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.fire != nil {
		return errors.New("job store already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.fire = fire
	s.stopped = false
	for id, j := range s.jobs {
		s.arm(id, j)
	}

	logger.Info("Reminder: in-memory job store started", zap.Int("pending", len(s.jobs)))
	return nil
}

// Stop disarms all timers and waits for in-flight callbacks. Pending jobs stay
// in the store and are armed again by the next Start.
func (s *Store) Stop() {
	s.mtx.Lock()
	if s.fire == nil || s.stopped {
		s.mtx.Unlock()
		return
	}
	s.stopped = true
	s.fire = nil
	s.cancel()
	for _, j := range s.jobs {
		if j.timer != nil {
			j.timer.Stop()
			j.timer = nil
		}
	}
	s.mtx.Unlock()

	s.wg.Wait()
	logger.Info("Reminder: in-memory job store stopped")
}

func (s *Store) Put(ctx context.Context, taskID uuid.UUID, at time.Time) error {
	unlock := s.locks.Lock(taskID)
	defer unlock()

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if old, ok := s.jobs[taskID]; ok && old.timer != nil {
		old.timer.Stop()
	}

	j := &job{at: at}
	s.jobs[taskID] = j
	if s.fire != nil && !s.stopped {
		s.arm(taskID, j)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, taskID uuid.UUID) error {
	unlock := s.locks.Lock(taskID)
	defer unlock()

	s.mtx.Lock()
	defer s.mtx.Unlock()

	j, ok := s.jobs[taskID]
	if !ok {
		return nil
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	delete(s.jobs, taskID)
	return nil
}

// Get reports the pending fire instant for a task.
func (s *Store) Get(taskID uuid.UUID) (time.Time, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	j, ok := s.jobs[taskID]
	if !ok {
		return time.Time{}, false
	}
	return j.at, true
}

func (s *Store) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.jobs)
}

// arm must be called with s.mtx held.
func (s *Store) arm(taskID uuid.UUID, j *job) {
	delay := j.at.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	j.timer = time.AfterFunc(delay, func() {
		s.fireJob(taskID, j)
	})
}

func (s *Store) fireJob(taskID uuid.UUID, j *job) {
	unlock := s.locks.Lock(taskID)
	defer unlock()

	s.mtx.Lock()
	if s.stopped || s.jobs[taskID] != j {
		s.mtx.Unlock()
		return
	}
	delete(s.jobs, taskID)
	fire, ctx := s.fire, s.ctx
	s.wg.Add(1)
	s.mtx.Unlock()
	defer s.wg.Done()

	late := s.clock.Now().Sub(j.at)
	logger.Info("Reminder: job fired",
		zap.String("task_id", taskID.String()),
		zap.Time("fire_at", j.at),
		zap.Duration("late", late))

	fire(ctx, taskID)
}
