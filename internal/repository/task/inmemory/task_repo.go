package inmemory

import (
	"context"
	"crmTasks/internal/clock"
	"crmTasks/internal/logger"
	"crmTasks/internal/models/task"
	repo "crmTasks/internal/repository"
	"sync"
	"time"

	"github.com/google/uuid"
)

type TaskStorage struct {
	storage map[uuid.UUID]*task.Task
	mtx     *sync.RWMutex
	ids     []uuid.UUID
	clock   clock.Clock
}

func NewTaskStorage(clk clock.Clock) *TaskStorage {
	if clk == nil {
		clk = clock.Real{}
	}
	return &TaskStorage{
		storage: make(map[uuid.UUID]*task.Task),
		mtx:     &sync.RWMutex{},
		ids:     []uuid.UUID{},
		clock:   clk,
	}
}

func (s *TaskStorage) HealthCheck(ctx context.Context) error {
	logger.Info("Repository: in-memory task storage is healthy")
	return nil
}

// Save inserts a task whose Version is zero and otherwise replaces the stored
// one. The caller's Version must match the stored one; on success CreatedAt,
// UpdatedAt and Version are written back into taskToSave.
func (s *TaskStorage) Save(ctx context.Context, taskToSave *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.saveLocked(taskToSave)
}

func (s *TaskStorage) saveLocked(taskToSave *task.Task) error {
	now := s.clock.Now()

	existing, ok := s.storage[taskToSave.UUID]
	if !ok {
		if taskToSave.Version != 0 {
			return repo.ErrNotFound
		}
		taskToSave.CreatedAt = now
		taskToSave.UpdatedAt = now
		taskToSave.Version = 1
		s.storage[taskToSave.UUID] = taskToSave.Clone()
		s.ids = append(s.ids, taskToSave.UUID)
		return nil
	}

	if existing.Version != taskToSave.Version {
		return repo.ErrVersionConflict
	}

	taskToSave.CreatedAt = existing.CreatedAt
	taskToSave.UpdatedAt = now
	taskToSave.Version++
	s.storage[taskToSave.UUID] = taskToSave.Clone()
	return nil
}

// SaveAll applies every save or none of them.
func (s *TaskStorage) SaveAll(ctx context.Context, tasks []*task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, t := range tasks {
		existing, ok := s.storage[t.UUID]
		if !ok && t.Version != 0 {
			return repo.ErrNotFound
		}
		if ok && existing.Version != t.Version {
			return repo.ErrVersionConflict
		}
	}

	for _, t := range tasks {
		if err := s.saveLocked(t); err != nil {
			return err
		}
	}
	return nil
}

// MarkCompletedNow stamps completed_at with the storage clock, never a
// caller-supplied time.
func (s *TaskStorage) MarkCompletedNow(ctx context.Context, id uuid.UUID) (time.Time, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[id]
	if !ok {
		return time.Time{}, repo.ErrNotFound
	}

	now := s.clock.Now()
	completedAt := now
	existing.CompletedAt = &completedAt
	existing.UpdatedAt = now
	return now, nil
}

func (s *TaskStorage) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	taskToGet, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return taskToGet.Clone(), nil
}

func (s *TaskStorage) DeleteByID(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repo.ErrNotFound
	}

	delete(s.storage, id)
	for ind, val := range s.ids {
		if val == id {
			s.ids = append(s.ids[:ind], s.ids[ind+1:]...)
			break
		}
	}
	return nil
}

// GetAll returns tasks in insertion order.
func (s *TaskStorage) GetAll(ctx context.Context) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*task.Task, 0, len(s.ids))
	for _, id := range s.ids {
		res = append(res, s.storage[id].Clone())
	}
	return res, nil
}

func (s *TaskStorage) GetAllByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*task.Task{}
	for _, id := range s.ids {
		t := s.storage[id]
		if t.CustomerID == nil || *t.CustomerID != customerID {
			continue
		}
		res = append(res, t.Clone())
	}
	return res, nil
}
