package inmemory

import (
	"context"
	"crmTasks/internal/clock"
	"crmTasks/internal/models/customer"
	repo "crmTasks/internal/repository"
	"sync"

	"github.com/google/uuid"
)

type CustomerStorage struct {
	storage map[uuid.UUID]customer.Customer
	mtx     sync.RWMutex
	clock   clock.Clock
}

func NewCustomerStorage(clk clock.Clock) *CustomerStorage {
	if clk == nil {
		clk = clock.Real{}
	}
	return &CustomerStorage{
		storage: make(map[uuid.UUID]customer.Customer),
		clock:   clk,
	}
}

func (s *CustomerStorage) Create(ctx context.Context, c *customer.Customer) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	c.CreatedAt = s.clock.Now()
	s.storage[c.UUID] = *c
	return nil
}

func (s *CustomerStorage) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	c, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &c, nil
}

func (s *CustomerStorage) ExistsByID(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	_, ok := s.storage[id]
	return ok, nil
}

func (s *CustomerStorage) DeleteByID(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.storage, id)
	return nil
}
