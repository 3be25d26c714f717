package service

import (
	"context"
	"crmTasks/internal/logger"
	"crmTasks/internal/models/customer"
	"crmTasks/internal/models/task"
	rep "crmTasks/internal/repository"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskDetacher interface {
	DetachCustomer(ctx context.Context, customerID uuid.UUID) ([]*task.Task, error)
}

type CustomerService struct {
	repo  CustomerRepository
	tasks TaskDetacher
}

func NewCustomerService(repo CustomerRepository, tasks TaskDetacher) *CustomerService {
	return &CustomerService{
		repo:  repo,
		tasks: tasks,
	}
}

func (s *CustomerService) CreateCustomer(ctx context.Context, name, email string) (*customer.Customer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("name", "must not be empty")
	}
	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, NewValidationError("email", "must be a valid address")
		}
	}

	c := &customer.Customer{
		UUID:  uuid.New(),
		Name:  name,
		Email: email,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	logger.Info("Service: customer created", zap.String("customer_id", c.UUID.String()))
	return c, nil
}

func (s *CustomerService) GetCustomer(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return nil, NewCustomerNotFound(id)
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// DeleteCustomer detaches the customer's tasks first so no task is ever left
// pointing at a missing customer. It returns the detached tasks.
func (s *CustomerService) DeleteCustomer(ctx context.Context, id uuid.UUID) ([]*task.Task, error) {
	exists, err := s.repo.ExistsByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("check customer: %w", err)
	}
	if !exists {
		return nil, NewCustomerNotFound(id)
	}

	detached, err := s.tasks.DetachCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return nil, NewCustomerNotFound(id)
		}
		return nil, fmt.Errorf("delete customer: %w", err)
	}

	logger.Info("Service: customer deleted",
		zap.String("customer_id", id.String()),
		zap.Int("detached_tasks", len(detached)),
	)
	return detached, nil
}
