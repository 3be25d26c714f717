package handlers

import (
	"context"
	"crmTasks/internal/models/customer"
	"crmTasks/internal/models/task"
	"crmTasks/internal/service"

	"github.com/google/uuid"
)

type Service interface {
	HealthCheck(context.Context) error
	CreateTask(context.Context, service.TaskRequest) (*task.Task, error)
	UpdateTask(context.Context, uuid.UUID, service.TaskRequest) (*task.Task, error)
	DeleteTask(context.Context, uuid.UUID) (*task.Task, error)
	GetTaskByID(context.Context, uuid.UUID) (*task.Task, error)
	GetAllTasks(context.Context) ([]*task.Task, error)
	GetAllTasksByCustomerID(context.Context, uuid.UUID) ([]*task.Task, error)
}

type CustomerService interface {
	CreateCustomer(ctx context.Context, name, email string) (*customer.Customer, error)
	GetCustomer(context.Context, uuid.UUID) (*customer.Customer, error)
	DeleteCustomer(context.Context, uuid.UUID) ([]*task.Task, error)
}
