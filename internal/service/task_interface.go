package service

import (
	"context"
	"crmTasks/internal/models/customer"
	"crmTasks/internal/models/task"
	"time"

	"github.com/google/uuid"
)

type TaskRepository interface {
	HealthCheck(context.Context) error
	Save(context.Context, *task.Task) error
	SaveAll(context.Context, []*task.Task) error
	GetByID(context.Context, uuid.UUID) (*task.Task, error)
	GetAll(context.Context) ([]*task.Task, error)
	GetAllByCustomerID(context.Context, uuid.UUID) ([]*task.Task, error)
	DeleteByID(context.Context, uuid.UUID) error
	MarkCompletedNow(context.Context, uuid.UUID) (time.Time, error)
}

type CustomerRepository interface {
	Create(context.Context, *customer.Customer) error
	GetByID(context.Context, uuid.UUID) (*customer.Customer, error)
	ExistsByID(context.Context, uuid.UUID) (bool, error)
	DeleteByID(context.Context, uuid.UUID) error
}

// ReminderScheduler is satisfied by *reminder.Scheduler.
type ReminderScheduler interface {
	Schedule(ctx context.Context, taskID uuid.UUID, at time.Time) error
	Reconcile(ctx context.Context, taskID uuid.UUID, oldAt, newAt *time.Time) error
	Cancel(ctx context.Context, taskID uuid.UUID) error
}

// Dispatcher sends the notification for a due reminder. It loads whatever
// task and customer data it needs itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, taskID uuid.UUID) error
}
