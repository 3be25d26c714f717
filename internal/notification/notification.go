package notification

import (
	"context"
	"crmTasks/internal/clock"
	"crmTasks/internal/models/customer"
	"crmTasks/internal/models/task"
	rep "crmTasks/internal/repository"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reminder is the payload handed to a Sender when a task reminder comes due.
type Reminder struct {
	TaskID      uuid.UUID  `json:"task_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	RemindAt    *time.Time `json:"remind_at,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Customer    *Recipient `json:"customer,omitempty"`
	SentAt      time.Time  `json:"sent_at"`
}

type Recipient struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

type TaskReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error)
}

type CustomerReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error)
}

type Sender interface {
	Send(ctx context.Context, r Reminder) error
}

type Service struct {
	tasks     TaskReader
	customers CustomerReader
	sender    Sender
	clock     clock.Clock
}

func NewService(tasks TaskReader, customers CustomerReader, sender Sender, clk clock.Clock) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		tasks:     tasks,
		customers: customers,
		sender:    sender,
		clock:     clk,
	}
}

// Dispatch builds the reminder for the task's current state and sends it.
// A customer deleted in the meantime is left out of the message.
func (s *Service) Dispatch(ctx context.Context, taskID uuid.UUID) error {
	t, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", taskID, err)
	}

	msg := Reminder{
		TaskID:      t.UUID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		RemindAt:    t.Reminder,
		DueDate:     t.DueDate,
		SentAt:      s.clock.Now(),
	}

	if t.CustomerID != nil {
		c, err := s.customers.GetByID(ctx, *t.CustomerID)
		switch {
		case err == nil:
			msg.Customer = &Recipient{ID: c.UUID, Name: c.Name, Email: c.Email}
		case errors.Is(err, rep.ErrNotFound):
		default:
			return fmt.Errorf("load customer %s: %w", *t.CustomerID, err)
		}
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	return nil
}
