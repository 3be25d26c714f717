package task

import (
	"time"

	"github.com/google/uuid"
)

type TaskOption func(*Task)

// New builds a task from options. Nil options are skipped.
func New(id uuid.UUID, options ...TaskOption) *Task {
	t := &Task{
		UUID:   id,
		Status: StatusOpen,
	}
	Apply(t, options...)
	return t
}

func Apply(t *Task, options ...TaskOption) {
	for _, opt := range options {
		if opt != nil {
			opt(t)
		}
	}
}

func WithTitle(title string) TaskOption {
	return func(task *Task) {
		task.Title = title
	}
}

func WithDescription(description string) TaskOption {
	return func(task *Task) {
		task.Description = description
	}
}

func WithStatus(status Status) TaskOption {
	if status == "" {
		return nil
	}
	return func(task *Task) {
		task.Status = status
	}
}

func WithReminder(reminder *time.Time) TaskOption {
	return func(task *Task) {
		task.Reminder = cloneTime(reminder)
	}
}

func WithDueDate(dueDate *time.Time) TaskOption {
	return func(task *Task) {
		task.DueDate = cloneTime(dueDate)
	}
}

func WithCustomer(customerID *uuid.UUID) TaskOption {
	return func(task *Task) {
		if customerID == nil {
			task.CustomerID = nil
			return
		}
		id := *customerID
		task.CustomerID = &id
	}
}
