package service

import (
	"crmTasks/internal/models/task"
	"time"

	"github.com/google/uuid"
)

// TaskRequest carries the client-controlled fields of a task. Status is the
// raw client string; it is normalized by task.ParseStatus.
type TaskRequest struct {
	Title       string
	Description string
	Reminder    *time.Time
	DueDate     *time.Time
	Status      string
	CustomerID  *uuid.UUID
}

func (r TaskRequest) options(status task.Status) []task.TaskOption {
	return []task.TaskOption{
		task.WithTitle(r.Title),
		task.WithDescription(r.Description),
		task.WithReminder(r.Reminder),
		task.WithDueDate(r.DueDate),
		task.WithStatus(status),
		task.WithCustomer(r.CustomerID),
	}
}
