package dto

import (
	"crmTasks/internal/models/customer"
	"crmTasks/internal/models/task"
	"crmTasks/internal/service"
	"time"

	"github.com/google/uuid"
)

// TaskRequest is the body of both POST /tasks and PUT /tasks/{id}. Update is
// a full replacement, so omitted fields are cleared.
type TaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Reminder    *time.Time `json:"reminder,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `json:"status,omitempty"`
	CustomerID  *uuid.UUID `json:"customer_id,omitempty"`
}

func (r TaskRequest) ToService() service.TaskRequest {
	return service.TaskRequest{
		Title:       r.Title,
		Description: r.Description,
		Reminder:    r.Reminder,
		DueDate:     r.DueDate,
		Status:      r.Status,
		CustomerID:  r.CustomerID,
	}
}

type TaskResponse struct {
	UUID        uuid.UUID  `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Reminder    *time.Time `json:"reminder,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CustomerID  *uuid.UUID `json:"customer_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Version     int        `json:"version"`
}

func FromTask(t *task.Task) TaskResponse {
	return TaskResponse{
		UUID:        t.UUID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Reminder:    t.Reminder,
		DueDate:     t.DueDate,
		CustomerID:  t.CustomerID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		CompletedAt: t.CompletedAt,
		Version:     t.Version,
	}
}

func FromTaskList(tasks []*task.Task) []TaskResponse {
	result := make([]TaskResponse, len(tasks))
	for i, t := range tasks {
		result[i] = FromTask(t)
	}
	return result
}

type CustomerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CustomerResponse struct {
	UUID      uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func FromCustomer(c *customer.Customer) CustomerResponse {
	return CustomerResponse{
		UUID:      c.UUID,
		Name:      c.Name,
		Email:     c.Email,
		CreatedAt: c.CreatedAt,
	}
}
