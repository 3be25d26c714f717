package task

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	UUID        uuid.UUID  `json:"uuid" db:"uuid"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Reminder    *time.Time `json:"reminder,omitempty" db:"reminder"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	Status      Status     `json:"status" db:"status"`
	CustomerID  *uuid.UUID `json:"customer_id,omitempty" db:"customer_id"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	Version     int        `json:"version" db:"version"`
}

// DetachedNote is appended to the description of a task whose customer was removed.
const DetachedNote = "Note: the customer this task belonged to has been deleted. The task is no longer assigned to a customer."

func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Clone returns a deep copy so stores never share pointers with callers.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Reminder = cloneTime(t.Reminder)
	c.DueDate = cloneTime(t.DueDate)
	c.CompletedAt = cloneTime(t.CompletedAt)
	if t.CustomerID != nil {
		id := *t.CustomerID
		c.CustomerID = &id
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
