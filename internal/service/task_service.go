package service

import (
	"context"
	"crmTasks/internal/logger"
	"crmTasks/internal/models/task"
	rep "crmTasks/internal/repository"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TaskService struct {
	repo       TaskRepository
	customers  CustomerRepository
	scheduler  ReminderScheduler
	dispatcher Dispatcher
}

func NewTaskService(repo TaskRepository, customers CustomerRepository, scheduler ReminderScheduler, dispatcher Dispatcher) *TaskService {
	return &TaskService{
		repo:       repo,
		customers:  customers,
		scheduler:  scheduler,
		dispatcher: dispatcher,
	}
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("task storage health check: %w", err)
	}
	return nil
}

// CreateTask persists a new task and schedules its reminder. When the task
// is stored but a later step fails, the stored task is returned together with
// a SCHEDULE_FAILURE or COMPLETION_STAMP_FAILURE error.
func (s *TaskService) CreateTask(ctx context.Context, req TaskRequest) (*task.Task, error) {
	status, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	if status == "" {
		status = task.StatusOpen
	}

	t := task.New(uuid.New(), req.options(status)...)
	if err := s.repo.Save(ctx, t); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	var stampErr error
	if t.IsCompleted() {
		stampErr = s.stampCompleted(ctx, t)
	}

	logger.Info("Service: task created",
		zap.String("task_id", t.UUID.String()),
		zap.String("status", string(t.Status)),
	)

	var scheduleErr error
	if t.Reminder != nil {
		if err := s.scheduler.Schedule(ctx, t.UUID, *t.Reminder); err != nil {
			scheduleErr = s.scheduleFailure(t.UUID, err)
		}
	}
	return t, s.persistedWithErrors(t.UUID, stampErr, scheduleErr)
}

// UpdateTask replaces the client-controlled fields of an existing task and
// reconciles its reminder job with the new reminder value. A blank status
// keeps the current one.
func (s *TaskService) UpdateTask(ctx context.Context, id uuid.UUID, req TaskRequest) (*task.Task, error) {
	existing, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := s.validate(ctx, req)
	if err != nil {
		return nil, err
	}
	if status == "" {
		status = existing.Status
	}

	oldReminder := existing.Reminder
	alreadyStamped := existing.IsCompleted() && existing.CompletedAt != nil

	updated := existing.Clone()
	task.Apply(updated, req.options(status)...)
	if !updated.IsCompleted() {
		updated.CompletedAt = nil
	}

	if err := s.repo.Save(ctx, updated); err != nil {
		if errors.Is(err, rep.ErrVersionConflict) {
			logger.Warn("Service: concurrent task update rejected", zap.String("task_id", id.String()))
			return nil, NewVersionConflict(id, err)
		}
		if errors.Is(err, rep.ErrNotFound) {
			return nil, NewTaskNotFound(id)
		}
		return nil, fmt.Errorf("save task: %w", err)
	}
	var stampErr error
	if updated.IsCompleted() && !alreadyStamped {
		stampErr = s.stampCompleted(ctx, updated)
	}

	logger.Info("Service: task updated",
		zap.String("task_id", id.String()),
		zap.String("status", string(updated.Status)),
		zap.Int("version", updated.Version),
	)

	var scheduleErr error
	if err := s.scheduler.Reconcile(ctx, id, oldReminder, updated.Reminder); err != nil {
		scheduleErr = s.scheduleFailure(id, err)
	}
	return updated, s.persistedWithErrors(id, stampErr, scheduleErr)
}

// DeleteTask cancels the task's reminder job and then removes the task. If
// the job cannot be cancelled the task is left in place.
func (s *TaskService) DeleteTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	existing, err := s.GetTaskByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.scheduler.Cancel(ctx, id); err != nil {
		busErr := NewCancelFailure(id, err)
		logger.Error("Service: reminder job not cancelled, delete aborted", busErr,
			zap.String("task_id", id.String()))
		return nil, busErr
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			return nil, NewTaskNotFound(id)
		}
		return nil, fmt.Errorf("delete task: %w", err)
	}

	logger.Info("Service: task deleted", zap.String("task_id", id.String()))
	return existing, nil
}

// DetachCustomer unassigns every task of the customer and appends the
// detachment note to each description. Reminders are left untouched.
// Running it twice does not duplicate the note.
func (s *TaskService) DetachCustomer(ctx context.Context, customerID uuid.UUID) ([]*task.Task, error) {
	tasks, err := s.repo.GetAllByCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get customer tasks: %w", err)
	}
	if len(tasks) == 0 {
		return tasks, nil
	}

	for _, t := range tasks {
		t.CustomerID = nil
		t.Description = withDetachedNote(t.Description)
	}

	if err := s.repo.SaveAll(ctx, tasks); err != nil {
		if errors.Is(err, rep.ErrVersionConflict) {
			return nil, NewBusinessError(CodeVersionConflict,
				fmt.Sprintf("tasks of customer %s were modified concurrently", customerID),
				ToDetail("customer_id", customerID.String()),
			)
		}
		return nil, fmt.Errorf("save detached tasks: %w", err)
	}

	logger.Info("Service: customer detached from tasks",
		zap.String("customer_id", customerID.String()),
		zap.Int("tasks", len(tasks)),
	)
	return tasks, nil
}

func (s *TaskService) GetTaskByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Info("Service: task not found", zap.String("task_id", id.String()))
			return nil, NewTaskNotFound(id)
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *TaskService) GetAllTasks(ctx context.Context) ([]*task.Task, error) {
	tasks, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) GetAllTasksByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*task.Task, error) {
	if err := s.requireCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	tasks, err := s.repo.GetAllByCustomerID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("get customer tasks: %w", err)
	}
	return tasks, nil
}

// HandleReminder is the fire callback of the job store. It never returns an
// error or panics into the caller; failures are logged as DISPATCH_FAILURE.
func (s *TaskService) HandleReminder(ctx context.Context, taskID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Service: reminder dispatch panicked",
				NewDispatchFailure(taskID, fmt.Errorf("panic: %v", r)),
				zap.String("task_id", taskID.String()),
			)
		}
	}()

	if _, err := s.repo.GetByID(ctx, taskID); err != nil {
		if errors.Is(err, rep.ErrNotFound) {
			logger.Warn("Service: reminder fired for missing task", zap.String("task_id", taskID.String()))
			return
		}
		logger.Error("Service: reminder dispatch failed", NewDispatchFailure(taskID, err),
			zap.String("task_id", taskID.String()))
		return
	}

	if err := s.dispatcher.Dispatch(ctx, taskID); err != nil {
		logger.Error("Service: reminder dispatch failed", NewDispatchFailure(taskID, err),
			zap.String("task_id", taskID.String()))
		return
	}
	logger.Info("Service: reminder dispatched", zap.String("task_id", taskID.String()))
}

// validate runs every check that must pass before anything is written.
func (s *TaskService) validate(ctx context.Context, req TaskRequest) (task.Status, error) {
	status, err := task.ParseStatus(req.Status)
	if err != nil {
		return "", NewInvalidStatus(req.Status)
	}
	if strings.TrimSpace(req.Title) == "" {
		return "", NewValidationError("title", "must not be empty")
	}
	if req.CustomerID != nil {
		if err := s.requireCustomer(ctx, *req.CustomerID); err != nil {
			return "", err
		}
	}
	return status, nil
}

func (s *TaskService) requireCustomer(ctx context.Context, id uuid.UUID) error {
	exists, err := s.customers.ExistsByID(ctx, id)
	if err != nil {
		return fmt.Errorf("check customer: %w", err)
	}
	if !exists {
		return NewCustomerNotFound(id)
	}
	return nil
}

func (s *TaskService) stampCompleted(ctx context.Context, t *task.Task) error {
	at, err := s.repo.MarkCompletedNow(ctx, t.UUID)
	if err != nil {
		return fmt.Errorf("stamp completion of task %s: %w", t.UUID, err)
	}
	t.CompletedAt = &at
	t.UpdatedAt = at
	return nil
}

func (s *TaskService) scheduleFailure(id uuid.UUID, err error) error {
	busErr := NewScheduleFailure(id, err)
	logger.Error("Service: task and reminder job are out of sync", busErr,
		zap.String("task_id", id.String()))
	return busErr
}

// persistedWithErrors folds the failures that happened after a successful
// save into one error. A missing completion stamp wins over a schedule failure,
// and both stay reachable through errors.Is.
func (s *TaskService) persistedWithErrors(id uuid.UUID, stampErr, scheduleErr error) error {
	if stampErr == nil {
		return scheduleErr
	}
	busErr := NewCompletionStampFailure(id, errors.Join(stampErr, scheduleErr))
	logger.Error("Service: completed task saved without completion time", busErr,
		zap.String("task_id", id.String()))
	return busErr
}

func withDetachedNote(description string) string {
	if strings.Contains(description, task.DetachedNote) {
		return description
	}
	if description == "" {
		return task.DetachedNote
	}
	return description + "\n\n" + task.DetachedNote
}
