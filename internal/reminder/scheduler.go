// Package reminder keeps a task's reminder instant and its pending job in step.
//
// A JobStore holds at most one job per task id. Scheduler decides which single
// store call a change of reminder requires and issues it; it never removes and
// re-adds a job, so there is no window in which a rescheduled reminder is
// missing from the store.
package reminder

import (
	"context"
	"crmTasks/internal/logger"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FireFunc is invoked by a JobStore when a job becomes due. It must not panic
// and has no way to report failure back to the store: a fired job is gone.
type FireFunc func(ctx context.Context, taskID uuid.UUID)

// JobStore implementations must serialize Put, Remove and firing per task id.
// Put replaces any existing job for the id. Remove of an absent id is a no-op.
type JobStore interface {
	Put(ctx context.Context, taskID uuid.UUID, at time.Time) error
	Remove(ctx context.Context, taskID uuid.UUID) error
}

type Action string

const (
	ActionNone       Action = "none"
	ActionSchedule   Action = "schedule"
	ActionReschedule Action = "reschedule"
	ActionCancel     Action = "cancel"
)

// Diff maps an old and new reminder onto the one action that reconciles them.
// Instants are compared with time.Time.Equal, so the same moment expressed in
// two zones is no change.
func Diff(oldAt, newAt *time.Time) Action {
	switch {
	case oldAt == nil && newAt == nil:
		return ActionNone
	case oldAt == nil:
		return ActionSchedule
	case newAt == nil:
		return ActionCancel
	case oldAt.Equal(*newAt):
		return ActionNone
	default:
		return ActionReschedule
	}
}

type Scheduler struct {
	store JobStore
}

func NewScheduler(store JobStore) *Scheduler {
	return &Scheduler{store: store}
}

func (s *Scheduler) Schedule(ctx context.Context, taskID uuid.UUID, at time.Time) error {
	if err := s.store.Put(ctx, taskID, at); err != nil {
		return &ScheduleError{TaskID: taskID, Action: ActionSchedule, Err: err}
	}
	logger.Info("Reminder: job scheduled",
		zap.String("task_id", taskID.String()),
		zap.Time("fire_at", at))
	return nil
}

func (s *Scheduler) Reschedule(ctx context.Context, taskID uuid.UUID, at time.Time) error {
	if err := s.store.Put(ctx, taskID, at); err != nil {
		return &ScheduleError{TaskID: taskID, Action: ActionReschedule, Err: err}
	}
	logger.Info("Reminder: job rescheduled",
		zap.String("task_id", taskID.String()),
		zap.Time("fire_at", at))
	return nil
}

// Cancel is safe to call for a task that has no job.
func (s *Scheduler) Cancel(ctx context.Context, taskID uuid.UUID) error {
	if err := s.store.Remove(ctx, taskID); err != nil {
		return &ScheduleError{TaskID: taskID, Action: ActionCancel, Err: err}
	}
	logger.Info("Reminder: job cancelled", zap.String("task_id", taskID.String()))
	return nil
}

// Reconcile issues at most one store call for the change oldAt -> newAt.
func (s *Scheduler) Reconcile(ctx context.Context, taskID uuid.UUID, oldAt, newAt *time.Time) error {
	switch Diff(oldAt, newAt) {
	case ActionSchedule:
		return s.Schedule(ctx, taskID, *newAt)
	case ActionReschedule:
		return s.Reschedule(ctx, taskID, *newAt)
	case ActionCancel:
		return s.Cancel(ctx, taskID)
	default:
		return nil
	}
}
