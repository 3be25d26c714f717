package notification

import (
	"context"
	"crmTasks/internal/logger"

	"go.uber.org/zap"
)

// LogSender writes reminders to the application log.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, r Reminder) error {
	fields := []zap.Field{
		zap.String("task_id", r.TaskID.String()),
		zap.String("title", r.Title),
		zap.String("status", r.Status),
	}
	if r.RemindAt != nil {
		fields = append(fields, zap.Time("remind_at", *r.RemindAt))
	}
	if r.Customer != nil {
		fields = append(fields,
			zap.String("customer_id", r.Customer.ID.String()),
			zap.String("customer_name", r.Customer.Name),
		)
	}
	logger.Info("Notification: task reminder", fields...)
	return nil
}
