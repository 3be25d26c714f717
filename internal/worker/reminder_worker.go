package worker

import (
	"context"
	"crmTasks/internal/logger"
	"time"

	"go.uber.org/zap"
)

// DueJobSource is a job store that fires jobs when polled rather than on its
// own timers.
type DueJobSource interface {
	FireDue(ctx context.Context, limit int) (int, error)
}

type ReminderWorker struct {
	source    DueJobSource
	interval  time.Duration
	batchSize int
}

func NewReminderWorker(source DueJobSource, interval *time.Duration, batchSize *int) *ReminderWorker {
	var intervalToSet time.Duration
	if interval == nil || *interval <= 0 {
		intervalToSet = time.Second
	} else {
		intervalToSet = *interval
	}

	var batchToSet int
	if batchSize == nil || *batchSize <= 0 {
		batchToSet = 100
	} else {
		batchToSet = *batchSize
	}
	return &ReminderWorker{
		source:    source,
		interval:  intervalToSet,
		batchSize: batchToSet,
	}
}

// Start polls until ctx is done. The first poll runs immediately so jobs that
// came due while the service was down fire on startup.
func (w *ReminderWorker) Start(ctx context.Context) {
	logger.Info("Worker: reminder polling started", zap.Duration("interval", w.interval))
	w.Check(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Check(ctx)
		case <-ctx.Done():
			logger.Info("Worker: reminder polling stopped")
			return
		}
	}
}

// Check drains due jobs batch by batch until a batch comes back short.
func (w *ReminderWorker) Check(ctx context.Context) int {
	start := time.Now()
	total := 0

	for ctx.Err() == nil {
		fired, err := w.source.FireDue(ctx, w.batchSize)
		total += fired
		if err != nil {
			logger.Warn("Worker: failed to fire due reminders", zap.Error(err))
			break
		}
		if fired < w.batchSize {
			break
		}
	}

	if total > 0 {
		logger.Info(
			"Worker: due reminders fired",
			zap.Duration("ms", time.Since(start)),
			zap.Int("fired", total),
		)
	}
	return total
}
