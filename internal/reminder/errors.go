package reminder

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrNotStarted = errors.New("job store not started")

// ScheduleError reports that the job store rejected a call. The task change
// that led to it has already been persisted.
type ScheduleError struct {
	TaskID uuid.UUID
	Action Action
	Err    error
}

func (e *ScheduleError) Error() string {
	return fmt.Sprintf("reminder %s for task %s: %v", e.Action, e.TaskID, e.Err)
}

func (e *ScheduleError) Unwrap() error {
	return e.Err
}
