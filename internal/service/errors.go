package service

import (
	"fmt"

	"github.com/google/uuid"
)

const (
	CodeTaskNotFound     = "TASK_NOT_FOUND"
	CodeCustomerNotFound = "CUSTOMER_NOT_FOUND"
	CodeInvalidStatus    = "INVALID_STATUS"
	CodeValidation       = "VALIDATION_ERROR"
	CodeVersionConflict  = "VERSION_CONFLICT"
	CodeScheduleFailure  = "SCHEDULE_FAILURE"
	CodeDispatchFailure  = "DISPATCH_FAILURE"
	CodeCompletionStamp  = "COMPLETION_STAMP_FAILURE"
)

// Sentinels for errors.Is; a BusinessError matches any sentinel with the same Code.
var (
	ErrTaskNotFound     = &BusinessError{Code: CodeTaskNotFound}
	ErrCustomerNotFound = &BusinessError{Code: CodeCustomerNotFound}
	ErrInvalidStatus    = &BusinessError{Code: CodeInvalidStatus}
	ErrValidation       = &BusinessError{Code: CodeValidation}
	ErrVersionConflict  = &BusinessError{Code: CodeVersionConflict}
	ErrScheduleFailure  = &BusinessError{Code: CodeScheduleFailure}
	ErrDispatchFailure  = &BusinessError{Code: CodeDispatchFailure}
	ErrCompletionStamp  = &BusinessError{Code: CodeCompletionStamp}
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func (b *BusinessError) Is(target error) bool {
	t, ok := target.(*BusinessError)
	return ok && t.Code == b.Code
}

func ToDetail(key string, payload any) Detail {
	return Detail{
		Key:     key,
		Payload: payload,
	}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}

	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}

	return busErr
}

func NewTaskNotFound(id uuid.UUID) *BusinessError {
	return NewBusinessError(CodeTaskNotFound,
		fmt.Sprintf("task %s not found", id),
		ToDetail("resource", "task"),
		ToDetail("id", id.String()),
	)
}

func NewCustomerNotFound(id uuid.UUID) *BusinessError {
	return NewBusinessError(CodeCustomerNotFound,
		fmt.Sprintf("customer %s not found", id),
		ToDetail("resource", "customer"),
		ToDetail("id", id.String()),
	)
}

func NewInvalidStatus(raw string) *BusinessError {
	return NewBusinessError(CodeInvalidStatus,
		fmt.Sprintf("unknown task status %q", raw),
		ToDetail("field", "status"),
		ToDetail("value", raw),
	)
}

func NewValidationError(field, reason string) *BusinessError {
	return NewBusinessError(CodeValidation,
		fmt.Sprintf("invalid value for field '%s': %s", field, reason),
		ToDetail("field", field),
		ToDetail("reason", reason),
	)
}

func NewVersionConflict(id uuid.UUID, err error) *BusinessError {
	busErr := NewBusinessError(CodeVersionConflict,
		fmt.Sprintf("task %s was modified concurrently", id),
		ToDetail("id", id.String()),
	)
	busErr.Err = err
	return busErr
}

// NewScheduleFailure marks a task change that was persisted while its
// reminder job may not match it.
func NewScheduleFailure(id uuid.UUID, err error) *BusinessError {
	busErr := NewBusinessError(CodeScheduleFailure,
		fmt.Sprintf("reminder for task %s could not be synchronized", id),
		ToDetail("id", id.String()),
	)
	busErr.Err = err
	return busErr
}

// NewCancelFailure reports a delete that was aborted because the reminder job
// could not be cancelled. The task is left as it was.
func NewCancelFailure(id uuid.UUID, err error) *BusinessError {
	busErr := NewBusinessError(CodeScheduleFailure,
		fmt.Sprintf("reminder for task %s could not be cancelled, task was not deleted", id),
		ToDetail("id", id.String()),
	)
	busErr.Err = err
	return busErr
}

// NewCompletionStampFailure marks a COMPLETED task that was persisted without
// its completion time.
func NewCompletionStampFailure(id uuid.UUID, err error) *BusinessError {
	busErr := NewBusinessError(CodeCompletionStamp,
		fmt.Sprintf("task %s was saved but its completion time was not recorded", id),
		ToDetail("id", id.String()),
	)
	busErr.Err = err
	return busErr
}

func NewDispatchFailure(id uuid.UUID, err error) *BusinessError {
	busErr := NewBusinessError(CodeDispatchFailure,
		fmt.Sprintf("reminder notification for task %s was not sent", id),
		ToDetail("id", id.String()),
	)
	busErr.Err = err
	return busErr
}
