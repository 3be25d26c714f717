package task

import (
	"errors"
	"strings"
)

type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusOnHold     Status = "ON_HOLD"
	StatusBlocked    Status = "BLOCKED"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusArchived   Status = "ARCHIVED"
)

var ErrInvalidStatus = errors.New("invalid task status")

var statuses = map[Status]struct{}{
	StatusOpen:       {},
	StatusInProgress: {},
	StatusOnHold:     {},
	StatusBlocked:    {},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusArchived:   {},
}

// ParseStatus accepts any casing and separator style ("in progress",
// "In-Progress", "in__progress") and maps it onto the closed set of statuses.
// A blank input yields an empty Status and no error; callers pick the default.
func ParseStatus(raw string) (Status, error) {
	normalized := normalize(raw)
	if normalized == "" {
		return "", nil
	}

	status := Status(normalized)
	if _, ok := statuses[status]; !ok {
		return "", ErrInvalidStatus
	}
	return status, nil
}

func normalize(raw string) string {
	var b strings.Builder
	pendingSep := false

	for _, r := range strings.ToUpper(strings.TrimSpace(raw)) {
		switch r {
		case ' ', '\t', '\n', '\r', '-', '_':
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}

func (s Status) Valid() bool {
	_, ok := statuses[s]
	return ok
}
