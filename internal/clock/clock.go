// Package clock supplies the current time to code that stamps or schedules.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type Real struct{}

func (Real) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a clock that only moves when told to.
type Manual struct {
	mtx sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.now = t
}

func (m *Manual) Advance(d time.Duration) time.Time {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.now = m.now.Add(d)
	return m.now
}
