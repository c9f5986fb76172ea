package clock

import (
	"sync"
	"time"
)

// Manual is a Clock that only moves when told to. Safe for use by the
// scheduler goroutine and a test at the same time.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

// NewManual pins the clock at the given instant, normalised to UTC like the
// system clock.
func NewManual(at time.Time) *Manual {
	return &Manual{now: at.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set jumps to at, for example into the next budget period.
func (m *Manual) Set(at time.Time) {
	m.mu.Lock()
	m.now = at.UTC()
	m.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
	return m.now
}

var _ Clock = (*Manual)(nil)
