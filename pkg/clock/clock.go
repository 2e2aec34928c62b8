// Package clock provides the microsecond time source shared by the echo
// backends and the measurement processor. Tests swap in a Manual clock to
// control apparent time.
package clock

import (
	"sync"
	"time"
)

// Clock abstracts the subset of package time the pipeline needs.
type Clock interface {
	// NowUS returns a monotonic timestamp in microseconds.
	NowUS() uint64
	// After indirects time.After.
	After(d time.Duration) <-chan time.Time
}

type monotonic struct {
	start time.Time
}

// processStart anchors every Monotonic clock to one base, so timestamps
// from different components compare directly.
var processStart = time.Now()

// Monotonic returns the default clock.
func Monotonic() Clock {
	return monotonic{start: processStart}
}

func (monotonic) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Manual is a Clock whose NowUS only moves when told to. After still uses
// real timers so blocking waits keep working in tests.
type Manual struct {
	mu  sync.Mutex
	now uint64
}

// NewManual creates a manual clock starting at startUS.
func NewManual(startUS uint64) *Manual {
	return &Manual{now: startUS}
}

// NowUS returns the current manual time.
func (m *Manual) NowUS() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to us.
func (m *Manual) Set(us uint64) {
	m.mu.Lock()
	m.now = us
	m.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new time.
func (m *Manual) Advance(d time.Duration) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += uint64(d.Microseconds())
	return m.now
}

// After indirects time.After.
func (m *Manual) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
