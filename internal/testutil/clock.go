package testutil

import (
	"sync"
	"time"
)

// Epoch is the default start time for test clocks.
var Epoch = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

// StepClock is a thread-safe clock for tests that advances by a fixed step
// on every read, so each timestamp it hands out is distinct and
// predictable.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type StepClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewStepClock creates a clock whose first Now() returns start.
func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{start: start.UTC(), step: step}
}

// Now returns start + n*step and advances n.
func (c *StepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Current returns the time the next call to Now() will return.
func (c *StepClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.n) * c.step)
}

// Set moves the clock so the next Now() returns t.
func (c *StepClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = t.UTC()
	c.n = 0
}

// Reset rewinds the clock to its start time.
func (c *StepClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}

// FixedClock always returns the same time.
type FixedClock time.Time

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return time.Time(c)
}
