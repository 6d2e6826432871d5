package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced time source
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock frozen at t
func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

// Now returns the current fake time
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
