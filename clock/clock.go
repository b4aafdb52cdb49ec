// Package clock abstracts the ledger's time source. Production code uses
// Real; tests drive a Fake deterministically.
//
// The engine reads the clock once per operation and works in whole unix
// seconds, so every computation inside a call sees the same instant.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time. Implementations must be monotonically
// non-decreasing from the engine's point of view.
type Clock interface {
	Now() time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Unix returns t as unix seconds, clamping instants before the epoch to 0.
func Unix(t time.Time) uint64 {
	s := t.Unix()
	if s < 0 {
		return 0
	}
	return uint64(s)
}

// FakeClock is a Clock whose time only moves when told to. It is safe for
// concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeUnix returns a FakeClock set to the given unix second.
func FakeUnix(sec int64) *FakeClock {
	return Fake(time.Unix(sec, 0).UTC())
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (c *FakeClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to t. Moving backwards is ignored.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.current) {
		c.current = t
	}
}

// SetUnix moves the clock to the given unix second.
func (c *FakeClock) SetUnix(sec int64) {
	c.Set(time.Unix(sec, 0).UTC())
}
