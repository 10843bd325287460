package testutil

import (
	"sync"

	"github.com/roach88/livequery/internal/engine"
)

// TraceClock numbers the events of a recorded trace.
//
// It is an engine.Clock that can be reset, so running the same scenario
// twice yields the same sequence numbers. Safe for concurrent use.
type TraceClock struct {
	mu    sync.Mutex
	clock *engine.Clock
}

// NewTraceClock creates a clock whose first Next returns 1.
func NewTraceClock() *TraceClock {
	return &TraceClock{clock: engine.NewClock()}
}

// Next advances the clock and returns the new value.
func (c *TraceClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Next()
}

// Current returns the last value handed out, 0 before the first Next.
func (c *TraceClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock.Current()
}

// Reset starts the numbering over.
func (c *TraceClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = engine.NewClock()
}
