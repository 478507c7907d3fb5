package testutil

import "sync"

// DeterministicClock is a thread-safe millisecond clock for tests.
//
// Each call to NowMillis advances the clock by a fixed step, so the same
// fixture built twice carries identical timestamps. Reset rewinds it to the
// start for reuse.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start int64
	step  int64
	now   int64
}

// NewDeterministicClock creates a clock at start (ms since UNIX epoch) that
// advances by step on every read. A step below 1 is treated as 1.
//
// The first call to NowMillis returns start.
func NewDeterministicClock(start, step int64) *DeterministicClock {
	if step < 1 {
		step = 1
	}
	return &DeterministicClock{start: start, step: step, now: start}
}

// NowMillis returns the current time and advances the clock by one step.
//
// Monotonic: strictly increasing across calls.
func (c *DeterministicClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now += c.step
	return t
}

// Current returns the time the next NowMillis call will return, without
// advancing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset rewinds the clock to its start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.start
}
