package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps runs with a seq.
//
// Clock is safe for concurrent use, although an Engine only advances it
// from the goroutine calling Run.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. Engines attached to a store
// resume from the highest stored run seq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the clock value without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
