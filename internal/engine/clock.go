package engine

import "sync/atomic"

// Clock is the monotonic local revision counter.
//
// Every activity-state transition - optimistic or reconciled - is stamped
// with a strictly increasing revision from this clock. Revisions let the
// reconciler discard stale remote echoes that race with a more recent
// local optimistic update.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, the Engine's single-writer design means only the Run loop
// typically calls Next().
type Clock struct {
	rev atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next revision and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.rev.Add(1)
}

// Current returns the current revision without incrementing.
func (c *Clock) Current() int64 {
	return c.rev.Load()
}
