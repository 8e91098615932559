// Package testutil provides deterministic test doubles for the engine:
// a controllable wall clock and a scripted remote gateway.
package testutil

import (
	"sync"
	"time"
)

// FakeNow is a controllable wall clock for tests.
//
// The engine takes its notion of "now" through an injected function;
// FakeNow lets conflict-window tests advance time explicitly instead of
// sleeping.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeNow struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeNow creates a clock frozen at the given instant.
func NewFakeNow(start time.Time) *FakeNow {
	return &FakeNow{now: start}
}

// Now returns the current fake time. Pass the method value as the
// engine's now function.
func (f *FakeNow) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d and returns the new time.
func (f *FakeNow) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}
