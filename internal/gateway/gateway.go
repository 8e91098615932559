// Package gateway defines the contract to the remote baby-tracking backend.
//
// The engine consumes this contract; it never implements it. A production
// transport (authentication, push channel, range queries) satisfies Gateway,
// and tests use the scripted fake in internal/testutil. The Runner in this
// package owns the push subscription lifecycle, including reconnect with
// exponential backoff and the full resync a reconnect triggers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/naptrack/internal/event"
)

// ErrUnavailable indicates a transport-level failure (network, auth,
// timeout). Callers may retry with backoff; no local state was changed.
var ErrUnavailable = errors.New("remote unavailable")

// RejectionError indicates the backend rejected a mutation. The reason is
// passed through to callers; retrying without changing the request is a
// caller error.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("remote rejected: %s", e.Reason)
}

// Op identifies what a remote change notification did.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Notification is one remote change: an event snapshot plus what happened
// to it. For OpDeleted only Event.ID and Event.ChildUID are meaningful.
type Notification struct {
	Op    Op
	Event event.Event
}

// Gateway is the request/response and push surface of the remote backend.
//
// Subscribe returns a channel of notifications that closes when the
// transport drops; the Runner resubscribes and triggers a resync. The
// channel must preserve per-(child, kind) arrival order.
//
// All blocking calls honor ctx cancellation and deadlines.
type Gateway interface {
	Subscribe(ctx context.Context) (<-chan Notification, error)
	Mutate(ctx context.Context, cmd Command) (event.Event, error)
	FetchRange(ctx context.Context, childUID string, from, to time.Time) ([]event.Event, error)
	Children(ctx context.Context) ([]event.Child, error)
}

// Unavailable is a Gateway whose every call fails with ErrUnavailable.
// It is the default transport when no real one is wired in, so commands
// that need the remote fail honestly instead of diverging local state.
type Unavailable struct{}

func (Unavailable) Subscribe(ctx context.Context) (<-chan Notification, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Mutate(ctx context.Context, cmd Command) (event.Event, error) {
	return event.Event{}, ErrUnavailable
}

func (Unavailable) FetchRange(ctx context.Context, childUID string, from, to time.Time) ([]event.Event, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Children(ctx context.Context) ([]event.Child, error) {
	return nil, ErrUnavailable
}
