package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
)

// FakeGateway is a scripted in-memory remote backend.
//
// It implements gateway.Gateway with deterministic behavior: sequential
// event ids, a controllable clock for modified timestamps, injectable
// failures, and explicit subscription control so tests can simulate
// transport drops and reconnects.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeGateway struct {
	mu sync.Mutex

	children []event.Child
	events   map[string]event.Event
	nextID   int
	lastTS   time.Time

	// now supplies modified timestamps; defaults to time.Now.
	now func() time.Time

	// sub is the currently open subscription channel, nil when closed.
	sub chan gateway.Notification

	// AutoEcho, when true, pushes each Mutate result onto the open
	// subscription as the remote would.
	AutoEcho bool

	// Injected failures. When set, the corresponding call fails.
	MutateErr    error
	FetchErr     error
	SubscribeErr error

	fetchCalls int
}

// NewFakeGateway creates a fake backend with the given children.
func NewFakeGateway(children ...event.Child) *FakeGateway {
	return &FakeGateway{
		children: children,
		events:   make(map[string]event.Event),
		now:      time.Now,
	}
}

// SetNow overrides the clock used for modified timestamps.
func (f *FakeGateway) SetNow(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Children implements gateway.Gateway.
func (f *FakeGateway) Children(ctx context.Context) ([]event.Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]event.Child, len(f.children))
	copy(out, f.children)
	return out, nil
}

// Subscribe implements gateway.Gateway. Only one subscription is open at
// a time; a new Subscribe closes the previous channel first.
func (f *FakeGateway) Subscribe(ctx context.Context) (<-chan gateway.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SubscribeErr != nil {
		return nil, f.SubscribeErr
	}

	if f.sub != nil {
		close(f.sub)
	}
	f.sub = make(chan gateway.Notification, 64)
	return f.sub, nil
}

// DropSubscription closes the open subscription channel, simulating a
// transport drop. The runner under test should reconnect.
func (f *FakeGateway) DropSubscription() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sub != nil {
		close(f.sub)
		f.sub = nil
	}
}

// Push delivers a notification on the open subscription. It also merges
// the event into the fake's own history so later fetches agree with what
// was pushed. Panics if no subscription is open.
func (f *FakeGateway) Push(n gateway.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n.Op == gateway.OpDeleted {
		delete(f.events, n.Event.ID)
	} else {
		f.events[n.Event.ID] = n.Event
	}

	if f.sub == nil {
		panic("FakeGateway: Push with no open subscription")
	}
	f.sub <- n
}

// Seed inserts events into the fake's history without notifying.
func (f *FakeGateway) Seed(evs ...event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ev := range evs {
		f.events[ev.ID] = ev
	}
}

// FetchCalls returns how many FetchRange calls have been made.
func (f *FakeGateway) FetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

// FetchRange implements gateway.Gateway with overlap semantics matching
// the store: an event overlaps [from, to) if it starts before to and ends
// (or is still running) at or after from.
func (f *FakeGateway) FetchRange(ctx context.Context, childUID string, from, to time.Time) ([]event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCalls++
	if f.FetchErr != nil {
		return nil, f.FetchErr
	}

	out := []event.Event{}
	for _, ev := range f.events {
		if ev.ChildUID != childUID {
			continue
		}
		if !ev.Start.Before(to) {
			continue
		}
		if ev.End != nil && ev.End.Before(from) {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// Mutate implements gateway.Gateway. It behaves like a minimal backend:
// session commands act on the child's single active session of the kind,
// logging commands append completed events. The resulting event snapshot
// is returned (and echoed when AutoEcho is set).
func (f *FakeGateway) Mutate(ctx context.Context, cmd gateway.Command) (event.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.MutateErr != nil {
		return event.Event{}, f.MutateErr
	}
	if f.childByUID(cmd.ChildUID) == nil {
		return event.Event{}, &gateway.RejectionError{Reason: "unknown child"}
	}

	ev, err := f.applyCommand(cmd)
	if err != nil {
		return event.Event{}, err
	}
	f.events[ev.ID] = ev

	if f.AutoEcho && f.sub != nil {
		op := gateway.OpUpdated
		if cmd.Type == gateway.CmdStartSleep || cmd.Type == gateway.CmdStartFeeding ||
			!cmd.Type.SessionCommand() {
			op = gateway.OpCreated
		}
		f.sub <- gateway.Notification{Op: op, Event: ev}
	}

	return ev, nil
}

func (f *FakeGateway) applyCommand(cmd gateway.Command) (event.Event, error) {
	ts := f.tick()
	at := cmd.At
	if at.IsZero() {
		at = ts
	}

	switch cmd.Type {
	case gateway.CmdStartSleep, gateway.CmdStartFeeding:
		if f.activeSession(cmd.ChildUID, cmd.Type.Kind()) != nil {
			return event.Event{}, &gateway.RejectionError{Reason: "session already in progress"}
		}
		ev := event.Event{
			ID:       f.newID(),
			ChildUID: cmd.ChildUID,
			Kind:     cmd.Type.Kind(),
			Status:   event.StatusInProgress,
			Start:    ts,
			Modified: ts,
		}
		if cmd.Type == gateway.CmdStartFeeding {
			ev.Feeding = &event.FeedingDetails{Side: cmd.Side}
		}
		return ev, nil

	case gateway.CmdPauseSleep, gateway.CmdPauseFeeding:
		return f.updateSession(cmd, func(ev *event.Event) error {
			if ev.Status != event.StatusInProgress {
				return &gateway.RejectionError{Reason: "session not in progress"}
			}
			ev.Status = event.StatusPaused
			return nil
		}, ts)

	case gateway.CmdResumeSleep, gateway.CmdResumeFeeding:
		return f.updateSession(cmd, func(ev *event.Event) error {
			if ev.Status != event.StatusPaused {
				return &gateway.RejectionError{Reason: "session not paused"}
			}
			ev.Status = event.StatusInProgress
			return nil
		}, ts)

	case gateway.CmdCancelSleep, gateway.CmdCancelFeeding:
		return f.updateSession(cmd, func(ev *event.Event) error {
			ev.Status = event.StatusCancelled
			end := at
			if end.Before(ev.Start) {
				end = ev.Start
			}
			ev.End = &end
			return nil
		}, ts)

	case gateway.CmdCompleteSleep, gateway.CmdCompleteFeeding:
		return f.updateSession(cmd, func(ev *event.Event) error {
			ev.Status = event.StatusCompleted
			end := at
			if end.Before(ev.Start) {
				end = ev.Start
			}
			ev.End = &end
			return nil
		}, ts)

	case gateway.CmdSwitchSide:
		return f.updateSession(cmd, func(ev *event.Event) error {
			if ev.Status != event.StatusInProgress {
				return &gateway.RejectionError{Reason: "session not in progress"}
			}
			if ev.Feeding == nil {
				return &gateway.RejectionError{Reason: "not a nursing session"}
			}
			ev.Feeding.Side = ev.Feeding.Side.Toggled()
			return nil
		}, ts)

	case gateway.CmdLogDiaper:
		return event.Event{
			ID:       f.newID(),
			ChildUID: cmd.ChildUID,
			Kind:     event.KindDiaper,
			Status:   event.StatusCompleted,
			Start:    at,
			End:      &at,
			Modified: ts,
			Diaper:   cmd.Diaper,
		}, nil

	case gateway.CmdLogGrowth:
		return event.Event{
			ID:       f.newID(),
			ChildUID: cmd.ChildUID,
			Kind:     event.KindGrowth,
			Status:   event.StatusCompleted,
			Start:    at,
			End:      &at,
			Modified: ts,
			Growth:   cmd.Growth,
		}, nil

	case gateway.CmdLogBottle:
		return event.Event{
			ID:       f.newID(),
			ChildUID: cmd.ChildUID,
			Kind:     event.KindFeeding,
			Status:   event.StatusCompleted,
			Start:    at,
			End:      &at,
			Modified: ts,
			Feeding: &event.FeedingDetails{
				Side:         event.SideBottle,
				BottleAmount: cmd.Bottle.Amount,
				BottleUnits:  cmd.Bottle.Units,
				BottleType:   cmd.Bottle.Type,
			},
		}, nil
	}

	return event.Event{}, &gateway.RejectionError{Reason: fmt.Sprintf("unknown command %s", cmd.Type)}
}

// updateSession applies fn to the child's active session of cmd's kind.
func (f *FakeGateway) updateSession(cmd gateway.Command, fn func(*event.Event) error, ts time.Time) (event.Event, error) {
	ev := f.activeSession(cmd.ChildUID, cmd.Type.Kind())
	if ev == nil {
		return event.Event{}, &gateway.RejectionError{Reason: "no active session"}
	}
	updated := *ev
	if err := fn(&updated); err != nil {
		return event.Event{}, err
	}
	updated.Modified = ts
	return updated, nil
}

func (f *FakeGateway) activeSession(childUID string, kind event.Kind) *event.Event {
	for id := range f.events {
		ev := f.events[id]
		if ev.ChildUID == childUID && ev.Kind == kind && ev.Status.Active() {
			return &ev
		}
	}
	return nil
}

func (f *FakeGateway) childByUID(uid string) *event.Child {
	for i := range f.children {
		if f.children[i].UID == uid {
			return &f.children[i]
		}
	}
	return nil
}

// newID returns the next sequential event id ("ev-1", "ev-2", ...).
func (f *FakeGateway) newID() string {
	f.nextID++
	return fmt.Sprintf("ev-%d", f.nextID)
}

// tick returns a strictly increasing timestamp so every mutation gets a
// distinct modified value even under a frozen fake clock.
func (f *FakeGateway) tick() time.Time {
	ts := f.now()
	if !ts.After(f.lastTS) {
		ts = f.lastTS.Add(time.Nanosecond)
	}
	f.lastTS = ts
	return ts
}
