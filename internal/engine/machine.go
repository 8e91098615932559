package engine

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/roach88/naptrack/internal/event"
)

// Activity state-machine states. One machine exists per (child, kind) for
// the session-shaped kinds (sleep, feeding).
const (
	StateIdle   = "idle"
	StateActive = "active"
	StatePaused = "paused"
)

// Transitions between activity states.
const (
	TransitionStart    = "start"
	TransitionPause    = "pause"
	TransitionResume   = "resume"
	TransitionComplete = "complete"
	TransitionCancel   = "cancel"
)

// ActivityStatus is the presentation-facing activity value.
type ActivityStatus string

const (
	ActivityNone   ActivityStatus = "none"
	ActivityActive ActivityStatus = "active"
	ActivityPaused ActivityStatus = "paused"
)

// statusOfState maps a machine state to its presentation status.
func statusOfState(state string) ActivityStatus {
	switch state {
	case StateActive:
		return ActivityActive
	case StatePaused:
		return ActivityPaused
	}
	return ActivityNone
}

// stateOfEvent maps a stored session's status to a machine state.
func stateOfEvent(ev *event.Event) string {
	if ev == nil {
		return StateIdle
	}
	switch ev.Status {
	case event.StatusInProgress:
		return StateActive
	case event.StatusPaused:
		return StatePaused
	}
	return StateIdle
}

// machine is the deterministic finite-state model for one (child, kind).
//
// Mutated only from the Run loop goroutine. It tracks the active event id
// alongside the state so a start echo for the same remote event is
// recognized as a no-op rather than a guard failure.
type machine struct {
	childUID string
	kind     event.Kind
	fsm      *fsm.FSM

	// activeEventID references the in-progress/paused event, "" when idle.
	activeEventID string

	// revision is bumped (from the engine clock) on every transition.
	revision int64

	// Pending optimistic action, authoritative over remote notifications
	// generated before it, until its echo arrives or the conflict window
	// expires.
	pendingEventID string
	pendingSince   time.Time
}

func newMachine(childUID string, kind event.Kind) *machine {
	return &machine{
		childUID: childUID,
		kind:     kind,
		fsm: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: TransitionStart, Src: []string{StateIdle}, Dst: StateActive},
				{Name: TransitionPause, Src: []string{StateActive}, Dst: StatePaused},
				{Name: TransitionResume, Src: []string{StatePaused}, Dst: StateActive},
				{Name: TransitionComplete, Src: []string{StateActive, StatePaused}, Dst: StateIdle},
				{Name: TransitionCancel, Src: []string{StateActive, StatePaused}, Dst: StateIdle},
			},
			fsm.Callbacks{},
		),
	}
}

func (m *machine) current() string {
	return m.fsm.Current()
}

func (m *machine) status() ActivityStatus {
	return statusOfState(m.current())
}

// can reports whether the transition is allowed from the current state.
func (m *machine) can(transition string) bool {
	return m.fsm.Can(transition)
}

// fire applies a transition, updating the active event reference and
// bumping the revision. A start for the already-active event id is an
// echo of our own action and a no-op, detected via id comparison rather
// than status alone.
func (m *machine) fire(ctx context.Context, transition, eventID string, clock *Clock) error {
	if transition == TransitionStart && eventID != "" && eventID == m.activeEventID {
		return nil
	}

	if err := m.fsm.Event(ctx, transition); err != nil {
		return NewInvalidTransitionError(m.childUID, m.kind, m.status(), transition)
	}

	switch transition {
	case TransitionStart:
		m.activeEventID = eventID
	case TransitionComplete, TransitionCancel:
		m.activeEventID = ""
	}
	m.revision = clock.Next()
	return nil
}

// setFromStore force-sets the machine to mirror the stored active session
// (nil means idle). Used by the reconciler, which recomputes state from
// the store rather than replaying transitions. Returns whether anything
// observable changed; the revision is bumped only on change.
func (m *machine) setFromStore(active *event.Event, clock *Clock) (changed bool) {
	state := stateOfEvent(active)
	id := ""
	if active != nil && state != StateIdle {
		id = active.ID
	}

	if state == m.current() && id == m.activeEventID {
		return false
	}

	m.fsm.SetState(state)
	m.activeEventID = id
	m.revision = clock.Next()
	return true
}

// markPending records an optimistic action awaiting its remote echo.
func (m *machine) markPending(eventID string, now time.Time) {
	m.pendingEventID = eventID
	m.pendingSince = now
}

func (m *machine) clearPending() {
	m.pendingEventID = ""
	m.pendingSince = time.Time{}
}

// pendingBlocks reports whether a pending optimistic action is still
// authoritative over a remote notification generated at notifModified.
// A pending action loses authority once the conflict window expires, so a
// lost echo cannot desync local state forever.
func (m *machine) pendingBlocks(notifModified, now time.Time, window time.Duration) bool {
	if m.pendingEventID == "" {
		return false
	}
	if now.Sub(m.pendingSince) > window {
		return false
	}
	return m.pendingSince.After(notifModified)
}
