// Package event defines the domain model shared by the store, the engine,
// and the calendar layer: children, tracked events, and their payloads.
//
// Event is a closed tagged union over the four tracked kinds. Exactly one
// of the kind-specific payload pointers may be set, and it must match Kind.
// The Reconciler and ActionDispatcher rely on this being a fixed set, so
// new kinds require touching Validate and every Kind switch.
package event

import (
	"fmt"
	"time"
)

// Kind identifies what an event tracks.
type Kind string

const (
	KindSleep   Kind = "sleep"
	KindFeeding Kind = "feeding"
	KindDiaper  Kind = "diaper"
	KindGrowth  Kind = "growth"
)

// Kinds lists all event kinds in a stable order.
var Kinds = []Kind{KindSleep, KindFeeding, KindDiaper, KindGrowth}

// SessionKinds lists the kinds subject to the single-active-session
// invariant and driven by an activity state machine.
var SessionKinds = []Kind{KindSleep, KindFeeding}

// SessionShaped reports whether events of this kind have a lifecycle
// (start, optional pause, end) rather than being instantaneous.
func (k Kind) SessionShaped() bool {
	return k == KindSleep || k == KindFeeding
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSleep, KindFeeding, KindDiaper, KindGrowth:
		return true
	}
	return false
}

// Status is the lifecycle status of an event.
//
// Instantaneous events (diaper, growth) are always StatusCompleted.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Active reports whether the status counts against the at-most-one
// active session per (child, kind) invariant.
func (s Status) Active() bool {
	return s == StatusInProgress || s == StatusPaused
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusInProgress, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Side identifies the feeding side.
type Side string

const (
	SideLeft   Side = "left"
	SideRight  Side = "right"
	SideBottle Side = "bottle"
)

// Toggled returns the opposite nursing side. Bottle has no opposite.
func (s Side) Toggled() Side {
	switch s {
	case SideLeft:
		return SideRight
	case SideRight:
		return SideLeft
	}
	return s
}

// DiaperMode categorizes a diaper change.
type DiaperMode string

const (
	DiaperPee  DiaperMode = "pee"
	DiaperPoo  DiaperMode = "poo"
	DiaperBoth DiaperMode = "both"
	DiaperDry  DiaperMode = "dry"
)

// Valid reports whether m is a known diaper mode.
func (m DiaperMode) Valid() bool {
	switch m {
	case DiaperPee, DiaperPoo, DiaperBoth, DiaperDry:
		return true
	}
	return false
}

// FeedingDetails is the kind-specific payload for feeding events.
//
// LeftDuration/RightDuration are tracked for nursing sessions so the
// calendar can render per-side breakdowns. Bottle fields are set only
// when Side is SideBottle.
type FeedingDetails struct {
	Side          Side          `json:"side"`
	LeftDuration  time.Duration `json:"left_duration,omitempty"`
	RightDuration time.Duration `json:"right_duration,omitempty"`
	BottleAmount  float64       `json:"bottle_amount,omitempty"`
	BottleUnits   string        `json:"bottle_units,omitempty"`
	BottleType    string        `json:"bottle_type,omitempty"`
}

// DiaperDetails is the kind-specific payload for diaper changes.
// The optional fields mirror what the remote records when present.
type DiaperDetails struct {
	Mode           DiaperMode `json:"mode"`
	PooColor       string     `json:"poo_color,omitempty"`
	PooConsistency string     `json:"poo_consistency,omitempty"`
	Amount         string     `json:"amount,omitempty"`
}

// GrowthDetails is the kind-specific payload for growth measurements.
// Each measurement is optional; at least one must be present.
type GrowthDetails struct {
	Weight            *float64 `json:"weight,omitempty"`
	Height            *float64 `json:"height,omitempty"`
	HeadCircumference *float64 `json:"head_circumference,omitempty"`
}

// Empty reports whether no measurement is present.
func (g GrowthDetails) Empty() bool {
	return g.Weight == nil && g.Height == nil && g.HeadCircumference == nil
}

// Event is a single tracked occurrence for a child.
//
// ID is remote-assigned, opaque, and stable. Modified is the remote
// last-modified timestamp and drives last-write-wins conflict resolution.
// End is nil while a session is still running.
type Event struct {
	ID       string
	ChildUID string
	Kind     Kind
	Status   Status
	Start    time.Time
	End      *time.Time
	Modified time.Time

	// Kind-specific payload: exactly the pointer matching Kind is set
	// for feeding/diaper/growth; sleep carries none.
	Feeding *FeedingDetails
	Diaper  *DiaperDetails
	Growth  *GrowthDetails
}

// Instantaneous reports whether the event is a point-in-time record.
func (e Event) Instantaneous() bool {
	return !e.Kind.SessionShaped()
}

// ActiveSession reports whether the event is a session currently counting
// against the single-active-session invariant.
func (e Event) ActiveSession() bool {
	return e.Kind.SessionShaped() && e.Status.Active()
}

// Duration returns the elapsed time of the event, zero if still running.
func (e Event) Duration() time.Duration {
	if e.End == nil {
		return 0
	}
	return e.End.Sub(e.Start)
}

// EffectiveEnd returns End when set, otherwise Start. Instantaneous events
// store End = Start, so this is their event time either way.
func (e Event) EffectiveEnd() time.Time {
	if e.End != nil {
		return *e.End
	}
	return e.Start
}

// Validate checks the structural invariants of the event.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("event missing id")
	}
	if e.ChildUID == "" {
		return fmt.Errorf("event %s: missing child uid", e.ID)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("event %s: unknown kind %q", e.ID, e.Kind)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("event %s: unknown status %q", e.ID, e.Status)
	}
	if e.Start.IsZero() {
		return fmt.Errorf("event %s: missing start", e.ID)
	}
	if e.End != nil && e.End.Before(e.Start) {
		return fmt.Errorf("event %s: end %s before start %s", e.ID, e.End, e.Start)
	}
	if e.Instantaneous() {
		if e.Status.Active() {
			return fmt.Errorf("event %s: %s events cannot be %s", e.ID, e.Kind, e.Status)
		}
		if e.End != nil && !e.End.Equal(e.Start) {
			return fmt.Errorf("event %s: %s events must be instantaneous", e.ID, e.Kind)
		}
	}
	return e.validatePayload()
}

func (e Event) validatePayload() error {
	set := 0
	if e.Feeding != nil {
		set++
	}
	if e.Diaper != nil {
		set++
	}
	if e.Growth != nil {
		set++
	}
	if set > 1 {
		return fmt.Errorf("event %s: multiple payloads set", e.ID)
	}
	switch e.Kind {
	case KindSleep:
		if set != 0 {
			return fmt.Errorf("event %s: sleep events carry no payload", e.ID)
		}
	case KindFeeding:
		if e.Feeding == nil {
			return fmt.Errorf("event %s: feeding event missing payload", e.ID)
		}
	case KindDiaper:
		if e.Diaper == nil {
			return fmt.Errorf("event %s: diaper event missing payload", e.ID)
		}
		if !e.Diaper.Mode.Valid() {
			return fmt.Errorf("event %s: unknown diaper mode %q", e.ID, e.Diaper.Mode)
		}
	case KindGrowth:
		if e.Growth == nil {
			return fmt.Errorf("event %s: growth event missing payload", e.ID)
		}
		if e.Growth.Empty() {
			return fmt.Errorf("event %s: growth event has no measurements", e.ID)
		}
	}
	return nil
}
