package harness

import (
	"github.com/roach88/naptrack/internal/engine"
	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
)

// TraceEvent is one entry in a scenario trace: either a dispatcher
// command outcome or a state change observed by a subscriber.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Type    string `json:"type"`             // "command" | "change"
	Command string `json:"command,omitempty"` // command traces only
	Change  string `json:"change,omitempty"`  // change traces: "activity" | "logged"
	Child   string `json:"child"`
	Kind    string `json:"kind,omitempty"`
	Status  string `json:"status,omitempty"`
	EventID string `json:"event_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Result accumulates the ordered trace of a scenario run. Traces are
// deterministic under the harness clocks and ids, so they can be
// compared against golden files.
type Result struct {
	Trace []TraceEvent `json:"trace"`
}

func (r *Result) add(t TraceEvent) {
	t.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, t)
}

// AddCommandTrace records a dispatcher command outcome.
func (r *Result) AddCommandTrace(cmd gateway.CommandType, childUID string, ev event.Event, err error) {
	t := TraceEvent{
		Type:    "command",
		Command: string(cmd),
		Child:   childUID,
		EventID: ev.ID,
	}
	if err != nil {
		t.Error = err.Error()
	}
	r.add(t)
}

// AddChangeTrace records an observed state change.
func (r *Result) AddChangeTrace(c engine.StateChange) {
	t := TraceEvent{
		Type:    "change",
		Change:  string(c.Type),
		Child:   c.ChildUID,
		Kind:    string(c.Kind),
		EventID: c.EventID,
	}
	if c.Type == engine.ChangeActivity {
		t.Status = string(c.Status)
	}
	r.add(t)
}

// AddChanges records a batch of state changes in order.
func (r *Result) AddChanges(cs []engine.StateChange) {
	for _, c := range cs {
		r.AddChangeTrace(c)
	}
}
