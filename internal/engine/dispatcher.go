package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
)

// Public dispatcher operations. Every operation follows the same template:
//
//  1. Validate the target child exists (unknown-child otherwise).
//  2. For session actions, check the state-machine guard
//     (invalid-transition otherwise, carrying the current status).
//  3. Issue the remote mutation. On failure NO local state changes - the
//     engine never runs ahead of a confirmed remote write.
//  4. On success, apply the optimistic local transition, bump the
//     revision, and record the issue time for the conflict rule.
//
// All operations block on the remote round trip (bounded by the remote
// timeout) and honor ctx cancellation.

// StartSleep begins a sleep session for the child.
func (e *Engine) StartSleep(ctx context.Context, childUID string) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdStartSleep, ChildUID: childUID})
}

// PauseSleep pauses the child's in-progress sleep session.
func (e *Engine) PauseSleep(ctx context.Context, childUID string) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdPauseSleep, ChildUID: childUID})
}

// ResumeSleep resumes the child's paused sleep session.
func (e *Engine) ResumeSleep(ctx context.Context, childUID string) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdResumeSleep, ChildUID: childUID})
}

// CancelSleep discards the child's current sleep session. The event is
// retained in history with status cancelled.
func (e *Engine) CancelSleep(ctx context.Context, childUID string) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdCancelSleep, ChildUID: childUID})
}

// CompleteSleep ends the child's current sleep session. A zero `at` means
// now.
func (e *Engine) CompleteSleep(ctx context.Context, childUID string, at time.Time) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdCompleteSleep, ChildUID: childUID, At: at})
}

// StartFeeding begins a feeding session on the given side.
func (e *Engine) StartFeeding(ctx context.Context, childUID string, side event.Side) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdStartFeeding, ChildUID: childUID, Side: side})
}

// PauseFeeding pauses the child's in-progress feeding session.
func (e *Engine) PauseFeeding(ctx context.Context, childUID string) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdPauseFeeding, ChildUID: childUID})
}

// ResumeFeeding resumes the child's paused feeding session.
func (e *Engine) ResumeFeeding(ctx context.Context, childUID string) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdResumeFeeding, ChildUID: childUID})
}

// CancelFeeding discards the child's current feeding session.
func (e *Engine) CancelFeeding(ctx context.Context, childUID string) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdCancelFeeding, ChildUID: childUID})
}

// CompleteFeeding ends the child's current feeding session.
func (e *Engine) CompleteFeeding(ctx context.Context, childUID string, at time.Time) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdCompleteFeeding, ChildUID: childUID, At: at})
}

// SwitchSide toggles the nursing side of the in-progress feeding session
// without changing its status.
func (e *Engine) SwitchSide(ctx context.Context, childUID string) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdSwitchSide, ChildUID: childUID})
}

// LogDiaper records a diaper change. One-shot: no state-machine guard,
// succeeds or fails independently of any activity status.
func (e *Engine) LogDiaper(ctx context.Context, childUID string, d event.DiaperDetails) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdLogDiaper, ChildUID: childUID, Diaper: &d})
}

// LogGrowth records a growth measurement. One-shot.
func (e *Engine) LogGrowth(ctx context.Context, childUID string, g event.GrowthDetails) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdLogGrowth, ChildUID: childUID, Growth: &g})
}

// LogBottle records a bottle feed. One-shot: appends a completed
// feeding-kind event without touching the feeding activity state.
func (e *Engine) LogBottle(ctx context.Context, childUID string, b gateway.BottleDetails) (event.Event, error) {
	return e.do(ctx, gateway.Command{Type: gateway.CmdLogBottle, ChildUID: childUID, Bottle: &b})
}

// do linearizes a command through the Run loop and waits for its outcome.
func (e *Engine) do(ctx context.Context, cmd gateway.Command) (event.Event, error) {
	if err := cmd.Validate(); err != nil {
		return event.Event{}, err
	}
	cmd.Token = e.tokens.Generate()

	req := &commandRequest{ctx: ctx, cmd: cmd, reply: make(chan commandReply, 1)}
	if !e.queue.Enqueue(task{command: req}) {
		return event.Event{}, fmt.Errorf("engine stopped")
	}

	select {
	case <-ctx.Done():
		// The loop drops the command unprocessed if it observes the
		// cancellation before picking it up; a cancellation landing mid
		// remote call may still apply, and a retry is safe either way.
		return event.Event{}, &Error{
			Code:     CodeRemoteUnavailable,
			Message:  "cancelled waiting for engine",
			ChildUID: cmd.ChildUID,
			Err:      ctx.Err(),
		}
	case rep := <-req.reply:
		return rep.ev, rep.err
	}
}

// transitionFor maps session command types to machine transitions.
func transitionFor(t gateway.CommandType) string {
	switch t {
	case gateway.CmdStartSleep, gateway.CmdStartFeeding:
		return TransitionStart
	case gateway.CmdPauseSleep, gateway.CmdPauseFeeding:
		return TransitionPause
	case gateway.CmdResumeSleep, gateway.CmdResumeFeeding:
		return TransitionResume
	case gateway.CmdCancelSleep, gateway.CmdCancelFeeding:
		return TransitionCancel
	case gateway.CmdCompleteSleep, gateway.CmdCompleteFeeding:
		return TransitionComplete
	}
	return ""
}

// processCommand executes one dispatcher command.
// CRITICAL: Called only from the Run() goroutine.
func (e *Engine) processCommand(ctx context.Context, cmd gateway.Command) (event.Event, error) {
	child, err := e.store.Child(ctx, cmd.ChildUID)
	if err != nil {
		return event.Event{}, fmt.Errorf("command %s: %w", cmd.Type, err)
	}
	if child == nil {
		return event.Event{}, NewUnknownChildError(cmd.ChildUID)
	}

	var m *machine
	transition := transitionFor(cmd.Type)
	if cmd.Type.SessionCommand() {
		m = e.getMachine(ctx, key{cmd.ChildUID, cmd.Type.Kind()})

		if cmd.Type == gateway.CmdSwitchSide {
			if m.current() != StateActive {
				return event.Event{}, NewInvalidTransitionError(
					cmd.ChildUID, cmd.Type.Kind(), m.status(), "switch side")
			}
		} else if !m.can(transition) {
			return event.Event{}, NewInvalidTransitionError(
				cmd.ChildUID, cmd.Type.Kind(), m.status(), transition)
		}
	}

	// Remote first. On any failure local state stays untouched.
	rctx, cancel := e.remoteCtx(ctx)
	echo, err := e.gw.Mutate(rctx, cmd)
	cancel()
	if err != nil {
		return event.Event{}, classifyRemoteError(cmd.ChildUID, err)
	}

	if _, err := e.store.UpsertEvent(ctx, echo); err != nil {
		// The remote accepted the mutation; its push echo will restore the
		// row. Apply the optimistic transition regardless.
		e.logger.Error("storing mutation result failed",
			"command", cmd.Type, "event_id", echo.ID, "error", err)
	}

	now := e.now()
	k := key{cmd.ChildUID, cmd.Type.Kind()}

	switch {
	case cmd.Type == gateway.CmdSwitchSide:
		m.revision = e.clock.Next()
		m.markPending(echo.ID, now)
		e.commitState(k, m)

	case cmd.Type.SessionCommand():
		if err := m.fire(ctx, transition, echo.ID, e.clock); err != nil {
			// Guard re-check cannot fail: the loop is the only writer.
			return event.Event{}, err
		}
		m.markPending(echo.ID, now)
		e.commitState(k, m)
		e.emit(StateChange{
			Type:     ChangeActivity,
			ChildUID: cmd.ChildUID,
			Kind:     cmd.Type.Kind(),
			Status:   m.status(),
			EventID:  m.activeEventID,
		})
		// A completed session also moves the last-logged view. Cancelled
		// sessions do not: they are excluded from it.
		if echo.Status == event.StatusCompleted {
			e.emit(StateChange{
				Type:     ChangeLogged,
				ChildUID: cmd.ChildUID,
				Kind:     cmd.Type.Kind(),
				EventID:  echo.ID,
			})
		}

	default:
		e.emit(StateChange{
			Type:     ChangeLogged,
			ChildUID: cmd.ChildUID,
			Kind:     cmd.Type.Kind(),
			EventID:  echo.ID,
		})
	}

	e.logger.Info("command applied",
		"command", cmd.Type, "child", cmd.ChildUID,
		"event_id", echo.ID, "token", cmd.Token,
	)
	return echo, nil
}
