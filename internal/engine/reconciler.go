package engine

import (
	"context"
	"fmt"

	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
)

// applyNotification merges one remote change into local state.
// CRITICAL: Called only from the Run() goroutine.
//
// Algorithm:
//  1. Upsert (or delete) the event in the store. Last-write-wins: a copy
//     older than the stored row is a stale echo, logged and dropped.
//  2. For session-shaped kinds, recompute the activity state purely from
//     the store - unless a pending optimistic action is still
//     authoritative per the conflict rule.
//  3. Emit subscriber changes for anything observable that moved.
func (e *Engine) applyNotification(ctx context.Context, n gateway.Notification) error {
	ev := n.Event

	switch n.Op {
	case gateway.OpDeleted:
		// The notification may carry only the id; recover child/kind from
		// the stored row so the activity recompute targets the right cell.
		stored, err := e.store.Event(ctx, ev.ID)
		if err != nil {
			return err
		}
		if stored == nil {
			e.logger.Debug("delete for unknown event dropped", "event_id", ev.ID)
			return nil
		}
		ev = *stored
		if err := e.store.DeleteEvent(ctx, ev.ID); err != nil {
			return err
		}

	case gateway.OpCreated, gateway.OpUpdated:
		applied, err := e.store.UpsertEvent(ctx, ev)
		if err != nil {
			return err
		}
		if !applied {
			// The echo of our own pending action carries an equal modified
			// timestamp, so the write rule drops it. It still confirms the
			// action: clear the pending window instead of riding it out.
			if ev.Kind.SessionShaped() {
				if m, ok := e.machines[key{ev.ChildUID, ev.Kind}]; ok && m.pendingEventID == ev.ID {
					m.clearPending()
				}
			}
			// Superseded remote echo: not an error, no observable change.
			e.logger.Debug("stale notification dropped",
				"code", CodeStaleNotification,
				"event_id", ev.ID,
				"modified", ev.Modified,
			)
			return nil
		}

	default:
		return fmt.Errorf("unknown notification op %q", n.Op)
	}

	if ev.Kind.SessionShaped() {
		e.reconcileActivity(ctx, key{ev.ChildUID, ev.Kind}, ev.ID, n)
	}

	if ev.Status == event.StatusCompleted && n.Op != gateway.OpDeleted {
		e.emit(StateChange{
			Type:     ChangeLogged,
			ChildUID: ev.ChildUID,
			Kind:     ev.Kind,
			EventID:  ev.ID,
		})
	}

	return nil
}

// reconcileActivity recomputes one activity cell from the store after a
// remote change touched it.
//
// Conflict rule: while an optimistic dispatcher action is pending for the
// cell, notifications generated before the action was issued do not
// overwrite local state - the pending action is authoritative until its
// confirming echo arrives or the conflict window expires.
func (e *Engine) reconcileActivity(ctx context.Context, k key, notifEventID string, n gateway.Notification) {
	m := e.getMachine(ctx, k)
	now := e.now()

	if m.pendingEventID != "" {
		switch {
		case m.pendingEventID == notifEventID:
			// The echo we were waiting for.
			m.clearPending()
		case m.pendingBlocks(n.Event.Modified, now, e.conflictWindow):
			e.logger.Debug("pending local action authoritative, skipping recompute",
				"child", k.childUID, "kind", k.kind, "event_id", notifEventID)
			return
		default:
			// Window expired or the remote moved past us; remote wins.
			m.clearPending()
		}
	}

	active, err := e.store.ActiveSession(ctx, k.childUID, k.kind)
	if err != nil {
		e.logger.Error("activity recompute failed",
			"child", k.childUID, "kind", k.kind, "error", err)
		return
	}

	if m.setFromStore(active, e.clock) {
		e.commitState(k, m)
		e.emit(StateChange{
			Type:     ChangeActivity,
			ChildUID: k.childUID,
			Kind:     k.kind,
			Status:   m.status(),
			EventID:  m.activeEventID,
		})
		e.logger.Info("activity reconciled",
			"child", k.childUID, "kind", k.kind,
			"status", m.status(), "event_id", m.activeEventID,
			"revision", m.revision,
		)
	}
}

// resyncLocked performs a full resync: refresh children, invalidate all
// calendar cache ranges, refetch the resync window per child, merge with
// retained rows under last-write-wins, and re-derive every activity state.
// CRITICAL: Called only from the Run() goroutine.
func (e *Engine) resyncLocked(ctx context.Context) error {
	e.logger.Info("resync starting", "window", e.resyncWindow)

	rctx, cancel := e.remoteCtx(ctx)
	children, err := e.gw.Children(rctx)
	cancel()
	if err != nil {
		return classifyRemoteError("", err)
	}

	for _, c := range children {
		if err := e.store.UpsertChild(ctx, c); err != nil {
			return fmt.Errorf("resync: %w", err)
		}
	}

	// Everything cached before the drop is suspect.
	if err := e.store.InvalidateRanges(ctx, ""); err != nil {
		return fmt.Errorf("resync: %w", err)
	}

	to := e.now()
	from := to.Add(-e.resyncWindow)

	for _, c := range children {
		rctx, cancel := e.remoteCtx(ctx)
		evs, err := e.gw.FetchRange(rctx, c.UID, from, to)
		cancel()
		if err != nil {
			return classifyRemoteError(c.UID, err)
		}

		for _, ev := range evs {
			if _, err := e.store.UpsertEvent(ctx, ev); err != nil {
				e.logger.Error("resync: event rejected, skipping",
					"event_id", ev.ID, "error", err)
			}
		}

		if err := e.store.AddRange(ctx, c.UID, from, to); err != nil {
			return fmt.Errorf("resync: %w", err)
		}
	}

	// Re-derive all activity states; resync supersedes pending actions.
	for _, c := range children {
		for _, kind := range event.SessionKinds {
			k := key{c.UID, kind}
			m := e.getMachine(ctx, k)
			m.clearPending()

			active, err := e.store.ActiveSession(ctx, k.childUID, k.kind)
			if err != nil {
				return fmt.Errorf("resync: %w", err)
			}
			if m.setFromStore(active, e.clock) {
				e.commitState(k, m)
				e.emit(StateChange{
					Type:     ChangeActivity,
					ChildUID: k.childUID,
					Kind:     k.kind,
					Status:   m.status(),
					EventID:  m.activeEventID,
				})
			}
		}
	}

	e.logger.Info("resync complete", "children", len(children))
	return nil
}
