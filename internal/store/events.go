package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roach88/naptrack/internal/event"
)

// UpsertEvent inserts or updates an event with last-write-wins semantics:
// an incoming copy whose modified timestamp is not newer than the stored
// row is a no-op. Returns applied=false for such stale writes so callers
// can distinguish them from real changes.
func (s *Store) UpsertEvent(ctx context.Context, ev event.Event) (applied bool, err error) {
	if err := ev.Validate(); err != nil {
		return false, fmt.Errorf("upsert event: %w", err)
	}

	detailsJSON, err := marshalDetails(ev)
	if err != nil {
		return false, fmt.Errorf("upsert event %s: %w", ev.ID, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, child_uid, kind, status, start_ns, end_ns, modified_ns, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			child_uid = excluded.child_uid,
			kind = excluded.kind,
			status = excluded.status,
			start_ns = excluded.start_ns,
			end_ns = excluded.end_ns,
			modified_ns = excluded.modified_ns,
			details = excluded.details
		WHERE excluded.modified_ns > events.modified_ns
	`,
		ev.ID,
		ev.ChildUID,
		string(ev.Kind),
		string(ev.Status),
		timeNS(ev.Start),
		nullableNS(ev.End),
		timeNS(ev.Modified),
		detailsJSON,
	)
	if err != nil {
		return false, fmt.Errorf("upsert event %s: %w", ev.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert event %s: rows affected: %w", ev.ID, err)
	}
	return n > 0, nil
}

// DeleteEvent removes an event by id. Deleting an unknown id is a no-op.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

// Event returns the event with the given id, or (nil, nil) if unknown.
func (s *Store) Event(ctx context.Context, id string) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, child_uid, kind, status, start_ns, end_ns, modified_ns, details
		FROM events WHERE id = ?
	`, id)

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read event %s: %w", id, err)
	}
	return &ev, nil
}

// EventsInRange returns the child's events overlapping [from, to),
// ordered deterministically by start then id. Sessions still in progress
// overlap any window their start precedes.
func (s *Store) EventsInRange(ctx context.Context, childUID string, from, to time.Time) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, child_uid, kind, status, start_ns, end_ns, modified_ns, details
		FROM events
		WHERE child_uid = ?
		  AND start_ns < ?
		  AND COALESCE(end_ns, ?) >= ?
		ORDER BY start_ns ASC, id ASC
	`, childUID, timeNS(to), int64(math.MaxInt64), timeNS(from))
	if err != nil {
		return nil, fmt.Errorf("query events in range: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

// ActiveSession returns the at-most-one session of the given kind that is
// currently in progress or paused for the child, or (nil, nil) if none.
//
// If the remote ever violates the single-active-session invariant, the
// most recently started session wins so local state stays deterministic.
func (s *Store) ActiveSession(ctx context.Context, childUID string, kind event.Kind) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, child_uid, kind, status, start_ns, end_ns, modified_ns, details
		FROM events
		WHERE child_uid = ? AND kind = ? AND status IN ('in_progress', 'paused')
		ORDER BY start_ns DESC, id ASC
		LIMIT 1
	`, childUID, string(kind))

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read active session: %w", err)
	}
	return &ev, nil
}

// ActiveSessionCount returns how many sessions of the kind are currently
// in progress or paused for the child. Used by invariant checks.
func (s *Store) ActiveSessionCount(ctx context.Context, childUID string, kind event.Kind) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM events
		WHERE child_uid = ? AND kind = ? AND status IN ('in_progress', 'paused')
	`, childUID, string(kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return n, nil
}

// LastCompleted returns the child's most recent completed event of the
// given kind, or (nil, nil) if none. Backs the "last logged" views.
func (s *Store) LastCompleted(ctx context.Context, childUID string, kind event.Kind) (*event.Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, child_uid, kind, status, start_ns, end_ns, modified_ns, details
		FROM events
		WHERE child_uid = ? AND kind = ? AND status = 'completed'
		ORDER BY start_ns DESC, id ASC
		LIMIT 1
	`, childUID, string(kind))

	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read last completed: %w", err)
	}
	return &ev, nil
}

// Stats reports per-kind event counts. Used by the status command.
func (s *Store) Stats(ctx context.Context) (map[event.Kind]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*) FROM events GROUP BY kind
	`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[event.Kind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[event.Kind(kind)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stats: %w", err)
	}

	return stats, nil
}

func collectEvents(rows *sql.Rows) ([]event.Event, error) {
	events := []event.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func scanEvent(row scanner) (event.Event, error) {
	var ev event.Event
	var kind, status, detailsJSON string
	var startNS, modifiedNS int64
	var endNS sql.NullInt64

	if err := row.Scan(&ev.ID, &ev.ChildUID, &kind, &status, &startNS, &endNS, &modifiedNS, &detailsJSON); err != nil {
		return event.Event{}, err
	}

	ev.Kind = event.Kind(kind)
	ev.Status = event.Status(status)
	ev.Start = nsTime(startNS)
	ev.End = nsNullable(endNS)
	ev.Modified = nsTime(modifiedNS)

	if err := unmarshalDetails(&ev, detailsJSON); err != nil {
		return event.Event{}, err
	}
	return ev, nil
}
