package store

import (
	"context"
	"fmt"
	"time"
)

// Window is a half-open time window [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Empty reports whether the window contains no time.
func (w Window) Empty() bool {
	return !w.To.After(w.From)
}

// Gaps returns the sub-windows of [from, to) not covered by any recorded
// cache range for the child, in ascending order. An empty result means the
// whole window has already been fetched from the remote.
func (s *Store) Gaps(ctx context.Context, childUID string, from, to time.Time) ([]Window, error) {
	if !to.After(from) {
		return []Window{}, nil
	}

	// Ranges overlapping the query window, ascending. Recorded ranges for
	// a child never overlap each other (AddRange merges), so a single
	// forward sweep finds the uncovered gaps.
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_ns, end_ns FROM cache_ranges
		WHERE child_uid = ? AND start_ns < ? AND end_ns > ?
		ORDER BY start_ns ASC
	`, childUID, timeNS(to), timeNS(from))
	if err != nil {
		return nil, fmt.Errorf("query cache ranges: %w", err)
	}
	defer rows.Close()

	gaps := []Window{}
	cursor := from
	for rows.Next() {
		var startNS, endNS int64
		if err := rows.Scan(&startNS, &endNS); err != nil {
			return nil, fmt.Errorf("scan cache range: %w", err)
		}
		start, end := nsTime(startNS), nsTime(endNS)
		if start.After(cursor) {
			gaps = append(gaps, Window{From: cursor, To: start})
		}
		if end.After(cursor) {
			cursor = end
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache ranges: %w", err)
	}

	if cursor.Before(to) {
		gaps = append(gaps, Window{From: cursor, To: to})
	}
	return gaps, nil
}

// AddRange records [from, to) as fully fetched for the child, merging with
// any overlapping or adjacent recorded ranges so rows never overlap.
// The merge happens in one transaction so concurrent readers never observe
// a partially collapsed set of rows.
func (s *Store) AddRange(ctx context.Context, childUID string, from, to time.Time) error {
	if !to.After(from) {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("add range: begin: %w", err)
	}
	defer tx.Rollback()

	// Absorb every range touching or abutting [from, to).
	rows, err := tx.QueryContext(ctx, `
		SELECT id, start_ns, end_ns FROM cache_ranges
		WHERE child_uid = ? AND start_ns <= ? AND end_ns >= ?
	`, childUID, timeNS(to), timeNS(from))
	if err != nil {
		return fmt.Errorf("add range: query: %w", err)
	}

	mergedFrom, mergedTo := timeNS(from), timeNS(to)
	ids := []int64{}
	for rows.Next() {
		var id, startNS, endNS int64
		if err := rows.Scan(&id, &startNS, &endNS); err != nil {
			rows.Close()
			return fmt.Errorf("add range: scan: %w", err)
		}
		if startNS < mergedFrom {
			mergedFrom = startNS
		}
		if endNS > mergedTo {
			mergedTo = endNS
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("add range: iterate: %w", err)
	}
	rows.Close()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cache_ranges WHERE id = ?`, id); err != nil {
			return fmt.Errorf("add range: delete %d: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO cache_ranges (child_uid, start_ns, end_ns) VALUES (?, ?, ?)
	`, childUID, mergedFrom, mergedTo); err != nil {
		return fmt.Errorf("add range: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("add range: commit: %w", err)
	}
	return nil
}

// InvalidateRanges drops recorded cache ranges. With childUID == "" every
// child's ranges are dropped - the wholesale invalidation performed on
// reconnect before a full resync.
func (s *Store) InvalidateRanges(ctx context.Context, childUID string) error {
	var err error
	if childUID == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM cache_ranges`)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM cache_ranges WHERE child_uid = ?`, childUID)
	}
	if err != nil {
		return fmt.Errorf("invalidate cache ranges: %w", err)
	}
	return nil
}

// RangeCount returns the number of recorded cache ranges for the child.
// Used by tests and the status command.
func (s *Store) RangeCount(ctx context.Context, childUID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM cache_ranges WHERE child_uid = ?
	`, childUID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cache ranges: %w", err)
	}
	return n, nil
}
