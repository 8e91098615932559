package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/naptrack/internal/event"
)

// UpsertChild inserts or refreshes a child profile.
// UID is stable; name and birthdate are overwritten on conflict so that
// profile metadata refreshes propagate.
func (s *Store) UpsertChild(ctx context.Context, c event.Child) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("upsert child: %w", err)
	}

	var birth sql.NullInt64
	if !c.Birthdate.IsZero() {
		birth = sql.NullInt64{Int64: timeNS(c.Birthdate), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO children (uid, name, birthdate_ns)
		VALUES (?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			name = excluded.name,
			birthdate_ns = excluded.birthdate_ns
	`, c.UID, c.Name, birth)
	if err != nil {
		return fmt.Errorf("upsert child %s: %w", c.UID, err)
	}

	return nil
}

// Child returns the child with the given uid, or (nil, nil) if unknown.
func (s *Store) Child(ctx context.Context, uid string) (*event.Child, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT uid, name, birthdate_ns FROM children WHERE uid = ?
	`, uid)

	c, err := scanChild(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read child %s: %w", uid, err)
	}
	return &c, nil
}

// Children returns all children ordered by name, then uid.
func (s *Store) Children(ctx context.Context) ([]event.Child, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uid, name, birthdate_ns FROM children ORDER BY name ASC, uid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query children: %w", err)
	}
	defer rows.Close()

	children := []event.Child{}
	for rows.Next() {
		c, err := scanChild(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child: %w", err)
		}
		children = append(children, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate children: %w", err)
	}

	return children, nil
}

// scanner abstracts *sql.Row and *sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func scanChild(row scanner) (event.Child, error) {
	var c event.Child
	var birth sql.NullInt64
	if err := row.Scan(&c.UID, &c.Name, &birth); err != nil {
		return event.Child{}, err
	}
	if birth.Valid {
		c.Birthdate = nsTime(birth.Int64)
	}
	return c, nil
}
