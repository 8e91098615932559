package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/naptrack/internal/event"
)

// details is the JSON envelope for kind-specific payloads in the
// events.details column. At most one field is set, matching the kind.
type details struct {
	Feeding *event.FeedingDetails `json:"feeding,omitempty"`
	Diaper  *event.DiaperDetails  `json:"diaper,omitempty"`
	Growth  *event.GrowthDetails  `json:"growth,omitempty"`
}

// marshalDetails converts the event's payload to JSON TEXT for storage.
func marshalDetails(ev event.Event) (string, error) {
	d := details{Feeding: ev.Feeding, Diaper: ev.Diaper, Growth: ev.Growth}
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal details: %w", err)
	}
	return string(data), nil
}

// unmarshalDetails populates the event's payload pointers from JSON TEXT.
func unmarshalDetails(ev *event.Event, text string) error {
	var d details
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return fmt.Errorf("unmarshal details for %s: %w", ev.ID, err)
	}
	ev.Feeding = d.Feeding
	ev.Diaper = d.Diaper
	ev.Growth = d.Growth
	return nil
}

// timeNS converts a time to the int64 unix-nanosecond column encoding.
func timeNS(t time.Time) int64 {
	return t.UnixNano()
}

// nsTime converts a stored unix-nanosecond value back to UTC time.
func nsTime(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// nullableNS encodes an optional time for a nullable _ns column.
func nullableNS(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// nsNullable decodes a nullable _ns column to an optional time.
func nsNullable(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := nsTime(v.Int64)
	return &t
}
