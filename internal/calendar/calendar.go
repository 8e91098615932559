// Package calendar answers calendar-style range queries over the event
// history, backfilling uncovered windows from the remote on demand.
//
// Covered windows are recorded as cache ranges in the store, so repeat
// queries over the same window never refetch. A failed backfill fails the
// whole query - partial results would let callers mistake an incomplete
// window for a complete one.
package calendar

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/naptrack/internal/engine"
	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
	"github.com/roach88/naptrack/internal/store"
)

// Cache serves range queries from the store, fetching gaps through the
// gateway first.
type Cache struct {
	store  *store.Store
	gw     gateway.Gateway
	logger *slog.Logger

	// timeout bounds each backfill fetch.
	timeout time.Duration

	// mu serializes gap-computation + backfill + range recording, so two
	// overlapping queries do not interleave partial cache-range updates.
	mu sync.Mutex
}

// New creates a Cache over the given store and gateway.
func New(st *store.Store, gw gateway.Gateway, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		store:   st,
		gw:      gw,
		logger:  logger,
		timeout: engine.DefaultRemoteTimeout,
	}
}

// SetTimeout overrides the per-backfill timeout.
func (c *Cache) SetTimeout(d time.Duration) {
	c.timeout = d
}

// EventsInRange returns the child's events in [from, to), ordered by start
// timestamp with ties broken by event id.
//
// Windows not yet covered by a recorded cache range are backfilled through
// the gateway first: one fetch per contiguous gap, merged into the store
// under the same last-write-wins rule the reconciler uses, then recorded
// as covered. Any backfill failure fails the query; no partial results.
func (c *Cache) EventsInRange(ctx context.Context, childUID string, from, to time.Time) ([]event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gaps, err := c.store.Gaps(ctx, childUID, from, to)
	if err != nil {
		return nil, err
	}

	for _, gap := range gaps {
		if err := c.backfill(ctx, childUID, gap); err != nil {
			return nil, err
		}
	}

	return c.store.EventsInRange(ctx, childUID, from, to)
}

// backfill fetches one uncovered window and records it as covered.
func (c *Cache) backfill(ctx context.Context, childUID string, gap store.Window) error {
	c.logger.Debug("backfilling range",
		"child", childUID, "from", gap.From, "to", gap.To)

	fctx, cancel := context.WithTimeout(ctx, c.timeout)
	evs, err := c.gw.FetchRange(fctx, childUID, gap.From, gap.To)
	cancel()
	if err != nil {
		return &engine.Error{
			Code:     engine.CodeRemoteUnavailable,
			Message:  "backfill fetch failed",
			ChildUID: childUID,
			Err:      err,
		}
	}

	for _, ev := range evs {
		if _, err := c.store.UpsertEvent(ctx, ev); err != nil {
			c.logger.Error("backfill: event rejected, skipping",
				"event_id", ev.ID, "error", err)
		}
	}

	return c.store.AddRange(ctx, childUID, gap.From, gap.To)
}

// NextUpcoming returns the child's earliest event starting after now
// within [now, now+lookahead), or (nil, nil) if none. Backs the
// "next event" presentation view.
func (c *Cache) NextUpcoming(ctx context.Context, childUID string, now time.Time, lookahead time.Duration) (*event.Event, error) {
	evs, err := c.EventsInRange(ctx, childUID, now, now.Add(lookahead))
	if err != nil {
		return nil, err
	}
	for _, ev := range evs {
		if ev.Start.After(now) {
			return &ev, nil
		}
	}
	return nil, nil
}
