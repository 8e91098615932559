package calendar

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/naptrack/internal/engine"
	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/store"
	"github.com/roach88/naptrack/internal/testutil"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupCache(t *testing.T) (*Cache, *store.Store, *testutil.FakeGateway) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.UpsertChild(context.Background(), event.Child{UID: "mia", Name: "Mia"}))

	gw := testutil.NewFakeGateway(event.Child{UID: "mia", Name: "Mia"})
	return New(st, gw, nil), st, gw
}

func completedSleep(id string, start time.Time, d time.Duration) event.Event {
	end := start.Add(d)
	return event.Event{
		ID: id, ChildUID: "mia", Kind: event.KindSleep,
		Status: event.StatusCompleted, Start: start, End: &end, Modified: end,
	}
}

func TestCache_BackfillsOnceThenServesLocally(t *testing.T) {
	cache, _, gw := setupCache(t)
	ctx := context.Background()

	gw.Seed(
		completedSleep("ev-1", base, time.Hour),
		completedSleep("ev-2", base.Add(2*time.Hour), 30*time.Minute),
	)

	evs, err := cache.EventsInRange(ctx, "mia", base, base.Add(4*time.Hour))
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "ev-1", evs[0].ID)
	assert.Equal(t, "ev-2", evs[1].ID)
	assert.Equal(t, 1, gw.FetchCalls())

	// Same window again: fully covered, no remote traffic.
	evs, err = cache.EventsInRange(ctx, "mia", base, base.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Len(t, evs, 2)
	assert.Equal(t, 1, gw.FetchCalls())

	// A sub-window is covered too.
	_, err = cache.EventsInRange(ctx, "mia", base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, gw.FetchCalls())
}

func TestCache_FetchesOnlyTheGap(t *testing.T) {
	cache, st, gw := setupCache(t)
	ctx := context.Background()

	gw.Seed(completedSleep("ev-1", base, time.Hour))

	_, err := cache.EventsInRange(ctx, "mia", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, gw.FetchCalls())

	// Widening the window fetches one gap and merges coverage.
	_, err = cache.EventsInRange(ctx, "mia", base, base.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, gw.FetchCalls())

	n, err := st.RangeCount(ctx, "mia")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCache_BackfillFailureFailsWholeQuery(t *testing.T) {
	cache, st, gw := setupCache(t)
	ctx := context.Background()

	gw.FetchErr = errors.New("gone")
	_, err := cache.EventsInRange(ctx, "mia", base, base.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, engine.IsRemoteUnavailable(err))

	// No partial coverage was recorded: the next query retries the fetch.
	n, err := st.RangeCount(ctx, "mia")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	gw.FetchErr = nil
	gw.Seed(completedSleep("ev-1", base, time.Hour))
	evs, err := cache.EventsInRange(ctx, "mia", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, evs, 1)
}

func TestCache_NextUpcoming(t *testing.T) {
	cache, _, gw := setupCache(t)
	ctx := context.Background()

	gw.Seed(
		completedSleep("ev-past", base.Add(-2*time.Hour), time.Hour),
		completedSleep("ev-soon", base.Add(time.Hour), 30*time.Minute),
		completedSleep("ev-later", base.Add(3*time.Hour), time.Hour),
	)

	next, err := cache.NextUpcoming(ctx, "mia", base, 24*time.Hour)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "ev-soon", next.ID)

	// Nothing ahead inside the lookahead.
	none, err := cache.NextUpcoming(ctx, "mia", base.Add(10*time.Hour), time.Hour)
	require.NoError(t, err)
	assert.Nil(t, none)
}
