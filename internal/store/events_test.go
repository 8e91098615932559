package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/naptrack/internal/event"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.UpsertChild(context.Background(), event.Child{UID: "mia", Name: "Mia"}))
	return s
}

func sleepEvent(id string, start time.Time, status event.Status) event.Event {
	ev := event.Event{
		ID:       id,
		ChildUID: "mia",
		Kind:     event.KindSleep,
		Status:   status,
		Start:    start,
		Modified: start,
	}
	if !status.Active() {
		end := start.Add(time.Hour)
		ev.End = &end
	}
	return ev
}

func TestUpsertEvent_LastWriteWins(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ev := sleepEvent("ev-1", base, event.StatusInProgress)
	applied, err := s.UpsertEvent(ctx, ev)
	require.NoError(t, err)
	assert.True(t, applied)

	// Newer copy wins.
	newer := ev
	newer.Status = event.StatusPaused
	newer.Modified = base.Add(time.Minute)
	applied, err = s.UpsertEvent(ctx, newer)
	require.NoError(t, err)
	assert.True(t, applied)

	// Stale copy is dropped without touching the row.
	stale := ev
	stale.Status = event.StatusCancelled
	stale.Modified = base.Add(-time.Minute)
	applied, err = s.UpsertEvent(ctx, stale)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := s.Event(ctx, "ev-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, event.StatusPaused, got.Status)
	assert.True(t, got.Modified.Equal(base.Add(time.Minute)))
}

func TestUpsertEvent_EqualModifiedIsStale(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ev := sleepEvent("ev-1", base, event.StatusInProgress)
	_, err := s.UpsertEvent(ctx, ev)
	require.NoError(t, err)

	// Same modified timestamp does not replace the stored row.
	same := ev
	same.Status = event.StatusPaused
	applied, err := s.UpsertEvent(ctx, same)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestUpsertEvent_RejectsInvalid(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.UpsertEvent(context.Background(), event.Event{ID: "ev-1"})
	assert.Error(t, err)
}

func TestEvent_UnknownID(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.Event(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteEvent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertEvent(ctx, sleepEvent("ev-1", base, event.StatusCompleted))
	require.NoError(t, err)

	require.NoError(t, s.DeleteEvent(ctx, "ev-1"))
	got, err := s.Event(ctx, "ev-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Unknown id is a no-op.
	require.NoError(t, s.DeleteEvent(ctx, "ev-1"))
}

func TestEventsInRange_OverlapAndOrder(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Completed before the window, completed inside, running session that
	// started inside, and one starting after the window.
	before := sleepEvent("ev-before", base.Add(-3*time.Hour), event.StatusCompleted)
	inside := sleepEvent("ev-inside", base.Add(30*time.Minute), event.StatusCompleted)
	running := sleepEvent("ev-running", base.Add(10*time.Minute), event.StatusInProgress)
	after := sleepEvent("ev-after", base.Add(5*time.Hour), event.StatusCompleted)

	for _, ev := range []event.Event{before, inside, running, after} {
		_, err := s.UpsertEvent(ctx, ev)
		require.NoError(t, err)
	}

	got, err := s.EventsInRange(ctx, "mia", base, base.Add(2*time.Hour))
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, ev := range got {
		ids[i] = ev.ID
	}
	assert.Equal(t, []string{"ev-running", "ev-inside"}, ids)
}

func TestEventsInRange_RunningSessionOverlapsLaterWindow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// A session with no end overlaps every window after its start.
	_, err := s.UpsertEvent(ctx, sleepEvent("ev-1", base, event.StatusInProgress))
	require.NoError(t, err)

	got, err := s.EventsInRange(ctx, "mia", base.Add(5*time.Hour), base.Add(6*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ev-1", got[0].ID)
}

func TestEventsInRange_TieBreaksByID(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"ev-b", "ev-a", "ev-c"} {
		_, err := s.UpsertEvent(ctx, sleepEvent(id, base, event.StatusCompleted))
		require.NoError(t, err)
	}

	got, err := s.EventsInRange(ctx, "mia", base.Add(-time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "ev-a", got[0].ID)
	assert.Equal(t, "ev-b", got[1].ID)
	assert.Equal(t, "ev-c", got[2].ID)
}

func TestActiveSession(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	got, err := s.ActiveSession(ctx, "mia", event.KindSleep)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.UpsertEvent(ctx, sleepEvent("ev-done", base.Add(-2*time.Hour), event.StatusCompleted))
	require.NoError(t, err)
	_, err = s.UpsertEvent(ctx, sleepEvent("ev-live", base, event.StatusPaused))
	require.NoError(t, err)

	got, err = s.ActiveSession(ctx, "mia", event.KindSleep)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ev-live", got.ID)
	assert.Equal(t, event.StatusPaused, got.Status)

	n, err := s.ActiveSessionCount(ctx, "mia", event.KindSleep)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLastCompleted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	got, err := s.LastCompleted(ctx, "mia", event.KindSleep)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = s.UpsertEvent(ctx, sleepEvent("ev-old", base.Add(-4*time.Hour), event.StatusCompleted))
	require.NoError(t, err)
	_, err = s.UpsertEvent(ctx, sleepEvent("ev-new", base, event.StatusCompleted))
	require.NoError(t, err)
	// Cancelled sessions never show up as "last".
	_, err = s.UpsertEvent(ctx, sleepEvent("ev-cxl", base.Add(time.Hour), event.StatusCancelled))
	require.NoError(t, err)

	got, err = s.LastCompleted(ctx, "mia", event.KindSleep)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ev-new", got.ID)
}

func TestUpsertEvent_RoundTripsPayload(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ev := event.Event{
		ID:       "ev-feed",
		ChildUID: "mia",
		Kind:     event.KindFeeding,
		Status:   event.StatusInProgress,
		Start:    base,
		Modified: base,
		Feeding: &event.FeedingDetails{
			Side:         event.SideLeft,
			LeftDuration: 10 * time.Minute,
		},
	}
	_, err := s.UpsertEvent(ctx, ev)
	require.NoError(t, err)

	got, err := s.Event(ctx, "ev-feed")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Feeding)
	assert.Equal(t, event.SideLeft, got.Feeding.Side)
	assert.Equal(t, 10*time.Minute, got.Feeding.LeftDuration)
	assert.Nil(t, got.Diaper)
	assert.Nil(t, got.Growth)
}

func TestUpsertChild_RefreshesProfile(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChild(ctx, event.Child{UID: "mia", Name: "Mia R."}))

	c, err := s.Child(ctx, "mia")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Mia R.", c.Name)

	unknown, err := s.Child(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, unknown)
}
