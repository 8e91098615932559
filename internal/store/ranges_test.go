package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/naptrack/internal/event"
)

func TestGaps_UncoveredWindow(t *testing.T) {
	s := setupTestStore(t)

	gaps, err := s.Gaps(context.Background(), "mia", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.True(t, gaps[0].From.Equal(base))
	assert.True(t, gaps[0].To.Equal(base.Add(time.Hour)))
}

func TestGaps_FullyCovered(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddRange(ctx, "mia", base.Add(-time.Hour), base.Add(2*time.Hour)))

	gaps, err := s.Gaps(ctx, "mia", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestGaps_PartialCoverage(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Covered: [base+15m, base+30m) and [base+45m, base+50m).
	require.NoError(t, s.AddRange(ctx, "mia", base.Add(15*time.Minute), base.Add(30*time.Minute)))
	require.NoError(t, s.AddRange(ctx, "mia", base.Add(45*time.Minute), base.Add(50*time.Minute)))

	gaps, err := s.Gaps(ctx, "mia", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, gaps, 3)

	assert.True(t, gaps[0].From.Equal(base))
	assert.True(t, gaps[0].To.Equal(base.Add(15*time.Minute)))
	assert.True(t, gaps[1].From.Equal(base.Add(30*time.Minute)))
	assert.True(t, gaps[1].To.Equal(base.Add(45*time.Minute)))
	assert.True(t, gaps[2].From.Equal(base.Add(50*time.Minute)))
	assert.True(t, gaps[2].To.Equal(base.Add(time.Hour)))
}

func TestAddRange_MergesOverlapping(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddRange(ctx, "mia", base, base.Add(time.Hour)))
	require.NoError(t, s.AddRange(ctx, "mia", base.Add(30*time.Minute), base.Add(2*time.Hour)))

	n, err := s.RangeCount(ctx, "mia")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gaps, err := s.Gaps(ctx, "mia", base, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, gaps)
}

func TestAddRange_MergesAdjacent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddRange(ctx, "mia", base, base.Add(time.Hour)))
	require.NoError(t, s.AddRange(ctx, "mia", base.Add(time.Hour), base.Add(2*time.Hour)))

	n, err := s.RangeCount(ctx, "mia")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAddRange_KeepsDisjoint(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddRange(ctx, "mia", base, base.Add(time.Hour)))
	require.NoError(t, s.AddRange(ctx, "mia", base.Add(3*time.Hour), base.Add(4*time.Hour)))

	n, err := s.RangeCount(ctx, "mia")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInvalidateRanges(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertChild(ctx, event.Child{UID: "leo", Name: "Leo"}))
	require.NoError(t, s.AddRange(ctx, "mia", base, base.Add(time.Hour)))
	require.NoError(t, s.AddRange(ctx, "leo", base, base.Add(time.Hour)))

	// Per-child invalidation leaves the other child covered.
	require.NoError(t, s.InvalidateRanges(ctx, "mia"))
	n, err := s.RangeCount(ctx, "mia")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	n, err = s.RangeCount(ctx, "leo")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Wholesale invalidation drops everything.
	require.NoError(t, s.AddRange(ctx, "mia", base, base.Add(time.Hour)))
	require.NoError(t, s.InvalidateRanges(ctx, ""))
	n, err = s.RangeCount(ctx, "leo")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestWindow_Empty(t *testing.T) {
	assert.True(t, Window{From: base, To: base}.Empty())
	assert.True(t, Window{From: base.Add(time.Hour), To: base}.Empty())
	assert.False(t, Window{From: base, To: base.Add(time.Nanosecond)}.Empty())
}
