// Package harness provides a deterministic end-to-end test rig for the
// sync engine.
//
// A Harness wires a real Engine to a temp-file store and a scripted fake
// gateway, runs the single-writer loop in the background, and records an
// ordered trace of observable changes for golden comparison.
//
// # Deterministic Testing
//
// All scenarios execute with:
//   - Sequential fake-gateway event ids (ev-1, ev-2, ...)
//   - A frozen fake wall clock advanced explicitly
//   - An isolated SQLite database per test
//
// This ensures identical traces across runs for golden file comparison.
package harness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/naptrack/internal/engine"
	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
	"github.com/roach88/naptrack/internal/store"
	"github.com/roach88/naptrack/internal/testutil"
)

// Epoch is the fixed instant scenarios start at.
var Epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// Harness drives one engine instance against a scripted remote.
type Harness struct {
	T       *testing.T
	Store   *store.Store
	Gateway *testutil.FakeGateway
	Engine  *engine.Engine
	Now     *testutil.FakeNow

	changes <-chan engine.StateChange
	cancel  context.CancelFunc
	done    chan error
}

// New creates a harness with the given children known both locally and
// remotely, and starts the engine loop. Cleanup is registered on t.
func New(t *testing.T, children ...event.Child) *Harness {
	t.Helper()

	st, err := store.Open(t.TempDir() + "/naptrack.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	now := testutil.NewFakeNow(Epoch)
	gw := testutil.NewFakeGateway(children...)
	gw.SetNow(now.Now)

	eng := engine.New(st, gw,
		engine.WithNow(now.Now),
		engine.WithRemoteTimeout(time.Second),
	)

	ctx := context.Background()
	for _, c := range children {
		require.NoError(t, st.UpsertChild(ctx, c))
	}

	h := &Harness{
		T:       t,
		Store:   st,
		Gateway: gw,
		Engine:  eng,
		Now:     now,
		changes: eng.Subscribe(),
		done:    make(chan error, 1),
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	go func() { h.done <- eng.Run(runCtx) }()
	t.Cleanup(h.stopEngine)

	return h
}

func (h *Harness) stopEngine() {
	h.cancel()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		h.T.Error("engine did not stop")
	}
}

// Notify enqueues a remote notification.
func (h *Harness) Notify(op gateway.Op, ev event.Event) {
	require.True(h.T, h.Engine.EnqueueNotification(gateway.Notification{Op: op, Event: ev}))
}

// Flush blocks until every previously enqueued task has been processed.
//
// It works by sending a command for a child that cannot exist through the
// same FIFO queue: by the time its unknown-child reply arrives, all
// earlier tasks have been applied.
func (h *Harness) Flush() {
	h.T.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := h.Engine.StartSleep(ctx, "\x00flush-barrier")
	require.True(h.T, engine.IsUnknownChild(err), "flush barrier: %v", err)
}

// DrainChanges returns the state changes emitted so far, in order.
// Call Flush first so in-flight tasks have settled.
func (h *Harness) DrainChanges() []engine.StateChange {
	out := []engine.StateChange{}
	for {
		select {
		case c := <-h.changes:
			out = append(out, c)
		default:
			return out
		}
	}
}
