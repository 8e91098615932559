package gateway_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
	"github.com/roach88/naptrack/internal/testutil"
)

// stubSink records what the runner feeds it.
type stubSink struct {
	mu            sync.Mutex
	notifications []gateway.Notification
	resyncs       int
	resyncErr     error
	stopped       bool
}

func (s *stubSink) EnqueueNotification(n gateway.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.notifications = append(s.notifications, n)
	return true
}

func (s *stubSink) Resync(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resyncs++
	return s.resyncErr
}

func (s *stubSink) resyncCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resyncs
}

func (s *stubSink) notificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func (s *stubSink) setResyncErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resyncErr = err
}

func (s *stubSink) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func startRunner(t *testing.T, gw gateway.Gateway, sink gateway.Sink) (cancel context.CancelFunc, done chan error) {
	t.Helper()

	r := gateway.NewRunner(gw, sink, nil)
	r.SetBackOffFactory(fastBackOff)

	ctx, cancel := context.WithCancel(context.Background())
	done = make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("runner did not stop")
		}
	})
	return cancel, done
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond, msg)
}

func sleepNotification(id string) gateway.Notification {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return gateway.Notification{
		Op: gateway.OpCreated,
		Event: event.Event{
			ID: id, ChildUID: "mia", Kind: event.KindSleep,
			Status: event.StatusInProgress, Start: start, Modified: start,
		},
	}
}

func TestRunner_ResyncsOnEveryConnect(t *testing.T) {
	gw := testutil.NewFakeGateway(event.Child{UID: "mia", Name: "Mia"})
	sink := &stubSink{}
	startRunner(t, gw, sink)

	waitFor(t, func() bool { return sink.resyncCount() == 1 }, "initial connect resync")

	gw.Push(sleepNotification("ev-1"))
	waitFor(t, func() bool { return sink.notificationCount() == 1 }, "notification pumped")

	// Transport drop: the runner reconnects and resyncs again.
	gw.DropSubscription()
	waitFor(t, func() bool { return sink.resyncCount() == 2 }, "resync after reconnect")

	gw.Push(sleepNotification("ev-2"))
	waitFor(t, func() bool { return sink.notificationCount() == 2 }, "pumping resumed")
}

func TestRunner_RetriesSubscribeFailures(t *testing.T) {
	gw := testutil.NewFakeGateway()
	gw.SubscribeErr = errors.New("dial refused")
	sink := &stubSink{}
	startRunner(t, gw, sink)

	// Stuck retrying; no resync yet.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, sink.resyncCount())

	gw.SubscribeErr = nil
	waitFor(t, func() bool { return sink.resyncCount() == 1 }, "connected after transport recovered")
}

func TestRunner_ReconnectsWhenResyncFails(t *testing.T) {
	gw := testutil.NewFakeGateway()
	sink := &stubSink{resyncErr: errors.New("fetch failed")}
	startRunner(t, gw, sink)

	waitFor(t, func() bool { return sink.resyncCount() >= 2 }, "resync retried")

	sink.setResyncErr(nil)
	before := sink.resyncCount()
	waitFor(t, func() bool { return sink.resyncCount() > before }, "resync eventually succeeds")
}

func TestRunner_StopsWhenSinkStops(t *testing.T) {
	gw := testutil.NewFakeGateway(event.Child{UID: "mia", Name: "Mia"})
	sink := &stubSink{}
	_, done := startRunner(t, gw, sink)

	waitFor(t, func() bool { return sink.resyncCount() == 1 }, "connected")

	sink.stop()
	gw.Push(sleepNotification("ev-1"))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after sink stopped")
	}
}

func TestRunner_CancelStopsRun(t *testing.T) {
	gw := testutil.NewFakeGateway()
	sink := &stubSink{}
	cancel, done := startRunner(t, gw, sink)

	waitFor(t, func() bool { return sink.resyncCount() == 1 }, "connected")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop on cancel")
	}
}
