package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
	"github.com/roach88/naptrack/internal/store"
)

// Default tunables. All are overridable via options; the config layer
// feeds user values through.
const (
	// DefaultConflictWindow bounds how long a pending optimistic action
	// stays authoritative over remote notifications while its echo is in
	// flight. After expiry, remote notifications win again.
	DefaultConflictWindow = 5 * time.Second

	// DefaultRemoteTimeout bounds every remote round trip issued by the
	// engine. A timed-out call is reported as remote-unavailable, not
	// silently retried.
	DefaultRemoteTimeout = 10 * time.Second

	// DefaultResyncWindow is how far back a full resync refetches.
	DefaultResyncWindow = 30 * 24 * time.Hour
)

// key addresses one activity state cell.
type key struct {
	childUID string
	kind     event.Kind
}

// ActivityState is the committed, reader-facing snapshot of one
// (child, kind) cell. Readers always observe a fully applied transition.
type ActivityState struct {
	Status   ActivityStatus
	EventID  string
	Revision int64
}

// ChangeType distinguishes subscriber events.
type ChangeType string

const (
	// ChangeActivity signals an activity state cell changed.
	ChangeActivity ChangeType = "activity"

	// ChangeLogged signals a child's last-logged view changed for a kind.
	ChangeLogged ChangeType = "logged"
)

// StateChange is emitted to subscribers whenever an observable per-child
// value changes (activity status or last-logged view).
type StateChange struct {
	Type     ChangeType
	ChildUID string
	Kind     event.Kind
	Status   ActivityStatus // set for ChangeActivity
	EventID  string
}

// Engine is the per-account synchronization and state-machine engine.
//
// One Engine exists per configured account; all cross-component state
// hangs off it rather than package globals, so multiple accounts or
// isolated test instances can coexist.
//
// CRITICAL: All mutations happen in the single-writer Run loop goroutine.
// Remote notifications, dispatcher commands, and resyncs are linearized
// through one FIFO queue, so no two writers ever touch the same activity
// state cell concurrently.
//
// Thread-safety model:
//   - EnqueueNotification(), dispatcher operations, Resync(): any goroutine
//   - Run(): must be called from exactly one goroutine
//   - ActivityState(), LastLogged(), Children(): any goroutine, read-only
type Engine struct {
	store  *store.Store
	gw     gateway.Gateway
	clock  *Clock
	queue  *taskQueue
	tokens TokenGenerator
	logger *slog.Logger
	now    func() time.Time

	conflictWindow time.Duration
	remoteTimeout  time.Duration
	resyncWindow   time.Duration

	// machines is owned by the Run loop; never touched elsewhere.
	machines map[key]*machine

	// mu guards the committed snapshots and subscriber list.
	mu     sync.RWMutex
	states map[key]ActivityState
	subs   []chan StateChange
}

// Option configures an Engine.
type Option func(*Engine)

// WithConflictWindow sets how long pending optimistic actions stay
// authoritative over older remote notifications.
func WithConflictWindow(d time.Duration) Option {
	return func(e *Engine) { e.conflictWindow = d }
}

// WithRemoteTimeout bounds remote round trips.
func WithRemoteTimeout(d time.Duration) Option {
	return func(e *Engine) { e.remoteTimeout = d }
}

// WithResyncWindow sets how far back a full resync refetches.
func WithResyncWindow(d time.Duration) Option {
	return func(e *Engine) { e.resyncWindow = d }
}

// WithTokenGenerator overrides the command token generator (for testing).
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithNow overrides the wall clock (for testing conflict windows).
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over the given store and gateway.
func New(st *store.Store, gw gateway.Gateway, opts ...Option) *Engine {
	e := &Engine{
		store:          st,
		gw:             gw,
		clock:          NewClock(),
		queue:          newTaskQueue(),
		tokens:         UUIDv7Generator{},
		logger:         slog.Default(),
		now:            time.Now,
		conflictWindow: DefaultConflictWindow,
		remoteTimeout:  DefaultRemoteTimeout,
		resyncWindow:   DefaultResyncWindow,
		machines:       make(map[key]*machine),
		states:         make(map[key]ActivityState),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// EnqueueNotification submits a remote change for processing by the Run
// loop. Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) EnqueueNotification(n gateway.Notification) bool {
	return e.queue.Enqueue(task{notification: &n})
}

// Run starts the single-writer loop.
// Blocks until the context is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine. All store writes
// and state-machine transitions happen here.
//
// ERROR HANDLING: A failure while processing one notification is logged
// with its context and processing continues - one malformed remote change
// must not halt the stream behind it.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		t, ok := e.queue.TryDequeue()
		if ok {
			e.processTask(ctx, t)
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal buffer coalesces wakeups, so a signal for a task
			// already drained through the fast path arrives with an empty
			// queue. Only a closed queue ends the loop; a stale wakeup
			// just re-enters the select.
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Closes the task queue, which will cause Run() to return.
func (e *Engine) Stop() {
	e.queue.Close()
}

// processTask routes a task to the appropriate handler.
// CRITICAL: Called only from the Run() goroutine.
func (e *Engine) processTask(ctx context.Context, t task) {
	switch {
	case t.notification != nil:
		if err := e.applyNotification(ctx, *t.notification); err != nil {
			e.logger.Error("notification failed, skipping",
				"op", t.notification.Op,
				"event_id", t.notification.Event.ID,
				"child", t.notification.Event.ChildUID,
				"error", err,
			)
		}

	case t.command != nil:
		// A caller that gave up before the loop reached its command gets
		// no mutation at all; the remote is never contacted on its behalf.
		if t.command.ctx != nil && t.command.ctx.Err() != nil {
			e.logger.Debug("dropping abandoned command",
				"command", t.command.cmd.Type, "child", t.command.cmd.ChildUID)
			t.command.reply <- commandReply{err: t.command.ctx.Err()}
			return
		}
		ev, err := e.processCommand(ctx, t.command.cmd)
		t.command.reply <- commandReply{ev: ev, err: err}

	case t.resync != nil:
		t.resync.reply <- e.resyncLocked(ctx)
	}
}

// Resync re-derives every activity state from a fresh full fetch merged
// with retained local contents, invalidating all calendar cache ranges.
// Thread-safe; blocks until the Run loop has performed the resync.
func (e *Engine) Resync(ctx context.Context) error {
	req := &resyncRequest{reply: make(chan error, 1)}
	if !e.queue.Enqueue(task{resync: req}) {
		return fmt.Errorf("engine stopped")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-req.reply:
		return err
	}
}

// Subscribe registers a state-change consumer. The returned channel is
// buffered; a consumer that falls too far behind loses changes (logged)
// rather than blocking the engine.
func (e *Engine) Subscribe() <-chan StateChange {
	ch := make(chan StateChange, 64)
	e.mu.Lock()
	e.subs = append(e.subs, ch)
	e.mu.Unlock()
	return ch
}

// ActivityState returns the committed activity snapshot for (child, kind).
// Unknown cells read as ActivityNone.
func (e *Engine) ActivityState(childUID string, kind event.Kind) ActivityState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if st, ok := e.states[key{childUID, kind}]; ok {
		return st
	}
	return ActivityState{Status: ActivityNone}
}

// LastLogged returns the child's most recent completed event of the kind,
// or (nil, nil) if none. Backs the per-kind "last logged" views.
func (e *Engine) LastLogged(ctx context.Context, childUID string, kind event.Kind) (*event.Event, error) {
	return e.store.LastCompleted(ctx, childUID, kind)
}

// Children returns the locally known children.
func (e *Engine) Children(ctx context.Context) ([]event.Child, error) {
	return e.store.Children(ctx)
}

// getMachine returns the loop-owned machine for the cell, creating and
// seeding it from the store on first use.
// CRITICAL: Called only from the Run() goroutine.
func (e *Engine) getMachine(ctx context.Context, k key) *machine {
	if m, ok := e.machines[k]; ok {
		return m
	}

	m := newMachine(k.childUID, k.kind)
	active, err := e.store.ActiveSession(ctx, k.childUID, k.kind)
	if err != nil {
		e.logger.Error("seeding activity state failed, assuming idle",
			"child", k.childUID, "kind", k.kind, "error", err)
	} else {
		m.setFromStore(active, e.clock)
	}
	e.machines[k] = m
	e.commitState(k, m)
	return m
}

// commitState publishes the machine's current value for readers.
func (e *Engine) commitState(k key, m *machine) {
	e.mu.Lock()
	e.states[k] = ActivityState{
		Status:   m.status(),
		EventID:  m.activeEventID,
		Revision: m.revision,
	}
	e.mu.Unlock()
}

// emit fans a change out to subscribers without blocking the loop.
func (e *Engine) emit(c StateChange) {
	e.mu.RLock()
	subs := e.subs
	e.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- c:
		default:
			e.logger.Debug("subscriber behind, dropping change",
				"type", c.Type, "child", c.ChildUID, "kind", c.Kind)
		}
	}
}

// remoteCtx derives the bounded context used for every remote call.
func (e *Engine) remoteCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.remoteTimeout)
}
