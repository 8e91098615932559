package engine

import (
	"context"
	"sync"

	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
)

// task wraps the three inputs the single-writer loop linearizes: remote
// notifications, dispatcher commands, and resync requests. Exactly one
// field is set.
type task struct {
	notification *gateway.Notification
	command      *commandRequest
	resync       *resyncRequest
}

// commandRequest carries a dispatcher command into the loop and its
// outcome back to the caller. The reply channel is buffered so the loop
// never blocks on a caller that gave up. ctx is the caller's context;
// the loop skips commands whose caller has already gone away.
type commandRequest struct {
	ctx   context.Context
	cmd   gateway.Command
	reply chan commandReply
}

type commandReply struct {
	ev  event.Event
	err error
}

// resyncRequest asks the loop to re-derive all state from a full fetch.
type resyncRequest struct {
	reply chan error
}

// taskQueue is a thread-safe FIFO queue feeding the Run loop.
//
// The queue is unbounded so a burst of push notifications never blocks
// the transport reader. Thread-safety covers external enqueuing (the
// gateway runner, dispatcher callers) while the Run loop dequeues.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []task
	closed bool
	signal chan struct{} // Signals task availability (buffered, size 1)
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]task, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a task to the back of the queue.
// Thread-safe: may be called from any goroutine.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(t task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks = append(q.tasks, t)

	// Non-blocking signal - buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
// Returns (task{}, false) if the queue is empty.
func (q *taskQueue) TryDequeue() (task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return task{}, false
	}

	t := q.tasks[0]

	// Nil out the slot so the GC can collect the task's pointers before
	// the underlying array is reallocated.
	q.tasks[0] = task{}

	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}

	return t, true
}

// Wait returns a channel that signals when tasks may be available.
// Use with select for context-aware waiting.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Closed reports whether Close has been called.
func (q *taskQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Close signals that no more tasks will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
