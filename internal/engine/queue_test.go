package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/naptrack/internal/event"
	"github.com/roach88/naptrack/internal/gateway"
)

func eventWithID(id string) event.Event {
	return event.Event{ID: id}
}

func TestTaskQueue_FIFO(t *testing.T) {
	q := newTaskQueue()

	for _, id := range []string{"a", "b", "c"} {
		ok := q.Enqueue(task{notification: &gateway.Notification{
			Event: eventWithID(id),
		}})
		require.True(t, ok)
	}
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		tk, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, tk.notification.Event.ID)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestTaskQueue_CloseRejectsEnqueue(t *testing.T) {
	q := newTaskQueue()
	q.Close()

	assert.False(t, q.Enqueue(task{}))

	// The signal channel is closed, so waiters wake immediately.
	select {
	case <-q.Wait():
	default:
		t.Fatal("Wait() did not fire after Close")
	}

	// Closing twice is safe.
	q.Close()
}

func TestTaskQueue_StaleSignalIsNotClosure(t *testing.T) {
	q := newTaskQueue()

	// A task drained through the direct dequeue path leaves its signal
	// buffered. Receiving that signal on an empty queue must not read as
	// the queue being closed.
	q.Enqueue(task{})
	_, ok := q.TryDequeue()
	require.True(t, ok)

	<-q.Wait()
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Closed())

	q.Close()
	assert.True(t, q.Closed())
}

func TestTaskQueue_SignalCoalesces(t *testing.T) {
	q := newTaskQueue()

	q.Enqueue(task{})
	q.Enqueue(task{})

	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("signal was not coalesced")
	default:
	}
	assert.Equal(t, 2, q.Len())
}
