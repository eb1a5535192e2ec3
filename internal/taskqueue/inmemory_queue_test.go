package taskqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue_FIFOForImmediateTasks(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, q.Enqueue(ctx, Task{ID: id, Type: TaskTypeProcessEvent}))
		time.Sleep(time.Millisecond) // distinct NotBefore ordering
	}

	for _, want := range []string{"a", "b", "c"} {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got.ID)
	}
	assert.Equal(t, 0, q.Len())
}

func TestInMemoryQueue_DeferredTaskInvisibleUntilDue(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	due := time.Now().Add(60 * time.Millisecond)
	require.NoError(t, q.Enqueue(ctx, Task{ID: "later", Type: TaskTypeCheckInactivity, NotBefore: due}))

	// Not eligible yet: a short dequeue attempt times out.
	shortCtx, cancel := context.WithTimeout(ctx, 25*time.Millisecond)
	defer cancel()
	_, err := q.Dequeue(shortCtx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, q.Len(), "deferred task stays queued")

	// Eligible after its NotBefore.
	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "later", got.ID)
	assert.False(t, time.Now().Before(due), "task must not surface before it is due")
}

func TestInMemoryQueue_EarlierDeferredTaskWins(t *testing.T) {
	q := NewInMemoryQueue()
	ctx := context.Background()

	now := time.Now()
	require.NoError(t, q.Enqueue(ctx, Task{ID: "late", NotBefore: now.Add(30 * time.Millisecond)}))
	require.NoError(t, q.Enqueue(ctx, Task{ID: "early", NotBefore: now.Add(10 * time.Millisecond)}))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, "early", got.ID)
}

func TestInMemoryQueue_DequeueHonorsCancellation(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(ctx)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after cancellation")
	}
}

func TestTaskCodec_RoundTripPreservesTicketFields(t *testing.T) {
	dispatched := time.Now().Truncate(time.Millisecond)
	in := Task{
		ID:     "t1",
		Type:   TaskTypeCheckInactivity,
		ChatID: "42",
		Check: InactivityCheck{
			ChatID:        "42",
			ExpectedState: "MENU",
			DispatchedAt:  dispatched,
		},
		EnqueuedAt: dispatched,
		NotBefore:  dispatched.Add(10 * time.Minute),
	}

	data, err := EncodeTask(in)
	require.NoError(t, err)

	out, err := DecodeTask(data)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.Check.ExpectedState, out.Check.ExpectedState)
	assert.True(t, in.Check.DispatchedAt.Equal(out.Check.DispatchedAt))
	assert.True(t, in.NotBefore.Equal(out.NotBefore))
}
