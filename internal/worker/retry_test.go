package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emprestedigital/creditbot/internal/taskqueue"
)

// flakyDispatcher fails a fixed number of times before succeeding.
type flakyDispatcher struct {
	failures int
	calls    int
}

func (f *flakyDispatcher) Dispatch(context.Context, []byte) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("transient")
	}
	return nil
}

func TestRetryBuilder(t *testing.T) {
	p := Retry(3).WithExponentialBackoff(100*time.Millisecond, 2.0, time.Second).Policy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, p.InitialBackoff)
	assert.Equal(t, time.Second, p.MaxBackoff)
	assert.Equal(t, 2.0, p.BackoffMultiplier)

	// maxAttempts <= 0 collapses to a single attempt.
	assert.Equal(t, 1, Retry(0).Policy().MaxAttempts)

	p = Retry(5).WithExponentialBackoff(time.Second, 2.0, 0).Immediate().Policy()
	assert.Equal(t, 5, p.MaxAttempts)
	assert.Zero(t, p.InitialBackoff)
}

func TestRetryDo_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(3).Policy().Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryDo_RecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	err := Retry(3).Immediate().Policy().Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(3).Immediate().Policy().Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("still broken")
	})
	assert.EqualError(t, err, "still broken")
	assert.Equal(t, 3, calls)
}

func TestRetryDo_DoesNotRetryCancellation(t *testing.T) {
	calls := 0
	err := Retry(5).Immediate().Policy().Do(context.Background(), func(context.Context) error {
		calls++
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryDo_StopsWhenContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	policy := Retry(3).WithExponentialBackoff(time.Minute, 2.0, 0).Policy()
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(context.Context) error {
			calls++
			return errors.New("transient")
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("Do did not return after cancellation")
	}
}

func TestProcessOne_RetriesTransientDispatchFailure(t *testing.T) {
	queue := taskqueue.NewInMemoryQueue()
	dispatcher := &flakyDispatcher{failures: 2}
	w := New(queue, dispatcher, &fakeFirer{}, 0).WithRetry(Retry(3).Immediate().Policy())

	ctx := context.Background()
	require.NoError(t, queue.Enqueue(ctx, taskqueue.Task{
		ID:   "t1",
		Type: taskqueue.TaskTypeProcessEvent,
	}))

	processed, err := w.ProcessOne(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, 3, dispatcher.calls)
}
