// Package worker pulls tasks from the queue and executes them: webhook
// events go through the intake dispatcher, inactivity tickets through the
// timeout scheduler.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emprestedigital/creditbot/internal/taskqueue"
)

// Dispatcher handles a raw webhook payload.
type Dispatcher interface {
	Dispatch(ctx context.Context, raw []byte) error
}

// TimeoutFirer evaluates a due inactivity ticket.
type TimeoutFirer interface {
	Fire(ctx context.Context, check taskqueue.InactivityCheck) error
}

// Worker pulls tasks from a Queue and executes them.
type Worker struct {
	queue      taskqueue.Queue
	dispatcher Dispatcher
	timeouts   TimeoutFirer

	// taskTimeout is the hard ceiling for one task; a stuck handler is
	// cut off rather than blocking the loop.
	taskTimeout time.Duration

	retry RetryPolicy
}

// New creates a Worker with DefaultRetryPolicy. taskTimeout <= 0
// defaults to one minute.
func New(queue taskqueue.Queue, dispatcher Dispatcher, timeouts TimeoutFirer, taskTimeout time.Duration) *Worker {
	if taskTimeout <= 0 {
		taskTimeout = time.Minute
	}
	return &Worker{
		queue:       queue,
		dispatcher:  dispatcher,
		timeouts:    timeouts,
		taskTimeout: taskTimeout,
		retry:       DefaultRetryPolicy(),
	}
}

// WithRetry replaces the retry policy applied to task handlers and
// returns the Worker for chaining.
func (w *Worker) WithRetry(policy RetryPolicy) *Worker {
	w.retry = policy
	return w
}

// ProcessOne pulls a single task from the queue and processes it.
// Returns (processed, error):
//   - processed == false, err != nil: nothing obtained (cancellation or
//     dequeue failure)
//   - processed == true: a task ran; err reports whether its handler
//     succeeded.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	// Handler failures here are transient by construction: permanently
	// bad payloads are swallowed and logged further down the stack, so
	// a returned error is worth retrying before the task is dropped.
	switch task.Type {
	case taskqueue.TaskTypeProcessEvent:
		return true, w.retry.Do(taskCtx, func(ctx context.Context) error {
			return w.dispatcher.Dispatch(ctx, task.RawEvent)
		})
	case taskqueue.TaskTypeCheckInactivity:
		return true, w.retry.Do(taskCtx, func(ctx context.Context) error {
			return w.timeouts.Fire(ctx, task.Check)
		})
	default:
		return true, fmt.Errorf("unknown task type %q", task.Type)
	}
}

// IsShutdown reports whether err is an orderly cancellation rather than a
// task failure.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
