package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Runner owns a set of worker goroutines that continuously call
// ProcessOne until stopped.
type Runner struct {
	worker *Worker
	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewRunner creates a Runner. If logger is nil, slog.Default() is used.
func NewRunner(worker *Worker, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{worker: worker, logger: logger}
}

// Start launches concurrency worker goroutines. Calling Start on a
// running Runner is an error.
func (r *Runner) Start(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("worker: runner already started")
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(id int) {
			defer r.wg.Done()
			r.loop(ctx, id)
		}(i)
	}
	return nil
}

func (r *Runner) loop(ctx context.Context, id int) {
	logger := r.logger.With(slog.Int("worker", id))
	for {
		if _, err := r.worker.ProcessOne(ctx); err != nil {
			if IsShutdown(err) && ctx.Err() != nil {
				return
			}
			// Retries are exhausted at this point; the task is
			// dropped and the loop moves on.
			logger.Error("task_dropped", slog.String("error", err.Error()))
		}
	}
}

// Stop cancels all worker goroutines and waits for them to exit.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	cancel()
	r.wg.Wait()
}
