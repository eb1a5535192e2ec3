package worker

import (
	"context"
	"time"
)

// RetryPolicy controls how task handler failures are retried before the
// task is dropped.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy retries transient failures a few times with capped
// exponential backoff. The per-task timeout still bounds the total time
// spent on one task.
func DefaultRetryPolicy() RetryPolicy {
	return Retry(3).WithExponentialBackoff(200*time.Millisecond, 2.0, 2*time.Second).Policy()
}

// Do runs fn up to MaxAttempts times. Context cancellation and deadline
// expiry are never retried; any other error triggers a backoff sleep and
// another attempt. Once attempts are exhausted the last error is
// returned to the caller, which drops the task.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	multiplier := p.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	backoff := p.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if IsShutdown(err) {
			return err
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}

		if backoff > 0 {
			delay := backoff
			if p.MaxBackoff > 0 && delay > p.MaxBackoff {
				delay = p.MaxBackoff
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			next := time.Duration(float64(backoff) * multiplier)
			if p.MaxBackoff > 0 && next > p.MaxBackoff {
				backoff = p.MaxBackoff
			} else {
				backoff = next
			}
		}
	}
	return lastErr
}

// RetryBuilder provides a fluent way to construct RetryPolicy values.
type RetryBuilder struct {
	policy RetryPolicy
}

// Retry creates a RetryBuilder with the given maxAttempts.
//
// maxAttempts <= 0 is treated as 1 (no retries).
func Retry(maxAttempts int) RetryBuilder {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return RetryBuilder{policy: RetryPolicy{MaxAttempts: maxAttempts}}
}

// WithExponentialBackoff configures exponential backoff:
//
//   - initial is the delay before the first retry.
//   - multiplier > 1 grows the delay each attempt (default 2.0 if <= 0).
//   - max caps the delay; if <= 0, there is no cap.
func (r RetryBuilder) WithExponentialBackoff(initial time.Duration, multiplier float64, max time.Duration) RetryBuilder {
	p := r.policy
	p.InitialBackoff = initial
	p.MaxBackoff = max
	if multiplier <= 0 {
		multiplier = 2.0
	}
	p.BackoffMultiplier = multiplier
	return RetryBuilder{policy: p}
}

// Immediate disables any sleep between retries.
// Retries still respect MaxAttempts.
func (r RetryBuilder) Immediate() RetryBuilder {
	p := r.policy
	p.InitialBackoff = 0
	p.MaxBackoff = 0
	p.BackoffMultiplier = 0
	return RetryBuilder{policy: p}
}

// Policy returns the constructed RetryPolicy.
func (r RetryBuilder) Policy() RetryPolicy {
	return r.policy
}
