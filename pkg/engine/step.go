package engine

import (
	"context"
	"time"

	"github.com/assay-dev/assay/pkg/models"
)

// StepFunc is a single analyzer invocation. Implementations must observe ctx.
type StepFunc[T any] func(ctx context.Context) (T, error)

// StepConfig bundles the resilience settings for one analyzer invocation.
type StepConfig struct {
	Stage   models.PipelineStage
	Timeout time.Duration
	Retry   RetryOptions

	// Backoff overrides the policy derived from Retry. Tests inject a seeded
	// policy here; production leaves it nil.
	Backoff *BackoffPolicy

	// OnError is called for every classified failure, including ones that
	// will be retried. Optional.
	OnError func(err *ExecutorError)

	// OnRetry is called just before sleeping between attempts. Optional.
	OnRetry func(attempt int, delay time.Duration, err *ExecutorError)
}

// RunStep executes fn with a per-attempt timeout and a retry loop over
// recoverable failures. The zero value of T is returned alongside a non-nil
// error.
//
// Semantics:
//   - each attempt races fn against a timer of cfg.Timeout; a timer win is
//     classified TIMEOUT (recoverable)
//   - recoverable failures sleep backoff(attempt) between attempts, watching
//     ctx during the sleep
//   - a recoverable failure on the final attempt is wrapped into
//     MAX_RETRIES_EXCEEDED with the last error as cause
//   - ctx cancellation observed at any suspension point yields CANCELLED
//     immediately and is never retried
func RunStep[T any](ctx context.Context, cfg StepConfig, fn StepFunc[T]) (T, *ExecutorError) {
	var zero T

	maxAttempts := cfg.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = NewBackoffPolicy(cfg.Retry, nil)
	}

	var lastErr *ExecutorError
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, Classify(err, cfg.Stage, attempt)
		}

		val, err := runAttempt(ctx, cfg, fn)
		if err == nil {
			return val, nil
		}

		ee := Classify(err, cfg.Stage, 0)
		ee.Attempt = attempt
		if cfg.OnError != nil {
			cfg.OnError(ee)
		}

		if !ee.Recoverable {
			return zero, ee
		}
		lastErr = ee

		if attempt == maxAttempts {
			break
		}

		delay := backoff.Delay(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, Classify(ctx.Err(), cfg.Stage, attempt)
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, ee)
		}
	}

	return zero, wrapMaxRetries(lastErr, cfg.Stage, maxAttempts)
}

// runAttempt races one fn invocation against the per-attempt timer. The
// invocation runs on its own goroutine so a fn that ignores its context
// cannot wedge the retry loop; its eventual result is discarded.
func runAttempt[T any](ctx context.Context, cfg StepConfig, fn StepFunc[T]) (T, error) {
	var zero T

	attemptCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(attemptCtx)
		done <- outcome{val: v, err: err}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			// Parent cancellation, not a per-attempt timeout.
			return zero, ctx.Err()
		}
		return zero, context.DeadlineExceeded
	}
}
