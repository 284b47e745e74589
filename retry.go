package laminar

import (
	"context"
	"errors"
	"time"
)

// retryConfig holds the optional configuration for retry behavior.
type retryConfig struct {
	attemptTimeout time.Duration    // 0 means no per-attempt timeout
	retryIf        func(error) bool // nil means use Transient/Permanent only
}

// RetryOption configures retry behavior.
type RetryOption func(*retryConfig)

// AttemptTimeout sets a deadline for each individual attempt. An attempt
// that exceeds it fails with [context.DeadlineExceeded], which counts as a
// retryable failure; the parent context stays untouched.
func AttemptTimeout(d time.Duration) RetryOption {
	return func(cfg *retryConfig) {
		cfg.attemptTimeout = d
	}
}

// RetryIf sets a custom predicate that determines whether an error is
// retryable, in addition to the Transient/Permanent classification.
func RetryIf(fn func(error) bool) RetryOption {
	return func(cfg *retryConfig) {
		cfg.retryIf = fn
	}
}

// Pattern: Retry with Backoff — masks transient failures with configurable
// backoff strategy; respects Permanent error classification to stop early.

// DoRetry executes fn with retry logic. It retries up to maxAttempts times
// in total using the given BackoffStrategy, then surfaces the final attempt's
// error unchanged so callers can still classify it.
//
// Permanent errors stop retrying immediately, as do [ErrRateLimited] and
// [ErrCircuitOpen] from layers beneath the retry: retrying into a closed
// gate would only burn attempts the admission layer already refused.
func DoRetry[T any](
	ctx context.Context,
	maxAttempts int,
	strategy BackoffStrategy,
	fn func(context.Context) (T, error),
	hooks *Hooks,
	clock Clock,
	opts ...RetryOption,
) (T, error) {
	var cfg retryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if hooks == nil {
		hooks = &Hooks{}
	}

	if clock == nil {
		clock = RealClock{}
	}

	// When maxAttempts is 0 or 1, execute exactly once.
	if maxAttempts <= 1 {
		maxAttempts = 1
	}

	var zero T
	var lastErr error

	for attempt := range maxAttempts {
		// Execute fn, optionally with per-attempt timeout.
		var result T
		var err error
		if cfg.attemptTimeout > 0 {
			attemptCtx, cancel := context.WithTimeout(ctx, cfg.attemptTimeout)
			result, err = fn(attemptCtx)
			cancel()
		} else {
			result, err = fn(ctx)
		}

		// On success: return result immediately.
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Caller is gone: abort without consuming further attempts.
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		// Non-retryable: stop immediately and surface the error as is.
		if !retryable(err, &cfg) {
			return zero, err
		}

		// If this is the last attempt, don't sleep or emit hook.
		if attempt == maxAttempts-1 {
			break
		}

		// Compute backoff delay and emit OnRetry with the 1-indexed number
		// of the attempt that just failed.
		delay := strategy.Delay(attempt)
		hooks.emitRetry(attempt+1, delay, err)

		// Sleep using Clock.NewTimer, respecting context cancellation.
		timer := clock.NewTimer(delay)
		select {
		case <-timer.C():
			// Timer fired, proceed to next attempt.
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}

	// All attempts exhausted: report and surface the final error verbatim.
	hooks.emitGiveUp(maxAttempts, lastErr)

	return zero, lastErr
}

// retryable reports whether err is worth another attempt.
func retryable(err error, cfg *retryConfig) bool {
	if IsPermanent(err) {
		return false
	}

	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrCircuitOpen) {
		return false
	}

	if cfg.retryIf != nil && !cfg.retryIf(err) {
		return false
	}

	return true
}
