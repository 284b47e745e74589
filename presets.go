package laminar

import "time"

// Pattern: Factory Function — each preset produces a ready-made option bundle
// for a common use case, avoiding boilerplate configuration.
//
// Presets follow the recommended layer order: rate limiter outermost, then
// circuit breaker, then retry, with the cache closest to the invoker so
// every logical call passes admission control and only cache hits skip the
// backend.

// DefaultOptions returns a conservative option bundle in the recommended
// order: 50 requests per second per target, a circuit breaker with default
// thresholds, 3 retry attempts with jittered exponential backoff, and a 60s
// unbounded response cache.
func DefaultOptions() []any {
	return []any{
		WithRateLimit(50, time.Second),
		WithCircuitBreaker(),
		WithRetry(
			3,
			ExponentialJitterBackoff(
				100*time.Millisecond,
				10*time.Second,
				DefaultJitterFraction,
			),
		),
		WithCache(time.Minute),
	}
}

// StandardAPIClient returns options suitable for a typical API client:
// 100 requests per second per target, a circuit breaker with 5-failure
// threshold and 30s reset, 3 retry attempts with jittered exponential
// backoff, and a 30s response cache bounded to 1024 entries.
func StandardAPIClient() []any {
	return []any{
		WithRateLimit(100, time.Second),
		WithCircuitBreaker(
			FailureThreshold(5),
			ResetTimeout(30*time.Second),
		),
		WithRetry(
			3,
			ExponentialJitterBackoff(
				100*time.Millisecond,
				10*time.Second,
				DefaultJitterFraction,
			),
		),
		WithCache(30*time.Second, MaxEntries(1024)),
	}
}

// AggressiveAPIClient returns options for latency-sensitive clients that
// must not serve stale data: 500 requests per second per target, a circuit
// breaker with 3-failure threshold and 15s reset, and 5 retry attempts
// with jittered exponential backoff capped at 5s. No response cache.
func AggressiveAPIClient() []any {
	return []any{
		WithRateLimit(500, time.Second),
		WithCircuitBreaker(
			FailureThreshold(3),
			ResetTimeout(15*time.Second),
		),
		WithRetry(
			5,
			ExponentialJitterBackoff(
				50*time.Millisecond,
				5*time.Second,
				DefaultJitterFraction,
			),
		),
	}
}
