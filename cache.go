package laminar

import (
	"context"
	"time"
)

type (
	// ResponseCache wraps a function call with keyed memoization. The
	// store is consulted before the call: a live entry short-circuits the
	// call entirely, a miss runs fn and caches its result on success.
	// Failed calls are never cached.
	//
	// ResponseCache is a standalone wrapper — compose it into a [Stack]
	// with [WithCache], or call Do directly around any keyed operation.
	ResponseCache[K comparable, V any] struct {
		store       Store[K, V]
		onHit       func(K)
		onMiss      func(K)
		onRefreshed func(K)
		ttl         time.Duration
	}

	// ResponseCacheOption configures a [ResponseCache].
	ResponseCacheOption[K comparable, V any] func(*ResponseCache[K, V])
)

// OnHit sets a callback invoked when a live cached value is served.
func OnHit[K comparable, V any](fn func(K)) ResponseCacheOption[K, V] {
	return func(rc *ResponseCache[K, V]) {
		rc.onHit = fn
	}
}

// OnMiss sets a callback invoked when no live entry exists for a key.
func OnMiss[K comparable, V any](fn func(K)) ResponseCacheOption[K, V] {
	return func(rc *ResponseCache[K, V]) {
		rc.onMiss = fn
	}
}

// OnRefreshed sets a callback invoked when a cache entry is stored.
func OnRefreshed[K comparable, V any](fn func(K)) ResponseCacheOption[K, V] {
	return func(rc *ResponseCache[K, V]) {
		rc.onRefreshed = fn
	}
}

// NewResponseCache creates a keyed memoizing cache backed by the given
// [Store]. The ttl determines how long cached results remain live.
func NewResponseCache[K comparable, V any](
	store Store[K, V],
	ttl time.Duration,
	opts ...ResponseCacheOption[K, V],
) *ResponseCache[K, V] {
	rc := &ResponseCache[K, V]{
		store: store,
		ttl:   ttl,
	}

	for _, opt := range opts {
		opt(rc)
	}

	return rc
}

// Do returns the cached value for key when one is live, otherwise it
// executes fn and caches a successful result for the configured TTL.
// Errors pass through unchanged and leave the cache untouched.
//
//nolint:ireturn,revive // generic type parameter V, not an interface; Do
// matches Stack.Do naming.
func (rc *ResponseCache[K, V]) Do(
	ctx context.Context,
	key K,
	fn func(context.Context, K) (V, error),
) (V, error) {
	if cached, ok := rc.store.Get(key); ok {
		if rc.onHit != nil {
			rc.onHit(key)
		}

		return cached, nil
	}

	if rc.onMiss != nil {
		rc.onMiss(key)
	}

	result, err := fn(ctx, key)
	if err != nil {
		var zero V

		return zero, err //nolint:wrapcheck // caller's error returned as-is
	}

	rc.store.Set(key, result, rc.ttl)

	if rc.onRefreshed != nil {
		rc.onRefreshed(key)
	}

	return result, nil
}
