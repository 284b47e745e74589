package laminar

import (
	"context"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Stack[R, T] — the central integration type
// ---------------------------------------------------------------------------

// Stack composes resilience layers (response cache, rate limiter, circuit
// breaker, retry) around an [Invoker] behind a single [Stack.Do] method.
// Use [New] with functional options to configure it.
//
// Layer order is the option order: the first layer option is the outermost
// layer, the last sits closest to the invoker. New(name, inv, WithRetry(...),
// WithCircuitBreaker()) retries around the breaker, so every retry attempt
// is admitted individually; swapping the two options makes the breaker see
// one aggregate failure per exhausted retry loop instead.
//
// Pattern: Functional Options — configures Stack[R, T] via composable option
// values; generic options use any to work around Go's generic type
// constraint on function signatures.
type Stack[R Request, T any] struct {
	name   string
	hooks  Hooks
	clock  Clock
	invoke Invoker[R, T] // invoker wrapped in the full layer chain

	// Layer names in option order, outermost first.
	layers []string

	// References to stateful layers (needed later for health reporting).
	cb *CircuitBreaker
	rl *RateLimiter

	// Hierarchical health dependencies.
	deps []HealthReporter

	// Registry this stack is registered with (nil if anonymous or opted
	// out).
	registry *Registry
}

// Name returns the stack's name.
func (s *Stack[R, T]) Name() string { return s.name }

// Do executes one logical call through the composed layer chain.
func (s *Stack[R, T]) Do(ctx context.Context, req R) (T, error) {
	return s.invoke(ctx, req)
}

// ---------------------------------------------------------------------------
// Non-generic option descriptors — stored as any, interpreted by New[R, T]
// ---------------------------------------------------------------------------

// stackOptionFunc is a non-generic option that modifies stackSetup.
type stackOptionFunc func(*stackSetup)

// stackSetup holds non-generic configuration collected during New.
type stackSetup struct {
	clock    Clock
	hooks    Hooks
	registry *Registry
}

// cacheDesc holds deferred response-cache configuration.
type cacheDesc struct {
	ttl  time.Duration
	opts []CacheOption
}

// cacheSettings holds the optional response-cache settings.
type cacheSettings struct {
	maxEntries int
	store      any // Store[string, T] stored as any
}

// CacheOption configures the cache layer of a stack.
type CacheOption func(*cacheSettings)

// MaxEntries bounds the default in-memory store to n live entries. It
// cannot be combined with [WithStore], whose backend owns its own sizing.
func MaxEntries(n int) CacheOption {
	return func(cfg *cacheSettings) {
		cfg.maxEntries = n
	}
}

// WithStore routes the cache layer to a caller-supplied backend instead of
// the default [MemoryStore]. The store's value type must match the stack's.
func WithStore[T any](store Store[string, T]) CacheOption {
	return func(cfg *cacheSettings) {
		cfg.store = store
	}
}

// rateLimitDesc holds deferred rate limiter configuration.
type rateLimitDesc struct {
	maxRequests int
	window      time.Duration
}

// circuitBreakerDesc holds deferred circuit breaker configuration.
type circuitBreakerDesc struct {
	opts []CircuitBreakerOption
}

// retryDesc holds deferred retry configuration.
type retryDesc struct {
	maxAttempts int
	strategy    BackoffStrategy
	opts        []RetryOption
}

// dependsOnDesc holds health reporters that this stack depends on.
type dependsOnDesc struct {
	reporters []HealthReporter
}

// ---------------------------------------------------------------------------
// With* functions — all return any
// ---------------------------------------------------------------------------

// WithClock sets the clock used by all layers within this stack.
func WithClock(c Clock) any {
	return stackOptionFunc(func(s *stackSetup) {
		s.clock = c
	})
}

// WithHooks sets the lifecycle hooks for all layers within this stack.
func WithHooks(h Hooks) any {
	return stackOptionFunc(func(s *stackSetup) {
		s.hooks = h
	})
}

// WithRegistry registers the stack with reg for readiness reporting.
// Anonymous stacks are never registered.
func WithRegistry(reg *Registry) any {
	return stackOptionFunc(func(s *stackSetup) {
		s.registry = reg
	})
}

// WithCache adds a response cache layer: live entries short-circuit every
// layer beneath it, including the invoker. Entries live for ttl.
func WithCache(ttl time.Duration, opts ...CacheOption) any {
	return cacheDesc{ttl: ttl, opts: opts}
}

// WithRateLimit adds a rate limiter layer admitting at most maxRequests
// calls per target within any sliding window-long interval.
func WithRateLimit(maxRequests int, window time.Duration) any {
	return rateLimitDesc{maxRequests: maxRequests, window: window}
}

// WithCircuitBreaker adds a per-target circuit breaker layer that
// fast-fails while a backend is unhealthy.
func WithCircuitBreaker(opts ...CircuitBreakerOption) any {
	return circuitBreakerDesc{opts: opts}
}

// WithRetry adds a retry layer with the given total attempt budget, backoff
// strategy, and optional retry configuration.
func WithRetry(
	maxAttempts int,
	strategy BackoffStrategy,
	opts ...RetryOption,
) any {
	return retryDesc{maxAttempts: maxAttempts, strategy: strategy, opts: opts}
}

// DependsOn declares hierarchical health dependencies. If any dependency
// reports CriticalityCritical and is unhealthy, this stack's health status
// will be degraded.
func DependsOn(reporters ...HealthReporter) any {
	return dependsOnDesc{reporters: reporters}
}

// Layer names used for duplicate detection and health reporting.
const (
	layerCache          = "cache"
	layerRateLimit      = "rate_limit"
	layerCircuitBreaker = "circuit_breaker"
	layerRetry          = "retry"
)

// ---------------------------------------------------------------------------
// New[R, T] — construct and wire up the stack
// ---------------------------------------------------------------------------

// New creates a [Stack] with the given name and options. Options are
// processed in two phases: first, non-generic options (clock, hooks,
// registry) are collected; then, layer descriptors build their middleware
// using the resolved clock and hooks, in the order given. Unrecognized
// option values are ignored.
//
// New fails with an error wrapping [ErrInvalidConfig] — and returns no
// stack — when the invoker is nil, a layer appears twice, or any option
// value is out of range.
func New[R Request, T any](
	name string,
	invoker Invoker[R, T],
	opts ...any,
) (*Stack[R, T], error) {
	if invoker == nil {
		return nil, fmt.Errorf("laminar: %w: nil invoker", ErrInvalidConfig)
	}

	var setup stackSetup

	// Phase 1: Collect non-generic options to resolve clock and hooks
	// first.
	for _, opt := range opts {
		if sof, ok := opt.(stackOptionFunc); ok {
			sof(&setup)
		}
	}

	// Default clock.
	if setup.clock == nil {
		setup.clock = RealClock{}
	}

	hooks := setup.hooks
	clock := setup.clock

	// Phase 2: Build middleware from layer descriptors, preserving option
	// order.
	var (
		mws    []Middleware[R, T]
		layers []string
		cb     *CircuitBreaker
		rl     *RateLimiter
		deps   []HealthReporter
	)

	seen := make(map[string]bool)

	addLayer := func(layer string) error {
		if seen[layer] {
			return fmt.Errorf(
				"laminar: %w: duplicate %s layer",
				ErrInvalidConfig,
				layer,
			)
		}

		seen[layer] = true
		layers = append(layers, layer)

		return nil
	}

	for _, opt := range opts {
		switch desc := opt.(type) {
		case stackOptionFunc:
			// Already processed in phase 1.

		case cacheDesc:
			if err := addLayer(layerCache); err != nil {
				return nil, err
			}

			mw, err := buildCacheMiddleware[R, T](desc, clock, &hooks)
			if err != nil {
				return nil, err
			}

			mws = append(mws, mw)

		case rateLimitDesc:
			if err := addLayer(layerRateLimit); err != nil {
				return nil, err
			}

			if desc.maxRequests <= 0 {
				return nil, fmt.Errorf(
					"laminar: %w: rate limit: max requests must be positive, got %d",
					ErrInvalidConfig,
					desc.maxRequests,
				)
			}

			if desc.window <= 0 {
				return nil, fmt.Errorf(
					"laminar: %w: rate limit: window must be positive, got %s",
					ErrInvalidConfig,
					desc.window,
				)
			}

			rl = NewRateLimiter(desc.maxRequests, desc.window, clock, &hooks)
			rlRef := rl
			mws = append(mws, func(next Invoker[R, T]) Invoker[R, T] {
				return func(ctx context.Context, req R) (T, error) {
					if err := rlRef.Allow(req.Target()); err != nil {
						var zero T

						return zero, err
					}

					return next(ctx, req)
				}
			})

		case circuitBreakerDesc:
			if err := addLayer(layerCircuitBreaker); err != nil {
				return nil, err
			}

			cfg := defaultCircuitBreakerConfig()
			for _, o := range desc.opts {
				o(&cfg)
			}

			if cfg.failureThreshold <= 0 {
				return nil, fmt.Errorf(
					"laminar: %w: circuit breaker: failure threshold must be positive, got %d",
					ErrInvalidConfig,
					cfg.failureThreshold,
				)
			}

			if cfg.resetTimeout <= 0 {
				return nil, fmt.Errorf(
					"laminar: %w: circuit breaker: reset timeout must be positive, got %s",
					ErrInvalidConfig,
					cfg.resetTimeout,
				)
			}

			cb = NewCircuitBreaker(clock, &hooks, desc.opts...)
			cbRef := cb
			mws = append(mws, func(next Invoker[R, T]) Invoker[R, T] {
				return func(ctx context.Context, req R) (T, error) {
					target := req.Target()

					probe, err := cbRef.Allow(target)
					if err != nil {
						var zero T

						return zero, err
					}

					val, err := next(ctx, req)

					switch {
					case err == nil:
						cbRef.RecordSuccess(target, probe)
					case breakerIgnores(err):
						if probe {
							cbRef.ReleaseProbe(target)
						}
					default:
						cbRef.RecordFailure(target, probe)
					}

					return val, err
				}
			})

		case retryDesc:
			if err := addLayer(layerRetry); err != nil {
				return nil, err
			}

			if desc.maxAttempts <= 0 {
				return nil, fmt.Errorf(
					"laminar: %w: retry: max attempts must be positive, got %d",
					ErrInvalidConfig,
					desc.maxAttempts,
				)
			}

			if desc.strategy == nil {
				return nil, fmt.Errorf(
					"laminar: %w: retry: nil backoff strategy",
					ErrInvalidConfig,
				)
			}

			maxAttempts := desc.maxAttempts
			strategy := desc.strategy
			retryOpts := desc.opts
			mws = append(mws, func(next Invoker[R, T]) Invoker[R, T] {
				return func(ctx context.Context, req R) (T, error) {
					return DoRetry[T](
						ctx,
						maxAttempts,
						strategy,
						func(c context.Context) (T, error) {
							return next(c, req)
						},
						&hooks,
						clock,
						retryOpts...,
					)
				}
			})

		case dependsOnDesc:
			deps = append(deps, desc.reporters...)
		}
	}

	// Chain in option order: first option is the outermost layer.
	chain := Chain[R, T](mws...)

	s := &Stack[R, T]{
		name:     name,
		hooks:    hooks,
		clock:    clock,
		invoke:   chain(invoker),
		layers:   layers,
		cb:       cb,
		rl:       rl,
		deps:     deps,
		registry: setup.registry,
	}

	if s.registry != nil && name != "" {
		s.registry.Register(s)
	}

	return s, nil
}

// buildCacheMiddleware validates a cache descriptor and wires the response
// cache into the chain, keyed by Request.CacheKey.
func buildCacheMiddleware[R Request, T any](
	desc cacheDesc,
	clock Clock,
	hooks *Hooks,
) (Middleware[R, T], error) {
	if desc.ttl <= 0 {
		return nil, fmt.Errorf(
			"laminar: %w: cache: ttl must be positive, got %s",
			ErrInvalidConfig,
			desc.ttl,
		)
	}

	var cfg cacheSettings
	for _, o := range desc.opts {
		o(&cfg)
	}

	if cfg.maxEntries < 0 {
		return nil, fmt.Errorf(
			"laminar: %w: cache: max entries must not be negative, got %d",
			ErrInvalidConfig,
			cfg.maxEntries,
		)
	}

	var store Store[string, T]

	switch {
	case cfg.store == nil:
		store = NewMemoryStore[string, T](clock, cfg.maxEntries)

	case cfg.maxEntries != 0:
		// MaxEntries sizes the default store; an external store owns its
		// own bounds, so combining the two is a contradiction.
		return nil, fmt.Errorf(
			"laminar: %w: cache: max entries conflicts with external store",
			ErrInvalidConfig,
		)

	default:
		typed, ok := cfg.store.(Store[string, T])
		if !ok {
			return nil, fmt.Errorf(
				"laminar: %w: cache: store value type does not match stack",
				ErrInvalidConfig,
			)
		}

		store = typed
	}

	rc := NewResponseCache[string, T](
		store,
		desc.ttl,
		OnHit[string, T](hooks.emitCacheHit),
		OnMiss[string, T](hooks.emitCacheMiss),
		OnRefreshed[string, T](hooks.emitCacheRefreshed),
	)

	return func(next Invoker[R, T]) Invoker[R, T] {
		return func(ctx context.Context, req R) (T, error) {
			return rc.Do(
				ctx,
				req.CacheKey(),
				func(c context.Context, _ string) (T, error) {
					return next(c, req)
				},
			)
		}
	}, nil
}
