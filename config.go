package laminar

import (
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
)

type (
	// configFile is the top-level JSON structure.
	configFile struct {
		Stacks map[string]StackConfig `json:"stacks"`
	}

	// StackConfig holds the decoded configuration for a single stack.
	// Export it to embed in your own app config structs for JSON or YAML
	// unmarshaling, then call [BuildOptions] to obtain functional options
	// for [New].
	//
	// Every section is optional; an absent section means the layer is not
	// built. A present section may still be switched off via its "enabled"
	// flag, which lets deployments keep tuned values in place while
	// toggling layers per environment.
	StackConfig struct {
		// Cache configures the response cache layer.
		// Optional. Example: {"ttl": "30s", "max_entries": 1024}.
		Cache *CacheConfig `json:"cache,omitempty" yaml:"cache,omitempty"`
		// RateLimit configures the sliding-window rate limiter layer.
		// Optional. Example: {"max_requests": 100, "window": "1s"}.
		RateLimit *RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`
		// CircuitBreaker configures the circuit breaker layer.
		// Optional. Example: {"failure_threshold": 5}.
		CircuitBreaker *CircuitBreakerConfig `json:"circuit_breaker,omitempty" yaml:"circuit_breaker,omitempty"`
		// Retry configures the retry layer.
		// Optional. Example: {"max_attempts": 3, "backoff": "exponential"}.
		Retry *RetryConfig `json:"retry,omitempty" yaml:"retry,omitempty"`
	}

	// CacheConfig holds response cache configuration values. Embed it
	// (via [StackConfig]) in your own config struct for JSON or YAML
	// unmarshaling.
	CacheConfig struct {
		// TTL is how long cached responses stay live.
		// Required. Parsed via time.ParseDuration. Example: "30s".
		TTL string `json:"ttl" yaml:"ttl"`
		// MaxEntries bounds the in-memory store.
		// Optional. Zero means unbounded. Example: 1024.
		MaxEntries int `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
		// Enabled toggles the layer; absent means enabled.
		Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	}

	// RateLimitConfig holds rate limiter configuration values. Embed it
	// (via [StackConfig]) in your own config struct for JSON or YAML
	// unmarshaling.
	RateLimitConfig struct {
		// Window is the sliding window length.
		// Required. Parsed via time.ParseDuration. Example: "1s".
		Window string `json:"window" yaml:"window"`
		// MaxRequests is the admission limit per target within the window.
		// Required. Example: 100.
		MaxRequests int `json:"max_requests" yaml:"max_requests"`
		// Enabled toggles the layer; absent means enabled.
		Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	}

	// CircuitBreakerConfig holds circuit breaker configuration values.
	// Embed it (via [StackConfig]) in your own config struct for JSON or
	// YAML unmarshaling.
	CircuitBreakerConfig struct {
		// ResetTimeout is the duration an open target stays closed to
		// traffic before admitting a probe.
		// Optional. Parsed via time.ParseDuration. Example: "30s".
		ResetTimeout *string `json:"reset_timeout,omitempty" yaml:"reset_timeout,omitempty"`
		// FailureThreshold is the number of consecutive failures before
		// opening.
		// Optional. Example: 5.
		FailureThreshold *int `json:"failure_threshold,omitempty" yaml:"failure_threshold,omitempty"`
		// Enabled toggles the layer; absent means enabled.
		Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	}

	// RetryConfig holds retry configuration values. Embed it (via
	// [StackConfig]) in your own config struct for JSON or YAML
	// unmarshaling.
	RetryConfig struct {
		// Backoff is the backoff strategy name.
		// Required. One of: "constant", "exponential", "linear",
		// "exponential_jitter".
		Backoff *string `json:"backoff,omitempty" yaml:"backoff,omitempty"`
		// BaseDelay is the base delay for backoff calculation.
		// Required. Parsed via time.ParseDuration. Example: "100ms".
		BaseDelay *string `json:"base_delay,omitempty" yaml:"base_delay,omitempty"`
		// MaxDelay caps the exponential backoff delay.
		// Optional. Parsed via time.ParseDuration. Example: "30s".
		MaxDelay *string `json:"max_delay,omitempty" yaml:"max_delay,omitempty"`
		// JitterFraction spreads exponential_jitter delays; in [0, 1].
		// Optional. Defaults to [DefaultJitterFraction].
		JitterFraction *float64 `json:"jitter_fraction,omitempty" yaml:"jitter_fraction,omitempty"`
		// AttemptTimeout is the per-attempt deadline.
		// Optional. Parsed via time.ParseDuration. Example: "2s".
		AttemptTimeout *string `json:"attempt_timeout,omitempty" yaml:"attempt_timeout,omitempty"`
		// MaxAttempts is the total attempt budget.
		// Required. Example: 3.
		MaxAttempts *int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
		// Enabled toggles the layer; absent means enabled.
		Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	}
)

// sectionEnabled reports whether a present section is switched on.
func sectionEnabled(enabled *bool) bool {
	return enabled == nil || *enabled
}

// parseConfigDuration parses a duration string, naming the field on error.
func parseConfigDuration(field, value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, field, err)
	}

	return d, nil
}

// LoadConfig reads a JSON configuration file and stores the stack
// configurations in a [Registry]. Actual [Stack] instances are not created
// until [GetStack] is called, allowing the caller to provide type
// parameters, the invoker, and additional code-level options.
//
// Every stack entry is validated at load time, so a malformed file fails
// here rather than on first use. Duration values (ttl, window,
// reset_timeout, base_delay, max_delay, attempt_timeout) are parsed using
// [time.ParseDuration].
//
// Supported backoff strategies: "constant", "exponential", "linear",
// "exponential_jitter".
func LoadConfig(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("laminar: read config: %w", err)
	}

	var cfg configFile
	if err = json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf(
			"laminar: parse config: %w: %w",
			ErrInvalidConfig,
			err,
		)
	}

	// Validate all stacks eagerly so errors surface at load time.
	for name, sc := range cfg.Stacks {
		if _, buildErr := BuildOptions(&sc); buildErr != nil {
			return nil, fmt.Errorf("laminar: stack %q: %w", name, buildErr)
		}
	}

	reg := NewRegistry()
	reg.mu.Lock()
	reg.configs = cfg.Stacks
	reg.mu.Unlock()

	return reg, nil
}

// BuildOptions converts a [StackConfig] into a slice of functional option
// values suitable for [New]. Use this when you embed [StackConfig] in your
// own config struct and want to build a stack without going through
// [LoadConfig].
//
// Enabled layers are emitted in the recommended order — rate limiter, then
// circuit breaker, then retry, then cache — so admission control runs
// outermost and only cache hits bypass it. Callers needing a different
// order assemble options in code instead.
func BuildOptions(sc *StackConfig) ([]any, error) {
	var opts []any

	if sc.RateLimit != nil && sectionEnabled(sc.RateLimit.Enabled) {
		opt, err := buildRateLimitOption(sc.RateLimit)
		if err != nil {
			return nil, err
		}

		opts = append(opts, opt)
	}

	if sc.CircuitBreaker != nil && sectionEnabled(sc.CircuitBreaker.Enabled) {
		opt, err := buildCircuitBreakerOption(sc.CircuitBreaker)
		if err != nil {
			return nil, err
		}

		opts = append(opts, opt)
	}

	if sc.Retry != nil && sectionEnabled(sc.Retry.Enabled) {
		opt, err := buildRetryOption(sc.Retry)
		if err != nil {
			return nil, err
		}

		opts = append(opts, opt)
	}

	if sc.Cache != nil && sectionEnabled(sc.Cache.Enabled) {
		opt, err := buildCacheOption(sc.Cache)
		if err != nil {
			return nil, err
		}

		opts = append(opts, opt)
	}

	return opts, nil
}

func buildRateLimitOption(rc *RateLimitConfig) (any, error) {
	if rc.MaxRequests <= 0 {
		return nil, fmt.Errorf(
			"%w: rate_limit.max_requests must be positive, got %d",
			ErrInvalidConfig,
			rc.MaxRequests,
		)
	}

	if rc.Window == "" {
		return nil, fmt.Errorf(
			"%w: rate_limit.window is required",
			ErrInvalidConfig,
		)
	}

	window, err := parseConfigDuration("rate_limit.window", rc.Window)
	if err != nil {
		return nil, err
	}

	if window <= 0 {
		return nil, fmt.Errorf(
			"%w: rate_limit.window must be positive, got %s",
			ErrInvalidConfig,
			window,
		)
	}

	return WithRateLimit(rc.MaxRequests, window), nil
}

func buildCircuitBreakerOption(cc *CircuitBreakerConfig) (any, error) {
	var cbOpts []CircuitBreakerOption

	if cc.FailureThreshold != nil {
		if *cc.FailureThreshold <= 0 {
			return nil, fmt.Errorf(
				"%w: circuit_breaker.failure_threshold must be positive, got %d",
				ErrInvalidConfig,
				*cc.FailureThreshold,
			)
		}

		cbOpts = append(cbOpts, FailureThreshold(*cc.FailureThreshold))
	}

	if cc.ResetTimeout != nil {
		reset, err := parseConfigDuration(
			"circuit_breaker.reset_timeout",
			*cc.ResetTimeout,
		)
		if err != nil {
			return nil, err
		}

		if reset <= 0 {
			return nil, fmt.Errorf(
				"%w: circuit_breaker.reset_timeout must be positive, got %s",
				ErrInvalidConfig,
				reset,
			)
		}

		cbOpts = append(cbOpts, ResetTimeout(reset))
	}

	return WithCircuitBreaker(cbOpts...), nil
}

func buildRetryOption(rc *RetryConfig) (any, error) {
	if rc.MaxAttempts == nil {
		return nil, fmt.Errorf(
			"%w: retry.max_attempts is required",
			ErrInvalidConfig,
		)
	}

	if *rc.MaxAttempts <= 0 {
		return nil, fmt.Errorf(
			"%w: retry.max_attempts must be positive, got %d",
			ErrInvalidConfig,
			*rc.MaxAttempts,
		)
	}

	strategy, err := parseBackoffStrategy(rc)
	if err != nil {
		return nil, err
	}

	var retryOpts []RetryOption

	if rc.AttemptTimeout != nil {
		attemptTimeout, atErr := parseConfigDuration(
			"retry.attempt_timeout",
			*rc.AttemptTimeout,
		)
		if atErr != nil {
			return nil, atErr
		}

		if attemptTimeout <= 0 {
			return nil, fmt.Errorf(
				"%w: retry.attempt_timeout must be positive, got %s",
				ErrInvalidConfig,
				attemptTimeout,
			)
		}

		retryOpts = append(retryOpts, AttemptTimeout(attemptTimeout))
	}

	return WithRetry(*rc.MaxAttempts, strategy, retryOpts...), nil
}

func buildCacheOption(cc *CacheConfig) (any, error) {
	if cc.TTL == "" {
		return nil, fmt.Errorf("%w: cache.ttl is required", ErrInvalidConfig)
	}

	ttl, err := parseConfigDuration("cache.ttl", cc.TTL)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		return nil, fmt.Errorf(
			"%w: cache.ttl must be positive, got %s",
			ErrInvalidConfig,
			ttl,
		)
	}

	if cc.MaxEntries < 0 {
		return nil, fmt.Errorf(
			"%w: cache.max_entries must not be negative, got %d",
			ErrInvalidConfig,
			cc.MaxEntries,
		)
	}

	if cc.MaxEntries > 0 {
		return WithCache(ttl, MaxEntries(cc.MaxEntries)), nil
	}

	return WithCache(ttl), nil
}

// parseBackoffStrategy maps a retry section to a BackoffStrategy. Backoff
// and base_delay are required; max_delay and jitter_fraction refine the
// exponential variants.
//
//nolint:ireturn // returns interface by design for strategy pattern
func parseBackoffStrategy(rc *RetryConfig) (BackoffStrategy, error) {
	if rc.Backoff == nil {
		return nil, fmt.Errorf(
			"%w: retry.backoff is required",
			ErrInvalidConfig,
		)
	}

	if rc.BaseDelay == nil {
		return nil, fmt.Errorf(
			"%w: retry.base_delay is required",
			ErrInvalidConfig,
		)
	}

	base, err := parseConfigDuration("retry.base_delay", *rc.BaseDelay)
	if err != nil {
		return nil, err
	}

	var maxDelay time.Duration

	if rc.MaxDelay != nil {
		maxDelay, err = parseConfigDuration("retry.max_delay", *rc.MaxDelay)
		if err != nil {
			return nil, err
		}
	}

	jitter := DefaultJitterFraction
	if rc.JitterFraction != nil {
		jitter = *rc.JitterFraction
		if jitter < 0 || jitter > 1 {
			return nil, fmt.Errorf(
				"%w: retry.jitter_fraction must be in [0, 1], got %g",
				ErrInvalidConfig,
				jitter,
			)
		}
	}

	switch *rc.Backoff {
	case "constant":
		return ConstantBackoff(base), nil
	case "linear":
		return LinearBackoff(base), nil
	case "exponential":
		return ExponentialBackoff(base, maxDelay), nil
	case "exponential_jitter":
		return ExponentialJitterBackoff(base, maxDelay, jitter), nil
	default:
		return nil, fmt.Errorf(
			"%w: unknown backoff strategy: %q",
			ErrInvalidConfig,
			*rc.Backoff,
		)
	}
}

// GetStack retrieves a named stack configuration from a config-loaded
// [Registry] and builds a typed [Stack] around invoker, registered with
// reg. If the name is not found in the stored configs, a bare stack is
// created with only the provided opts.
//
// Additional options can be provided to augment the config-loaded settings
// (e.g., adding hooks or a custom clock). Layer options given here nest
// inside the config-built layers; naming a layer the config already built
// fails with [ErrInvalidConfig].
func GetStack[R Request, T any](
	reg *Registry,
	name string,
	invoker Invoker[R, T],
	opts ...any,
) (*Stack[R, T], error) {
	reg.mu.Lock()
	sc, ok := reg.configs[name]
	reg.mu.Unlock()

	allOpts := []any{WithRegistry(reg)}

	if ok {
		configOpts, err := BuildOptions(&sc)
		if err != nil {
			return nil, fmt.Errorf("laminar: stack %q: %w", name, err)
		}

		allOpts = append(allOpts, configOpts...)
	}

	allOpts = append(allOpts, opts...)

	return New[R, T](name, invoker, allOpts...)
}
