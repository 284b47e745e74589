package laminar

// Request describes one logical call so that layers can key their state
// without inspecting payloads. The cache layer keys entries by CacheKey;
// the rate limiter and circuit breaker partition their state by Target.
//
// Implementations must be cheap: both methods are called on every stack
// invocation, and CacheKey must be stable for requests that may share a
// cached response.
type Request interface {
	// CacheKey returns the deduplication key for response caching.
	CacheKey() string
	// Target identifies the backend the request is bound for. Requests with
	// the same Target share rate-limit and circuit-breaker state.
	Target() string
}

// Keyed is a minimal [Request] for callers whose requests are fully
// described by a target and a cache key. It is a comparable value type,
// safe to copy and to use as a map key.
type Keyed struct {
	target   string
	cacheKey string
}

// NewKeyed returns a [Keyed] request bound for target, cached under key.
func NewKeyed(target, key string) Keyed {
	return Keyed{target: target, cacheKey: key}
}

// CacheKey returns the caching key supplied to [NewKeyed].
func (k Keyed) CacheKey() string { return k.cacheKey }

// Target returns the backend identifier supplied to [NewKeyed].
func (k Keyed) Target() string { return k.target }
