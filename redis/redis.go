// Package redis provides a Redis-backed implementation of the
// laminar.Store interface, so cached responses survive process
// restarts and are shared across instances.
//
// Values are serialized as JSON. A lookup or write that fails at the
// Redis level degrades to a cache miss rather than surfacing an
// error: the store is a cache, and the stack falls through to the
// real invoker on a miss.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/byte4ever/laminar"
)

// DefaultTimeout bounds each Redis round trip when no explicit
// timeout is configured.
const DefaultTimeout = 250 * time.Millisecond

// Option configures a Store.
type Option func(*settings)

type settings struct {
	prefix  string
	timeout time.Duration
}

// KeyPrefix namespaces every key with prefix followed by a colon,
// so multiple stacks can share one Redis database.
func KeyPrefix(prefix string) Option {
	return func(s *settings) {
		s.prefix = prefix
	}
}

// Timeout bounds each Redis round trip. Zero or negative values
// fall back to DefaultTimeout.
func Timeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// store adapts a go-redis client to laminar.Store.
type store[V any] struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// New creates a laminar.Store backed by the given Redis client.
//
//nolint:ireturn,varnamelen // generic type param V is idiomatic in Go
func New[V any](
	client redis.UniversalClient,
	opts ...Option,
) laminar.Store[string, V] {
	cfg := settings{timeout: DefaultTimeout}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout <= 0 {
		cfg.timeout = DefaultTimeout
	}

	return &store[V]{
		client:  client,
		prefix:  cfg.prefix,
		timeout: cfg.timeout,
	}
}

func (s *store[V]) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}

	return s.prefix + ":" + key
}

// Get retrieves a cached value by key. Missing keys, Redis errors,
// and undecodable payloads all report a miss.
//
//nolint:ireturn // generic type parameter V, not an interface
func (s *store[V]) Get(key string) (V, bool) {
	var zero V

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	raw, err := s.client.Get(ctx, s.fullKey(key)).Bytes()
	if err != nil {
		return zero, false
	}

	var val V
	if err := json.Unmarshal(raw, &val); err != nil {
		return zero, false
	}

	return val, true
}

// Set stores a value with the given TTL. Serialization or Redis
// failures leave the previous entry (if any) in place.
func (s *store[V]) Set(key string, value V, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.client.Set(ctx, s.fullKey(key), data, ttl)
}

// Delete removes a cached entry by key.
func (s *store[V]) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.client.Del(ctx, s.fullKey(key))
}

// IsMiss reports whether err is the go-redis missing-key sentinel.
// Exposed for callers using the client directly alongside the store.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}
