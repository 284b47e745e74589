// Package ristretto provides an adapter for the Ristretto cache library,
// implementing the laminar.Store interface for use as a response cache
// backend.
package ristretto

import (
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/byte4ever/laminar"
)

type (
	// Key is the subset of ristretto.Key types that are also comparable,
	// required by the laminar.Store interface.
	Key interface {
		uint64 | string | byte | int | int32 | uint32 | int64
	}

	// adapter wraps a ristretto.Cache to implement laminar.Store.
	adapter[K Key, V any] struct {
		cache *ristretto.Cache[K, V]
	}
)

// MustNew creates a laminar.Store backed by a Ristretto cache holding at
// most maxEntries values. K must satisfy [Key] (comparable subset of
// ristretto key types). Ristretto recommends NumCounters = 10 * capacity
// for good admission accuracy. It panics if the underlying Ristretto cache
// cannot be built.
//
// Ristretto admits writes asynchronously, so a freshly stored response may
// not be readable immediately; the response cache treats that as a miss and
// re-invokes, which is safe for idempotent calls.
//
//nolint:ireturn,varnamelen // generic type params K,V are idiomatic in Go
func MustNew[K Key, V any](maxEntries int) laminar.Store[K, V] {
	// nolint:mnd // Ristretto recommends 10x capacity for num counters and
	// 64 buffer items.
	cache, err := ristretto.NewCache(&ristretto.Config[K, V]{
		NumCounters: int64(maxEntries) * 10,
		MaxCost:     int64(maxEntries),
		BufferItems: 64,
	})
	if err != nil {
		panic("laminar/ristretto: failed to build cache: " + err.Error())
	}

	return &adapter[K, V]{cache: cache}
}

// Get retrieves a cached value by key.
//
//nolint:ireturn // generic type parameter V, not an interface
func (a *adapter[K, V]) Get(key K) (V, bool) {
	return a.cache.Get(key)
}

// Set stores a value with the given TTL.
func (a *adapter[K, V]) Set(key K, value V, ttl time.Duration) {
	a.cache.SetWithTTL(key, value, 1, ttl)
}

// Delete removes a cached entry by key.
func (a *adapter[K, V]) Delete(key K) {
	a.cache.Del(key)
}
