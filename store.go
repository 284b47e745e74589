package laminar

import (
	"container/heap"
	"sync"
	"time"
)

type (
	// Store is the interface cache backends must implement. TTL is passed
	// per Set call; the backend handles expiration. Implementations must be
	// safe for concurrent use.
	//
	// Adapter submodules provide Store implementations backed by ristretto,
	// otter, and redis; [MemoryStore] is the dependency-free default.
	Store[K comparable, V any] interface {
		// Get retrieves a live value by key. Returns the value and true if
		// found and not expired.
		Get(key K) (V, bool)
		// Set stores a value with the given TTL, replacing any prior entry.
		Set(key K, value V, ttl time.Duration)
		// Delete removes a cached entry by key.
		Delete(key K)
	}

	// MemoryStore is a mutex-guarded in-process [Store] with per-entry TTL
	// and a bounded entry count. Expired entries are dropped lazily on
	// access; when full, the entry closest to expiry is evicted first.
	MemoryStore[K comparable, V any] struct {
		clock      Clock
		maxEntries int

		mu       sync.Mutex
		entries  map[K]*memEntry[K, V]
		byExpiry expiryHeap[K, V]
	}

	// memEntry is one stored value plus its position in the expiry heap.
	memEntry[K comparable, V any] struct {
		key       K
		value     V
		expiresAt time.Time
		index     int
	}

	// expiryHeap orders entries by expiresAt, soonest first.
	expiryHeap[K comparable, V any] []*memEntry[K, V]
)

// NewMemoryStore creates a store holding at most maxEntries live entries.
// maxEntries of zero or less means unbounded. A nil clock defaults to
// [RealClock].
func NewMemoryStore[K comparable, V any](
	clock Clock,
	maxEntries int,
) *MemoryStore[K, V] {
	if clock == nil {
		clock = RealClock{}
	}

	return &MemoryStore[K, V]{
		clock:      clock,
		maxEntries: maxEntries,
		entries:    make(map[K]*memEntry[K, V]),
	}
}

// Get returns the live value stored under key. An expired entry is removed
// and reported as a miss.
func (s *MemoryStore[K, V]) Get(key K) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		var zero V

		return zero, false
	}

	if s.clock.Now().After(e.expiresAt) {
		s.removeLocked(e)

		var zero V

		return zero, false
	}

	return e.value, true
}

// Set stores value under key with the given TTL, replacing any prior entry.
// When the store is full it first drops entries that have already expired,
// then, if still full, evicts the live entry closest to expiry.
func (s *MemoryStore[K, V]) Set(key K, value V, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()

	if e, ok := s.entries[key]; ok {
		e.value = value
		e.expiresAt = now.Add(ttl)
		heap.Fix(&s.byExpiry, e.index)

		return
	}

	if s.maxEntries > 0 {
		for len(s.byExpiry) > 0 && now.After(s.byExpiry[0].expiresAt) {
			s.removeLocked(s.byExpiry[0])
		}

		if len(s.entries) >= s.maxEntries {
			s.removeLocked(s.byExpiry[0])
		}
	}

	e := &memEntry[K, V]{key: key, value: value, expiresAt: now.Add(ttl)}
	s.entries[key] = e
	heap.Push(&s.byExpiry, e)
}

// Delete removes the entry stored under key, if any.
func (s *MemoryStore[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.removeLocked(e)
	}
}

// Len returns the number of entries currently held, expired ones included
// until their lazy removal.
func (s *MemoryStore[K, V]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

func (s *MemoryStore[K, V]) removeLocked(e *memEntry[K, V]) {
	delete(s.entries, e.key)
	heap.Remove(&s.byExpiry, e.index)
}

// ---------------------------------------------------------------------------
// heap.Interface
// ---------------------------------------------------------------------------

func (h expiryHeap[K, V]) Len() int { return len(h) }

func (h expiryHeap[K, V]) Less(i, j int) bool {
	return h[i].expiresAt.Before(h[j].expiresAt)
}

func (h expiryHeap[K, V]) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *expiryHeap[K, V]) Push(x any) {
	e := x.(*memEntry[K, V])
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *expiryHeap[K, V]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return e
}
