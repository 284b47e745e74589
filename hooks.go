package laminar

import "time"

// Hooks holds optional callback functions for resilience layer lifecycle
// events. All fields are nil by default; callers set only the hooks they care
// about. Once constructed, a Hooks value must not be mutated — emit methods
// read the function fields without synchronisation, which is safe as long as
// the struct is read-only after initialisation.
//
// Pattern: Observer — decouples resilience event emission from consumers
// (logging, metrics, alerting) without layers knowing about observers.
//
// Hooks run inline on the calling goroutine while no layer lock is held;
// slow hooks slow down calls, so keep them cheap or hand off asynchronously.
type Hooks struct {
	OnRetry           func(attempt int, delay time.Duration, err error)
	OnGiveUp          func(attempts int, err error)
	OnCircuitOpen     func(target string)
	OnCircuitClose    func(target string)
	OnCircuitHalfOpen func(target string)
	OnRateLimited     func(target string)
	OnCacheHit        func(key string)
	OnCacheMiss       func(key string)
	OnCacheRefreshed  func(key string)
}

func (h *Hooks) emitRetry(attempt int, delay time.Duration, err error) {
	if h.OnRetry != nil {
		h.OnRetry(attempt, delay, err)
	}
}

func (h *Hooks) emitGiveUp(attempts int, err error) {
	if h.OnGiveUp != nil {
		h.OnGiveUp(attempts, err)
	}
}

func (h *Hooks) emitCircuitOpen(target string) {
	if h.OnCircuitOpen != nil {
		h.OnCircuitOpen(target)
	}
}

func (h *Hooks) emitCircuitClose(target string) {
	if h.OnCircuitClose != nil {
		h.OnCircuitClose(target)
	}
}

func (h *Hooks) emitCircuitHalfOpen(target string) {
	if h.OnCircuitHalfOpen != nil {
		h.OnCircuitHalfOpen(target)
	}
}

func (h *Hooks) emitRateLimited(target string) {
	if h.OnRateLimited != nil {
		h.OnRateLimited(target)
	}
}

func (h *Hooks) emitCacheHit(key string) {
	if h.OnCacheHit != nil {
		h.OnCacheHit(key)
	}
}

func (h *Hooks) emitCacheMiss(key string) {
	if h.OnCacheMiss != nil {
		h.OnCacheMiss(key)
	}
}

func (h *Hooks) emitCacheRefreshed(key string) {
	if h.OnCacheRefreshed != nil {
		h.OnCacheRefreshed(key)
	}
}
