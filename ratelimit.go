package laminar

import (
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// RateLimiter
// ---------------------------------------------------------------------------

type (
	// RateLimiter bounds how many calls may start against each target
	// within any sliding window of the configured length. Admission is
	// non-blocking: a call over the limit is rejected immediately with
	// [ErrRateLimited] rather than queued.
	//
	// Pattern: Rate Limiter — sliding window over call timestamps, keyed
	// by target so a chatty backend cannot starve the others.
	RateLimiter struct {
		maxRequests int
		window      time.Duration
		clock       Clock
		hooks       *Hooks

		mu      sync.RWMutex
		targets map[string]*targetWindow
	}

	// targetWindow holds one target's admission timestamps, oldest first.
	// Its length never exceeds maxRequests: rejected calls are not
	// recorded and admission prunes before it appends.
	targetWindow struct {
		mu     sync.Mutex
		stamps []time.Time
	}
)

// NewRateLimiter creates a rate limiter admitting at most maxRequests calls
// per target within any window-long interval. A nil clock defaults to
// [RealClock]; a nil hooks suppresses events.
func NewRateLimiter(
	maxRequests int,
	window time.Duration,
	clock Clock,
	hooks *Hooks,
) *RateLimiter {
	if clock == nil {
		clock = RealClock{}
	}

	if hooks == nil {
		hooks = &Hooks{}
	}

	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		clock:       clock,
		hooks:       hooks,
		targets:     make(map[string]*targetWindow),
	}
}

// windowFor returns the window for target, creating it on first use.
func (rl *RateLimiter) windowFor(target string) *targetWindow {
	rl.mu.RLock()
	w, ok := rl.targets[target]
	rl.mu.RUnlock()

	if ok {
		return w
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if w, ok = rl.targets[target]; ok {
		return w
	}

	w = &targetWindow{}
	rl.targets[target] = w

	return w
}

// Allow admits or rejects one call to target. On admission the call is
// recorded against the window; on rejection nothing is recorded, so
// rejected calls never consume capacity.
func (rl *RateLimiter) Allow(target string) error {
	w := rl.windowFor(target)

	w.mu.Lock()
	defer w.mu.Unlock()

	now := rl.clock.Now()
	w.prune(now.Add(-rl.window))

	if len(w.stamps) >= rl.maxRequests {
		rl.hooks.emitRateLimited(target)

		return ErrRateLimited
	}

	w.stamps = append(w.stamps, now)

	return nil
}

// Saturated reports whether any target is currently at capacity.
func (rl *RateLimiter) Saturated() bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	cutoff := rl.clock.Now().Add(-rl.window)

	for _, w := range rl.targets {
		w.mu.Lock()
		w.prune(cutoff)
		full := len(w.stamps) >= rl.maxRequests
		w.mu.Unlock()

		if full {
			return true
		}
	}

	return false
}

// prune drops timestamps older than cutoff. Stamps are appended in clock
// order, so the survivors are a suffix.
func (w *targetWindow) prune(cutoff time.Time) {
	drop := 0
	for drop < len(w.stamps) && w.stamps[drop].Before(cutoff) {
		drop++
	}

	if drop > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[drop:]...)
	}
}
