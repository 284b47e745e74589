package laminar

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------.

type (
	circuitBreakerConfig struct {
		failureThreshold int
		resetTimeout     time.Duration
	}

	// CircuitBreakerOption configures a circuit breaker.
	CircuitBreakerOption func(*circuitBreakerConfig)

	// CircuitBreaker tracks the health of backends and fails fast when one
	// is down. State is partitioned by target: an outage of one backend
	// never rejects calls bound for another.
	//
	// Pattern: Circuit Breaker — fast-fails calls to unhealthy downstream;
	// auto-recovers via a single half-open probe after the reset timeout.
	// Each target is guarded by its own mutex, held only for state
	// transitions and never across the protected call itself.
	CircuitBreaker struct {
		clock Clock
		hooks *Hooks
		cfg   circuitBreakerConfig

		mu      sync.RWMutex
		targets map[string]*breakerState
	}

	// breakerState is the per-target state machine.
	breakerState struct {
		mu       sync.Mutex
		status   uint32 // stateClosed | stateOpen | stateHalfOpen
		failures int
		openedAt time.Time
		probing  bool // a half-open probe is in flight
	}
)

// Circuit breaker states.
const (
	stateClosed   uint32 = 0
	stateOpen     uint32 = 1
	stateHalfOpen uint32 = 2
)

func defaultCircuitBreakerConfig() circuitBreakerConfig {
	return circuitBreakerConfig{
		failureThreshold: 5,
		resetTimeout:     30 * time.Second,
	}
}

// FailureThreshold sets the number of consecutive failures before opening.
func FailureThreshold(n int) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.failureThreshold = n
	}
}

// ResetTimeout sets how long an open target waits before admitting a
// half-open probe.
func ResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.resetTimeout = d
	}
}

// NewCircuitBreaker creates a circuit breaker with the given options.
// A nil clock defaults to [RealClock]; a nil hooks suppresses events.
func NewCircuitBreaker(
	clock Clock,
	hooks *Hooks,
	opts ...CircuitBreakerOption,
) *CircuitBreaker {
	cfg := defaultCircuitBreakerConfig()
	for _, o := range opts {
		o(&cfg)
	}

	if clock == nil {
		clock = RealClock{}
	}

	if hooks == nil {
		hooks = &Hooks{}
	}

	return &CircuitBreaker{
		clock:   clock,
		hooks:   hooks,
		cfg:     cfg,
		targets: make(map[string]*breakerState),
	}
}

// stateFor returns the state machine for target, creating it on first use.
func (cb *CircuitBreaker) stateFor(target string) *breakerState {
	cb.mu.RLock()
	st, ok := cb.targets[target]
	cb.mu.RUnlock()

	if ok {
		return st
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	// Recheck: another goroutine may have created it between the locks.
	if st, ok = cb.targets[target]; ok {
		return st
	}

	st = &breakerState{}
	cb.targets[target] = st

	return st
}

// Allow checks whether a call to target should proceed. It returns
// probe=true when this call has been admitted as the single half-open
// probe; the caller must hand that flag back through [RecordSuccess],
// [RecordFailure], or [ReleaseProbe]. It returns [ErrCircuitOpen] while
// the target is open or while another probe is already in flight.
func (cb *CircuitBreaker) Allow(target string) (probe bool, err error) {
	st := cb.stateFor(target)

	st.mu.Lock()
	defer st.mu.Unlock()

	switch st.status {
	case stateOpen:
		if cb.clock.Since(st.openedAt) < cb.cfg.resetTimeout {
			return false, ErrCircuitOpen
		}

		// Reset timeout elapsed: this caller becomes the probe. Holding
		// st.mu makes the transition atomic, so concurrent callers keep
		// seeing half-open and fail fast below.
		st.status = stateHalfOpen
		st.probing = true
		cb.hooks.emitCircuitHalfOpen(target)

		return true, nil

	case stateHalfOpen:
		// A probe is in flight; everyone else fails fast.
		return false, ErrCircuitOpen

	default: // stateClosed
		return false, nil
	}
}

// RecordSuccess records a successful call to target. probe must be the flag
// returned by the [Allow] that admitted the call.
func (cb *CircuitBreaker) RecordSuccess(target string, probe bool) {
	st := cb.stateFor(target)

	st.mu.Lock()
	defer st.mu.Unlock()

	switch st.status {
	case stateClosed:
		// Reset the consecutive-failure count on success.
		st.failures = 0

	case stateHalfOpen:
		if !probe {
			// Straggler admitted before the target opened; only the probe
			// outcome decides recovery.
			return
		}

		st.status = stateClosed
		st.failures = 0
		st.probing = false
		cb.hooks.emitCircuitClose(target)

	default:
		// stateOpen — stale outcome, no action on success
	}
}

// RecordFailure records a failed call to target. probe must be the flag
// returned by the [Allow] that admitted the call.
func (cb *CircuitBreaker) RecordFailure(target string, probe bool) {
	st := cb.stateFor(target)

	st.mu.Lock()
	defer st.mu.Unlock()

	switch st.status {
	case stateClosed:
		st.failures++
		if st.failures < cb.cfg.failureThreshold {
			break
		}

		st.status = stateOpen
		st.openedAt = cb.clock.Now()
		cb.hooks.emitCircuitOpen(target)

	case stateHalfOpen:
		if !probe {
			// Straggler failure while the probe is out; ignored.
			return
		}

		// Probe failed: reopen and restart the reset timeout from now.
		st.status = stateOpen
		st.openedAt = cb.clock.Now()
		st.probing = false
		cb.hooks.emitCircuitOpen(target)

	default:
		// stateOpen — already open; openedAt keeps its original value so
		// stragglers cannot extend the outage window.
	}
}

// ReleaseProbe returns target's probe slot without recording an outcome.
// Call it when the probe ended for reasons that say nothing about backend
// health, such as caller cancellation. The target reverts to open with its
// original openedAt, so the next caller may probe immediately.
func (cb *CircuitBreaker) ReleaseProbe(target string) {
	st := cb.stateFor(target)

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.status == stateHalfOpen && st.probing {
		st.status = stateOpen
		st.probing = false
	}
}

// State returns target's current state as a string: "closed", "open", or
// "half_open". Targets never seen before report "closed".
func (cb *CircuitBreaker) State(target string) string {
	cb.mu.RLock()
	st, ok := cb.targets[target]
	cb.mu.RUnlock()

	if !ok {
		return "closed"
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	switch st.status {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// OpenTargets returns the sorted names of targets currently open.
func (cb *CircuitBreaker) OpenTargets() []string {
	return cb.targetsIn(stateOpen)
}

// HalfOpenTargets returns the sorted names of targets currently probing.
func (cb *CircuitBreaker) HalfOpenTargets() []string {
	return cb.targetsIn(stateHalfOpen)
}

func (cb *CircuitBreaker) targetsIn(status uint32) []string {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	var names []string

	for name, st := range cb.targets {
		st.mu.Lock()
		match := st.status == status
		st.mu.Unlock()

		if match {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// breakerIgnores reports whether err says nothing about backend health.
// Admission rejections never reached the backend, and a cancelled caller
// is not a backend failure; neither may move the breaker.
func breakerIgnores(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, context.Canceled)
}
