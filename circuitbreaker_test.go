package laminar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// stubClock — controllable clock for deterministic circuit breaker tests
// ---------------------------------------------------------------------------

type stubClock struct {
	mu      sync.Mutex
	now     time.Time
	elapsed time.Duration // returned by Since, regardless of argument
}

func (c *stubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *stubClock) Since(time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.elapsed
}

// NewTimer fires immediately so retry waits driven by a stubClock do not
// block tests.
func (c *stubClock) NewTimer(time.Duration) Timer {
	t := newTestTimer()
	t.fire()

	return t
}

// setElapsed sets the exact elapsed duration returned by Since.
func (c *stubClock) setElapsed(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.elapsed = d
}

// advance moves Now forward by d.
func (c *stubClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// tripBreaker drives target to the open state by recording failures up to
// the given threshold.
func tripBreaker(cb *CircuitBreaker, target string, threshold int) {
	for range threshold {
		cb.RecordFailure(target, false)
	}
}

// ---------------------------------------------------------------------------
// Closed state
// ---------------------------------------------------------------------------

func TestCircuitBreakerClosedAllowsCalls(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, nil, FailureThreshold(3))

	probe, err := cb.Allow("api")
	if err != nil {
		t.Fatalf("Allow() = %v, want nil in closed state", err)
	}

	if probe {
		t.Fatal("Allow() probe = true, want false in closed state")
	}

	if got := cb.State("api"); got != "closed" {
		t.Fatalf("State() = %q, want %q", got, "closed")
	}
}

func TestCircuitBreakerUnknownTargetReportsClosed(t *testing.T) {
	cb := NewCircuitBreaker(nil, nil)

	if got := cb.State("never-seen"); got != "closed" {
		t.Fatalf("State() = %q, want %q", got, "closed")
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, nil, FailureThreshold(3))

	// Two failures, then a success, then two more failures: the breaker
	// must stay closed because the streak was broken.
	cb.RecordFailure("api", false)
	cb.RecordFailure("api", false)
	cb.RecordSuccess("api", false)
	cb.RecordFailure("api", false)
	cb.RecordFailure("api", false)

	if got := cb.State("api"); got != "closed" {
		t.Fatalf("State() = %q, want %q after broken streak", got, "closed")
	}
}

// ---------------------------------------------------------------------------
// Closed → Open transition
// ---------------------------------------------------------------------------

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	clk := &stubClock{now: time.Now()}

	var opened atomic.Int32

	hooks := &Hooks{
		OnCircuitOpen: func(string) { opened.Add(1) },
	}
	cb := NewCircuitBreaker(clk, hooks, FailureThreshold(3))

	tripBreaker(cb, "api", 3)

	if got := cb.State("api"); got != "open" {
		t.Fatalf("State() = %q, want %q after 3 failures", got, "open")
	}

	if got := opened.Load(); got != 1 {
		t.Fatalf("OnCircuitOpen fired %d times, want 1", got)
	}
}

func TestCircuitBreakerOpenFailsFast(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(
		clk,
		nil,
		FailureThreshold(1),
		ResetTimeout(30*time.Second),
	)

	tripBreaker(cb, "api", 1)
	clk.setElapsed(10 * time.Second) // before reset timeout

	probe, err := cb.Allow("api")
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() = %v, want ErrCircuitOpen", err)
	}

	if probe {
		t.Fatal("Allow() probe = true, want false while open")
	}
}

func TestCircuitBreakerOpenTargetsSorted(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, nil, FailureThreshold(1))

	tripBreaker(cb, "zulu", 1)
	tripBreaker(cb, "alpha", 1)

	got := cb.OpenTargets()
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zulu" {
		t.Fatalf("OpenTargets() = %v, want [alpha zulu]", got)
	}
}

// ---------------------------------------------------------------------------
// Open → HalfOpen probe admission
// ---------------------------------------------------------------------------

func TestCircuitBreakerAdmitsProbeAfterResetTimeout(t *testing.T) {
	clk := &stubClock{now: time.Now()}

	var halfOpened atomic.Int32

	hooks := &Hooks{
		OnCircuitHalfOpen: func(string) { halfOpened.Add(1) },
	}
	cb := NewCircuitBreaker(
		clk,
		hooks,
		FailureThreshold(1),
		ResetTimeout(30*time.Second),
	)

	tripBreaker(cb, "api", 1)
	clk.setElapsed(30 * time.Second)

	probe, err := cb.Allow("api")
	if err != nil {
		t.Fatalf("Allow() = %v, want probe admission", err)
	}

	if !probe {
		t.Fatal("Allow() probe = false, want true after reset timeout")
	}

	if got := cb.State("api"); got != "half_open" {
		t.Fatalf("State() = %q, want %q", got, "half_open")
	}

	if got := halfOpened.Load(); got != 1 {
		t.Fatalf("OnCircuitHalfOpen fired %d times, want 1", got)
	}
}

func TestCircuitBreakerSingleProbeConcurrentCallersRejected(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(
		clk,
		nil,
		FailureThreshold(1),
		ResetTimeout(time.Second),
	)

	tripBreaker(cb, "api", 1)
	clk.setElapsed(time.Second)

	// Hammer Allow from many goroutines right at the eligibility boundary:
	// exactly one caller may win the probe slot.
	var probes, rejections atomic.Int32

	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			probe, err := cb.Allow("api")

			switch {
			case err == nil && probe:
				probes.Add(1)
			case errors.Is(err, ErrCircuitOpen):
				rejections.Add(1)
			default:
				t.Errorf("Allow() = probe=%v err=%v, want probe or rejection", probe, err)
			}
		}()
	}

	wg.Wait()

	if got := probes.Load(); got != 1 {
		t.Fatalf("admitted %d probes, want exactly 1", got)
	}

	if got := rejections.Load(); got != 49 {
		t.Fatalf("rejected %d callers, want 49", got)
	}
}

// ---------------------------------------------------------------------------
// HalfOpen outcomes
// ---------------------------------------------------------------------------

func TestCircuitBreakerProbeSuccessCloses(t *testing.T) {
	clk := &stubClock{now: time.Now()}

	var closed atomic.Int32

	hooks := &Hooks{
		OnCircuitClose: func(string) { closed.Add(1) },
	}
	cb := NewCircuitBreaker(
		clk,
		hooks,
		FailureThreshold(1),
		ResetTimeout(time.Second),
	)

	tripBreaker(cb, "api", 1)
	clk.setElapsed(time.Second)

	probe, err := cb.Allow("api")
	if err != nil || !probe {
		t.Fatalf("Allow() = probe=%v err=%v, want probe admission", probe, err)
	}

	cb.RecordSuccess("api", true)

	if got := cb.State("api"); got != "closed" {
		t.Fatalf("State() = %q, want %q after probe success", got, "closed")
	}

	if got := closed.Load(); got != 1 {
		t.Fatalf("OnCircuitClose fired %d times, want 1", got)
	}

	// The failure count was reset: one new failure must not reopen a
	// breaker whose threshold is 2.
	cb2 := NewCircuitBreaker(clk, nil, FailureThreshold(2), ResetTimeout(time.Second))
	tripBreaker(cb2, "api", 2)
	clk.setElapsed(time.Second)

	if _, err = cb2.Allow("api"); err != nil {
		t.Fatalf("Allow() = %v, want probe admission", err)
	}

	cb2.RecordSuccess("api", true)
	cb2.RecordFailure("api", false)

	if got := cb2.State("api"); got != "closed" {
		t.Fatalf("State() = %q, want %q: failure count was not reset", got, "closed")
	}
}

func TestCircuitBreakerProbeFailureReopens(t *testing.T) {
	start := time.Now()
	clk := &stubClock{now: start}
	cb := NewCircuitBreaker(
		clk,
		nil,
		FailureThreshold(1),
		ResetTimeout(time.Second),
	)

	tripBreaker(cb, "api", 1)
	clk.setElapsed(time.Second)

	probe, err := cb.Allow("api")
	if err != nil || !probe {
		t.Fatalf("Allow() = probe=%v err=%v, want probe admission", probe, err)
	}

	// Probe fails well after the original opening: openedAt restarts from
	// the probe's failure time, so the very next call is rejected again.
	clk.advance(10 * time.Second)
	cb.RecordFailure("api", true)

	if got := cb.State("api"); got != "open" {
		t.Fatalf("State() = %q, want %q after probe failure", got, "open")
	}

	clk.setElapsed(500 * time.Millisecond) // less than reset timeout again

	if _, err = cb.Allow("api"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow() = %v, want ErrCircuitOpen after reopening", err)
	}
}

func TestCircuitBreakerStragglerOutcomesIgnoredDuringProbe(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(
		clk,
		nil,
		FailureThreshold(1),
		ResetTimeout(time.Second),
	)

	tripBreaker(cb, "api", 1)
	clk.setElapsed(time.Second)

	if _, err := cb.Allow("api"); err != nil {
		t.Fatalf("Allow() = %v, want probe admission", err)
	}

	// A call admitted back when the breaker was closed completes now. Its
	// outcome says nothing about the probe and must not move the state.
	cb.RecordSuccess("api", false)

	if got := cb.State("api"); got != "half_open" {
		t.Fatalf("State() = %q, want %q after straggler success", got, "half_open")
	}

	cb.RecordFailure("api", false)

	if got := cb.State("api"); got != "half_open" {
		t.Fatalf("State() = %q, want %q after straggler failure", got, "half_open")
	}
}

func TestCircuitBreakerReleaseProbeReturnsToOpen(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(
		clk,
		nil,
		FailureThreshold(1),
		ResetTimeout(time.Second),
	)

	tripBreaker(cb, "api", 1)
	clk.setElapsed(time.Second)

	if _, err := cb.Allow("api"); err != nil {
		t.Fatalf("Allow() = %v, want probe admission", err)
	}

	// Cancelled probe: the slot is released without an outcome and the
	// next caller may probe immediately since openedAt is unchanged.
	cb.ReleaseProbe("api")

	if got := cb.State("api"); got != "open" {
		t.Fatalf("State() = %q, want %q after release", got, "open")
	}

	probe, err := cb.Allow("api")
	if err != nil || !probe {
		t.Fatalf("Allow() = probe=%v err=%v, want immediate re-probe", probe, err)
	}
}

func TestCircuitBreakerHalfOpenTargets(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(
		clk,
		nil,
		FailureThreshold(1),
		ResetTimeout(time.Second),
	)

	tripBreaker(cb, "api", 1)
	clk.setElapsed(time.Second)

	if _, err := cb.Allow("api"); err != nil {
		t.Fatalf("Allow() = %v, want probe admission", err)
	}

	got := cb.HalfOpenTargets()
	if len(got) != 1 || got[0] != "api" {
		t.Fatalf("HalfOpenTargets() = %v, want [api]", got)
	}
}

// ---------------------------------------------------------------------------
// Target isolation
// ---------------------------------------------------------------------------

func TestCircuitBreakerTargetsAreIndependent(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, nil, FailureThreshold(1))

	tripBreaker(cb, "payments", 1)

	if _, err := cb.Allow("payments"); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Allow(payments) = %v, want ErrCircuitOpen", err)
	}

	// An outage of one backend never rejects calls bound for another.
	if _, err := cb.Allow("inventory"); err != nil {
		t.Fatalf("Allow(inventory) = %v, want nil", err)
	}
}

func TestCircuitBreakerConcurrentFailuresOpenOnce(t *testing.T) {
	clk := &stubClock{now: time.Now()}

	var opened atomic.Int32

	hooks := &Hooks{
		OnCircuitOpen: func(string) { opened.Add(1) },
	}
	cb := NewCircuitBreaker(clk, hooks, FailureThreshold(50))

	var wg sync.WaitGroup

	for range 100 {
		wg.Add(1)

		go func() {
			defer wg.Done()
			cb.RecordFailure("api", false)
		}()
	}

	wg.Wait()

	if got := cb.State("api"); got != "open" {
		t.Fatalf("State() = %q, want %q", got, "open")
	}

	// No failure count may be lost under race, and the open transition
	// fires exactly once.
	if got := opened.Load(); got != 1 {
		t.Fatalf("OnCircuitOpen fired %d times, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// breakerIgnores
// ---------------------------------------------------------------------------

func TestBreakerIgnoresAdmissionAndCancellation(t *testing.T) {
	for _, err := range []error{
		ErrRateLimited,
		ErrCircuitOpen,
		context.Canceled,
	} {
		if !breakerIgnores(err) {
			t.Fatalf("breakerIgnores(%v) = false, want true", err)
		}
	}

	for _, err := range []error{
		errors.New("boom"),
		Transient(errors.New("timeout")),
		Permanent(errors.New("bad request")),
		context.DeadlineExceeded,
	} {
		if breakerIgnores(err) {
			t.Fatalf("breakerIgnores(%v) = true, want false", err)
		}
	}
}

// ---------------------------------------------------------------------------
// Benchmarks
// ---------------------------------------------------------------------------

func BenchmarkCircuitBreakerAllowClosed(b *testing.B) {
	cb := NewCircuitBreaker(nil, nil)

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = cb.Allow("api")
			cb.RecordSuccess("api", false)
		}
	})
}
