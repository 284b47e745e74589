package laminar

import (
	"math"
	"math/rand/v2"
	"time"
)

// DefaultJitterFraction is the jitter fraction applied when a configuration
// does not specify one.
const DefaultJitterFraction = 0.1

// BackoffStrategy determines the delay between retry attempts.
//
// Pattern: Strategy — swap backoff algorithms (constant, exponential, linear,
// jitter) without changing retry logic.
type BackoffStrategy interface {
	// Delay returns the duration to wait before the given retry attempt
	// (0-indexed: attempt 0 is the delay before the first retry).
	Delay(attempt int) time.Duration
}

// ---------------------------------------------------------------------------
// BackoffFunc — adapter for plain functions
// ---------------------------------------------------------------------------

// BackoffFunc adapts an ordinary function into a [BackoffStrategy].
// This allows callers to provide ad-hoc backoff logic without defining a type.
type BackoffFunc func(attempt int) time.Duration

// Delay calls the underlying function.
func (f BackoffFunc) Delay(attempt int) time.Duration { return f(attempt) }

// ---------------------------------------------------------------------------
// ConstantBackoff
// ---------------------------------------------------------------------------

// constantBackoff returns the same delay for every attempt.
type constantBackoff struct {
	d time.Duration
}

func (b *constantBackoff) Delay(_ int) time.Duration { return b.d }

// ConstantBackoff returns a [BackoffStrategy] that always returns a fixed
// delay d regardless of the attempt number.
func ConstantBackoff(d time.Duration) BackoffStrategy {
	return &constantBackoff{d: d}
}

// ---------------------------------------------------------------------------
// LinearBackoff
// ---------------------------------------------------------------------------

// linearBackoff returns step * (attempt + 1).
type linearBackoff struct {
	step time.Duration
}

func (b *linearBackoff) Delay(attempt int) time.Duration {
	return b.step * time.Duration(attempt+1)
}

// LinearBackoff returns a [BackoffStrategy] whose delay increases linearly:
// step * (attempt + 1).
func LinearBackoff(step time.Duration) BackoffStrategy {
	return &linearBackoff{step: step}
}

// ---------------------------------------------------------------------------
// ExponentialBackoff
// ---------------------------------------------------------------------------

// exponentialBackoff returns min(base * 2^attempt, max).
type exponentialBackoff struct {
	base time.Duration
	max  time.Duration
}

func (b *exponentialBackoff) Delay(attempt int) time.Duration {
	d := float64(b.base) * math.Pow(2, float64(attempt))
	if b.max > 0 && d > float64(b.max) {
		return b.max
	}

	return time.Duration(d)
}

// ExponentialBackoff returns a [BackoffStrategy] whose delay doubles with
// each attempt and is capped at max: min(base * 2^attempt, max). A max of
// zero or less disables the cap.
func ExponentialBackoff(base, max time.Duration) BackoffStrategy {
	return &exponentialBackoff{base: base, max: max}
}

// ---------------------------------------------------------------------------
// ExponentialJitterBackoff
// ---------------------------------------------------------------------------

// exponentialJitterBackoff adds a random slice of the capped exponential
// delay on top of it, so the result lies in [d, d + jitter*d].
type exponentialJitterBackoff struct {
	exp    exponentialBackoff
	jitter float64
}

func (b *exponentialJitterBackoff) Delay(attempt int) time.Duration {
	d := b.exp.Delay(attempt)

	span := int64(b.jitter * float64(d))
	if span <= 0 {
		return d
	}

	return d + time.Duration(rand.Int64N(span+1))
}

// ExponentialJitterBackoff returns a [BackoffStrategy] whose delay is the
// capped exponential delay min(base * 2^attempt, max) plus a uniformly random
// jitter in [0, jitter * delay]. Spreading retries across time like this
// keeps synchronized clients from hammering a recovering backend in lockstep.
//
// The jitter fraction is clamped to [0, 1]; use [DefaultJitterFraction] for
// the standard 10%.
func ExponentialJitterBackoff(
	base, max time.Duration,
	jitter float64,
) BackoffStrategy {
	return &exponentialJitterBackoff{
		exp:    exponentialBackoff{base: base, max: max},
		jitter: math.Min(math.Max(jitter, 0), 1),
	}
}
