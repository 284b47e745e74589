// Package zerolog wires laminar lifecycle events to a zerolog
// logger, giving every stack structured logs for retries, circuit
// transitions, rate limiting, and cache activity without the stacks
// knowing anything about logging.
package zerolog

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/byte4ever/laminar"
)

// Hooks returns a laminar.Hooks value whose callbacks log every
// lifecycle event on logger, each event tagged with the stack name.
//
// Severity mapping: circuit opens and give-ups are errors, retries
// and rate limiting are warnings, recovery transitions are info,
// cache activity is debug.
func Hooks(logger zerolog.Logger, stack string) laminar.Hooks {
	log := logger.With().Str("stack", stack).Logger()

	return laminar.Hooks{
		OnRetry: func(attempt int, delay time.Duration, err error) {
			log.Warn().
				Int("attempt", attempt).
				Dur("delay", delay).
				Err(err).
				Msg("retrying after transient failure")
		},
		OnGiveUp: func(attempts int, err error) {
			log.Error().
				Int("attempts", attempts).
				Err(err).
				Msg("retry budget exhausted")
		},
		OnCircuitOpen: func(target string) {
			log.Error().
				Str("target", target).
				Msg("circuit opened")
		},
		OnCircuitClose: func(target string) {
			log.Info().
				Str("target", target).
				Msg("circuit closed")
		},
		OnCircuitHalfOpen: func(target string) {
			log.Info().
				Str("target", target).
				Msg("circuit half-open, probing")
		},
		OnRateLimited: func(target string) {
			log.Warn().
				Str("target", target).
				Msg("rate limited")
		},
		OnCacheHit: func(key string) {
			log.Debug().
				Str("key", key).
				Msg("cache hit")
		},
		OnCacheMiss: func(key string) {
			log.Debug().
				Str("key", key).
				Msg("cache miss")
		},
		OnCacheRefreshed: func(key string) {
			log.Debug().
				Str("key", key).
				Msg("cache refreshed")
		},
	}
}
