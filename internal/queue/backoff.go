package queue

import (
	"math"
	"math/rand/v2"
	"time"
)

// Default backoff parameters. Chosen to be gentle on struggling sites:
// three attempts total with delays of 1s and 2s covers the common
// transient-failure window without stretching sessions unreasonably.
const (
	// DefaultMaxAttempts bounds total attempts including the first.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the delay before the first retry.
	DefaultBaseDelay = 1 * time.Second

	// DefaultMaxDelay caps the exponential growth.
	DefaultMaxDelay = 60 * time.Second

	// DefaultMultiplier doubles the delay on each retry.
	DefaultMultiplier = 2.0
)

// BackoffPolicy maps a retry number to a delay. It is a pure value type:
// methods never mutate it, and the same inputs always produce the same
// output unless jitter is enabled.
type BackoffPolicy struct {
	// MaxAttempts bounds total attempts including the first. A task whose
	// attempt count reaches this value is dead, not retrying.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed delay.
	MaxDelay time.Duration

	// Multiplier is the exponential growth factor. Ignored unless
	// Exponential is true.
	Multiplier float64

	// Exponential enables exponential growth. When false every retry
	// waits BaseDelay.
	Exponential bool

	// Jitter perturbs the computed delay by up to ± this fraction
	// (0 disables, 0.2 means ±20%). Spreads out retry storms when many
	// tasks fail at once.
	Jitter float64

	// randFloat is the jitter randomness source, injectable for tests.
	// Returns values in [0, 1). Nil means math/rand/v2.
	randFloat func() float64
}

// DefaultBackoffPolicy returns the policy used when the caller configures
// nothing: exponential, no jitter.
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Multiplier:  DefaultMultiplier,
		Exponential: true,
	}
}

// WithRandom returns a copy of the policy using fn as its jitter randomness
// source. fn must return values in [0, 1). Used by tests to make jitter
// deterministic.
func (p BackoffPolicy) WithRandom(fn func() float64) BackoffPolicy {
	p.randFloat = fn
	return p
}

// Delay computes the wait before a retry. retry is zero-indexed: the first
// retry passes 0 and waits BaseDelay (before jitter).
//
// With exponential backoff enabled the delay is
// min(BaseDelay × Multiplier^retry, MaxDelay); otherwise it is BaseDelay.
// Jitter, if configured, keeps the result within
// [delay×(1-Jitter), delay×(1+Jitter)] and never below zero.
func (p BackoffPolicy) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}

	delay := p.BaseDelay
	if p.Exponential {
		scaled := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(retry))
		if scaled > float64(p.MaxDelay) || math.IsInf(scaled, 1) {
			delay = p.MaxDelay
		} else {
			delay = time.Duration(scaled)
		}
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	if p.Jitter > 0 {
		rnd := p.randFloat
		if rnd == nil {
			rnd = rand.Float64
		}
		// Uniform in [-Jitter, +Jitter].
		factor := 1 + p.Jitter*(2*rnd()-1)
		delay = time.Duration(float64(delay) * factor)
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

// Exhausted reports whether a task with the given attempt count has used up
// its budget and must not be retried.
func (p BackoffPolicy) Exhausted(attemptCount int) bool {
	return attemptCount >= p.MaxAttempts
}
