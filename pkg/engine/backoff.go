package engine

import (
	"math"
	"math/rand"
	"time"
)

// RetryOptions controls the retry loop of the resilient step runner.
type RetryOptions struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
}

// DefaultRetryOptions are the baseline retry settings; the dimensions and
// secondary stages override MaxAttempts to 4.
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
	}
}

// BackoffPolicy computes retry delays with exponential growth and jitter.
// The zero-value rng falls back to the shared math/rand source; tests inject
// a seeded source for determinism.
type BackoffPolicy struct {
	opts RetryOptions
	rng  *rand.Rand
}

// NewBackoffPolicy creates a policy over the given options. rng may be nil.
func NewBackoffPolicy(opts RetryOptions, rng *rand.Rand) *BackoffPolicy {
	return &BackoffPolicy{opts: opts, rng: rng}
}

// Delay returns the sleep before retry number attempt (1-based):
// min(maxDelay, initialDelay × multiplier^(attempt−1) + jitter), where jitter
// is uniform in [0, 0.25 × exponential).
func (b *BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	exp := float64(b.opts.InitialDelay) * math.Pow(b.opts.BackoffMultiplier, float64(attempt-1))
	jitter := 0.25 * exp * b.float64()
	d := time.Duration(exp + jitter)
	if d > b.opts.MaxDelay {
		d = b.opts.MaxDelay
	}
	return d
}

func (b *BackoffPolicy) float64() float64 {
	if b.rng != nil {
		return b.rng.Float64()
	}
	return rand.Float64()
}
