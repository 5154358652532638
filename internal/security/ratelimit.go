package security

import (
	"sync"
	"time"
)

// RateLimiter is an in-memory sliding-window request limiter keyed by
// caller identity (IP or IP+route). For multi-instance deployments the
// state is per-instance; a shared store behind the same interface is a
// deployment concern.
type RateLimiter struct {
	maxRequests int
	window      time.Duration

	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
}

// RateLimiterOption configures a RateLimiter
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterClock overrides the wall clock, for deterministic tests
func WithRateLimiterClock(now func() time.Time) RateLimiterOption {
	return func(rl *RateLimiter) {
		rl.now = now
	}
}

// NewRateLimiter creates a limiter allowing maxRequests per trailing window.
func NewRateLimiter(maxRequests int, window time.Duration, opts ...RateLimiterOption) *RateLimiter {
	rl := &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(rl)
	}
	return rl
}

// Check reports whether the identifier is currently rate limited and
// how many requests remain in the window. A non-limited call is
// recorded; a limited call is not.
func (rl *RateLimiter) Check(identifier string) (limited bool, remaining int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	valid := pruneBefore(rl.requests[identifier], cutoff)
	rl.requests[identifier] = valid

	if len(valid) >= rl.maxRequests {
		return true, 0
	}

	rl.requests[identifier] = append(valid, now)
	return false, rl.maxRequests - len(valid) - 1
}

// ResetTime returns the seconds until the oldest recorded request for
// the identifier exits the window. Zero when nothing is recorded.
func (rl *RateLimiter) ResetTime(identifier string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	timestamps := rl.requests[identifier]
	if len(timestamps) == 0 {
		return 0
	}

	oldest := timestamps[0]
	for _, ts := range timestamps[1:] {
		if ts.Before(oldest) {
			oldest = ts
		}
	}

	resetIn := oldest.Add(rl.window).Sub(rl.now())
	if resetIn < 0 {
		return 0
	}
	return int(resetIn.Seconds())
}

// Sweep drops aged-out timestamps and removes identifiers whose
// sequence became empty, bounding memory under low-traffic churn.
// Meant to be driven by the background cleanup loop.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, timestamps := range rl.requests {
		valid := pruneBefore(timestamps, cutoff)
		if len(valid) == 0 {
			delete(rl.requests, key)
		} else {
			rl.requests[key] = valid
		}
	}
}

// TrackedIdentifiers reports how many identifiers currently hold state.
func (rl *RateLimiter) TrackedIdentifiers() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requests)
}

// pruneBefore keeps only timestamps strictly after the cutoff.
func pruneBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(cutoff) {
			valid = append(valid, ts)
		}
	}
	return valid
}
