package telemetry

import (
	"sync"
	"time"
)

// RateLimiter lets at most one action through per interval. The self-logger
// uses it so an unavailable backend cannot flood the console with errors.
type RateLimiter struct {
	interval   time.Duration
	lastTime   time.Time
	suppressed int64
	now        func() time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		now:      time.Now,
	}
}

// Allow returns true if an action is allowed based on rate limiting
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.lastTime.IsZero() || now.Sub(r.lastTime) >= r.interval {
		r.lastTime = now
		return true
	}
	r.suppressed++
	return false
}

// TakeSuppressed returns how many actions were refused since the last call.
func (r *RateLimiter) TakeSuppressed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.suppressed
	r.suppressed = 0
	return n
}
