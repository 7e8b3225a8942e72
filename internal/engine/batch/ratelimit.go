package batch

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter enforces a fixed minimum interval between successive remote
// actions against one downstream service. It is not a token bucket: the
// remote action has a single known rate ceiling.
type RateLimiter struct {
	interval time.Duration
	clock    clockwork.Clock

	mu   sync.Mutex
	last time.Time
}

// NewRateLimiter creates a limiter with the given interval. A nil clock uses
// the real clock. Negative intervals are treated as zero.
func NewRateLimiter(interval time.Duration, clock clockwork.Clock) *RateLimiter {
	if interval < 0 {
		interval = 0
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{interval: interval, clock: clock}
}

// Interval returns the configured minimum interval.
func (r *RateLimiter) Interval() time.Duration {
	return r.interval
}

// Wait blocks until at least the configured interval has elapsed since the
// last Mark, that is since the previous action finished. Before the first
// Mark it returns immediately.
//
// It returns false when ctx ends the wait early. It never fails otherwise.
func (r *RateLimiter) Wait(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last.IsZero() {
		return true
	}
	remaining := r.interval - r.clock.Since(r.last)
	if remaining <= 0 {
		return true
	}

	timer := r.clock.NewTimer(remaining)
	select {
	case <-ctx.Done():
		timer.Stop()
		return false
	case <-timer.Chan():
		return true
	}
}

// Mark records that an action has just finished, successful or not. The
// next Wait measures the full interval from this point.
func (r *RateLimiter) Mark() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = r.clock.Now()
}
