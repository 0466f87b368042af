package guard

import (
	"sync"
	"time"
)

// RateLimiter enforces a per-tenant sliding window over review triggers.
// Timestamps older than the window are discarded on each check, so memory
// stays proportional to recent activity.
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	stamps map[string][]time.Time
	now    func() time.Time
}

// NewRateLimiter creates a limiter allowing max events per tenant within
// the given window. A max of zero disables limiting.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		window: window,
		max:    max,
		stamps: make(map[string][]time.Time),
		now:    time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (r *RateLimiter) SetNowFunc(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Allow reports whether the tenant may trigger another review, and when not,
// how long until the oldest in-window event falls out of the window.
func (r *RateLimiter) Allow(tenant string) (bool, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max <= 0 {
		return true, 0
	}

	kept := r.prune(tenant)
	if len(kept) < r.max {
		return true, 0
	}

	retryAfter := kept[0].Add(r.window).Sub(r.now())
	if retryAfter < 0 {
		retryAfter = 0
	}
	return false, retryAfter
}

// Record registers a review trigger for the tenant.
func (r *RateLimiter) Record(tenant string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.max <= 0 {
		return
	}
	r.stamps[tenant] = append(r.prune(tenant), r.now())
}

// prune drops timestamps outside the window. Caller must hold the lock.
func (r *RateLimiter) prune(tenant string) []time.Time {
	cutoff := r.now().Add(-r.window)
	stamps := r.stamps[tenant]

	kept := stamps[:0]
	for _, stamp := range stamps {
		if stamp.After(cutoff) {
			kept = append(kept, stamp)
		}
	}
	if len(kept) == 0 {
		delete(r.stamps, tenant)
		return nil
	}
	r.stamps[tenant] = kept
	return kept
}
