// Package ratelimit keeps per-caller sliding windows in memory. Admin
// requests are keyed by principal, sign-in attempts by client IP.
package ratelimit

import (
	"sync"
	"time"
)

const (
	cleanupEvery = 5 * time.Minute
	staleAfter   = 15 * time.Minute
)

// Decision is the outcome of one rate check
type Decision struct {
	Allowed bool
	// RetryAfter is how long until the oldest counted request leaves the
	// window; zero when Allowed
	RetryAfter time.Duration
}

// Limiter is a sliding-window request limiter keyed by caller
type Limiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	seen    map[string]time.Time
	maxReqs int
	window  time.Duration
	now     func() time.Time
	done    chan struct{}
	stop    sync.Once
}

// NewLimiter allows maxRequests per window for each key passed to Allow
func NewLimiter(maxRequests int, window time.Duration) *Limiter {
	l := &Limiter{
		windows: make(map[string][]time.Time),
		seen:    make(map[string]time.Time),
		maxReqs: maxRequests,
		window:  window,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go l.evictStale()
	return l
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for the Retry-After
// header. It is at least 1 for a denied decision.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Take records a request for key against the limiter's default budget.
// An empty key is never limited.
func (l *Limiter) Take(key string) Decision {
	return l.Check(key, l.maxReqs, l.window)
}

// Allow is Take without the retry hint
func (l *Limiter) Allow(key string) bool {
	return l.Take(key).Allowed
}

// Check records a request for key against a budget of maxReqs per window.
// Callers with their own budget should namespace key ("login:<ip>").
func (l *Limiter) Check(key string, maxReqs int, window time.Duration) Decision {
	if key == "" {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-window)
	reqs := l.windows[key]
	i := 0
	for i < len(reqs) && !reqs[i].After(cutoff) {
		i++
	}
	reqs = reqs[i:]
	l.seen[key] = now

	if len(reqs) >= maxReqs {
		l.windows[key] = reqs
		return Decision{RetryAfter: reqs[0].Sub(cutoff)}
	}
	l.windows[key] = append(reqs, now)
	return Decision{Allowed: true}
}

func (l *Limiter) evictStale() {
	ticker := time.NewTicker(cleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			l.evict(l.now().Add(-staleAfter))
		}
	}
}

func (l *Limiter) evict(before time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, last := range l.seen {
		if last.Before(before) {
			delete(l.seen, key)
			delete(l.windows, key)
		}
	}
}

// Stop ends the background eviction loop. It is safe to call twice.
func (l *Limiter) Stop() {
	l.stop.Do(func() { close(l.done) })
}
