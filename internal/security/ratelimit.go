package security

import (
	"sync"
	"time"
)

// OperationClass groups operations that share a rate limit.
type OperationClass string

// Operation classes with distinct limits. Mutating operations are limited
// more tightly than read-only status checks.
const (
	OpClassMutate OperationClass = "mutate"
	OpClassRead   OperationClass = "read"
	OpClassSync   OperationClass = "sync"
	OpClassAdmin  OperationClass = "admin"
)

// ClassLimit is the sliding-window budget for one operation class.
type ClassLimit struct {
	Limit  int
	Window time.Duration
}

// DefaultClassLimits returns the per-class budgets applied when none are
// configured.
func DefaultClassLimits() map[OperationClass]ClassLimit {
	return map[OperationClass]ClassLimit{
		OpClassMutate: {Limit: 30, Window: time.Minute},
		OpClassRead:   {Limit: 120, Window: time.Minute},
		OpClassSync:   {Limit: 240, Window: time.Minute},
		OpClassAdmin:  {Limit: 10, Window: time.Minute},
	}
}

// Decision is the outcome of a rate-limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// RateLimiter applies sliding-window counters keyed by (player, class).
// It is constructed service state: build one per process and inject it,
// so tests can reset counters by constructing a fresh limiter.
type RateLimiter struct {
	mu       sync.Mutex
	limits   map[OperationClass]ClassLimit
	events   map[string][]time.Time
	timeFunc func() time.Time // Injectable for testing

	// suspicionWindow and suspicionHighWater drive DetectSuspiciousActivity:
	// total operations across all classes above the high-water mark within
	// the window flags the player for downstream alerting.
	suspicionWindow    time.Duration
	suspicionHighWater int
}

// NewRateLimiter creates a rate limiter with the given per-class limits.
// Nil limits fall back to DefaultClassLimits.
func NewRateLimiter(limits map[OperationClass]ClassLimit) *RateLimiter {
	if limits == nil {
		limits = DefaultClassLimits()
	}

	return &RateLimiter{
		limits:             limits,
		events:             make(map[string][]time.Time),
		timeFunc:           time.Now,
		suspicionWindow:    time.Minute,
		suspicionHighWater: 200,
	}
}

// SetTimeFunc overrides the limiter's clock for tests.
func (l *RateLimiter) SetTimeFunc(fn func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeFunc = fn
}

// Allow records one operation attempt and reports whether it fits the
// class's sliding window. Denied attempts are not recorded, so a banned
// caller's budget recovers as the window slides.
func (l *RateLimiter) Allow(playerID string, class OperationClass) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[class]
	if !ok || limit.Limit <= 0 {
		return Decision{Allowed: true}
	}

	now := l.timeFunc()
	key := playerID + "|" + string(class)
	cutoff := now.Add(-limit.Window)

	kept := l.events[key][:0]
	for _, at := range l.events[key] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	l.events[key] = kept

	if len(kept) >= limit.Limit {
		// The window frees a slot when its oldest event ages out.
		retryAfter := kept[0].Add(limit.Window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return Decision{Allowed: false, RetryAfter: retryAfter}
	}

	l.events[key] = append(kept, now)
	return Decision{Allowed: true}
}

// DetectSuspiciousActivity flags a player whose aggregate operation rate
// across every class exceeds the high-water mark, independent of any
// single class's limit. The flag is for alerting, not auto-blocking.
func (l *RateLimiter) DetectSuspiciousActivity(playerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.timeFunc()
	cutoff := now.Add(-l.suspicionWindow)

	total := 0
	for class := range l.limits {
		key := playerID + "|" + string(class)
		for _, at := range l.events[key] {
			if at.After(cutoff) {
				total++
			}
		}
	}

	return total > l.suspicionHighWater
}
