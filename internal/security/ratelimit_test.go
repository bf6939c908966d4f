package security

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_WindowBoundary(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(map[OperationClass]ClassLimit{
		OpClassMutate: {Limit: 5, Window: time.Minute},
	})

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	limiter.SetTimeFunc(func() time.Time { return now })

	// Exactly the limit is allowed.
	for i := 0; i < 5; i++ {
		decision := limiter.Allow("player-1", OpClassMutate)
		assert.True(t, decision.Allowed, "attempt %d should be allowed", i+1)
	}

	// The next attempt is rejected with a positive retry hint.
	decision := limiter.Allow("player-1", OpClassMutate)
	assert.False(t, decision.Allowed)
	assert.Greater(t, decision.RetryAfter, time.Duration(0))

	// Other players are unaffected.
	assert.True(t, limiter.Allow("player-2", OpClassMutate).Allowed)

	// After the window slides past the first event, a slot frees up.
	now = base.Add(time.Minute + time.Second)
	decision = limiter.Allow("player-1", OpClassMutate)
	assert.True(t, decision.Allowed)
}

func TestRateLimiter_DeniedAttemptsNotCounted(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(map[OperationClass]ClassLimit{
		OpClassMutate: {Limit: 2, Window: time.Minute},
	})

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	limiter.SetTimeFunc(func() time.Time { return now })

	assert.True(t, limiter.Allow("player-1", OpClassMutate).Allowed)
	assert.True(t, limiter.Allow("player-1", OpClassMutate).Allowed)

	// Hammering while blocked must not extend the ban.
	for i := 0; i < 20; i++ {
		assert.False(t, limiter.Allow("player-1", OpClassMutate).Allowed)
	}

	now = base.Add(time.Minute + time.Millisecond)
	assert.True(t, limiter.Allow("player-1", OpClassMutate).Allowed)
}

func TestRateLimiter_ClassesAreIndependent(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(map[OperationClass]ClassLimit{
		OpClassMutate: {Limit: 1, Window: time.Minute},
		OpClassRead:   {Limit: 10, Window: time.Minute},
	})

	assert.True(t, limiter.Allow("player-1", OpClassMutate).Allowed)
	assert.False(t, limiter.Allow("player-1", OpClassMutate).Allowed)

	// Reads keep flowing while mutations are capped.
	assert.True(t, limiter.Allow("player-1", OpClassRead).Allowed)
}

func TestRateLimiter_UnconfiguredClassAllowed(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(map[OperationClass]ClassLimit{})

	assert.True(t, limiter.Allow("player-1", OpClassSync).Allowed)
}

func TestRateLimiter_DetectSuspiciousActivity(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter(map[OperationClass]ClassLimit{
		OpClassRead: {Limit: 1000, Window: time.Minute},
		OpClassSync: {Limit: 1000, Window: time.Minute},
	})

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.SetTimeFunc(func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	})

	assert.False(t, limiter.DetectSuspiciousActivity("player-1"))

	for i := 0; i < 150; i++ {
		limiter.Allow("player-1", OpClassRead)
	}
	assert.False(t, limiter.DetectSuspiciousActivity("player-1"))

	for i := 0; i < 100; i++ {
		limiter.Allow("player-1", OpClassSync)
	}
	assert.True(t, limiter.DetectSuspiciousActivity("player-1"))
	assert.False(t, limiter.DetectSuspiciousActivity("player-2"))
}

func TestDefaultClassLimits(t *testing.T) {
	t.Parallel()

	limits := DefaultClassLimits()
	for _, class := range []OperationClass{OpClassMutate, OpClassRead, OpClassSync, OpClassAdmin} {
		limit, ok := limits[class]
		assert.True(t, ok, fmt.Sprintf("missing limit for class %s", class))
		assert.Greater(t, limit.Limit, 0)
		assert.Greater(t, limit.Window, time.Duration(0))
	}
}
