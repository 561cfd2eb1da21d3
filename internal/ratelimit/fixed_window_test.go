package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindowAdmit(t *testing.T) {
	ctx := context.Background()

	t.Run("AllowsUpToLimit", func(t *testing.T) {
		limiter := NewFixedWindow(time.Minute, 3)

		for i := 0; i < 3; i++ {
			allowed, err := limiter.Admit(ctx, "caller")
			require.NoError(t, err)
			assert.True(t, allowed, "request %d should be admitted", i+1)
		}

		allowed, err := limiter.Admit(ctx, "caller")
		require.NoError(t, err)
		assert.False(t, allowed, "request beyond limit should be rejected")
	})

	t.Run("WindowExpiryResetsCount", func(t *testing.T) {
		limiter := NewFixedWindow(time.Minute, 2)

		now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
		limiter.SetClock(func() time.Time { return now })

		for i := 0; i < 2; i++ {
			allowed, _ := limiter.Admit(ctx, "caller")
			assert.True(t, allowed)
		}
		allowed, _ := limiter.Admit(ctx, "caller")
		assert.False(t, allowed)

		// Just past the window boundary the count starts over at 1.
		now = now.Add(time.Minute + time.Millisecond)
		allowed, _ = limiter.Admit(ctx, "caller")
		assert.True(t, allowed)
		assert.Equal(t, 1, limiter.Count("caller"))
	})

	t.Run("CallersAreIsolated", func(t *testing.T) {
		limiter := NewFixedWindow(time.Minute, 1)

		allowed, _ := limiter.Admit(ctx, "alice")
		assert.True(t, allowed)
		allowed, _ = limiter.Admit(ctx, "alice")
		assert.False(t, allowed)

		allowed, _ = limiter.Admit(ctx, "bob")
		assert.True(t, allowed, "one caller at its limit must not affect another")
	})

	t.Run("FirstRequestOpensWindow", func(t *testing.T) {
		limiter := NewFixedWindow(time.Minute, 5)

		assert.Equal(t, 0, limiter.Count("caller"))
		allowed, _ := limiter.Admit(ctx, "caller")
		assert.True(t, allowed)
		assert.Equal(t, 1, limiter.Count("caller"))
	})
}

func TestFixedWindowSweep(t *testing.T) {
	limiter := NewFixedWindow(time.Minute, 5)

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.SetClock(func() time.Time { return now })

	_, _ = limiter.Admit(context.Background(), "stale")
	require.Equal(t, 1, limiter.Count("stale"))

	// Windows older than twice the window length are reclaimed.
	now = now.Add(3 * time.Minute)
	limiter.sweep()

	limiter.mu.Lock()
	_, exists := limiter.records["stale"]
	limiter.mu.Unlock()
	assert.False(t, exists)
}

func TestStopSweepIsIdempotent(t *testing.T) {
	limiter := NewFixedWindow(time.Minute, 5)
	limiter.StartSweep(10 * time.Millisecond)

	limiter.StopSweep()
	limiter.StopSweep()
}
