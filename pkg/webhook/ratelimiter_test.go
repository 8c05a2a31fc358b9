package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(5)
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, rl.CheckLimit("1.2.3.4"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl := NewRateLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.CheckLimit("1.2.3.4"))
	}
	assert.False(t, rl.CheckLimit("1.2.3.4"))
}

func TestRateLimiter_TracksIPsIndependently(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	assert.True(t, rl.CheckLimit("1.2.3.4"))
	assert.False(t, rl.CheckLimit("1.2.3.4"))
	assert.True(t, rl.CheckLimit("5.6.7.8"))
}

func TestRateLimiter_GetRetryAfter(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	assert.Zero(t, rl.GetRetryAfter("1.2.3.4"))

	rl.CheckLimit("1.2.3.4")
	retryAfter := rl.GetRetryAfter("1.2.3.4")
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 60)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	rl := NewRateLimiter(1)
	defer rl.Stop()

	// Seed a request just outside the window.
	old := time.Now().UnixMilli() - windowMillis - 1
	rl.mu.Lock()
	rl.requests["1.2.3.4"] = []int64{old}
	rl.mu.Unlock()

	assert.True(t, rl.CheckLimit("1.2.3.4"))
}

func TestRateLimiter_CleanupDropsIdleIPs(t *testing.T) {
	rl := NewRateLimiter(10)
	defer rl.Stop()

	old := time.Now().UnixMilli() - windowMillis - 1
	rl.mu.Lock()
	rl.requests["1.2.3.4"] = []int64{old}
	rl.mu.Unlock()

	rl.cleanup()

	rl.mu.RLock()
	_, exists := rl.requests["1.2.3.4"]
	rl.mu.RUnlock()
	assert.False(t, exists)
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(10)
	rl.Stop()
	rl.Stop()
}
