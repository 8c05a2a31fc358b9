package webhook

import (
	"sync"
	"time"
)

const windowMillis = 60_000

// RateLimiter implements per-IP rate limiting with a sliding window.
type RateLimiter struct {
	requests          map[string][]int64
	maxRequestsPerMin int
	mu                sync.RWMutex
	cleanupInterval   time.Duration
	stopCleanup       chan struct{}
	stopOnce          sync.Once
}

// NewRateLimiter creates a new rate limiter allowing maxRequestsPerMinute
// requests per client IP.
func NewRateLimiter(maxRequestsPerMinute int) *RateLimiter {
	rl := &RateLimiter{
		requests:          make(map[string][]int64),
		maxRequestsPerMin: maxRequestsPerMinute,
		cleanupInterval:   5 * time.Minute,
		stopCleanup:       make(chan struct{}),
	}

	go rl.runCleanup()

	return rl
}

// CheckLimit reports whether a request from the given IP is allowed and
// records it if so.
func (rl *RateLimiter) CheckLimit(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	recent := prune(rl.requests[ip], now)

	if len(recent) >= rl.maxRequestsPerMin {
		rl.requests[ip] = recent
		return false
	}

	rl.requests[ip] = append(recent, now)
	return true
}

// GetRetryAfter returns the number of seconds until the oldest recorded
// request for the IP leaves the window.
func (rl *RateLimiter) GetRetryAfter(ip string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	recent := rl.requests[ip]
	if len(recent) == 0 {
		return 0
	}

	now := time.Now().UnixMilli()
	retryAfterMs := windowMillis - (now - recent[0])
	if retryAfterMs < 0 {
		return 0
	}

	// Round up to whole seconds.
	return int((retryAfterMs + 999) / 1000)
}

func (rl *RateLimiter) runCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup drops IPs with no requests inside the window.
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()
	for ip, timestamps := range rl.requests {
		recent := prune(timestamps, now)
		if len(recent) == 0 {
			delete(rl.requests, ip)
		} else {
			rl.requests[ip] = recent
		}
	}
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// prune drops timestamps older than the window.
func prune(timestamps []int64, now int64) []int64 {
	recent := timestamps[:0]
	for _, ts := range timestamps {
		if now-ts < windowMillis {
			recent = append(recent, ts)
		}
	}
	return recent
}
