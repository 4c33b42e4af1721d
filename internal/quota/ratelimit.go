// Package quota provides per-client request rate limiting.
package quota

import (
	"sync"
	"time"
)

// bucket is a token bucket for one client.
type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiter enforces a requests-per-minute budget per client key
// (typically the remote address).
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter creates a rate limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{buckets: make(map[string]*bucket)}
}

// Allow reports whether the client may proceed. rpm is the budget in
// requests per minute; rpm <= 0 means unlimited.
func (rl *RateLimiter) Allow(key string, rpm int) bool {
	if rpm <= 0 {
		return true
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	now := time.Now()
	if !ok {
		b = &bucket{tokens: float64(rpm), lastRefill: now}
		rl.buckets[key] = b
	}

	// Refill at rpm/60 tokens per second, capped at the full budget.
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * float64(rpm) / 60.0
	if b.tokens > float64(rpm) {
		b.tokens = float64(rpm)
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// RetryAfter returns how many seconds until the client has a token again.
func (rl *RateLimiter) RetryAfter(key string, rpm int) int {
	if rpm <= 0 {
		return 0
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || b.tokens >= 1 {
		return 0
	}
	deficit := 1 - b.tokens
	seconds := deficit * 60.0 / float64(rpm)
	retry := int(seconds)
	if seconds > float64(retry) {
		retry++
	}
	if retry < 1 {
		retry = 1
	}
	return retry
}

// Cleanup drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, b := range rl.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}
