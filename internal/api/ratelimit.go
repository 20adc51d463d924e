package api

import (
	"strings"
	"sync"
	"time"
)

// RateLimiter implements a sliding window rate limiter keyed by an arbitrary
// string. Handlers use it keyed by normalized email for login and token
// emails, with the client IP as fallback.
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	cleanup  time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		cleanup:  time.Now(),
	}
}

// Allow checks if a request from the given key is allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-rl.window)

	if now.Sub(rl.cleanup) > time.Minute {
		for k, times := range rl.requests {
			filtered := filterTimes(times, windowStart)
			if len(filtered) == 0 {
				delete(rl.requests, k)
			} else {
				rl.requests[k] = filtered
			}
		}
		rl.cleanup = now
	}

	times := rl.requests[key]
	times = filterTimes(times, windowStart)

	if len(times) >= rl.limit {
		return false
	}

	rl.requests[key] = append(times, now)
	return true
}

func filterTimes(times []time.Time, cutoff time.Time) []time.Time {
	result := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}

// rateLimitKey prefers the account email so a single attacker cannot lock
// out an address from many IPs nor rotate addresses from one IP.
func rateLimitKey(email, remoteAddr string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		return email
	}
	return remoteAddr
}
