// Package ratelimit provides per-key token bucket rate limiting for the
// HTTP surface, keyed by client address.
package ratelimit

import (
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter hands out one token bucket per key.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	perMin   float64
	burst    int
}

// NewPerMinute creates a limiter allowing perMin requests per minute per key
// with the given burst capacity.
func NewPerMinute(perMin float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		perMin:   perMin,
		burst:    burst,
	}
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring the write lock.
	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(l.perMin/60), l.burst)
	l.limiters[key] = limiter
	return limiter
}

// Allow reports whether a request for key may proceed now.
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

// RetryAfterSeconds estimates how long a rejected caller should wait before
// the next token becomes available.
func (l *Limiter) RetryAfterSeconds() int {
	if l.perMin <= 0 {
		return 60
	}
	return int(math.Ceil(60 / l.perMin))
}
