// Package rate provides keyed rate limiting.
package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter limits operations based on a provided key.
type Limiter interface {
	Allow(key string) (bool, error)
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type localRateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	lastScan time.Time
}

// NewLocalRateLimiter returns an in memory limiter allowing limit events per
// second for each key. The burst is the whole part of limit, but never less
// than one, so limits below one event per second still admit a first event.
func NewLocalRateLimiter(limit rate.Limit) Limiter {
	return newLocalRateLimiter(limit, time.Now)
}

func newLocalRateLimiter(limit rate.Limit, now func() time.Time) *localRateLimiter {
	burst := int(limit)
	if burst < 1 {
		burst = 1
	}

	return &localRateLimiter{
		limit:    limit,
		burst:    burst,
		now:      now,
		limiters: make(map[string]*keyedLimiter),
		lastScan: now(),
	}
}

// Allow implements limiter.Allow.
func (l *localRateLimiter) Allow(key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.evictIdle(now)

	entry, ok := l.limiters[key]
	if !ok {
		entry = &keyedLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1), nil
}

// idleAfter is how long a key must go unused before its bucket has refilled
// and can be forgotten.
func (l *localRateLimiter) idleAfter() time.Duration {
	if l.limit == rate.Inf || l.limit <= 0 {
		return time.Minute
	}
	return time.Duration(float64(l.burst) / float64(l.limit) * float64(time.Second))
}

func (l *localRateLimiter) evictIdle(now time.Time) {
	idle := l.idleAfter()
	if now.Sub(l.lastScan) < idle {
		return
	}
	l.lastScan = now

	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) >= idle {
			delete(l.limiters, key)
		}
	}
}

// NoLimiter never limits operations
type NoLimiter struct {
}

// Allow implements limiter.Allow.
func (n *NoLimiter) Allow(_ string) (bool, error) {
	return true, nil
}
