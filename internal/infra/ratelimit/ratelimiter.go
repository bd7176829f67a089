package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether a caller, identified by a key such as its client
// address, may proceed.
type Limiter interface {
	Allow(identifier string) bool
}

// NewInMemoryRateLimiter keeps one token bucket per identifier. Buckets idle
// for longer than idleTTL are dropped on the next call.
func NewInMemoryRateLimiter(r rate.Limit, b int, idleTTL time.Duration) Limiter {
	return &inMemoryRateLimiter{
		rate:    r,
		burst:   b,
		idleTTL: idleTTL,
		clients: make(map[string]*client),
		now:     time.Now,
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type inMemoryRateLimiter struct {
	rate    rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
}

func (l *inMemoryRateLimiter) Allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, exists := l.clients[identifier]
	if !exists {
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[identifier] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, 1)
}

func (l *inMemoryRateLimiter) sweep(now time.Time) {
	if l.idleTTL <= 0 || now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	for id, c := range l.clients {
		if now.Sub(c.lastSeen) > l.idleTTL {
			delete(l.clients, id)
		}
	}
	l.lastSweep = now
}
