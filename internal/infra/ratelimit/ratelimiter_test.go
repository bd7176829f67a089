package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func TestInMemoryRateLimiter(t *testing.T) {
	l := NewInMemoryRateLimiter(rate.Every(time.Hour), 2, time.Minute).(*inMemoryRateLimiter)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// buckets are per identifier
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestInMemoryRateLimiterDropsIdleClients(t *testing.T) {
	l := NewInMemoryRateLimiter(rate.Every(time.Hour), 1, time.Minute).(*inMemoryRateLimiter)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))

	now = now.Add(2 * time.Minute)
	assert.True(t, l.Allow("b"))
	assert.NotContains(t, l.clients, "a")
	assert.True(t, l.Allow("a"))
}
