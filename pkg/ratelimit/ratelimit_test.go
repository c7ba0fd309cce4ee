package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestLimiterStore_SameKeySharesLimiter(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1)
	assert.Same(t, s.GetLimiter("a"), s.GetLimiter("a"))
	assert.NotSame(t, s.GetLimiter("a"), s.GetLimiter("b"))
	assert.Equal(t, 2, s.Len())

	assert.True(t, s.Allow("c"))
	assert.False(t, s.Allow("c"))
}

func TestLimiterStore_Evict(t *testing.T) {
	s := NewLimiterStore(rate.Limit(1), 1)
	s.GetLimiter("a")
	assert.Equal(t, 0, s.Evict(time.Hour))
	assert.Equal(t, 1, s.Evict(-time.Second))
	assert.Equal(t, 0, s.Len())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestTokenLimiter_RefillsPerWindow(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	l := NewTokenLimiter(10, 30*time.Second)
	l.now = clock.Now
	l.lastRefill = clock.Now()
	l.pollInterval = time.Millisecond

	ctx := context.Background()
	require.NoError(t, l.Wait(ctx, 6))
	assert.Equal(t, 4, l.GetRemaining())

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, l.Wait(short, 5), context.DeadlineExceeded)

	clock.Advance(30 * time.Second)
	require.NoError(t, l.Wait(ctx, 5))
	assert.Equal(t, 5, l.GetRemaining())
}

func TestTokenLimiter_RejectsOverCapacity(t *testing.T) {
	l := NewTokenLimiter(3, time.Minute)
	assert.Error(t, l.Wait(context.Background(), 4))
}
