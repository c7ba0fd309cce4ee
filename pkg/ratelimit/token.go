package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TokenLimiter is a weighted quota that refills completely once per window.
// KuCoin meters public endpoints this way: each call costs a weight out of a pool per window.
type TokenLimiter struct {
	sync.Mutex
	capacity     int
	remaining    int
	refillPeriod time.Duration
	lastRefill   time.Time
	now          func() time.Time
	pollInterval time.Duration
}

func NewTokenLimiter(capacity int, window time.Duration) *TokenLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &TokenLimiter{
		capacity:     capacity,
		remaining:    capacity,
		refillPeriod: window,
		lastRefill:   time.Now(),
		now:          time.Now,
		pollInterval: 100 * time.Millisecond,
	}
}

// Wait blocks until tokens are available or ctx is done.
func (l *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	if tokens > l.capacity {
		return fmt.Errorf("requested %d tokens exceeds capacity %d", tokens, l.capacity)
	}
	for {
		if l.take(tokens) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}

func (l *TokenLimiter) take(tokens int) bool {
	l.Lock()
	defer l.Unlock()

	now := l.now()
	if now.Sub(l.lastRefill) >= l.refillPeriod {
		l.remaining = l.capacity
		l.lastRefill = now
	}
	if l.remaining >= tokens {
		l.remaining -= tokens
		return true
	}
	return false
}

func (l *TokenLimiter) GetRemaining() int {
	l.Lock()
	defer l.Unlock()
	return l.remaining
}
