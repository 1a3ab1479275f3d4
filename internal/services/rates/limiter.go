package rates

import (
	"context"
	"sync"
	"time"
)

// RequestLimiter throttles outbound quote requests to the provider's quota.
// The first limit calls in a window are admitted immediately; once the quota
// is spent, Acquire sleeps until the window resets and then admits the caller
// as the first call of the next window. One limiter is shared by the current
// and historical refresh flows, so it is also the serialization point that
// keeps per-coin fetches sequential.
type RequestLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration

	windowCount int
	windowStart time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRequestLimiter creates a limiter admitting limit calls per window.
func NewRequestLimiter(limit int, window time.Duration) *RequestLimiter {
	return &RequestLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Acquire blocks until the caller may issue one request. It returns early
// only when ctx is cancelled. The lock is held across the sleep on purpose:
// every waiter queues behind the one sleeping, which is exactly the quota
// behavior the provider imposes.
func (l *RequestLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if l.windowCount == 0 || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.windowCount = 1
		return nil
	}
	if l.windowCount < l.limit {
		l.windowCount++
		return nil
	}

	if err := l.sleep(ctx, l.windowStart.Add(l.window).Sub(now)); err != nil {
		return err
	}
	l.windowStart = l.now()
	l.windowCount = 1
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
