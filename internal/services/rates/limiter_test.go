package rates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock drives a limiter without real sleeping.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	cancel error
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) install(l *RequestLimiter) {
	l.now = func() time.Time { return c.now }
	l.sleep = func(_ context.Context, d time.Duration) error {
		c.slept = append(c.slept, d)
		c.now = c.now.Add(d)
		return c.cancel
	}
}

func TestRequestLimiter_QuotaIsImmediate(t *testing.T) {
	clock := newFakeClock()
	l := NewRequestLimiter(5, time.Minute)
	clock.install(l)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	require.Empty(t, clock.slept, "the first five calls must not block")
}

func TestRequestLimiter_SixthCallBlocksUntilWindowReset(t *testing.T) {
	clock := newFakeClock()
	l := NewRequestLimiter(5, time.Minute)
	clock.install(l)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	clock.now = clock.now.Add(10 * time.Second)

	require.NoError(t, l.Acquire(context.Background()))
	require.Len(t, clock.slept, 1)
	require.Equal(t, 50*time.Second, clock.slept[0], "must sleep exactly to the window boundary")

	// the blocked call became the first of the new window
	for i := 0; i < 4; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	require.Len(t, clock.slept, 1)
}

func TestRequestLimiter_ElapsedWindowResets(t *testing.T) {
	clock := newFakeClock()
	l := NewRequestLimiter(5, time.Minute)
	clock.install(l)

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Acquire(context.Background()))
	}
	clock.now = clock.now.Add(2 * time.Minute)

	require.NoError(t, l.Acquire(context.Background()))
	require.Empty(t, clock.slept, "a long-gone window must admit immediately")
}

func TestRequestLimiter_CancelledContext(t *testing.T) {
	clock := newFakeClock()
	l := NewRequestLimiter(5, time.Minute)
	clock.install(l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Acquire(ctx), context.Canceled)
}

func TestRequestLimiter_CancelledDuringSleep(t *testing.T) {
	clock := newFakeClock()
	l := NewRequestLimiter(1, time.Minute)
	clock.install(l)

	require.NoError(t, l.Acquire(context.Background()))
	clock.cancel = context.Canceled
	require.ErrorIs(t, l.Acquire(context.Background()), context.Canceled)
}
