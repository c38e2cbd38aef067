package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, rps float64, burst int) (*MemoryLimiter, *manualClock) {
	t.Helper()
	clk := &manualClock{t: time.Date(2025, 12, 18, 9, 0, 0, 0, time.UTC)}
	m := NewMemoryLimiter(rps, burst)
	m.now = clk.Now
	t.Cleanup(func() { require.NoError(t, m.Close()) })
	return m, clk
}

func TestMemoryLimiter_BurstThenDeny(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 3)
	ctx := context.Background()

	for i := range 3 {
		ok, err := m.Allow(ctx, "user:a")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}
	ok, err := m.Allow(ctx, "user:a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLimiter_Refill(t *testing.T) {
	m, clk := newTestLimiter(t, 2, 2)
	ctx := context.Background()

	_, _ = m.Allow(ctx, "k")
	_, _ = m.Allow(ctx, "k")
	ok, _ := m.Allow(ctx, "k")
	require.False(t, ok)

	clk.Advance(500 * time.Millisecond)
	ok, _ = m.Allow(ctx, "k")
	assert.True(t, ok, "one token after half a second at 2 rps")

	ok, _ = m.Allow(ctx, "k")
	assert.False(t, ok)

	// Refill never exceeds burst.
	clk.Advance(time.Hour)
	for range 2 {
		ok, _ = m.Allow(ctx, "k")
		assert.True(t, ok)
	}
	ok, _ = m.Allow(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryLimiter_IndependentKeys(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 1)
	ctx := context.Background()

	ok, _ := m.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = m.Allow(ctx, "a")
	assert.False(t, ok)
	ok, _ = m.Allow(ctx, "b")
	assert.True(t, ok)
}

func TestMemoryLimiter_ZeroBurstDeniesAll(t *testing.T) {
	m, _ := newTestLimiter(t, 10, 0)
	ok, err := m.Allow(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	m, _ := newTestLimiter(t, 1, 50)
	ctx := context.Background()

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 10 {
				if ok, _ := m.Allow(ctx, "shared"); ok {
					allowed.Add(1)
				}
			}
		})
	}
	wg.Wait()

	// The clock is frozen so nothing refills.
	assert.Equal(t, int64(50), allowed.Load())
}

func TestMemoryLimiter_EvictIdle(t *testing.T) {
	m, clk := newTestLimiter(t, 1, 5)
	ctx := context.Background()

	_, _ = m.Allow(ctx, "old")
	clk.Advance(idleTTL + time.Second)
	_, _ = m.Allow(ctx, "fresh")

	m.evictIdle()

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.NotContains(t, m.buckets, "old")
	assert.Contains(t, m.buckets, "fresh")
}

func TestNoopLimiter(t *testing.T) {
	var l Limiter = NoopLimiter{}
	for range 100 {
		ok, err := l.Allow(context.Background(), "k")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.NoError(t, l.Close())
}
