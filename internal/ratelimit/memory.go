package ratelimit

import (
	"context"
	"sync"
	"time"
)

// idleTTL is how long an untouched bucket survives before eviction.
const idleTTL = 10 * time.Minute

type bucket struct {
	tokens float64
	seen   time.Time
}

// MemoryLimiter is a per-key token bucket held in process memory.
// Each key refills at rps tokens per second up to burst tokens.
type MemoryLimiter struct {
	rps   float64
	burst float64
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	closeOnce sync.Once
	done      chan struct{}
}

// NewMemoryLimiter creates a limiter and starts its eviction loop.
// Call Close to stop it.
func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rps:     rps,
		burst:   float64(burst),
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go m.evictLoop()
	return m
}

// Allow takes one token from key's bucket if one is available.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok {
		m.buckets[key] = &bucket{tokens: m.burst - 1, seen: now}
		return m.burst >= 1, nil
	}

	b.tokens = min(m.burst, b.tokens+now.Sub(b.seen).Seconds()*m.rps)
	b.seen = now
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Close stops the eviction loop. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *MemoryLimiter) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-idleTTL)
	for key, b := range m.buckets {
		if b.seen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
