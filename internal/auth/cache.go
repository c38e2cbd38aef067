package auth

import (
	"sync"
	"time"

	"github.com/ashita-ai/kansoku/internal/model"
)

// ApprovalCache is a short-TTL in-memory cache of resolved approvals, keyed
// by user ID. Entries are served until they expire or are invalidated, so
// role changes become visible within one TTL at most. Admin handlers call
// Invalidate after changing a user's role.
type ApprovalCache struct {
	mu      sync.RWMutex
	entries map[string]cachedApproval
	ttl     time.Duration
	done    chan struct{}
	once    sync.Once
}

type cachedApproval struct {
	approval  model.Approval
	expiresAt time.Time
}

// NewApprovalCache creates a cache with the given TTL.
// Call Close to stop the background eviction goroutine.
func NewApprovalCache(ttl time.Duration) *ApprovalCache {
	c := &ApprovalCache{
		entries: make(map[string]cachedApproval),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go c.evictLoop()
	return c
}

// Get returns the cached approval for userID and true on a live hit.
func (c *ApprovalCache) Get(userID string) (model.Approval, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[userID]
	if !ok || time.Now().After(e.expiresAt) {
		return model.Approval{}, false
	}
	return e.approval, true
}

// Set stores a with the configured TTL.
func (c *ApprovalCache) Set(a model.Approval) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[a.UserID] = cachedApproval{approval: a, expiresAt: time.Now().Add(c.ttl)}
}

// Invalidate drops the entry for userID and reports whether one existed.
func (c *ApprovalCache) Invalidate(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[userID]
	delete(c.entries, userID)
	return ok
}

// InvalidateAll drops every entry and returns how many were removed.
func (c *ApprovalCache) InvalidateAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	clear(c.entries)
	return n
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *ApprovalCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the background eviction goroutine. Safe to call twice.
func (c *ApprovalCache) Close() {
	c.once.Do(func() { close(c.done) })
}

// evictLoop removes expired entries every minute.
func (c *ApprovalCache) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *ApprovalCache) evictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range c.entries {
		if now.After(v.expiresAt) {
			delete(c.entries, k)
		}
	}
}
