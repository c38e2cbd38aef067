package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kansoku/internal/model"
)

func TestApprovalCache_GetSet(t *testing.T) {
	c := NewApprovalCache(time.Second)
	defer c.Close()

	_, ok := c.Get("u1")
	assert.False(t, ok)

	want := model.Approval{UserID: "u1", Role: model.RoleUser, IsApproved: true}
	c.Set(want)

	got, ok := c.Get("u1")
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestApprovalCache_Expiry(t *testing.T) {
	c := NewApprovalCache(50 * time.Millisecond)
	defer c.Close()

	c.Set(model.Approval{UserID: "u1"})
	_, ok := c.Get("u1")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = c.Get("u1")
	assert.False(t, ok, "entry should have expired")
}

func TestApprovalCache_EvictExpired(t *testing.T) {
	c := NewApprovalCache(10 * time.Millisecond)
	defer c.Close()

	c.Set(model.Approval{UserID: "u1"})
	c.Set(model.Approval{UserID: "u2"})

	time.Sleep(20 * time.Millisecond)
	c.evictExpired()

	assert.Zero(t, c.Len(), "evictExpired should have removed all expired entries")
}

func TestApprovalCache_Invalidate(t *testing.T) {
	c := NewApprovalCache(time.Minute)
	defer c.Close()

	c.Set(model.Approval{UserID: "u1"})
	c.Set(model.Approval{UserID: "u2"})
	c.Set(model.Approval{UserID: "u3"})

	assert.True(t, c.Invalidate("u1"))
	assert.False(t, c.Invalidate("u1"))
	_, ok := c.Get("u1")
	assert.False(t, ok)

	assert.Equal(t, 2, c.InvalidateAll())
	assert.Zero(t, c.Len())
}

func TestApprovalCache_CloseTwice(t *testing.T) {
	c := NewApprovalCache(time.Minute)
	c.Close()
	assert.NotPanics(t, c.Close)
}
