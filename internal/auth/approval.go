package auth

import (
	"context"
	"fmt"

	"github.com/ashita-ai/kansoku/internal/model"
)

// RoleSource resolves the authoritative role of a caller.
type RoleSource interface {
	Role(ctx context.Context, c *Claims) (model.UserRole, error)
}

// ClaimRoles reads the role straight from the token's app metadata.
type ClaimRoles struct{}

// Role returns the role carried by c.
func (ClaimRoles) Role(_ context.Context, c *Claims) (model.UserRole, error) {
	return c.Role(), nil
}

// Approver resolves approvals through an ApprovalCache.
type Approver struct {
	cache  *ApprovalCache
	source RoleSource
}

// NewApprover creates an Approver. A nil source reads roles from claims; a
// nil cache resolves on every call.
func NewApprover(cache *ApprovalCache, source RoleSource) *Approver {
	if source == nil {
		source = ClaimRoles{}
	}
	return &Approver{cache: cache, source: source}
}

// Cache returns the underlying cache so admin handlers can invalidate it.
func (a *Approver) Cache() *ApprovalCache {
	return a.cache
}

// Resolve returns the caller's approval, from cache when fresh.
func (a *Approver) Resolve(ctx context.Context, c *Claims) (model.Approval, error) {
	if a.cache != nil {
		if ap, ok := a.cache.Get(c.Subject); ok {
			return ap, nil
		}
	}
	role, err := a.source.Role(ctx, c)
	if err != nil {
		return model.Approval{}, fmt.Errorf("auth: resolve role for %s: %w", c.Subject, err)
	}
	ap := model.Approval{
		UserID:     c.Subject,
		Email:      c.Email,
		Role:       role,
		IsApproved: role.Approved(),
	}
	if a.cache != nil {
		a.cache.Set(ap)
	}
	return ap, nil
}
