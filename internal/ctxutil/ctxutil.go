// Package ctxutil provides shared context key accessors.
//
// Both server and mcp read the caller identity that the HTTP auth middleware
// stores on the request context. Keeping the accessors here lets mcp avoid
// importing server, which already imports mcp to mount it.
package ctxutil

import (
	"context"

	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/model"
)

type contextKey string

const (
	keyClaims    contextKey = "claims"
	keyApproval  contextKey = "approval"
	keyRequestID contextKey = "request_id"
)

// WithClaims returns a new context carrying the caller's validated token claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	return context.WithValue(ctx, keyClaims, claims)
}

// ClaimsFromContext returns the caller's claims, or nil when the request was
// not authenticated (auth disabled).
func ClaimsFromContext(ctx context.Context) *auth.Claims {
	if v, ok := ctx.Value(keyClaims).(*auth.Claims); ok {
		return v
	}
	return nil
}

// WithApproval returns a new context carrying the caller's resolved approval.
func WithApproval(ctx context.Context, a model.Approval) context.Context {
	return context.WithValue(ctx, keyApproval, a)
}

// ApprovalFromContext returns the caller's approval and whether one was set.
func ApprovalFromContext(ctx context.Context) (model.Approval, bool) {
	a, ok := ctx.Value(keyApproval).(model.Approval)
	return a, ok
}

// UserID returns the authenticated caller's ID, or "".
func UserID(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Subject
	}
	return ""
}

// WithRequestID returns a new context carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// RequestID returns the request ID stored in ctx, or "".
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(keyRequestID).(string)
	return v
}
