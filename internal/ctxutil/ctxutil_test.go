package ctxutil_test

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/ctxutil"
	"github.com/ashita-ai/kansoku/internal/model"
)

func TestEmptyContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, ctxutil.ClaimsFromContext(ctx))
	assert.Empty(t, ctxutil.UserID(ctx))
	assert.Empty(t, ctxutil.RequestID(ctx))
	_, ok := ctxutil.ApprovalFromContext(ctx)
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u-42"}}
	approval := model.Approval{UserID: "u-42", Role: model.RoleAdmin, IsApproved: true}

	ctx := ctxutil.WithClaims(context.Background(), claims)
	ctx = ctxutil.WithApproval(ctx, approval)
	ctx = ctxutil.WithRequestID(ctx, "req-9")

	assert.Same(t, claims, ctxutil.ClaimsFromContext(ctx))
	assert.Equal(t, "u-42", ctxutil.UserID(ctx))
	assert.Equal(t, "req-9", ctxutil.RequestID(ctx))
	got, ok := ctxutil.ApprovalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, approval, got)
}
