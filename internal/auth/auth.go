// Package auth validates bearer tokens issued by the hosted auth provider and
// resolves each caller's dashboard approval.
//
// Tokens are HS256-signed with the provider's project secret. The dashboard
// role lives in the app_metadata.role claim; only "user" and "admin" are
// approved.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ashita-ai/kansoku/internal/model"
)

// Sentinel errors.
var (
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrNotApproved  = errors.New("auth: user not approved")
)

// Audience is the audience the provider stamps on end-user tokens.
const Audience = "authenticated"

// AppMetadata is the provider-managed metadata block. Users cannot edit it.
type AppMetadata struct {
	Role string `json:"role,omitempty"`
}

// Claims are the token claims kansoku reads.
type Claims struct {
	jwt.RegisteredClaims
	Email       string      `json:"email,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata"`
}

// Role returns the dashboard role carried by the token.
func (c *Claims) Role() model.UserRole {
	return model.ParseUserRole(c.AppMetadata.Role)
}

// Verifier validates tokens against a shared HS256 secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier. The secret must not be empty.
func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: empty signing secret")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// ValidateToken parses and validates a token, returning its claims. Every
// failure wraps ErrInvalidToken.
func (v *Verifier) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// IssueToken signs a token for userID. The provider normally mints tokens;
// this exists for local development and tests.
func (v *Verifier) IssueToken(userID, email string, role model.UserRole, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email:       email,
		AppMetadata: AppMetadata{Role: string(role)},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}
