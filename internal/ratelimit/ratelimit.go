// Package ratelimit throttles dashboard API callers.
//
// Limits are enforced per caller key (user ID when authenticated, client IP
// otherwise) with an in-memory token bucket. The Limiter interface lets a
// shared backend replace it when several replicas sit behind one balancer.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow reports whether the request may proceed. An error signals a
	// limiter malfunction; callers fail open.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases background resources.
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
