package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres error codes worth another attempt. Every store operation is a
// read, so replaying one after a dropped connection is harmless.
var retriableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"57P01": true, // admin_shutdown (failover)
	"08006": true, // connection_failure
}

func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retriableCodes[pgErr.Code]
	}
	return false
}

// WithRetry runs fn, retrying up to maxRetries more times while it fails with
// a retriable Postgres error. The wait doubles from baseDelay, with up to
// baseDelay of random jitter added to each step. Cancelling ctx aborts the wait.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || attempt == maxRetries || !isRetriable(err) {
			return err
		}

		wait := delay
		if delay > 0 {
			wait += time.Duration(rand.Int64N(int64(delay))) //nolint:gosec // jitter
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
}
