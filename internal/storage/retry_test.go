package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	serialization := &pgconn.PgError{Code: "40001"}
	uniqueViolation := &pgconn.PgError{Code: "23505"}

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   error
	}{
		{name: "success first try", errs: []error{nil}, wantCalls: 1},
		{name: "retried then ok", errs: []error{serialization, serialization, nil}, wantCalls: 3},
		{name: "gives up", errs: []error{serialization, serialization, serialization, nil}, wantCalls: 3, wantErr: serialization},
		{name: "not retriable", errs: []error{uniqueViolation, nil}, wantCalls: 1, wantErr: uniqueViolation},
		{name: "plain error", errs: []error{errors.New("boom"), nil}, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), 2, time.Millisecond, func() error {
				err := tt.errs[calls]
				calls++
				return err
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.name == "plain error" {
				assert.EqualError(t, err, "boom")
			}
		})
	}
}

func TestWithRetry_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, 5, time.Hour, func() error {
		calls++
		cancel()
		return &pgconn.PgError{Code: "40P01"}
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetriable_Wrapped(t *testing.T) {
	err := errors.Join(errors.New("context"), &pgconn.PgError{Code: "57P01"})
	assert.True(t, isRetriable(err))
	assert.False(t, isRetriable(errors.New("plain")))
}
