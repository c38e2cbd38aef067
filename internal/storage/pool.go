// Package storage provides the PostgreSQL store for kansoku.
//
// The store is read-only from the application's point of view: accounts,
// health snapshots, interaction insights, support tickets, opportunities, and
// contacts are written by external ingestion jobs. Every read is retried on
// transient serialization and deadlock errors.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/kansoku/internal/telemetry"
)

var tracer = telemetry.Tracer("kansoku/storage")

// Read retry policy.
const (
	readRetries   = 2
	readBaseDelay = 25 * time.Millisecond
)

// DB wraps a pgxpool.Pool.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a DB with a connection pool and verifies connectivity.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	db := &DB{pool: pool, logger: logger}
	db.registerMetrics()
	return db, nil
}

// registerMetrics exposes pool occupancy as observable gauges.
func (db *DB) registerMetrics() {
	meter := telemetry.Meter("kansoku/storage")

	_, _ = meter.Int64ObservableGauge("kansoku.db.pool.acquired",
		metric.WithDescription("Connections currently checked out of the pool"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(db.pool.Stat().AcquiredConns()))
			return nil
		}),
	)
	_, _ = meter.Int64ObservableGauge("kansoku.db.pool.idle",
		metric.WithDescription("Idle connections held by the pool"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(db.pool.Stat().IdleConns()))
			return nil
		}),
	)
}

// Pool returns the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks connectivity to the database.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("storage: ping: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}

// read runs fn under the read retry policy inside a span named op.
func (db *DB) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "storage: "+op)
	defer span.End()

	err := WithRetry(ctx, readRetries, readBaseDelay, func() error { return fn(ctx) })
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
