package storage

import (
	"context"
	"fmt"

	"github.com/ashita-ai/kansoku/internal/model"
)

// ListSnapshots returns health snapshots matching f, oldest first.
// The trend label is mapped through model.ParseTrend, so a NULL or unknown
// label reads back as TrendUnknown.
func (db *DB) ListSnapshots(ctx context.Context, f model.RecordFilter) ([]model.HealthSnapshot, error) {
	var out []model.HealthSnapshot
	err := db.read(ctx, "list snapshots", func(ctx context.Context) error {
		rows, err := db.pool.Query(ctx, `
			SELECT id, account_id, status, score, trend, observed_at
			FROM health_snapshots
			WHERE ($1::text[] IS NULL OR account_id = ANY($1))
			  AND ($2::timestamptz IS NULL OR observed_at >= $2)
			ORDER BY observed_at, id`, f.AccountIDs, f.Since)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var s model.HealthSnapshot
			var status string
			var trend *string
			if err := rows.Scan(&s.ID, &s.AccountID, &status, &s.Score, &trend, &s.ObservedAt); err != nil {
				return err
			}
			s.Status = model.HealthStatus(status)
			s.Trend = model.ParseTrend(trend)
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list snapshots: %w", err)
	}
	return out, nil
}

// ListCurrentSnapshots returns the latest snapshot per account among the
// accounts f matches. f.Since is ignored.
func (db *DB) ListCurrentSnapshots(ctx context.Context, f model.RecordFilter) ([]model.HealthSnapshot, error) {
	var out []model.HealthSnapshot
	err := db.read(ctx, "list current snapshots", func(ctx context.Context) error {
		rows, err := db.pool.Query(ctx, `
			SELECT DISTINCT ON (account_id) id, account_id, status, score, trend, observed_at
			FROM health_snapshots
			WHERE ($1::text[] IS NULL OR account_id = ANY($1))
			ORDER BY account_id, observed_at DESC, id`, f.AccountIDs)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var s model.HealthSnapshot
			var status string
			var trend *string
			if err := rows.Scan(&s.ID, &s.AccountID, &status, &s.Score, &trend, &s.ObservedAt); err != nil {
				return err
			}
			s.Status = model.HealthStatus(status)
			s.Trend = model.ParseTrend(trend)
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list current snapshots: %w", err)
	}
	return out, nil
}
