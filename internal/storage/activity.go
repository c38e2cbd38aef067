package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ashita-ai/kansoku/internal/model"
)

// ListInteractions returns interaction insights matching f, newest first.
func (db *DB) ListInteractions(ctx context.Context, f model.RecordFilter) ([]model.InteractionInsight, error) {
	var out []model.InteractionInsight
	err := db.read(ctx, "list interactions", func(ctx context.Context) error {
		rows, err := db.pool.Query(ctx, `
			SELECT id, account_id, interaction_type, sentiment_score,
			       sentiment_reasons, churn_risk, churn_reasons,
			       expansion_opportunity, expansion_reasons, summary, occurred_at
			FROM interaction_insights
			WHERE ($1::text[] IS NULL OR account_id = ANY($1))
			  AND ($2::timestamptz IS NULL OR occurred_at >= $2)
			ORDER BY occurred_at DESC, id`, f.AccountIDs, f.Since)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var in model.InteractionInsight
			if err := rows.Scan(
				&in.ID, &in.AccountID, &in.Type, &in.SentimentScore,
				&in.SentimentReasons, &in.ChurnRisk, &in.ChurnReasons,
				&in.ExpansionOpportunity, &in.ExpansionReasons, &in.Summary, &in.OccurredAt,
			); err != nil {
				return err
			}
			out = append(out, in)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list interactions: %w", err)
	}
	return out, nil
}

// ListOpenTickets returns tickets in an open state for the accounts f
// matches, newest first. f.Since is ignored.
func (db *DB) ListOpenTickets(ctx context.Context, f model.RecordFilter) ([]model.SupportTicket, error) {
	var out []model.SupportTicket
	err := db.read(ctx, "list open tickets", func(ctx context.Context) error {
		rows, err := db.pool.Query(ctx, `
			SELECT id, account_id, subject, status, priority, created_at
			FROM support_tickets
			WHERE ($1::text[] IS NULL OR account_id = ANY($1))
			  AND status = ANY($2)
			ORDER BY created_at DESC, id`, f.AccountIDs, model.OpenTicketStatuses)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var t model.SupportTicket
			if err := rows.Scan(&t.ID, &t.AccountID, &t.Subject, &t.Status, &t.Priority, &t.CreatedAt); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list open tickets: %w", err)
	}
	return out, nil
}

const opportunityColumns = `id, account_id, name, type, stage, amount, close_date, is_closed`

// ListOpportunities returns every opportunity for the accounts f matches,
// ordered by close date with undated ones last. f.Since is ignored.
func (db *DB) ListOpportunities(ctx context.Context, f model.RecordFilter) ([]model.Opportunity, error) {
	return db.queryOpportunities(ctx, "list opportunities", `
		SELECT `+opportunityColumns+`
		FROM opportunities
		WHERE ($1::text[] IS NULL OR account_id = ANY($1))
		ORDER BY close_date ASC NULLS LAST, id`, f.AccountIDs)
}

// ListUpcomingRenewals returns open Renewal opportunities whose close date is
// on or before horizonEnd. Overdue renewals that are still open are included.
func (db *DB) ListUpcomingRenewals(ctx context.Context, horizonEnd time.Time) ([]model.Opportunity, error) {
	return db.queryOpportunities(ctx, "list upcoming renewals", `
		SELECT `+opportunityColumns+`
		FROM opportunities
		WHERE type = $1 AND NOT is_closed
		  AND close_date IS NOT NULL AND close_date <= $2::date
		ORDER BY close_date, id`, model.OpportunityTypeRenewal, horizonEnd)
}

func (db *DB) queryOpportunities(ctx context.Context, op, query string, args ...any) ([]model.Opportunity, error) {
	var out []model.Opportunity
	err := db.read(ctx, op, func(ctx context.Context) error {
		rows, err := db.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var o model.Opportunity
			if err := rows.Scan(&o.ID, &o.AccountID, &o.Name, &o.Type, &o.Stage, &o.Amount, &o.CloseDate, &o.IsClosed); err != nil {
				return err
			}
			out = append(out, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", op, err)
	}
	return out, nil
}

// ListContacts returns the account's contacts, most recently active first.
// Contacts with no activity come last.
func (db *DB) ListContacts(ctx context.Context, accountID string) ([]model.Contact, error) {
	var out []model.Contact
	err := db.read(ctx, "list contacts", func(ctx context.Context) error {
		rows, err := db.pool.Query(ctx, `
			SELECT id, account_id, first_name, last_name, email, title,
			       customer_role, left_company, last_activity_date
			FROM contacts
			WHERE account_id = $1
			ORDER BY last_activity_date DESC NULLS LAST, id`, accountID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var c model.Contact
			if err := rows.Scan(
				&c.ID, &c.AccountID, &c.FirstName, &c.LastName, &c.Email, &c.Title,
				&c.CustomerRole, &c.LeftCompany, &c.LastActivityDate,
			); err != nil {
				return err
			}
			out = append(out, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list contacts: %w", err)
	}
	return out, nil
}
