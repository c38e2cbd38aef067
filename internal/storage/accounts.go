package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashita-ai/kansoku/internal/model"
)

const accountColumns = `account_id, name, arr, owner_name, industry, last_activity_date`

func scanAccount(row pgx.Row) (model.Account, error) {
	var a model.Account
	err := row.Scan(&a.AccountID, &a.Name, &a.ARR, &a.OwnerName, &a.Industry, &a.LastActivityDate)
	return a, err
}

// ListAccounts returns all accounts, or only those owned by owner when it is
// non-empty, ordered by account ID.
func (db *DB) ListAccounts(ctx context.Context, owner string) ([]model.Account, error) {
	var out []model.Account
	err := db.read(ctx, "list accounts", func(ctx context.Context) error {
		rows, err := db.pool.Query(ctx, `
			SELECT `+accountColumns+`
			FROM accounts
			WHERE ($1 = '' OR owner_name = $1)
			ORDER BY account_id`, owner)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			a, err := scanAccount(rows)
			if err != nil {
				return err
			}
			out = append(out, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list accounts: %w", err)
	}
	return out, nil
}

// GetAccount returns one account, or ErrNotFound.
func (db *DB) GetAccount(ctx context.Context, accountID string) (model.Account, error) {
	var a model.Account
	err := db.read(ctx, "get account", func(ctx context.Context) error {
		var err error
		a, err = scanAccount(db.pool.QueryRow(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE account_id = $1`, accountID))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, fmt.Errorf("storage: account %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("storage: get account: %w", err)
	}
	return a, nil
}

// GetSupportTier returns the account's support tier, nil if unset, or
// ErrNotFound if the account does not exist.
func (db *DB) GetSupportTier(ctx context.Context, accountID string) (*string, error) {
	var tier *string
	err := db.read(ctx, "get support tier", func(ctx context.Context) error {
		return db.pool.QueryRow(ctx,
			`SELECT support_tier FROM accounts WHERE account_id = $1`, accountID).Scan(&tier)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("storage: account %s: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get support tier: %w", err)
	}
	return tier, nil
}

// ListOwnerNames returns the distinct non-empty account owners, sorted.
func (db *DB) ListOwnerNames(ctx context.Context) ([]string, error) {
	var out []string
	err := db.read(ctx, "list owner names", func(ctx context.Context) error {
		rows, err := db.pool.Query(ctx, `
			SELECT DISTINCT owner_name
			FROM accounts
			WHERE owner_name IS NOT NULL AND owner_name <> ''
			ORDER BY owner_name`)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowTo[string])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list owner names: %w", err)
	}
	return out, nil
}
