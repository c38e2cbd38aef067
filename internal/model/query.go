package model

import (
	"slices"
	"time"
)

// RecordFilter narrows a time-series or per-account read.
// A nil AccountIDs matches every account; an empty non-nil slice matches none.
// A nil Since applies no lower time bound.
type RecordFilter struct {
	AccountIDs []string   `json:"account_ids,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
}

// ForAccount returns a filter scoped to one account.
func ForAccount(accountID string) RecordFilter {
	return RecordFilter{AccountIDs: []string{accountID}}
}

// MatchesAccount reports whether id passes the account restriction.
func (f RecordFilter) MatchesAccount(id string) bool {
	return f.AccountIDs == nil || slices.Contains(f.AccountIDs, id)
}

// MatchesTime reports whether t is at or after Since.
func (f RecordFilter) MatchesTime(t time.Time) bool {
	return f.Since == nil || !t.Before(*f.Since)
}
