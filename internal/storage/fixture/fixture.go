// Package fixture is an in-memory store loaded from a YAML snapshot of the
// customer-success tables. It serves demos, the operator CLI, and tests with
// the same read contract as the Postgres store.
package fixture

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/kansoku/internal/health"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/storage"
)

// Document is the on-disk YAML layout.
type Document struct {
	Accounts      []Account     `yaml:"accounts"`
	Snapshots     []Snapshot    `yaml:"snapshots"`
	Interactions  []Interaction `yaml:"interactions"`
	Tickets       []Ticket      `yaml:"tickets"`
	Opportunities []Opportunity `yaml:"opportunities"`
	Contacts      []Contact     `yaml:"contacts"`
}

// Account is one row of the accounts table.
type Account struct {
	ID           string     `yaml:"id"`
	Name         string     `yaml:"name"`
	ARR          *float64   `yaml:"arr"`
	Owner        *string    `yaml:"owner"`
	Industry     *string    `yaml:"industry"`
	SupportTier  *string    `yaml:"support_tier"`
	LastActivity *time.Time `yaml:"last_activity"`
}

// Snapshot is one health observation.
type Snapshot struct {
	Account    string    `yaml:"account"`
	Status     string    `yaml:"status"`
	Score      *float64  `yaml:"score"`
	Trend      *string   `yaml:"trend"`
	ObservedAt time.Time `yaml:"observed_at"`
}

// Interaction is one analyzed touchpoint.
type Interaction struct {
	Account          string    `yaml:"account"`
	Type             string    `yaml:"type"`
	Sentiment        float64   `yaml:"sentiment"`
	SentimentReasons []string  `yaml:"sentiment_reasons"`
	ChurnRisk        bool      `yaml:"churn_risk"`
	ChurnReasons     []string  `yaml:"churn_reasons"`
	Expansion        bool      `yaml:"expansion"`
	ExpansionReasons []string  `yaml:"expansion_reasons"`
	Summary          *string   `yaml:"summary"`
	OccurredAt       time.Time `yaml:"occurred_at"`
}

// Ticket is one support ticket.
type Ticket struct {
	Account   string    `yaml:"account"`
	Subject   *string   `yaml:"subject"`
	Status    string    `yaml:"status"`
	Priority  *string   `yaml:"priority"`
	CreatedAt time.Time `yaml:"created_at"`
}

// Opportunity is one pipeline record. CloseDate is YYYY-MM-DD.
type Opportunity struct {
	ID        string   `yaml:"id"`
	Account   string   `yaml:"account"`
	Name      string   `yaml:"name"`
	Type      *string  `yaml:"type"`
	Stage     *string  `yaml:"stage"`
	Amount    *float64 `yaml:"amount"`
	CloseDate string   `yaml:"close_date"`
	Closed    bool     `yaml:"closed"`
}

// Contact is one person at an account.
type Contact struct {
	ID           string     `yaml:"id"`
	Account      string     `yaml:"account"`
	FirstName    *string    `yaml:"first_name"`
	LastName     *string    `yaml:"last_name"`
	Email        *string    `yaml:"email"`
	Title        *string    `yaml:"title"`
	Role         *string    `yaml:"role"`
	LeftCompany  bool       `yaml:"left_company"`
	LastActivity *time.Time `yaml:"last_activity"`
}

// Store serves reads from a loaded Document. It is immutable after Load and
// safe for concurrent use.
type Store struct {
	accounts      []model.Account
	tiers         map[string]*string
	snapshots     []model.HealthSnapshot
	interactions  []model.InteractionInsight
	tickets       []model.SupportTicket
	opportunities []model.Opportunity
	contacts      []model.Contact
}

// Load reads and parses a YAML fixture file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("fixture: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Store from YAML bytes. Records referencing an unknown
// account and duplicate account IDs are rejected.
func Parse(data []byte) (*Store, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture: parse: %w", err)
	}
	return FromDocument(doc)
}

// FromDocument builds a Store from an in-memory Document.
func FromDocument(doc Document) (*Store, error) {
	s := &Store{tiers: make(map[string]*string, len(doc.Accounts))}
	known := func(id, kind string) error {
		if _, ok := s.tiers[id]; !ok {
			return fmt.Errorf("fixture: %s references unknown account %q", kind, id)
		}
		return nil
	}

	for _, a := range doc.Accounts {
		if a.ID == "" {
			return nil, fmt.Errorf("fixture: account with empty id")
		}
		if _, dup := s.tiers[a.ID]; dup {
			return nil, fmt.Errorf("fixture: duplicate account %q", a.ID)
		}
		s.tiers[a.ID] = a.SupportTier
		s.accounts = append(s.accounts, model.Account{
			AccountID:        a.ID,
			Name:             a.Name,
			ARR:              a.ARR,
			OwnerName:        a.Owner,
			Industry:         a.Industry,
			LastActivityDate: utcPtr(a.LastActivity),
		})
	}
	slices.SortFunc(s.accounts, func(a, b model.Account) int { return strings.Compare(a.AccountID, b.AccountID) })

	for i, sn := range doc.Snapshots {
		if err := known(sn.Account, "snapshot"); err != nil {
			return nil, err
		}
		s.snapshots = append(s.snapshots, model.HealthSnapshot{
			ID:         int64(i + 1),
			AccountID:  sn.Account,
			Status:     model.HealthStatus(sn.Status),
			Score:      sn.Score,
			Trend:      model.ParseTrend(sn.Trend),
			ObservedAt: sn.ObservedAt.UTC(),
		})
	}
	for i, in := range doc.Interactions {
		if err := known(in.Account, "interaction"); err != nil {
			return nil, err
		}
		s.interactions = append(s.interactions, model.InteractionInsight{
			ID:                   int64(i + 1),
			AccountID:            in.Account,
			Type:                 in.Type,
			SentimentScore:       in.Sentiment,
			SentimentReasons:     orEmpty(in.SentimentReasons),
			ChurnRisk:            in.ChurnRisk,
			ChurnReasons:         orEmpty(in.ChurnReasons),
			ExpansionOpportunity: in.Expansion,
			ExpansionReasons:     orEmpty(in.ExpansionReasons),
			Summary:              in.Summary,
			OccurredAt:           in.OccurredAt.UTC(),
		})
	}
	for i, t := range doc.Tickets {
		if err := known(t.Account, "ticket"); err != nil {
			return nil, err
		}
		s.tickets = append(s.tickets, model.SupportTicket{
			ID:        int64(i + 1),
			AccountID: t.Account,
			Subject:   t.Subject,
			Status:    t.Status,
			Priority:  t.Priority,
			CreatedAt: t.CreatedAt.UTC(),
		})
	}
	for _, o := range doc.Opportunities {
		if err := known(o.Account, "opportunity"); err != nil {
			return nil, err
		}
		var closeDate *time.Time
		if o.CloseDate != "" {
			d, err := time.Parse(time.DateOnly, o.CloseDate)
			if err != nil {
				return nil, fmt.Errorf("fixture: opportunity %q: close_date: %w", o.ID, err)
			}
			closeDate = &d
		}
		s.opportunities = append(s.opportunities, model.Opportunity{
			ID:        o.ID,
			AccountID: o.Account,
			Name:      o.Name,
			Type:      o.Type,
			Stage:     o.Stage,
			Amount:    o.Amount,
			CloseDate: closeDate,
			IsClosed:  o.Closed,
		})
	}
	for _, c := range doc.Contacts {
		if err := known(c.Account, "contact"); err != nil {
			return nil, err
		}
		s.contacts = append(s.contacts, model.Contact{
			ID:               c.ID,
			AccountID:        c.Account,
			FirstName:        c.FirstName,
			LastName:         c.LastName,
			Email:            c.Email,
			Title:            c.Title,
			CustomerRole:     c.Role,
			LeftCompany:      c.LeftCompany,
			LastActivityDate: utcPtr(c.LastActivity),
		})
	}
	return s, nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// ListAccounts returns accounts owned by owner, or all when owner is empty.
func (s *Store) ListAccounts(ctx context.Context, owner string) ([]model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(health.FilterByOwner(s.accounts, owner)), nil
}

// GetAccount returns one account or storage.ErrNotFound.
func (s *Store) GetAccount(ctx context.Context, accountID string) (model.Account, error) {
	if err := ctx.Err(); err != nil {
		return model.Account{}, err
	}
	for _, a := range s.accounts {
		if a.AccountID == accountID {
			return a, nil
		}
	}
	return model.Account{}, fmt.Errorf("fixture: account %s: %w", accountID, storage.ErrNotFound)
}

// GetSupportTier returns the account's support tier.
func (s *Store) GetSupportTier(ctx context.Context, accountID string) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tier, ok := s.tiers[accountID]
	if !ok {
		return nil, fmt.Errorf("fixture: account %s: %w", accountID, storage.ErrNotFound)
	}
	return tier, nil
}

// ListOwnerNames returns distinct owner names, sorted.
func (s *Store) ListOwnerNames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return health.OwnerNames(s.accounts), nil
}

// ListSnapshots returns snapshots matching f, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, f model.RecordFilter) ([]model.HealthSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.HealthSnapshot
	for _, sn := range s.snapshots {
		if f.MatchesAccount(sn.AccountID) && f.MatchesTime(sn.ObservedAt) {
			out = append(out, sn)
		}
	}
	slices.SortStableFunc(out, func(a, b model.HealthSnapshot) int { return a.ObservedAt.Compare(b.ObservedAt) })
	return out, nil
}

// ListCurrentSnapshots returns the latest snapshot per matching account.
func (s *Store) ListCurrentSnapshots(ctx context.Context, f model.RecordFilter) ([]model.HealthSnapshot, error) {
	all, err := s.ListSnapshots(ctx, model.RecordFilter{AccountIDs: f.AccountIDs})
	if err != nil {
		return nil, err
	}
	latest := make(map[string]int)
	var out []model.HealthSnapshot
	for _, sn := range all {
		i, ok := latest[sn.AccountID]
		switch {
		case !ok:
			latest[sn.AccountID] = len(out)
			out = append(out, sn)
		case sn.ObservedAt.After(out[i].ObservedAt):
			out[i] = sn
		}
	}
	return out, nil
}

// ListInteractions returns interactions matching f, newest first.
func (s *Store) ListInteractions(ctx context.Context, f model.RecordFilter) ([]model.InteractionInsight, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.InteractionInsight
	for _, in := range s.interactions {
		if f.MatchesAccount(in.AccountID) && f.MatchesTime(in.OccurredAt) {
			out = append(out, in)
		}
	}
	slices.SortStableFunc(out, func(a, b model.InteractionInsight) int { return b.OccurredAt.Compare(a.OccurredAt) })
	return out, nil
}

// ListOpenTickets returns open-state tickets for matching accounts, newest first.
func (s *Store) ListOpenTickets(ctx context.Context, f model.RecordFilter) ([]model.SupportTicket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.SupportTicket
	for _, t := range s.tickets {
		if f.MatchesAccount(t.AccountID) && slices.Contains(model.OpenTicketStatuses, t.Status) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b model.SupportTicket) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

// ListOpportunities returns every opportunity for matching accounts.
func (s *Store) ListOpportunities(ctx context.Context, f model.RecordFilter) ([]model.Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.Opportunity
	for _, o := range s.opportunities {
		if f.MatchesAccount(o.AccountID) {
			out = append(out, o)
		}
	}
	return out, nil
}

// ListUpcomingRenewals returns open renewals closing on or before the date of
// horizonEnd, matching the date comparison the SQL store makes.
func (s *Store) ListUpcomingRenewals(ctx context.Context, horizonEnd time.Time) ([]model.Opportunity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.Opportunity
	for _, o := range s.opportunities {
		if health.RenewalDueBy(o, horizonEnd) {
			out = append(out, o)
		}
	}
	return out, nil
}

// ListContacts returns the account's contacts, most recently active first,
// in the order the SQL store uses.
func (s *Store) ListContacts(ctx context.Context, accountID string) ([]model.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []model.Contact
	for _, c := range s.contacts {
		if c.AccountID == accountID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, compareContacts)
	return out, nil
}

// compareContacts orders by last activity descending with nil last, then ID.
func compareContacts(a, b model.Contact) int {
	switch {
	case a.LastActivityDate == nil && b.LastActivityDate != nil:
		return 1
	case a.LastActivityDate != nil && b.LastActivityDate == nil:
		return -1
	case a.LastActivityDate != nil:
		if c := b.LastActivityDate.Compare(*a.LastActivityDate); c != 0 {
			return c
		}
	}
	return strings.Compare(a.ID, b.ID)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
