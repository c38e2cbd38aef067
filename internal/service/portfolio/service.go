// Package portfolio provides the read operations behind every dashboard view.
//
// Both the HTTP API and the MCP server delegate here. Each operation fans out
// its independent store reads concurrently and joins them all-or-nothing: if
// any read fails, the whole operation fails, the failure is logged, and the
// caller receives an empty result alongside the error. Computation is done by
// the pure functions in internal/health.
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/kansoku/internal/clock"
	"github.com/ashita-ai/kansoku/internal/health"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/storage"
	"github.com/ashita-ai/kansoku/internal/telemetry"
)

// Store is the read contract the service needs. storage.DB and
// fixture.Store implement it.
type Store interface {
	Ping(ctx context.Context) error
	ListAccounts(ctx context.Context, owner string) ([]model.Account, error)
	GetAccount(ctx context.Context, accountID string) (model.Account, error)
	GetSupportTier(ctx context.Context, accountID string) (*string, error)
	ListOwnerNames(ctx context.Context) ([]string, error)
	ListSnapshots(ctx context.Context, f model.RecordFilter) ([]model.HealthSnapshot, error)
	ListCurrentSnapshots(ctx context.Context, f model.RecordFilter) ([]model.HealthSnapshot, error)
	ListInteractions(ctx context.Context, f model.RecordFilter) ([]model.InteractionInsight, error)
	ListOpenTickets(ctx context.Context, f model.RecordFilter) ([]model.SupportTicket, error)
	ListOpportunities(ctx context.Context, f model.RecordFilter) ([]model.Opportunity, error)
	ListUpcomingRenewals(ctx context.Context, horizonEnd time.Time) ([]model.Opportunity, error)
	ListContacts(ctx context.Context, accountID string) ([]model.Contact, error)
}

// Config sets the rolling windows. Zero values fall back to 90 days.
type Config struct {
	WindowDays         int
	RenewalHorizonDays int
}

// History window bounds, in days.
const (
	DefaultHistoryDays = 90
	MaxHistoryDays     = 365
)

// Service runs the read operations.
type Service struct {
	store  Store
	clock  clock.Clock
	logger *slog.Logger

	windowDays  int
	horizonDays int

	readFailures metric.Int64Counter
	exclusions   metric.Int64Counter
}

// New creates a Service.
func New(store Store, clk clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = health.DefaultWindowDays
	}
	if cfg.RenewalHorizonDays <= 0 {
		cfg.RenewalHorizonDays = health.DefaultRenewalHorizonDays
	}
	meter := telemetry.Meter("kansoku/portfolio")
	failures, _ := meter.Int64Counter("kansoku.portfolio.read_failures",
		metric.WithDescription("Composite reads that failed and returned an empty result"),
	)
	excluded, _ := meter.Int64Counter("kansoku.portfolio.exclusions",
		metric.WithDescription("Accounts left out of an aggregate because of malformed records"),
	)
	return &Service{
		store:        store,
		clock:        clk,
		logger:       logger,
		windowDays:   cfg.WindowDays,
		horizonDays:  cfg.RenewalHorizonDays,
		readFailures: failures,
		exclusions:   excluded,
	}
}

// ReferenceTime returns the "now" every operation is anchored to.
func (s *Service) ReferenceTime() time.Time {
	return s.clock.Now()
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// PriorityList returns Critical and At Risk accounts ranked by priority
// score. With renewalsOnly, only accounts with an upcoming renewal are kept.
func (s *Service) PriorityList(ctx context.Context, renewalsOnly bool) ([]model.PriorityAccount, error) {
	const op = "priority_list"
	ref := s.clock.Now()
	trace.SpanFromContext(ctx).SetAttributes(attribute.Bool("kansoku.renewals_only", renewalsOnly))

	var (
		accounts []model.Account
		snaps    []model.HealthSnapshot
		renewals []model.Opportunity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccounts(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		snaps, err = s.store.ListCurrentSnapshots(gctx, model.RecordFilter{})
		return err
	})
	if renewalsOnly {
		g.Go(func() (err error) {
			renewals, err = s.store.ListUpcomingRenewals(gctx, health.RenewalHorizonEnd(ref, s.horizonDays))
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return []model.PriorityAccount{}, s.fail(ctx, op, err)
	}

	snaps = s.sanitize(ctx, op, snaps)
	var atRisk []string
	for _, sn := range snaps {
		if sn.Status == model.HealthCritical || sn.Status == model.HealthAtRisk {
			atRisk = append(atRisk, sn.AccountID)
		}
	}
	if len(atRisk) == 0 {
		return []model.PriorityAccount{}, nil
	}

	since := health.WindowStart(ref, s.windowDays)
	var (
		interactions []model.InteractionInsight
		tickets      []model.SupportTicket
	)
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		interactions, err = s.store.ListInteractions(gctx, model.RecordFilter{AccountIDs: atRisk, Since: &since})
		return err
	})
	g.Go(func() (err error) {
		tickets, err = s.store.ListOpenTickets(gctx, model.RecordFilter{AccountIDs: atRisk})
		return err
	})
	if err := g.Wait(); err != nil {
		return []model.PriorityAccount{}, s.fail(ctx, op, err)
	}

	in := health.PriorityInput{
		Accounts:     accounts,
		Snapshots:    snaps,
		Interactions: groupBy(interactions, func(i model.InteractionInsight) string { return i.AccountID }),
		OpenTickets:  groupBy(tickets, func(t model.SupportTicket) string { return t.AccountID }),
		Reference:    ref,
		WindowDays:   s.windowDays,
	}
	if renewalsOnly {
		in.RenewalAccounts = health.AccountSet(renewals)
	}
	list, excluded := health.BuildPriorityList(in)
	s.logExclusions(ctx, op, excluded)
	return list, nil
}

// DashboardStats returns fleet-wide counts and ARR by health tier plus
// upcoming renewal totals.
func (s *Service) DashboardStats(ctx context.Context) (model.PortfolioStats, error) {
	const op = "dashboard_stats"
	ref := s.clock.Now()

	var (
		accounts []model.Account
		snaps    []model.HealthSnapshot
		renewals []model.Opportunity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccounts(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		snaps, err = s.store.ListCurrentSnapshots(gctx, model.RecordFilter{})
		return err
	})
	g.Go(func() (err error) {
		renewals, err = s.store.ListUpcomingRenewals(gctx, health.RenewalHorizonEnd(ref, s.horizonDays))
		return err
	})
	if err := g.Wait(); err != nil {
		return model.PortfolioStats{}, s.fail(ctx, op, err)
	}

	return health.DashboardStats(accounts, s.sanitize(ctx, op, snaps), renewals), nil
}

// AccountDetail returns the full picture of one account. It returns nil
// with a nil error when the account does not exist, has never been scored,
// or its latest snapshot is malformed.
func (s *Service) AccountDetail(ctx context.Context, accountID string) (*model.AccountDetail, error) {
	const op = "account_detail"
	ref := s.clock.Now()
	since := health.WindowStart(ref, s.windowDays)
	one := model.ForAccount(accountID)
	windowed := model.RecordFilter{AccountIDs: one.AccountIDs, Since: &since}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("kansoku.account_id", accountID))

	var (
		account       model.Account
		current       []model.HealthSnapshot
		history       []model.HealthSnapshot
		interactions  []model.InteractionInsight
		contacts      []model.Contact
		tickets       []model.SupportTicket
		opportunities []model.Opportunity
		tier          *string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		account, err = s.store.GetAccount(gctx, accountID)
		return err
	})
	g.Go(func() (err error) {
		current, err = s.store.ListCurrentSnapshots(gctx, one)
		return err
	})
	g.Go(func() (err error) {
		history, err = s.store.ListSnapshots(gctx, windowed)
		return err
	})
	g.Go(func() (err error) {
		interactions, err = s.store.ListInteractions(gctx, windowed)
		return err
	})
	g.Go(func() (err error) {
		contacts, err = s.store.ListContacts(gctx, accountID)
		return err
	})
	g.Go(func() (err error) {
		tickets, err = s.store.ListOpenTickets(gctx, one)
		return err
	})
	g.Go(func() (err error) {
		opportunities, err = s.store.ListOpportunities(gctx, one)
		return err
	})
	g.Go(func() (err error) {
		tier, err = s.store.GetSupportTier(gctx, accountID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.DebugContext(ctx, "portfolio: account not found", "op", op, "account_id", accountID)
			return nil, nil
		}
		return nil, s.fail(ctx, op, err, "account_id", accountID)
	}

	// A malformed latest snapshot hides the account; an older one never
	// stands in for it.
	current, excluded := health.PartitionSnapshots(current)
	if len(excluded) > 0 {
		s.logExclusions(ctx, op, excluded)
		return nil, nil
	}
	snaps := mergeSnapshots(current, s.sanitize(ctx, op, history))
	detail, ok := health.BuildAccountDetail(health.DetailInput{
		Account:            account,
		Snapshots:          snaps,
		Interactions:       s.validInteractions(ctx, op, interactions),
		Contacts:           contacts,
		OpenTickets:        tickets,
		Opportunities:      opportunities,
		SupportTier:        tier,
		Reference:          ref,
		WindowDays:         s.windowDays,
		RenewalHorizonDays: s.horizonDays,
	})
	if !ok {
		s.logger.DebugContext(ctx, "portfolio: account has no health snapshot", "op", op, "account_id", accountID)
		return nil, nil
	}
	return &detail, nil
}

// OverviewStats summarizes the portfolio, optionally scoped to one owner.
func (s *Service) OverviewStats(ctx context.Context, owner string) (model.PortfolioOverviewStats, error) {
	const op = "portfolio_overview"

	var (
		accounts []model.Account
		snaps    []model.HealthSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccounts(gctx, owner)
		return err
	})
	g.Go(func() (err error) {
		snaps, err = s.store.ListCurrentSnapshots(gctx, model.RecordFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return model.PortfolioOverviewStats{}, s.fail(ctx, op, err, "owner", owner)
	}

	return health.OverviewStats(accounts, s.sanitize(ctx, op, snaps)), nil
}

// HealthHistory returns the daily average health score over the trailing
// days, optionally scoped to one owner. days is clamped to
// [1, MaxHistoryDays].
func (s *Service) HealthHistory(ctx context.Context, days int, owner string) ([]model.HealthHistoryPoint, error) {
	const op = "portfolio_history"
	ref := s.clock.Now()
	days = ClampHistoryDays(days)
	since := health.WindowStart(ref, days)

	var (
		accounts []model.Account
		snaps    []model.HealthSnapshot
	)
	g, gctx := errgroup.WithContext(ctx)
	if owner != "" {
		g.Go(func() (err error) {
			accounts, err = s.store.ListAccounts(gctx, owner)
			return err
		})
	}
	g.Go(func() (err error) {
		snaps, err = s.store.ListSnapshots(gctx, model.RecordFilter{Since: &since})
		return err
	})
	if err := g.Wait(); err != nil {
		return []model.HealthHistoryPoint{}, s.fail(ctx, op, err, "owner", owner)
	}

	var scope map[string]struct{}
	if owner != "" {
		scope = health.AccountIDs(accounts)
	}
	return health.HealthHistory(s.sanitize(ctx, op, snaps), scope, ref, days), nil
}

// RenewalForecast breaks down upcoming renewals by account health,
// optionally scoped to one owner.
func (s *Service) RenewalForecast(ctx context.Context, owner string) (model.RenewalForecast, error) {
	const op = "renewal_forecast"
	ref := s.clock.Now()

	var (
		accounts []model.Account
		snaps    []model.HealthSnapshot
		renewals []model.Opportunity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accounts, err = s.store.ListAccounts(gctx, owner)
		return err
	})
	g.Go(func() (err error) {
		snaps, err = s.store.ListCurrentSnapshots(gctx, model.RecordFilter{})
		return err
	})
	g.Go(func() (err error) {
		renewals, err = s.store.ListUpcomingRenewals(gctx, health.RenewalHorizonEnd(ref, s.horizonDays))
		return err
	})
	if err := g.Wait(); err != nil {
		return model.RenewalForecast{}, s.fail(ctx, op, err, "owner", owner)
	}

	return health.RenewalForecast(accounts, s.sanitize(ctx, op, snaps), renewals), nil
}

// Owners returns the distinct account owner names, sorted.
func (s *Service) Owners(ctx context.Context) ([]string, error) {
	names, err := s.store.ListOwnerNames(ctx)
	if err != nil {
		return []string{}, s.fail(ctx, "owner_list", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// ClampHistoryDays bounds a requested history window to [1, MaxHistoryDays].
// Callers substitute DefaultHistoryDays for an absent value before clamping.
func ClampHistoryDays(days int) int {
	switch {
	case days < 1:
		return 1
	case days > MaxHistoryDays:
		return MaxHistoryDays
	default:
		return days
	}
}

// fail logs a failed composite read and wraps err for the caller.
func (s *Service) fail(ctx context.Context, op string, err error, attrs ...any) error {
	s.readFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
	s.logger.ErrorContext(ctx, "portfolio: read failed", append([]any{"op", op, "error", err}, attrs...)...)
	return fmt.Errorf("portfolio: %s: %w", op, err)
}

// sanitize drops malformed snapshots, logging each exclusion.
func (s *Service) sanitize(ctx context.Context, op string, snaps []model.HealthSnapshot) []model.HealthSnapshot {
	valid, excluded := health.PartitionSnapshots(snaps)
	s.logExclusions(ctx, op, excluded)
	return valid
}

func (s *Service) validInteractions(ctx context.Context, op string, in []model.InteractionInsight) []model.InteractionInsight {
	out := make([]model.InteractionInsight, 0, len(in))
	for _, it := range in {
		if err := health.ValidateInteraction(it); err != nil {
			s.logExclusions(ctx, op, []health.Exclusion{{AccountID: it.AccountID, Err: err}})
			continue
		}
		out = append(out, it)
	}
	return out
}

func (s *Service) logExclusions(ctx context.Context, op string, excluded []health.Exclusion) {
	if len(excluded) == 0 {
		return
	}
	s.exclusions.Add(ctx, int64(len(excluded)), metric.WithAttributes(attribute.String("op", op)))
	for _, e := range excluded {
		s.logger.WarnContext(ctx, "portfolio: excluded malformed record", "op", op, "account_id", e.AccountID, "error", e.Err)
	}
}

// mergeSnapshots appends current to history unless history already holds it.
func mergeSnapshots(current, history []model.HealthSnapshot) []model.HealthSnapshot {
	out := make([]model.HealthSnapshot, 0, len(history)+len(current))
	out = append(out, history...)
	seen := make(map[int64]struct{}, len(history))
	for _, h := range history {
		seen[h.ID] = struct{}{}
	}
	for _, c := range current {
		if _, ok := seen[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func groupBy[T any](items []T, key func(T) string) map[string][]T {
	m := make(map[string][]T)
	for _, it := range items {
		k := key(it)
		m[k] = append(m[k], it)
	}
	return m
}
