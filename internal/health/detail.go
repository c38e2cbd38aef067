package health

import (
	"slices"
	"time"

	"github.com/ashita-ai/kansoku/internal/clock"
	"github.com/ashita-ai/kansoku/internal/model"
)

// DetailInput holds the raw records read for one account.
type DetailInput struct {
	Account       model.Account
	Snapshots     []model.HealthSnapshot
	Interactions  []model.InteractionInsight
	Contacts      []model.Contact
	OpenTickets   []model.SupportTicket
	Opportunities []model.Opportunity
	SupportTier   *string

	Reference          time.Time
	WindowDays         int
	RenewalHorizonDays int
}

// BuildAccountDetail assembles the detail view of one account. It returns
// false when the account has no snapshot, which callers treat as not found.
//
// Interactions dated after the end of the reference day are dropped so a
// demo reference date never shows future touchpoints.
func BuildAccountDetail(in DetailInput) (model.AccountDetail, bool) {
	if len(in.Snapshots) == 0 {
		return model.AccountDetail{}, false
	}
	current := CurrentSnapshots(in.Snapshots)[in.Account.AccountID]
	if current.ObservedAt.IsZero() {
		return model.AccountDetail{}, false
	}

	start := WindowStart(in.Reference, in.WindowDays)
	history := make([]model.HealthSnapshot, 0, len(in.Snapshots))
	for _, s := range in.Snapshots {
		if !s.ObservedAt.Before(start) {
			history = append(history, s)
		}
	}
	slices.SortStableFunc(history, func(a, b model.HealthSnapshot) int {
		return a.ObservedAt.Compare(b.ObservedAt)
	})

	endOfDay := clock.EndOfDay(in.Reference)
	interactions := make([]model.InteractionInsight, 0, len(in.Interactions))
	for _, it := range InWindow(in.Interactions, in.Reference, in.WindowDays) {
		if !it.OccurredAt.After(endOfDay) {
			interactions = append(interactions, it)
		}
	}

	tickets := slices.Clone(in.OpenTickets)
	slices.SortStableFunc(tickets, func(a, b model.SupportTicket) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	opps := make([]model.Opportunity, 0, len(in.Opportunities))
	for _, o := range in.Opportunities {
		if !o.IsClosed {
			opps = append(opps, o)
		}
	}
	slices.SortStableFunc(opps, compareCloseDate)

	var renewal *model.Opportunity
	for i := range opps {
		if IsUpcomingRenewal(opps[i], in.Reference, in.RenewalHorizonDays) {
			r := opps[i]
			renewal = &r
			break
		}
	}

	championLeft := slices.ContainsFunc(in.Contacts, model.Contact.IsDepartedChampion)

	metrics := CalculateMetrics(interactions, tickets, in.Account.LastActivityDate, in.Reference, in.WindowDays)

	return model.AccountDetail{
		Account:            in.Account,
		CurrentHealth:      current,
		HealthHistory:      history,
		RecentInteractions: interactions,
		Contacts:           nonNil(in.Contacts),
		OpenTickets:        tickets,
		Opportunities:      opps,
		RenewalOpportunity: renewal,
		SupportTier:        in.SupportTier,
		Metrics:            metrics,
		ChampionLeft:       championLeft,
		ActionItems: ActionItems(ActionInput{
			Status:       current.Status,
			Metrics:      metrics,
			ChampionLeft: championLeft,
			Interactions: interactions,
			WindowDays:   in.WindowDays,
		}),
	}, true
}

// compareCloseDate orders by close date ascending with missing dates last.
func compareCloseDate(a, b model.Opportunity) int {
	switch {
	case a.CloseDate == nil && b.CloseDate == nil:
		return 0
	case a.CloseDate == nil:
		return 1
	case b.CloseDate == nil:
		return -1
	default:
		return a.CloseDate.Compare(*b.CloseDate)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
