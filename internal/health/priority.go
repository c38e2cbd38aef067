package health

import (
	"sort"
	"time"

	"github.com/ashita-ai/kansoku/internal/model"
)

// PriorityScore ranks at-risk revenue: ARR doubled for Critical, ARR as-is
// for At Risk, and zero for every other status regardless of ARR.
func PriorityScore(arr *float64, status model.HealthStatus) float64 {
	var v float64
	if arr != nil {
		v = *arr
	}
	switch status {
	case model.HealthCritical:
		return v * 2
	case model.HealthAtRisk:
		return v
	default:
		return 0
	}
}

// PriorityInput holds the records BuildPriorityList ranks. All maps are keyed
// by account ID and may be missing keys.
type PriorityInput struct {
	Accounts     []model.Account
	Snapshots    []model.HealthSnapshot
	Interactions map[string][]model.InteractionInsight
	OpenTickets  map[string][]model.SupportTicket

	// RenewalAccounts restricts the list to these accounts when non-nil.
	// An empty non-nil set yields an empty list.
	RenewalAccounts map[string]struct{}

	Reference  time.Time
	WindowDays int
}

// BuildPriorityList returns the Critical and At Risk accounts ranked by
// PriorityScore, highest first. Equal scores keep the order of in.Accounts.
// Accounts with no snapshot are skipped. An account whose records fail
// validation is left out and reported in the returned exclusions; the rest of
// the list is still built.
func BuildPriorityList(in PriorityInput) ([]model.PriorityAccount, []Exclusion) {
	current := CurrentSnapshots(in.Snapshots)

	out := make([]model.PriorityAccount, 0, len(current))
	var excluded []Exclusion

	for _, acct := range in.Accounts {
		snap, ok := current[acct.AccountID]
		if !ok {
			continue
		}
		if snap.Status != model.HealthCritical && snap.Status != model.HealthAtRisk {
			continue
		}
		if in.RenewalAccounts != nil {
			if _, ok := in.RenewalAccounts[acct.AccountID]; !ok {
				continue
			}
		}

		interactions := in.Interactions[acct.AccountID]
		if err := validateAll(interactions); err != nil {
			excluded = append(excluded, Exclusion{AccountID: acct.AccountID, Err: err})
			continue
		}

		metrics := CalculateMetrics(interactions, in.OpenTickets[acct.AccountID], acct.LastActivityDate, in.Reference, in.WindowDays)
		recent := InWindow(interactions, in.Reference, in.WindowDays)

		out = append(out, model.PriorityAccount{
			AccountID:     acct.AccountID,
			Name:          acct.Name,
			ARR:           acct.ARR,
			OwnerName:     acct.OwnerName,
			CurrentHealth: snap,
			Metrics:       metrics,
			TopSignals:    TopSignals(metrics, recent),
			PriorityScore: PriorityScore(acct.ARR, snap.Status),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PriorityScore > out[j].PriorityScore
	})
	return out, excluded
}

func validateAll(interactions []model.InteractionInsight) error {
	for _, in := range interactions {
		if err := ValidateInteraction(in); err != nil {
			return err
		}
	}
	return nil
}
