package health

import (
	"slices"
	"time"

	"github.com/ashita-ai/kansoku/internal/clock"
	"github.com/ashita-ai/kansoku/internal/model"
)

// CurrentSnapshots returns the most recent snapshot per account. When two
// snapshots share an observedAt the first one seen wins.
func CurrentSnapshots(snaps []model.HealthSnapshot) map[string]model.HealthSnapshot {
	current := make(map[string]model.HealthSnapshot, len(snaps))
	for _, s := range snaps {
		prev, ok := current[s.AccountID]
		if !ok || s.ObservedAt.After(prev.ObservedAt) {
			current[s.AccountID] = s
		}
	}
	return current
}

// RenewalHorizonEnd is the last calendar date (midnight UTC) a renewal may
// close on to count as upcoming.
func RenewalHorizonEnd(ref time.Time, horizonDays int) time.Time {
	return clock.StartOfDay(ref).AddDate(0, 0, horizonDays)
}

// IsUpcomingRenewal reports whether o is an open Renewal closing on or before
// the horizon end. There is no lower bound: overdue open renewals count.
func IsUpcomingRenewal(o model.Opportunity, ref time.Time, horizonDays int) bool {
	return RenewalDueBy(o, RenewalHorizonEnd(ref, horizonDays))
}

// RenewalDueBy reports whether o is an open Renewal whose close date falls on
// or before the calendar date of horizonEnd.
func RenewalDueBy(o model.Opportunity, horizonEnd time.Time) bool {
	if o.IsClosed || !o.IsRenewal() || o.CloseDate == nil {
		return false
	}
	return !clock.StartOfDay(*o.CloseDate).After(clock.StartOfDay(horizonEnd))
}

// AccountSet returns the set of account IDs the opportunities belong to.
func AccountSet(opps []model.Opportunity) map[string]struct{} {
	set := make(map[string]struct{}, len(opps))
	for _, o := range opps {
		set[o.AccountID] = struct{}{}
	}
	return set
}

// FilterByOwner returns the accounts owned by owner. An empty owner matches
// every account.
func FilterByOwner(accounts []model.Account, owner string) []model.Account {
	if owner == "" {
		return accounts
	}
	out := make([]model.Account, 0, len(accounts))
	for _, a := range accounts {
		if a.OwnerName != nil && *a.OwnerName == owner {
			out = append(out, a)
		}
	}
	return out
}

// OwnerNames returns the distinct non-empty owner names, sorted.
func OwnerNames(accounts []model.Account) []string {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, a := range accounts {
		if a.OwnerName == nil || *a.OwnerName == "" {
			continue
		}
		if _, ok := seen[*a.OwnerName]; ok {
			continue
		}
		seen[*a.OwnerName] = struct{}{}
		names = append(names, *a.OwnerName)
	}
	slices.Sort(names)
	return names
}

// DashboardStats buckets the current snapshot of every account by status,
// summing count and ARR. A snapshot whose account is unknown counts with ARR
// 0. Renewal totals come from renewals, which the caller has already limited
// to upcoming renewals; they are not filtered by health.
func DashboardStats(accounts []model.Account, snaps []model.HealthSnapshot, renewals []model.Opportunity) model.PortfolioStats {
	arr := arrByAccount(accounts)

	var st model.PortfolioStats
	for id, s := range CurrentSnapshots(snaps) {
		a := arr[id]
		switch s.Status {
		case model.HealthCritical:
			st.CriticalCount++
			st.CriticalARR += a
		case model.HealthAtRisk:
			st.AtRiskCount++
			st.AtRiskARR += a
		case model.HealthHealthy:
			st.HealthyCount++
			st.HealthyARR += a
		}
	}

	for _, o := range renewals {
		st.RenewalsCount++
		st.RenewalsARR += o.AmountOrZero()
	}
	return st
}

// OverviewStats summarizes accounts, which the caller has already scoped to
// an owner if needed. Only current snapshots of those accounts are read.
//
// AvgHealthScore is nil when no current snapshot carries a score.
// ChurnRiskPercent is 0 when total ARR is 0.
func OverviewStats(accounts []model.Account, snaps []model.HealthSnapshot) model.PortfolioOverviewStats {
	current := CurrentSnapshots(snaps)

	st := model.PortfolioOverviewStats{AccountCount: len(accounts)}
	var riskARR, scoreSum float64
	var scored int

	for _, a := range accounts {
		arr := a.ARROrZero()
		st.TotalARR += arr

		s, ok := current[a.AccountID]
		if !ok {
			continue
		}
		if s.Score != nil {
			scoreSum += *s.Score
			scored++
		}
		if s.Status == model.HealthCritical || s.Status == model.HealthAtRisk {
			riskARR += arr
		}
	}

	if scored > 0 {
		avg := scoreSum / float64(scored)
		st.AvgHealthScore = &avg
	}
	if st.TotalARR > 0 {
		st.ChurnRiskPercent = riskARR / st.TotalARR * 100
	}
	return st
}

// HealthHistory averages snapshot scores per UTC calendar date over the
// trailing days window. accountIDs restricts the snapshots considered when
// non-nil. Null scores are skipped and dates with no scores are omitted.
// Points are returned in ascending date order.
func HealthHistory(snaps []model.HealthSnapshot, accountIDs map[string]struct{}, ref time.Time, days int) []model.HealthHistoryPoint {
	start := WindowStart(ref, days)

	type acc struct {
		sum   float64
		count int
	}
	byDate := make(map[string]*acc)

	for _, s := range snaps {
		if s.Score == nil || s.ObservedAt.Before(start) {
			continue
		}
		if accountIDs != nil {
			if _, ok := accountIDs[s.AccountID]; !ok {
				continue
			}
		}
		key := s.ObservedAt.UTC().Format(clock.DateLayout)
		a := byDate[key]
		if a == nil {
			a = &acc{}
			byDate[key] = a
		}
		a.sum += *s.Score
		a.count++
	}

	points := make([]model.HealthHistoryPoint, 0, len(byDate))
	for date, a := range byDate {
		points = append(points, model.HealthHistoryPoint{Date: date, AvgHealthScore: a.sum / float64(a.count)})
	}
	slices.SortFunc(points, func(x, y model.HealthHistoryPoint) int {
		switch {
		case x.Date < y.Date:
			return -1
		case x.Date > y.Date:
			return 1
		default:
			return 0
		}
	})
	return points
}

// RenewalForecast buckets accounts with an upcoming renewal by the status of
// their current snapshot. Each account counts once with its own ARR, however
// many renewals it has. Accounts with no snapshot or an unrecognized status
// are left out of every bucket and the total.
func RenewalForecast(accounts []model.Account, snaps []model.HealthSnapshot, renewals []model.Opportunity) model.RenewalForecast {
	renewing := AccountSet(renewals)
	current := CurrentSnapshots(snaps)

	var f model.RenewalForecast
	for _, a := range accounts {
		if _, ok := renewing[a.AccountID]; !ok {
			continue
		}
		s, ok := current[a.AccountID]
		if !ok {
			continue
		}
		var b *model.ForecastBucket
		switch s.Status {
		case model.HealthHealthy:
			b = &f.Healthy
		case model.HealthAtRisk:
			b = &f.AtRisk
		case model.HealthCritical:
			b = &f.Critical
		default:
			continue
		}
		b.ARR += a.ARROrZero()
		b.Count++
	}

	f.Total.ARR = f.Healthy.ARR + f.AtRisk.ARR + f.Critical.ARR
	f.Total.Count = f.Healthy.Count + f.AtRisk.Count + f.Critical.Count
	if f.Total.ARR > 0 {
		f.Healthy.Percent = f.Healthy.ARR / f.Total.ARR * 100
		f.AtRisk.Percent = f.AtRisk.ARR / f.Total.ARR * 100
		f.Critical.Percent = f.Critical.ARR / f.Total.ARR * 100
	}
	return f
}

// AccountIDs returns the set of IDs of accounts.
func AccountIDs(accounts []model.Account) map[string]struct{} {
	set := make(map[string]struct{}, len(accounts))
	for _, a := range accounts {
		set[a.AccountID] = struct{}{}
	}
	return set
}

func arrByAccount(accounts []model.Account) map[string]float64 {
	m := make(map[string]float64, len(accounts))
	for _, a := range accounts {
		m[a.AccountID] = a.ARROrZero()
	}
	return m
}
