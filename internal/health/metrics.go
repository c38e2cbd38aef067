// Package health turns raw account records into health metrics, ranked
// signals, recommended actions, priority scores, and portfolio aggregates.
//
// Every function here is pure: given the same records and reference time it
// returns the same result. Nothing is cached and nothing is written back.
// Null inputs stay null where they feed health math (sentiment, score); only
// ARR and opportunity amounts default to 0, and only when summed.
package health

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/ashita-ai/kansoku/internal/model"
)

// Default window sizes, in days.
const (
	DefaultWindowDays         = 90
	DefaultRenewalHorizonDays = 90
)

const day = 24 * time.Hour

// WindowStart returns the inclusive lower bound of a windowDays-long window
// ending at ref.
func WindowStart(ref time.Time, windowDays int) time.Time {
	return ref.Add(-time.Duration(windowDays) * day)
}

// InWindow returns the interactions that occurred at or after the window
// start, newest first. Interactions with equal timestamps keep their input
// order. The input slice is not modified.
func InWindow(interactions []model.InteractionInsight, ref time.Time, windowDays int) []model.InteractionInsight {
	start := WindowStart(ref, windowDays)
	out := make([]model.InteractionInsight, 0, len(interactions))
	for _, in := range interactions {
		if !in.OccurredAt.Before(start) {
			out = append(out, in)
		}
	}
	slices.SortStableFunc(out, func(a, b model.InteractionInsight) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	return out
}

// CalculateMetrics derives rolling-window metrics for one account.
//
// interactions is every known interaction for the account; the window filter
// is applied here. openTickets must already be restricted to open states by
// the caller and is counted as-is. lastActivity is the account-level activity
// timestamp, which may be nil.
//
// DaysSinceActivity is not clamped: a lastActivity after ref yields a
// negative day count.
func CalculateMetrics(
	interactions []model.InteractionInsight,
	openTickets []model.SupportTicket,
	lastActivity *time.Time,
	ref time.Time,
	windowDays int,
) model.AccountMetrics {
	recent := InWindow(interactions, ref, windowDays)

	m := model.AccountMetrics{
		InteractionCount: len(recent),
		OpenTicketCount:  len(openTickets),
	}

	if len(recent) > 0 {
		var sum float64
		for _, in := range recent {
			sum += in.SentimentScore
			if in.ChurnRisk {
				m.ChurnSignals++
			}
			if in.ExpansionOpportunity {
				m.ExpansionSignals++
			}
		}
		avg := sum / float64(len(recent))
		m.AvgSentiment = &avg
	}

	var mostRecent *time.Time
	if len(recent) > 0 {
		t := recent[0].OccurredAt
		mostRecent = &t
	}
	if lastActivity != nil && (mostRecent == nil || lastActivity.After(*mostRecent)) {
		t := *lastActivity
		mostRecent = &t
	}
	if mostRecent != nil {
		days := int(math.Floor(ref.Sub(*mostRecent).Hours() / 24))
		m.DaysSinceActivity = &days
	}
	m.LastActivityLabel = DaysAgoLabel(m.DaysSinceActivity)

	return m
}

// DaysAgoLabel formats a day count compactly: "Today", "Yesterday", "12d ago",
// or "N/A" when unknown.
func DaysAgoLabel(days *int) string {
	if days == nil {
		return "N/A"
	}
	switch *days {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	default:
		return fmt.Sprintf("%dd ago", *days)
	}
}

// Record validation errors. Records failing validation are excluded from
// aggregation instead of aborting it.
var (
	ErrMissingTimestamp = errors.New("health: record has no timestamp")
	ErrScoreOutOfRange  = errors.New("health: score outside 0-100")
)

// ValidateInteraction checks the fields CalculateMetrics relies on.
func ValidateInteraction(in model.InteractionInsight) error {
	if in.OccurredAt.IsZero() {
		return fmt.Errorf("interaction %d: %w", in.ID, ErrMissingTimestamp)
	}
	if !validScore(in.SentimentScore) {
		return fmt.Errorf("interaction %d: sentiment %v: %w", in.ID, in.SentimentScore, ErrScoreOutOfRange)
	}
	return nil
}

// ValidateSnapshot checks the fields the portfolio aggregations rely on.
// A nil score is valid; an unrecognized status is valid and simply falls
// outside every tier bucket.
func ValidateSnapshot(s model.HealthSnapshot) error {
	if s.ObservedAt.IsZero() {
		return fmt.Errorf("snapshot %d: %w", s.ID, ErrMissingTimestamp)
	}
	if s.Score != nil && !validScore(*s.Score) {
		return fmt.Errorf("snapshot %d: score %v: %w", s.ID, *s.Score, ErrScoreOutOfRange)
	}
	return nil
}

func validScore(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

// Exclusion records an account left out of an aggregate because one of its
// records was malformed.
type Exclusion struct {
	AccountID string
	Err       error
}

// PartitionSnapshots splits snapshots into valid ones and exclusions.
func PartitionSnapshots(snaps []model.HealthSnapshot) ([]model.HealthSnapshot, []Exclusion) {
	valid := make([]model.HealthSnapshot, 0, len(snaps))
	var excluded []Exclusion
	for _, s := range snaps {
		if err := ValidateSnapshot(s); err != nil {
			excluded = append(excluded, Exclusion{AccountID: s.AccountID, Err: err})
			continue
		}
		valid = append(valid, s)
	}
	return valid, excluded
}
