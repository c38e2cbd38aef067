package health

import (
	"fmt"
	"math"
	"strings"

	"github.com/ashita-ai/kansoku/internal/model"
)

// MaxTopSignals caps the signals shown on a priority list row.
const MaxTopSignals = 2

// Signal thresholds.
const (
	concerningSentiment = 50
	ticketSignalMin     = 2
	inactivityDays      = 30
	urgentInactivity    = 60
	ticketFollowUpMin   = 3
	lowInteractionCount = 2
)

// TopSignals returns at most MaxTopSignals human-readable risk signals, in
// fixed priority order: low sentiment, churn signals, open tickets,
// inactivity. Each condition is checked independently; the cap is applied
// last. interactions should be the account's in-window interactions; the
// churn reasons come from the most recent one flagged as a churn risk.
func TopSignals(m model.AccountMetrics, interactions []model.InteractionInsight) []string {
	signals := make([]string, 0, 4)

	if m.AvgSentiment != nil && *m.AvgSentiment < concerningSentiment {
		signals = append(signals, fmt.Sprintf("Sentiment: %d (concerning)", roundInt(*m.AvgSentiment)))
	}

	if m.ChurnSignals > 0 {
		latest := latestChurnInteraction(interactions)
		if latest != nil && len(latest.ChurnReasons) > 0 {
			reasons := latest.ChurnReasons[:min(2, len(latest.ChurnReasons))]
			signals = append(signals, fmt.Sprintf("%d Churn Signals: %s", m.ChurnSignals, strings.Join(reasons, ", ")))
		} else {
			signals = append(signals, fmt.Sprintf("%d Churn Signals detected", m.ChurnSignals))
		}
	}

	if m.OpenTicketCount >= ticketSignalMin {
		signals = append(signals, fmt.Sprintf("%d open tickets", m.OpenTicketCount))
	}

	if m.DaysSinceActivity != nil && *m.DaysSinceActivity > inactivityDays {
		signals = append(signals, fmt.Sprintf("No contact in %d days", *m.DaysSinceActivity))
	}

	if len(signals) > MaxTopSignals {
		signals = signals[:MaxTopSignals]
	}
	return signals
}

// latestChurnInteraction returns the most recent churn-flagged interaction,
// or nil. On equal timestamps the earlier element wins.
func latestChurnInteraction(interactions []model.InteractionInsight) *model.InteractionInsight {
	var latest *model.InteractionInsight
	for i := range interactions {
		in := &interactions[i]
		if !in.ChurnRisk {
			continue
		}
		if latest == nil || in.OccurredAt.After(latest.OccurredAt) {
			latest = in
		}
	}
	return latest
}

// ActionInput is everything ActionItems looks at for one account.
type ActionInput struct {
	Status       model.HealthStatus
	Metrics      model.AccountMetrics
	ChampionLeft bool
	// Interactions are the account's in-window interactions, newest first.
	Interactions []model.InteractionInsight
	WindowDays   int
}

// ActionItems returns the recommended next steps for an account, most
// urgent first. A Healthy account with nothing to act on gets a single
// low-priority "keep going" item; any other status with nothing to act on
// gets none.
func ActionItems(in ActionInput) []model.ActionItem {
	m := in.Metrics
	var items []model.ActionItem
	add := func(p model.ActionPriority, format string, args ...any) {
		items = append(items, model.ActionItem{Priority: p, Text: fmt.Sprintf(format, args...)})
	}

	if m.AvgSentiment != nil && *m.AvgSentiment < concerningSentiment {
		add(model.ActionHigh, "Schedule urgent check-in call - sentiment at %d", roundInt(*m.AvgSentiment))
		for _, it := range in.Interactions {
			if it.SentimentScore < concerningSentiment && len(it.SentimentReasons) > 0 {
				add(model.ActionHigh, "Address concerns: %s", it.SentimentReasons[0])
				break
			}
		}
	}

	if m.ChurnSignals > 0 {
		add(model.ActionHigh, "Review %d churn %s and create mitigation plan", m.ChurnSignals, plural(m.ChurnSignals, "signal", "signals"))
		for _, it := range in.Interactions {
			if it.ChurnRisk && len(it.ChurnReasons) > 0 {
				add(model.ActionHigh, "Address churn risk: %s", it.ChurnReasons[0])
				break
			}
		}
	}

	if in.ChampionLeft {
		add(model.ActionHigh, "Champion has left - identify and onboard new champion")
	}

	if m.OpenTicketCount >= ticketFollowUpMin {
		add(model.ActionMedium, "Follow up on %d open support tickets", m.OpenTicketCount)
	} else if m.OpenTicketCount > 0 {
		add(model.ActionLow, "Monitor %d open %s", m.OpenTicketCount, plural(m.OpenTicketCount, "ticket", "tickets"))
	}

	if d := m.DaysSinceActivity; d != nil && *d > inactivityDays {
		if *d > urgentInactivity {
			add(model.ActionHigh, "No contact in %d days - schedule immediate outreach", *d)
		} else {
			add(model.ActionMedium, "Plan proactive check-in - %d days since last contact", *d)
		}
	}

	if m.InteractionCount < lowInteractionCount {
		add(model.ActionMedium, "Increase engagement frequency - only %d %s in %d days",
			m.InteractionCount, plural(m.InteractionCount, "interaction", "interactions"), in.WindowDays)
	}

	if m.ExpansionSignals > 0 {
		add(model.ActionLow, "Explore %d expansion %s", m.ExpansionSignals, plural(m.ExpansionSignals, "opportunity", "opportunities"))
	}

	if len(items) == 0 && in.Status == model.HealthHealthy {
		add(model.ActionLow, "Continue regular touchpoints and monitor health")
	}
	return items
}

// roundInt rounds half away from zero. Sentiment is never negative, so this
// matches round-half-up for every valid input.
func roundInt(v float64) int {
	return int(math.Round(v))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
