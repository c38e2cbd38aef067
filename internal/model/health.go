package model

// AccountMetrics are rolling-window metrics derived from an account's raw
// interaction, ticket, and activity records. Nil pointers mean "no data",
// which is distinct from zero.
type AccountMetrics struct {
	AvgSentiment      *float64 `json:"avg_sentiment"`
	InteractionCount  int      `json:"interaction_count"`
	ChurnSignals      int      `json:"churn_signals"`
	ExpansionSignals  int      `json:"expansion_signals"`
	OpenTicketCount   int      `json:"open_ticket_count"`
	DaysSinceActivity *int     `json:"days_since_activity"`
	LastActivityLabel string   `json:"last_activity_label"`
}

// PriorityAccount is one row of the prioritized at-risk account list.
type PriorityAccount struct {
	AccountID     string         `json:"account_id"`
	Name          string         `json:"name"`
	ARR           *float64       `json:"arr"`
	OwnerName     *string        `json:"owner_name"`
	CurrentHealth HealthSnapshot `json:"current_health"`
	Metrics       AccountMetrics `json:"metrics"`
	TopSignals    []string       `json:"top_signals"`
	PriorityScore float64        `json:"priority_score"`
}

// PortfolioStats are fleet-wide counts and ARR by health tier plus renewal totals.
type PortfolioStats struct {
	CriticalCount int     `json:"critical_count"`
	CriticalARR   float64 `json:"critical_arr"`
	AtRiskCount   int     `json:"at_risk_count"`
	AtRiskARR     float64 `json:"at_risk_arr"`
	HealthyCount  int     `json:"healthy_count"`
	HealthyARR    float64 `json:"healthy_arr"`
	RenewalsCount int     `json:"renewals_count"`
	RenewalsARR   float64 `json:"renewals_arr"`
}

// PortfolioOverviewStats summarize a (possibly owner-scoped) portfolio.
type PortfolioOverviewStats struct {
	TotalARR         float64  `json:"total_arr"`
	AccountCount     int      `json:"account_count"`
	AvgHealthScore   *float64 `json:"avg_health_score"`
	ChurnRiskPercent float64  `json:"churn_risk_percent"`
}

// HealthHistoryPoint is the average health score across the portfolio on one calendar date.
type HealthHistoryPoint struct {
	Date           string  `json:"date"` // YYYY-MM-DD
	AvgHealthScore float64 `json:"avg_health_score"`
}

// ForecastBucket is the renewal ARR for one health tier.
type ForecastBucket struct {
	ARR     float64 `json:"arr"`
	Percent float64 `json:"percent"`
	Count   int     `json:"count"`
}

// ForecastTotal sums the three forecast buckets.
type ForecastTotal struct {
	ARR   float64 `json:"arr"`
	Count int     `json:"count"`
}

// RenewalForecast breaks down upcoming renewals by the current health tier of
// their account. Accounts without a recognized tier are not counted anywhere.
type RenewalForecast struct {
	Healthy  ForecastBucket `json:"healthy"`
	AtRisk   ForecastBucket `json:"at_risk"`
	Critical ForecastBucket `json:"critical"`
	Total    ForecastTotal  `json:"total"`
}

// ActionPriority ranks a recommended action.
type ActionPriority string

const (
	ActionHigh   ActionPriority = "high"
	ActionMedium ActionPriority = "medium"
	ActionLow    ActionPriority = "low"
)

// ActionItem is a recommended next step for an account owner.
type ActionItem struct {
	Priority ActionPriority `json:"priority"`
	Text     string         `json:"text"`
}

// AccountDetail is the full picture of one account.
type AccountDetail struct {
	Account            Account              `json:"account"`
	CurrentHealth      HealthSnapshot       `json:"current_health"`
	HealthHistory      []HealthSnapshot     `json:"health_history"`
	RecentInteractions []InteractionInsight `json:"recent_interactions"`
	Contacts           []Contact            `json:"contacts"`
	OpenTickets        []SupportTicket      `json:"open_tickets"`
	Opportunities      []Opportunity        `json:"opportunities"`
	RenewalOpportunity *Opportunity         `json:"renewal_opportunity"`
	SupportTier        *string              `json:"support_tier"`
	Metrics            AccountMetrics       `json:"metrics"`
	ChampionLeft       bool                 `json:"champion_left"`
	ActionItems        []ActionItem         `json:"action_items"`
}
