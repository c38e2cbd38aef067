package model

import (
	"encoding/json"
	"strings"
	"time"
)

// HealthStatus is the categorical risk tier assigned to an account by the
// ingestion pipeline. Values match the stored labels.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "Healthy"
	HealthAtRisk   HealthStatus = "At Risk"
	HealthCritical HealthStatus = "Critical"
)

// Valid reports whether s is one of the three recognized tiers.
func (s HealthStatus) Valid() bool {
	switch s {
	case HealthHealthy, HealthAtRisk, HealthCritical:
		return true
	default:
		return false
	}
}

// Tier returns the status as a bucket key: "critical", "at_risk" or
// "healthy", and "unknown" for an unrecognized label.
func (s HealthStatus) Tier() string {
	if !s.Valid() {
		return "unknown"
	}
	return strings.ReplaceAll(strings.ToLower(string(s)), " ", "_")
}

// Trend is the direction of an account's health between observations.
type Trend string

const (
	TrendImproving Trend = "Improving"
	TrendDeclining Trend = "Declining"
	TrendStable    Trend = "Stable"
	TrendUnknown   Trend = "Unknown"
)

// ParseTrend maps a stored trend label to a Trend. Missing or unrecognized
// labels map to TrendUnknown.
func ParseTrend(s *string) Trend {
	if s == nil {
		return TrendUnknown
	}
	switch t := Trend(*s); t {
	case TrendImproving, TrendDeclining, TrendStable:
		return t
	default:
		return TrendUnknown
	}
}

// Text returns the display label for the trend ("N/A" when unknown).
func (t Trend) Text() string {
	switch t {
	case TrendImproving, TrendDeclining, TrendStable:
		return string(t)
	default:
		return "N/A"
	}
}

// Account is a customer account. ARR and LastActivityDate are nullable.
type Account struct {
	AccountID        string     `json:"account_id"`
	Name             string     `json:"name"`
	ARR              *float64   `json:"arr"`
	OwnerName        *string    `json:"owner_name"`
	Industry         *string    `json:"industry,omitempty"`
	LastActivityDate *time.Time `json:"last_activity_date"`
}

// ARROrZero returns the account's ARR, treating a missing value as 0.
// Only summation sites may use it.
func (a Account) ARROrZero() float64 {
	if a.ARR == nil {
		return 0
	}
	return *a.ARR
}

// HealthSnapshot is one classification result for an account at a point in time.
type HealthSnapshot struct {
	ID         int64        `json:"id"`
	AccountID  string       `json:"account_id"`
	Status     HealthStatus `json:"status"`
	Score      *float64     `json:"score"`
	Trend      Trend        `json:"trend"`
	ObservedAt time.Time    `json:"observed_at"`
}

// MarshalJSON adds the derived tier and trend_text fields.
func (s HealthSnapshot) MarshalJSON() ([]byte, error) {
	type plain HealthSnapshot
	return json.Marshal(struct {
		plain
		Tier      string `json:"tier"`
		TrendText string `json:"trend_text"`
	}{plain(s), s.Status.Tier(), s.Trend.Text()})
}

// InteractionInsight is the analysis of one customer touchpoint. Immutable.
type InteractionInsight struct {
	ID                   int64     `json:"id"`
	AccountID            string    `json:"account_id"`
	Type                 string    `json:"type"`
	SentimentScore       float64   `json:"sentiment_score"`
	SentimentReasons     []string  `json:"sentiment_reasons"`
	ChurnRisk            bool      `json:"churn_risk"`
	ChurnReasons         []string  `json:"churn_reasons"`
	ExpansionOpportunity bool      `json:"expansion_opportunity"`
	ExpansionReasons     []string  `json:"expansion_reasons"`
	Summary              *string   `json:"summary,omitempty"`
	OccurredAt           time.Time `json:"occurred_at"`
}

// Ticket states that count as open.
const (
	TicketStatusNew  = "new"
	TicketStatusOpen = "open"
)

// OpenTicketStatuses lists the ticket states the core treats as open.
var OpenTicketStatuses = []string{TicketStatusNew, TicketStatusOpen}

// SupportTicket is a support desk ticket linked to an account.
type SupportTicket struct {
	ID        int64     `json:"id"`
	AccountID string    `json:"account_id"`
	Subject   *string   `json:"subject,omitempty"`
	Status    string    `json:"status"`
	Priority  *string   `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// OpportunityTypeRenewal is the opportunity type that represents a contract renewal.
const OpportunityTypeRenewal = "Renewal"

// Opportunity is a sales-pipeline record for an account.
type Opportunity struct {
	ID        string     `json:"id"`
	AccountID string     `json:"account_id"`
	Name      string     `json:"name"`
	Type      *string    `json:"type"`
	Stage     *string    `json:"stage,omitempty"`
	Amount    *float64   `json:"amount"`
	CloseDate *time.Time `json:"close_date"`
	IsClosed  bool       `json:"is_closed"`
}

// IsRenewal reports whether the opportunity is of the Renewal type.
func (o Opportunity) IsRenewal() bool {
	return o.Type != nil && *o.Type == OpportunityTypeRenewal
}

// AmountOrZero returns the opportunity amount, treating a missing value as 0.
func (o Opportunity) AmountOrZero() float64 {
	if o.Amount == nil {
		return 0
	}
	return *o.Amount
}

// CustomerRoleChampion marks the internal advocate at a customer.
const CustomerRoleChampion = "Champion"

// Contact is a person at a customer account.
type Contact struct {
	ID               string     `json:"id"`
	AccountID        string     `json:"account_id"`
	FirstName        *string    `json:"first_name"`
	LastName         *string    `json:"last_name"`
	Email            *string    `json:"email"`
	Title            *string    `json:"title"`
	CustomerRole     *string    `json:"customer_role"`
	LeftCompany      bool       `json:"left_company"`
	LastActivityDate *time.Time `json:"last_activity_date"`
}

// IsDepartedChampion reports whether the contact was a champion who has left.
func (c Contact) IsDepartedChampion() bool {
	return c.LeftCompany && c.CustomerRole != nil && *c.CustomerRole == CustomerRoleChampion
}
