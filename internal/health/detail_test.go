package health_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kansoku/internal/health"
	"github.com/ashita-ai/kansoku/internal/model"
)

func TestBuildAccountDetail_NotFoundWithoutSnapshot(t *testing.T) {
	_, ok := health.BuildAccountDetail(health.DetailInput{Account: account("a", ptr(1.0)), Reference: ref, WindowDays: 90})
	assert.False(t, ok)
}

func TestBuildAccountDetail(t *testing.T) {
	acct := account("a", ptr(250.0))
	acct.LastActivityDate = ptr(daysAgo(20))

	neg := interaction(1, 25, daysAgo(3))
	neg.SentimentReasons = []string{"missed SLA"}
	pos := interaction(2, 85, daysAgo(1))
	pos.ExpansionOpportunity = true
	future := interaction(3, 90, ref.Add(30*time.Hour))
	stale := interaction(4, 10, daysAgo(200))

	closed := renewal("o1", "a", ptr(10.0), 5)
	closed.IsClosed = true
	later := renewal("o2", "a", ptr(20.0), 200)
	soon := renewal("o3", "a", ptr(30.0), 40)
	upsell := model.Opportunity{ID: "o4", AccountID: "a", Name: "Upsell", Type: ptr("Expansion")}

	champion := model.Contact{ID: "c1", AccountID: "a", CustomerRole: ptr(model.CustomerRoleChampion), LeftCompany: true}

	in := health.DetailInput{
		Account: acct,
		Snapshots: []model.HealthSnapshot{
			snapshot(10, "a", model.HealthAtRisk, ptr(55.0), 0),
			snapshot(11, "a", model.HealthHealthy, ptr(75.0), 30),
			snapshot(12, "a", model.HealthHealthy, ptr(90.0), 120),
		},
		Interactions: []model.InteractionInsight{stale, neg, future, pos},
		Contacts:     []model.Contact{champion},
		OpenTickets: []model.SupportTicket{
			{ID: 1, AccountID: "a", Status: model.TicketStatusOpen, CreatedAt: daysAgo(9)},
			{ID: 2, AccountID: "a", Status: model.TicketStatusNew, CreatedAt: daysAgo(2)},
		},
		Opportunities:      []model.Opportunity{closed, later, upsell, soon},
		SupportTier:        ptr("Premier"),
		Reference:          ref,
		WindowDays:         90,
		RenewalHorizonDays: 90,
	}

	d, ok := health.BuildAccountDetail(in)
	require.True(t, ok)

	assert.Equal(t, int64(10), d.CurrentHealth.ID)
	require.Len(t, d.HealthHistory, 2)
	assert.Equal(t, int64(11), d.HealthHistory[0].ID)
	assert.Equal(t, int64(10), d.HealthHistory[1].ID)

	require.Len(t, d.RecentInteractions, 2)
	assert.Equal(t, int64(2), d.RecentInteractions[0].ID)
	assert.Equal(t, int64(1), d.RecentInteractions[1].ID)

	assert.Equal(t, []int64{2, 1}, []int64{d.OpenTickets[0].ID, d.OpenTickets[1].ID})

	require.Len(t, d.Opportunities, 3)
	assert.Equal(t, []string{"o3", "o2", "o4"}, []string{d.Opportunities[0].ID, d.Opportunities[1].ID, d.Opportunities[2].ID})
	require.NotNil(t, d.RenewalOpportunity)
	assert.Equal(t, "o3", d.RenewalOpportunity.ID)

	assert.True(t, d.ChampionLeft)
	assert.Equal(t, "Premier", *d.SupportTier)

	require.NotNil(t, d.Metrics.AvgSentiment)
	assert.InDelta(t, 55.0, *d.Metrics.AvgSentiment, 1e-9)
	assert.Equal(t, 2, d.Metrics.InteractionCount)
	assert.Equal(t, 1, d.Metrics.ExpansionSignals)
	require.NotNil(t, d.Metrics.DaysSinceActivity)
	assert.Equal(t, 1, *d.Metrics.DaysSinceActivity)

	assert.Equal(t, []model.ActionItem{
		{Priority: model.ActionHigh, Text: "Champion has left - identify and onboard new champion"},
		{Priority: model.ActionLow, Text: "Monitor 2 open tickets"},
		{Priority: model.ActionLow, Text: "Explore 1 expansion opportunity"},
	}, d.ActionItems)
}

func TestBuildAccountDetail_NoRenewalAndEmptyContacts(t *testing.T) {
	d, ok := health.BuildAccountDetail(health.DetailInput{
		Account:            account("a", nil),
		Snapshots:          []model.HealthSnapshot{snapshot(1, "a", model.HealthCritical, nil, 0)},
		Opportunities:      []model.Opportunity{renewal("o", "a", nil, 120)},
		Reference:          ref,
		WindowDays:         90,
		RenewalHorizonDays: 90,
	})
	require.True(t, ok)
	assert.Nil(t, d.RenewalOpportunity)
	assert.NotNil(t, d.Contacts)
	assert.False(t, d.ChampionLeft)
	assert.Equal(t, []model.ActionItem{
		{Priority: model.ActionMedium, Text: "Increase engagement frequency - only 0 interactions in 90 days"},
	}, d.ActionItems)
}
