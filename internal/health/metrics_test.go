package health_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kansoku/internal/health"
	"github.com/ashita-ai/kansoku/internal/model"
)

var ref = time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC)

func daysAgo(n int) time.Time { return ref.AddDate(0, 0, -n) }

func ptr[T any](v T) *T { return &v }

func interaction(id int64, sentiment float64, at time.Time) model.InteractionInsight {
	return model.InteractionInsight{ID: id, AccountID: "acct-1", Type: "call", SentimentScore: sentiment, OccurredAt: at}
}

func TestCalculateMetrics_EmptyInputs(t *testing.T) {
	m := health.CalculateMetrics(nil, nil, nil, ref, 90)

	assert.Nil(t, m.AvgSentiment)
	assert.Zero(t, m.InteractionCount)
	assert.Zero(t, m.ChurnSignals)
	assert.Zero(t, m.ExpansionSignals)
	assert.Zero(t, m.OpenTicketCount)
	assert.Nil(t, m.DaysSinceActivity)
	assert.Equal(t, "N/A", m.LastActivityLabel)
}

func TestCalculateMetrics_AvgSentimentNilIffWindowEmpty(t *testing.T) {
	tests := []struct {
		name    string
		in      []model.InteractionInsight
		wantNil bool
	}{
		{"no interactions", nil, true},
		{"all outside window", []model.InteractionInsight{interaction(1, 80, daysAgo(91)), interaction(2, 20, daysAgo(200))}, true},
		{"one inside window", []model.InteractionInsight{interaction(1, 80, daysAgo(91)), interaction(2, 20, daysAgo(10))}, false},
		{"zero sentiment inside window", []model.InteractionInsight{interaction(1, 0, daysAgo(1))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := health.CalculateMetrics(tt.in, nil, nil, ref, 90)
			assert.Equal(t, tt.wantNil, m.AvgSentiment == nil)
		})
	}
}

func TestCalculateMetrics_WindowAndCounts(t *testing.T) {
	churn := interaction(1, 30, daysAgo(5))
	churn.ChurnRisk = true
	expand := interaction(2, 90, daysAgo(20))
	expand.ExpansionOpportunity = true
	boundary := interaction(3, 60, daysAgo(90)) // exactly at the window start
	old := interaction(4, 10, daysAgo(120))
	old.ChurnRisk = true

	tickets := []model.SupportTicket{{ID: 1, Status: model.TicketStatusOpen}, {ID: 2, Status: model.TicketStatusNew}}

	m := health.CalculateMetrics([]model.InteractionInsight{old, boundary, expand, churn}, tickets, nil, ref, 90)

	require.NotNil(t, m.AvgSentiment)
	assert.InDelta(t, 60.0, *m.AvgSentiment, 1e-9)
	assert.Equal(t, 3, m.InteractionCount)
	assert.Equal(t, 1, m.ChurnSignals)
	assert.Equal(t, 1, m.ExpansionSignals)
	assert.Equal(t, 2, m.OpenTicketCount)
	require.NotNil(t, m.DaysSinceActivity)
	assert.Equal(t, 5, *m.DaysSinceActivity)
	assert.Equal(t, "5d ago", m.LastActivityLabel)
}

func TestCalculateMetrics_DaysSinceActivityUsesLaterOfBoth(t *testing.T) {
	ins := []model.InteractionInsight{interaction(1, 70, daysAgo(40))}

	m := health.CalculateMetrics(ins, nil, ptr(daysAgo(12)), ref, 90)
	require.NotNil(t, m.DaysSinceActivity)
	assert.Equal(t, 12, *m.DaysSinceActivity)

	m = health.CalculateMetrics(ins, nil, ptr(daysAgo(70)), ref, 90)
	require.NotNil(t, m.DaysSinceActivity)
	assert.Equal(t, 40, *m.DaysSinceActivity)
}

func TestCalculateMetrics_DaysSinceActivityFloors(t *testing.T) {
	last := ref.Add(-(36 * time.Hour))
	m := health.CalculateMetrics(nil, nil, &last, ref, 90)
	require.NotNil(t, m.DaysSinceActivity)
	assert.Equal(t, 1, *m.DaysSinceActivity)
	assert.Equal(t, "Yesterday", m.LastActivityLabel)
}

func TestCalculateMetrics_FutureActivityNotClamped(t *testing.T) {
	future := ref.AddDate(0, 0, 3)
	m := health.CalculateMetrics(nil, nil, &future, ref, 90)
	require.NotNil(t, m.DaysSinceActivity)
	assert.Equal(t, -3, *m.DaysSinceActivity)
}

func TestCalculateMetrics_Deterministic(t *testing.T) {
	ins := []model.InteractionInsight{interaction(1, 40, daysAgo(3)), interaction(2, 55, daysAgo(3)), interaction(3, 75, daysAgo(30))}
	a := health.CalculateMetrics(ins, nil, nil, ref, 90)
	b := health.CalculateMetrics(ins, nil, nil, ref, 90)
	assert.Equal(t, a, b)
}

func TestInWindow_NewestFirstAndStable(t *testing.T) {
	a := interaction(1, 50, daysAgo(10))
	b := interaction(2, 50, daysAgo(2))
	c := interaction(3, 50, daysAgo(10))
	in := []model.InteractionInsight{a, b, c}

	got := health.InWindow(in, ref, 90)
	require.Len(t, got, 3)
	assert.Equal(t, []int64{2, 1, 3}, []int64{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, int64(1), in[0].ID, "input must not be reordered")
}

func TestDaysAgoLabel(t *testing.T) {
	assert.Equal(t, "N/A", health.DaysAgoLabel(nil))
	assert.Equal(t, "Today", health.DaysAgoLabel(ptr(0)))
	assert.Equal(t, "Yesterday", health.DaysAgoLabel(ptr(1)))
	assert.Equal(t, "12d ago", health.DaysAgoLabel(ptr(12)))
}

func TestValidateInteraction(t *testing.T) {
	assert.NoError(t, health.ValidateInteraction(interaction(1, 0, ref)))
	assert.NoError(t, health.ValidateInteraction(interaction(1, 100, ref)))
	assert.ErrorIs(t, health.ValidateInteraction(interaction(1, 50, time.Time{})), health.ErrMissingTimestamp)
	assert.ErrorIs(t, health.ValidateInteraction(interaction(1, 101, ref)), health.ErrScoreOutOfRange)
	assert.ErrorIs(t, health.ValidateInteraction(interaction(1, math.NaN(), ref)), health.ErrScoreOutOfRange)
}

func TestPartitionSnapshots(t *testing.T) {
	snaps := []model.HealthSnapshot{
		{ID: 1, AccountID: "a", Status: model.HealthHealthy, Score: ptr(80.0), ObservedAt: ref},
		{ID: 2, AccountID: "b", Status: model.HealthCritical, ObservedAt: ref},
		{ID: 3, AccountID: "c", Status: model.HealthAtRisk, Score: ptr(-4.0), ObservedAt: ref},
		{ID: 4, AccountID: "d", Status: model.HealthAtRisk},
	}

	valid, excluded := health.PartitionSnapshots(snaps)
	require.Len(t, valid, 2)
	require.Len(t, excluded, 2)
	assert.Equal(t, "c", excluded[0].AccountID)
	assert.ErrorIs(t, excluded[0].Err, health.ErrScoreOutOfRange)
	assert.Equal(t, "d", excluded[1].AccountID)
	assert.ErrorIs(t, excluded[1].Err, health.ErrMissingTimestamp)
}
