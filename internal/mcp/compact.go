package mcp

import (
	"math"

	"github.com/ashita-ai/kansoku/internal/model"
)

// compactPriority returns the fields an agent acts on when triaging. Raw
// metric counts and the health score live in kansoku_account_detail.
func compactPriority(p model.PriorityAccount) map[string]any {
	m := map[string]any{
		"account_id":     p.AccountID,
		"name":           p.Name,
		"status":         p.CurrentHealth.Status,
		"trend":          p.CurrentHealth.Trend,
		"priority_score": roundTo(p.PriorityScore, 2),
		"signals":        p.TopSignals,
		"last_activity":  p.Metrics.LastActivityLabel,
	}
	if p.ARR != nil {
		m["arr"] = *p.ARR
	}
	if p.OwnerName != nil {
		m["owner"] = *p.OwnerName
	}
	return m
}

func compactPriorityList(list []model.PriorityAccount) []map[string]any {
	out := make([]map[string]any, len(list))
	for i, p := range list {
		out[i] = compactPriority(p)
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
