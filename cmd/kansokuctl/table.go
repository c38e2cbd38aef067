package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ashita-ai/kansoku/internal/model"
)

var money = message.NewPrinter(language.English)

// statusColors are ANSI 256 codes; they only show on a color terminal.
var statusColors = map[model.HealthStatus]lipgloss.Color{
	model.HealthCritical: lipgloss.Color("9"),
	model.HealthAtRisk:   lipgloss.Color("11"),
	model.HealthHealthy:  lipgloss.Color("10"),
}

type tableWriter struct {
	w        io.Writer
	renderer *lipgloss.Renderer
	headers  []string
	rows     [][]string
}

func newTable(w io.Writer, headers ...string) *tableWriter {
	return &tableWriter{w: w, renderer: lipgloss.NewRenderer(w), headers: headers}
}

func (t *tableWriter) row(cells ...string) {
	t.rows = append(t.rows, cells)
}

// render prints the table, coloring column statusCol by health tier.
// A negative statusCol disables coloring.
func (t *tableWriter) render(statusCol int) {
	header := t.renderer.NewStyle().Bold(true).Padding(0, 1)
	cell := t.renderer.NewStyle().Padding(0, 1)

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(t.renderer.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(t.headers...).
		Rows(t.rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if col == statusCol && row >= 0 && row < len(t.rows) {
				if st := model.HealthStatus(t.rows[row][col]); st.Valid() {
					return cell.Foreground(statusColors[st])
				}
			}
			return cell
		})
	fmt.Fprintln(t.w, tbl.Render())
}

func formatMoney(v float64) string {
	return money.Sprintf("$%.0f", v)
}

func formatARR(v *float64) string {
	if v == nil {
		return "-"
	}
	return formatMoney(*v)
}

func formatScore(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f", *v)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
