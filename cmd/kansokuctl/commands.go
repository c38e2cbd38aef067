package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/service/portfolio"
)

func newPriorityCmd(g *globalFlags) *cobra.Command {
	var (
		renewalsOnly bool
		limit        int
	)
	cmd := &cobra.Command{
		Use:   "priority",
		Short: "List accounts in the order they need attention",
		Args:  cobra.NoArgs,
		RunE: withService(g, func(cmd *cobra.Command, _ []string, svc *portfolio.Service) error {
			list, err := svc.PriorityList(cmd.Context(), renewalsOnly)
			if err != nil {
				return err
			}
			if limit > 0 && len(list) > limit {
				list = list[:limit]
			}
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), list)
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no accounts need attention")
				return nil
			}
			t := newTable(cmd.OutOrStdout(), "#", "ACCOUNT", "STATUS", "TREND", "ARR", "OWNER", "SCORE", "SIGNALS")
			for i, p := range list {
				t.row(
					strconv.Itoa(i+1),
					p.Name,
					string(p.CurrentHealth.Status),
					p.CurrentHealth.Trend.Text(),
					formatARR(p.ARR),
					orDash(p.OwnerName),
					strconv.FormatFloat(p.PriorityScore, 'f', 0, 64),
					strings.Join(p.TopSignals, "; "),
				)
			}
			t.render(2)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&renewalsOnly, "renewals-only", false, "only accounts with a renewal inside the horizon")
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most N accounts (0 = all)")
	return cmd
}

func newStatsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show account counts and ARR per health tier",
		Args:  cobra.NoArgs,
		RunE: withService(g, func(cmd *cobra.Command, _ []string, svc *portfolio.Service) error {
			s, err := svc.DashboardStats(cmd.Context())
			if err != nil {
				return err
			}
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), s)
			}
			t := newTable(cmd.OutOrStdout(), "TIER", "ACCOUNTS", "ARR")
			t.row(string(model.HealthCritical), strconv.Itoa(s.CriticalCount), formatMoney(s.CriticalARR))
			t.row(string(model.HealthAtRisk), strconv.Itoa(s.AtRiskCount), formatMoney(s.AtRiskARR))
			t.row(string(model.HealthHealthy), strconv.Itoa(s.HealthyCount), formatMoney(s.HealthyARR))
			t.row("Upcoming renewals", strconv.Itoa(s.RenewalsCount), formatMoney(s.RenewalsARR))
			t.render(0)
			return nil
		}),
	}
}

func newDetailCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "detail <account-id>",
		Short: "Show one account with metrics and recommended actions",
		Args:  cobra.ExactArgs(1),
		RunE: withService(g, func(cmd *cobra.Command, args []string, svc *portfolio.Service) error {
			d, err := svc.AccountDetail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if d == nil {
				return fmt.Errorf("account %q not found", args[0])
			}
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), d)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (%s)\n", d.Account.Name, d.Account.AccountID)
			fmt.Fprintf(w, "  status:      %s, %s\n", d.CurrentHealth.Status, d.CurrentHealth.Trend.Text())
			fmt.Fprintf(w, "  arr:         %s\n", formatARR(d.Account.ARR))
			fmt.Fprintf(w, "  owner:       %s\n", orDash(d.Account.OwnerName))
			fmt.Fprintf(w, "  sentiment:   %s over %d interactions\n", formatScore(d.Metrics.AvgSentiment), d.Metrics.InteractionCount)
			fmt.Fprintf(w, "  last active: %s\n", d.Metrics.LastActivityLabel)
			fmt.Fprintf(w, "  open tickets: %d\n", d.Metrics.OpenTicketCount)
			if d.RenewalOpportunity != nil && d.RenewalOpportunity.CloseDate != nil {
				fmt.Fprintf(w, "  renewal:     %s\n", d.RenewalOpportunity.CloseDate.Format(time.DateOnly))
			}
			if d.ChampionLeft {
				fmt.Fprintln(w, "  champion has left")
			}

			if len(d.ActionItems) > 0 {
				fmt.Fprintln(w)
				t := newTable(w, "PRIORITY", "ACTION")
				for _, a := range d.ActionItems {
					t.row(string(a.Priority), a.Text)
				}
				t.render(-1)
			}
			return nil
		}),
	}
}

func newOverviewCmd(g *globalFlags) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Show portfolio totals, optionally for one owner",
		Args:  cobra.NoArgs,
		RunE: withService(g, func(cmd *cobra.Command, _ []string, svc *portfolio.Service) error {
			s, err := svc.OverviewStats(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), s)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "as of:             %s\n", svc.ReferenceTime().Format(time.DateOnly))
			fmt.Fprintf(w, "accounts:          %d\n", s.AccountCount)
			fmt.Fprintf(w, "total arr:         %s\n", formatMoney(s.TotalARR))
			fmt.Fprintf(w, "avg health score:  %s\n", formatScore(s.AvgHealthScore))
			fmt.Fprintf(w, "churn risk:        %.1f%%\n", s.ChurnRiskPercent)
			return nil
		}),
	}
	cmd.Flags().StringVar(&owner, "owner", "", "restrict to accounts with this owner")
	return cmd
}

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		owner string
		days  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the daily average health score",
		Args:  cobra.NoArgs,
		RunE: withService(g, func(cmd *cobra.Command, _ []string, svc *portfolio.Service) error {
			points, err := svc.HealthHistory(cmd.Context(), portfolio.ClampHistoryDays(days), owner)
			if err != nil {
				return err
			}
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), points)
			}
			if len(points) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no health history in range")
				return nil
			}
			t := newTable(cmd.OutOrStdout(), "DATE", "AVG SCORE")
			for _, p := range points {
				t.row(p.Date, strconv.FormatFloat(p.AvgHealthScore, 'f', 1, 64))
			}
			t.render(-1)
			return nil
		}),
	}
	cmd.Flags().StringVar(&owner, "owner", "", "restrict to accounts with this owner")
	cmd.Flags().IntVar(&days, "days", portfolio.DefaultHistoryDays, "days of history, clamped to 1..365")
	return cmd
}

func newForecastCmd(g *globalFlags) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Break upcoming renewal ARR down by health tier",
		Args:  cobra.NoArgs,
		RunE: withService(g, func(cmd *cobra.Command, _ []string, svc *portfolio.Service) error {
			f, err := svc.RenewalForecast(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), f)
			}
			t := newTable(cmd.OutOrStdout(), "TIER", "RENEWALS", "ARR", "SHARE")
			bucket := func(name string, b model.ForecastBucket) {
				t.row(name, strconv.Itoa(b.Count), formatMoney(b.ARR), strconv.FormatFloat(b.Percent, 'f', 1, 64)+"%")
			}
			bucket(string(model.HealthHealthy), f.Healthy)
			bucket(string(model.HealthAtRisk), f.AtRisk)
			bucket(string(model.HealthCritical), f.Critical)
			t.row("Total", strconv.Itoa(f.Total.Count), formatMoney(f.Total.ARR), "")
			t.render(0)
			return nil
		}),
	}
	cmd.Flags().StringVar(&owner, "owner", "", "restrict to accounts with this owner")
	return cmd
}

func newOwnersCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "owners",
		Short: "List account owners",
		Args:  cobra.NoArgs,
		RunE: withService(g, func(cmd *cobra.Command, _ []string, svc *portfolio.Service) error {
			owners, err := svc.Owners(cmd.Context())
			if err != nil {
				return err
			}
			if g.jsonOut {
				return printJSON(cmd.OutOrStdout(), owners)
			}
			for _, o := range owners {
				fmt.Fprintln(cmd.OutOrStdout(), o)
			}
			return nil
		}),
	}
}
