package mcp

import (
	"context"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/kansoku/internal/service/portfolio"
)

// readFailed is what an agent sees when the store could not be read. The
// service has already logged the cause.
const readFailed = "portfolio data is temporarily unavailable; try again shortly"

func ownerParam() mcplib.ToolOption {
	return mcplib.WithString("owner",
		mcplib.Description("Optional account owner (CSM) name to scope the result. Use kansoku_owners for valid names; omit for the whole portfolio."),
	)
}

func (s *Server) registerTools() {
	// kansoku_priority_accounts: ranked list of accounts needing attention.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_priority_accounts",
			mcplib.WithDescription(`List accounts that need attention, highest priority first.

Priority combines ARR with current health: Critical accounts weigh twice
their ARR, At Risk once, Healthy not at all. Each row carries up to two
human-readable signals explaining the ranking.

WHEN TO USE: Start of any triage session, or when asked "which accounts
should I look at?". Follow up with kansoku_account_detail.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithBoolean("renewals_only",
				mcplib.Description("Only include accounts with an open renewal closing within the horizon"),
				mcplib.DefaultBool(false),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum number of accounts to return"),
				mcplib.Min(1),
				mcplib.Max(500),
				mcplib.DefaultNumber(20),
			),
			mcplib.WithBoolean("compact",
				mcplib.Description("Return only identity, score, status, and signals for each account"),
				mcplib.DefaultBool(true),
			),
		),
		s.handlePriorityAccounts,
	)

	// kansoku_dashboard_stats: counts and ARR by health tier.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_dashboard_stats",
			mcplib.WithDescription("Portfolio counts and ARR by current health tier, plus the number and ARR of upcoming renewals."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleDashboardStats,
	)

	// kansoku_account_detail: everything known about one account.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_account_detail",
			mcplib.WithDescription(`Full picture of one account: current health and history, recent
interactions, contacts, open tickets, opportunities, the next renewal,
rolling metrics, and a prioritized list of recommended actions.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("account_id",
				mcplib.Description("Account identifier, as returned by kansoku_priority_accounts"),
				mcplib.Required(),
			),
		),
		s.handleAccountDetail,
	)

	// kansoku_portfolio_overview: total ARR, average score, churn exposure.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_portfolio_overview",
			mcplib.WithDescription("Total ARR, account count, average health score, and the share of ARR in Critical or At Risk accounts."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			ownerParam(),
		),
		s.handlePortfolioOverview,
	)

	// kansoku_health_history: daily average health score series.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_health_history",
			mcplib.WithDescription("Average health score per calendar day over a trailing window. Days without snapshots are omitted."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithNumber("days",
				mcplib.Description("Trailing window in days"),
				mcplib.Min(1),
				mcplib.Max(portfolio.MaxHistoryDays),
				mcplib.DefaultNumber(portfolio.DefaultHistoryDays),
			),
			ownerParam(),
		),
		s.handleHealthHistory,
	)

	// kansoku_renewal_forecast: upcoming renewal ARR by health tier.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_renewal_forecast",
			mcplib.WithDescription("Upcoming renewal ARR broken down by the current health tier of each renewing account."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			ownerParam(),
		),
		s.handleRenewalForecast,
	)

	// kansoku_owners: distinct account owners.
	s.mcpServer.AddTool(
		mcplib.NewTool("kansoku_owners",
			mcplib.WithDescription("Distinct account owner (CSM) names, sorted. Use these as the owner argument of the portfolio tools."),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
		),
		s.handleOwners,
	)
}

func (s *Server) handlePriorityAccounts(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	renewalsOnly := request.GetBool("renewals_only", false)
	limit := request.GetInt("limit", 20)
	compact := request.GetBool("compact", true)
	s.logCall(ctx, "kansoku_priority_accounts", "renewals_only", renewalsOnly)

	if limit < 1 {
		return errorResult("limit must be at least 1"), nil
	}

	list, err := s.portfolio.PriorityList(ctx, renewalsOnly)
	if err != nil {
		return errorResult(readFailed), nil
	}

	total := len(list)
	list = list[:min(limit, total)]

	var accounts any = list
	if compact {
		accounts = compactPriorityList(list)
	}
	return jsonResult(map[string]any{
		"accounts": accounts,
		"total":    total,
		"has_more": total > len(list),
	})
}

func (s *Server) handleDashboardStats(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	s.logCall(ctx, "kansoku_dashboard_stats")

	stats, err := s.portfolio.DashboardStats(ctx)
	if err != nil {
		return errorResult(readFailed), nil
	}
	return jsonResult(stats)
}

func (s *Server) handleAccountDetail(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	accountID := strings.TrimSpace(request.GetString("account_id", ""))
	if accountID == "" {
		return errorResult("account_id is required"), nil
	}
	s.logCall(ctx, "kansoku_account_detail", "account_id", accountID)

	detail, err := s.portfolio.AccountDetail(ctx, accountID)
	if err != nil {
		return errorResult(readFailed), nil
	}
	if detail == nil {
		return errorResult("account " + accountID + " not found"), nil
	}
	return jsonResult(detail)
}

func (s *Server) handlePortfolioOverview(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	owner := strings.TrimSpace(request.GetString("owner", ""))
	s.logCall(ctx, "kansoku_portfolio_overview", "owner", owner)

	stats, err := s.portfolio.OverviewStats(ctx, owner)
	if err != nil {
		return errorResult(readFailed), nil
	}
	return jsonResult(stats)
}

func (s *Server) handleHealthHistory(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	days := portfolio.ClampHistoryDays(request.GetInt("days", portfolio.DefaultHistoryDays))
	owner := strings.TrimSpace(request.GetString("owner", ""))
	s.logCall(ctx, "kansoku_health_history", "days", days, "owner", owner)

	points, err := s.portfolio.HealthHistory(ctx, days, owner)
	if err != nil {
		return errorResult(readFailed), nil
	}
	return jsonResult(map[string]any{
		"days":   days,
		"points": points,
	})
}

func (s *Server) handleRenewalForecast(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	owner := strings.TrimSpace(request.GetString("owner", ""))
	s.logCall(ctx, "kansoku_renewal_forecast", "owner", owner)

	forecast, err := s.portfolio.RenewalForecast(ctx, owner)
	if err != nil {
		return errorResult(readFailed), nil
	}
	return jsonResult(forecast)
}

func (s *Server) handleOwners(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	s.logCall(ctx, "kansoku_owners")

	owners, err := s.portfolio.Owners(ctx)
	if err != nil {
		return errorResult(readFailed), nil
	}
	return jsonResult(map[string]any{"owners": owners})
}
