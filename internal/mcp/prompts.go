package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// account-review: walks the agent through preparing for a call with one account.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("account-review",
			mcplib.WithPromptDescription("Prepare a briefing for an upcoming conversation with one account"),
			mcplib.WithArgument("account_id",
				mcplib.ArgumentDescription("The account to review"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleAccountReviewPrompt,
	)

	// weekly-triage: portfolio sweep for one CSM or the whole team.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("weekly-triage",
			mcplib.WithPromptDescription("Weekly sweep of the portfolio: what changed, what is at risk, what renews soon"),
			mcplib.WithArgument("owner",
				mcplib.ArgumentDescription("Optional account owner to scope the sweep to"),
			),
		),
		s.handleWeeklyTriagePrompt,
	)
}

func (s *Server) handleAccountReviewPrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	accountID := request.Params.Arguments["account_id"]
	if accountID == "" {
		return nil, fmt.Errorf("account_id argument is required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Briefing for account %s", accountID),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Prepare me for a conversation with account %s.

1. CALL kansoku_account_detail with account_id="%s".

2. SUMMARIZE in this order:
   - Current health status, score, and trend, and how the score moved
     across health_history.
   - The renewal_opportunity, if any: amount, stage, and days to close.
   - Who to talk to: contacts by role. Call out a departed champion.
   - Open tickets, highest priority first.
   - What recent interactions said, quoting churn and sentiment reasons.

3. LIST the action_items as-is, high priority first. Do not invent new
   ones; add context from the data where it helps.

Keep it short enough to read in two minutes.`, accountID, accountID),
				},
			},
		},
	}, nil
}

func (s *Server) handleWeeklyTriagePrompt(_ context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	owner := request.Params.Arguments["owner"]
	scope := "the whole portfolio"
	ownerArg := ""
	if owner != "" {
		scope = fmt.Sprintf("accounts owned by %s", owner)
		ownerArg = fmt.Sprintf(` with owner="%s"`, owner)
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Weekly triage of %s", scope),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Run a weekly triage of %[1]s.

1. CALL kansoku_portfolio_overview%[2]s for total ARR and churn exposure.
2. CALL kansoku_health_history%[2]s with days=30 and describe the direction
   of the average score.
3. CALL kansoku_renewal_forecast%[2]s. Flag renewal ARR sitting in
   Critical or At Risk accounts.
4. CALL kansoku_priority_accounts and pick the top five%[3]s. For each,
   give one line: name, ARR, status, and its signals.

End with the three accounts you would contact first and why.`, scope, ownerArg, ownerFilterNote(owner)),
				},
			},
		},
	}, nil
}

func ownerFilterNote(owner string) string {
	if owner == "" {
		return ""
	}
	return fmt.Sprintf(" whose owner is %s", owner)
}
