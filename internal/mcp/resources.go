package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

const (
	uriStats         = "kansoku://portfolio/stats"
	uriOwners        = "kansoku://owners"
	uriAccountPrefix = "kansoku://accounts/"
)

func (s *Server) registerResources() {
	// kansoku://portfolio/stats: dashboard counters.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriStats,
			"Portfolio Stats",
			mcplib.WithResourceDescription("Counts and ARR by health tier plus upcoming renewals"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStatsResource,
	)

	// kansoku://owners: account owners.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			uriOwners,
			"Account Owners",
			mcplib.WithResourceDescription("Distinct account owner names"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleOwnersResource,
	)

	// kansoku://accounts/{id}: one account's detail.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			uriAccountPrefix+"{id}",
			"Account Detail",
			mcplib.WithTemplateDescription("Health, activity, renewal, and recommended actions for one account"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleAccountResource,
	)
}

func (s *Server) handleStatsResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	stats, err := s.portfolio.DashboardStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: portfolio stats: %w", err)
	}
	return jsonResource(request.Params.URI, stats)
}

func (s *Server) handleOwnersResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	owners, err := s.portfolio.Owners(ctx)
	if err != nil {
		return nil, fmt.Errorf("mcp: owners: %w", err)
	}
	return jsonResource(request.Params.URI, owners)
}

func (s *Server) handleAccountResource(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	accountID, err := parseAccountURI(uri)
	if err != nil {
		return nil, err
	}

	detail, err := s.portfolio.AccountDetail(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("mcp: account detail: %w", err)
	}
	if detail == nil {
		return nil, fmt.Errorf("mcp: account %s not found", accountID)
	}
	return jsonResource(uri, detail)
}

// parseAccountURI extracts the account ID from kansoku://accounts/{id}.
func parseAccountURI(uri string) (string, error) {
	id, ok := strings.CutPrefix(uri, uriAccountPrefix)
	if !ok {
		return "", fmt.Errorf("mcp: invalid account URI: %q", uri)
	}
	if id == "" || strings.Contains(id, "/") {
		return "", fmt.Errorf("mcp: invalid account URI: %q: empty or nested account_id", uri)
	}
	return id, nil
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal %s: %w", uri, err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
