// Package mcp implements the Model Context Protocol server for kansoku.
//
// The MCP server exposes the same read operations as the HTTP API through
// MCP tools, resources, and prompts, so that MCP-compatible agents can triage
// a customer-success portfolio.
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/kansoku/internal/ctxutil"
	"github.com/ashita-ai/kansoku/internal/service/portfolio"
)

// Server wraps the MCP server with the portfolio service.
type Server struct {
	mcpServer *mcpserver.MCPServer
	portfolio *portfolio.Service
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools, resources, and prompts.
func New(svc *portfolio.Service, logger *slog.Logger, version string) *Server {
	s := &Server{
		portfolio: svc,
		logger:    logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"kansoku",
		version,
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

const serverInstructions = `kansoku scores customer accounts by health and ARR.

Start with kansoku_priority_accounts to see which accounts need attention,
then call kansoku_account_detail on the top entries for contacts, tickets,
renewal, and recommended actions. Portfolio-wide views (overview, health
history, renewal forecast) accept an optional owner to scope to one CSM;
kansoku_owners lists the valid names.`

// logCall records which user invoked a tool. Claims are absent when the
// server runs without authentication.
func (s *Server) logCall(ctx context.Context, tool string, attrs ...any) {
	attrs = append([]any{"tool", tool}, attrs...)
	if uid := ctxutil.UserID(ctx); uid != "" {
		attrs = append(attrs, "user_id", uid)
	}
	s.logger.DebugContext(ctx, "mcp: tool call", attrs...)
}

func jsonResult(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult("failed to encode result: " + err.Error()), nil
	}
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}, nil
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
