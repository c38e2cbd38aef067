// Package server exposes the portfolio read operations over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/cors"

	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/ctxutil"
	"github.com/ashita-ai/kansoku/internal/ratelimit"
	"github.com/ashita-ai/kansoku/internal/service/portfolio"
)

// Server is the kansoku HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a Server.
// Optional fields (nil = disabled): Verifier, Approver, Limiter, MCPServer, OpenAPISpec.
type ServerConfig struct {
	// Required dependencies.
	Portfolio *portfolio.Service
	Logger    *slog.Logger

	// Verifier validates bearer tokens. Nil disables authentication, which
	// also removes the admin routes.
	Verifier *auth.Verifier
	Approver *auth.Approver

	Limiter   ratelimit.Limiter
	MCPServer *mcpserver.MCPServer

	// HTTP server settings.
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	Version        string

	// StrictErrors answers 503 when a read fails instead of the empty payload.
	StrictErrors bool
	// DemoDate is reported by /health when a fixed reference date is in use.
	DemoDate string

	CORSAllowedOrigins []string
	OpenAPISpec        []byte // served at GET /openapi.yaml

	// Middlewares wrap the whole chain. The first entry is outermost.
	Middlewares []func(http.Handler) http.Handler
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Portfolio:    cfg.Portfolio,
		Approver:     cfg.Approver,
		Logger:       cfg.Logger,
		Version:      cfg.Version,
		StrictErrors: cfg.StrictErrors,
		DemoDate:     cfg.DemoDate,
		OpenAPISpec:  cfg.OpenAPISpec,
	})

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	reqIDFunc := func(r *http.Request) string { return ctxutil.RequestID(r.Context()) }
	rl := ratelimit.Middleware(limiter, callerKeyFunc, reqIDFunc, cfg.Logger)

	api := func(fn http.HandlerFunc) http.Handler {
		return rl(timeoutMiddleware(cfg.RequestTimeout, fn))
	}

	mux := http.NewServeMux()

	// Dashboard reads (approved users, rate limited).
	mux.Handle("GET /v1/priority", api(h.HandlePriority))
	mux.Handle("GET /v1/stats", api(h.HandleStats))
	mux.Handle("GET /v1/accounts/{account_id}", api(h.HandleAccountDetail))
	mux.Handle("GET /v1/portfolio/overview", api(h.HandleOverview))
	mux.Handle("GET /v1/portfolio/history", api(h.HandleHistory))
	mux.Handle("GET /v1/portfolio/renewals", api(h.HandleRenewals))
	mux.Handle("GET /v1/owners", api(h.HandleOwners))

	// Approval cache control (admin-only). Without auth there is no cache.
	if cfg.Verifier != nil && cfg.Approver != nil {
		mux.Handle("DELETE /v1/admin/approval-cache/{user_id}", requireAdmin(http.HandlerFunc(h.HandleInvalidateApproval)))
		mux.Handle("DELETE /v1/admin/approval-cache", requireAdmin(http.HandlerFunc(h.HandleInvalidateAllApprovals)))
	}

	// MCP StreamableHTTP transport (same auth as the API).
	if cfg.MCPServer != nil {
		mux.Handle("/mcp", rl(mcpserver.NewStreamableHTTPServer(cfg.MCPServer)))
	}

	// Health and the API description (no auth, no rate limit).
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Middleware chain (outermost executes first):
	// request ID → security headers → CORS → tracing → logging → auth → recovery → handler.
	var handler http.Handler = mux
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = authMiddleware(cfg.Verifier, cfg.Approver, cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodDelete, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID", "Mcp-Session-Id"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           600,
		}).Handler(handler)
	}
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)
	for i := len(cfg.Middlewares) - 1; i >= 0; i-- {
		handler = cfg.Middlewares[i](handler)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
		},
		handler: handler,
		logger:  cfg.Logger,
	}
}

// callerKeyFunc keys the limiter on the authenticated user, falling back to
// the client IP when auth is disabled. Public paths are never limited.
func callerKeyFunc(r *http.Request) string {
	if isPublicPath(r.URL.Path) {
		return ""
	}
	if id := ctxutil.UserID(r.Context()); id != "" {
		return "user:" + id
	}
	return ratelimit.IPKeyFunc(r)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// isPublicPath reports whether path is served without auth or rate limiting.
func isPublicPath(path string) bool {
	return path == "/health" || path == "/openapi.yaml"
}
