package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ashita-ai/kansoku/api"
	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/clock"
	"github.com/ashita-ai/kansoku/internal/mcp"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/ratelimit"
	"github.com/ashita-ai/kansoku/internal/server"
	"github.com/ashita-ai/kansoku/internal/service/portfolio"
	"github.com/ashita-ai/kansoku/internal/storage/fixture"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

var demoDate = time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC)

type envelope[T any] struct {
	Data T                  `json:"data"`
	Meta model.ResponseMeta `json:"meta"`
}

// brokenStore fails every account listing.
type brokenStore struct {
	portfolio.Store
}

func (brokenStore) ListAccounts(context.Context, string) ([]model.Account, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) ListOwnerNames(context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

type testEnv struct {
	srv      *httptest.Server
	verifier *auth.Verifier
	cache    *auth.ApprovalCache
}

type option func(*server.ServerConfig)

func withoutAuth() option {
	return func(c *server.ServerConfig) { c.Verifier, c.Approver = nil, nil }
}

func withStrictErrors() option {
	return func(c *server.ServerConfig) { c.StrictErrors = true }
}

func withLimiter(l ratelimit.Limiter) option {
	return func(c *server.ServerConfig) { c.Limiter = l }
}

func withOpenAPI() option {
	return func(c *server.ServerConfig) { c.OpenAPISpec = api.OpenAPISpec }
}

func newEnv(t *testing.T, store portfolio.Store, opts ...option) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if store == nil {
		s, err := fixture.Load("../storage/fixture/testdata/demo.yaml")
		require.NoError(t, err)
		store = s
	}

	svc := portfolio.New(store, clock.NewFixed(demoDate), logger, portfolio.Config{})
	verifier, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)
	cache := auth.NewApprovalCache(time.Minute)
	t.Cleanup(cache.Close)

	cfg := server.ServerConfig{
		Portfolio:      svc,
		Logger:         logger,
		Verifier:       verifier,
		Approver:       auth.NewApprover(cache, nil),
		MCPServer:      mcp.New(svc, logger, "test").MCPServer(),
		RequestTimeout: 5 * time.Second,
		Version:        "test",
		DemoDate:       "2025-12-18",
	}
	for _, o := range opts {
		o(&cfg)
	}

	srv := httptest.NewServer(server.New(cfg).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, verifier: verifier, cache: cache}
}

func (e *testEnv) token(t *testing.T, userID string, role model.UserRole) string {
	t.Helper()
	tok, _, err := e.verifier.IssueToken(userID, userID+"@example.com", role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.NotEmpty(t, env.Meta.RequestID)
	return env.Data
}

func decodeError(t *testing.T, resp *http.Response) model.ErrorDetail {
	t.Helper()
	var body model.APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestHealth(t *testing.T) {
	env := newEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	h := decode[model.HealthResponse](t, resp)
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "connected", h.Store)
	assert.Equal(t, "2025-12-18", h.DemoDate)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestHealth_StoreDown(t *testing.T) {
	base, err := fixture.Load("../storage/fixture/testdata/demo.yaml")
	require.NoError(t, err)
	env := newEnv(t, brokenStore{Store: base})

	resp := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "disconnected", decode[model.HealthResponse](t, resp).Store)
}

func TestAuth(t *testing.T) {
	env := newEnv(t, nil)

	tests := []struct {
		name     string
		token    string
		wantCode int
		wantErr  string
	}{
		{"missing", "", http.StatusUnauthorized, model.ErrCodeUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized, model.ErrCodeUnauthorized},
		{"pending", env.token(t, "u-pending", model.RolePending), http.StatusForbidden, model.ErrCodeNotApproved},
		{"user", env.token(t, "u-user", model.RoleUser), http.StatusOK, ""},
		{"admin", env.token(t, "u-admin", model.RoleAdmin), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodGet, "/v1/owners", tt.token)
			require.Equal(t, tt.wantCode, resp.StatusCode)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, decodeError(t, resp).Code)
			}
		})
	}
}

func TestPriority(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "u-1", model.RoleUser)

	resp := env.do(t, http.MethodGet, "/v1/priority", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	list := decode[[]model.PriorityAccount](t, resp)
	require.Len(t, list, 3)
	assert.Equal(t, "acme", list[0].AccountID)
	assert.Equal(t, 240000.0, list[0].PriorityScore)

	resp = env.do(t, http.MethodGet, "/v1/priority?renewals_only=true", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.PriorityAccount](t, resp), 2)

	resp = env.do(t, http.MethodGet, "/v1/priority?renewals_only=maybe", tok)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, model.ErrCodeInvalidInput, decodeError(t, resp).Code)
}

func TestStats(t *testing.T) {
	env := newEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/v1/stats", env.token(t, "u-1", model.RoleUser))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[model.PortfolioStats](t, resp)
	assert.Equal(t, 1, st.CriticalCount)
	assert.Equal(t, 3, st.RenewalsCount)
	assert.Equal(t, 400000.0, st.RenewalsARR)
}

func TestAccountDetail(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "u-1", model.RoleUser)

	resp := env.do(t, http.MethodGet, "/v1/accounts/acme", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d := decode[model.AccountDetail](t, resp)
	assert.Equal(t, "Acme Corp", d.Account.Name)
	assert.True(t, d.ChampionLeft)
	assert.NotEmpty(t, d.ActionItems)

	resp = env.do(t, http.MethodGet, "/v1/accounts/does-not-exist", tok)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, model.ErrCodeNotFound, decodeError(t, resp).Code)
}

func TestPortfolioViews(t *testing.T) {
	env := newEnv(t, nil)
	tok := env.token(t, "u-1", model.RoleUser)

	resp := env.do(t, http.MethodGet, "/v1/portfolio/overview?owner=Dana+Whitfield", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ov := decode[model.PortfolioOverviewStats](t, resp)
	assert.Equal(t, 200000.0, ov.TotalARR)
	assert.Equal(t, 2, ov.AccountCount)

	resp = env.do(t, http.MethodGet, "/v1/portfolio/history?days=30", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]model.HealthHistoryPoint](t, resp), 3)

	resp = env.do(t, http.MethodGet, "/v1/portfolio/history?days=thirty", tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/v1/portfolio/renewals", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	f := decode[model.RenewalForecast](t, resp)
	assert.Equal(t, 3, f.Total.Count)

	resp = env.do(t, http.MethodGet, "/v1/owners", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Dana Whitfield", "Marcus Lee"}, decode[[]string](t, resp))
}

func TestStoreFailure_EmptyPayload(t *testing.T) {
	base, err := fixture.Load("../storage/fixture/testdata/demo.yaml")
	require.NoError(t, err)
	env := newEnv(t, brokenStore{Store: base})
	tok := env.token(t, "u-1", model.RoleUser)

	resp := env.do(t, http.MethodGet, "/v1/priority", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]model.PriorityAccount](t, resp)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	resp = env.do(t, http.MethodGet, "/v1/stats", tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.PortfolioStats{}, decode[model.PortfolioStats](t, resp))
}

func TestStoreFailure_Strict(t *testing.T) {
	base, err := fixture.Load("../storage/fixture/testdata/demo.yaml")
	require.NoError(t, err)
	env := newEnv(t, brokenStore{Store: base}, withStrictErrors())
	tok := env.token(t, "u-1", model.RoleUser)

	for _, path := range []string{"/v1/priority", "/v1/stats", "/v1/owners", "/v1/portfolio/renewals"} {
		resp := env.do(t, http.MethodGet, path, tok)
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
		assert.Equal(t, model.ErrCodeUnavailable, decodeError(t, resp).Code)
	}
}

func TestApprovalCacheInvalidation(t *testing.T) {
	env := newEnv(t, nil)
	admin := env.token(t, "u-admin", model.RoleAdmin)

	// First request caches the pending status.
	resp := env.do(t, http.MethodGet, "/v1/owners", env.token(t, "u-7", model.RolePending))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// The role was granted upstream, but the cached status still applies.
	approved := env.token(t, "u-7", model.RoleUser)
	resp = env.do(t, http.MethodGet, "/v1/owners", approved)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Non-admins cannot flush.
	resp = env.do(t, http.MethodDelete, "/v1/admin/approval-cache/u-7", approved)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/v1/admin/approval-cache/u-7", admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, true, body["invalidated"])

	resp = env.do(t, http.MethodGet, "/v1/owners", approved)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/v1/admin/approval-cache", admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, decode[map[string]any](t, resp)["invalidated"])
	assert.Zero(t, env.cache.Len())
}

func TestAuthDisabled(t *testing.T) {
	env := newEnv(t, nil, withoutAuth())

	resp := env.do(t, http.MethodGet, "/v1/priority", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/v1/admin/approval-cache", "")
	assert.NotEqual(t, http.StatusOK, resp.StatusCode, "admin routes are not mounted without auth")
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 2)
	t.Cleanup(func() { _ = limiter.Close() })
	env := newEnv(t, nil, withLimiter(limiter))
	tok := env.token(t, "u-1", model.RoleUser)

	for range 2 {
		require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/owners", tok).StatusCode)
	}
	resp := env.do(t, http.MethodGet, "/v1/owners", tok)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, model.ErrCodeRateLimited, decodeError(t, resp).Code)

	// Limits are per user and never apply to health checks.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v1/owners", env.token(t, "u-2", model.RoleUser)).StatusCode)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/health", "").StatusCode)
}

func TestOpenAPISpec(t *testing.T) {
	env := newEnv(t, nil, withOpenAPI())

	resp := env.do(t, http.MethodGet, "/openapi.yaml", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	var doc struct {
		Paths map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.NewDecoder(resp.Body).Decode(&doc))
	for _, path := range []string{
		"/health", "/v1/priority", "/v1/stats", "/v1/accounts/{account_id}",
		"/v1/portfolio/overview", "/v1/portfolio/history", "/v1/portfolio/renewals",
		"/v1/owners", "/v1/admin/approval-cache", "/v1/admin/approval-cache/{user_id}", "/mcp",
	} {
		assert.Contains(t, doc.Paths, path)
	}

	resp = newEnv(t, nil).do(t, http.MethodGet, "/openapi.yaml", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestIDEcho(t *testing.T) {
	env := newEnv(t, nil)
	req, err := http.NewRequest(http.MethodGet, env.srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "client-supplied-id", resp.Header.Get("X-Request-ID"))
	var env2 envelope[model.HealthResponse]
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env2))
	assert.Equal(t, "client-supplied-id", env2.Meta.RequestID)
}

func TestMCPOverHTTP(t *testing.T) {
	env := newEnv(t, nil)

	c, err := mcpclient.NewStreamableHttpClient(
		env.srv.URL+"/mcp",
		mcptransport.WithHTTPHeaders(map[string]string{
			"Authorization": "Bearer " + env.token(t, "u-1", model.RoleUser),
		}),
	)
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	ctx := context.Background()
	initResult, err := c.Initialize(ctx, mcplib.InitializeRequest{
		Params: mcplib.InitializeParams{
			ClientInfo: mcplib.Implementation{Name: "test-client", Version: "1.0"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "kansoku", initResult.ServerInfo.Name)

	result, err := c.CallTool(ctx, mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: "kansoku_owners"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestMCPRequiresAuth(t *testing.T) {
	env := newEnv(t, nil)
	resp := env.do(t, http.MethodPost, "/mcp", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
