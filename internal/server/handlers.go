package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/service/portfolio"
)

// healthPingTimeout bounds the store probe behind GET /health.
const healthPingTimeout = 2 * time.Second

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	portfolio    *portfolio.Service
	approver     *auth.Approver
	logger       *slog.Logger
	startedAt    time.Time
	version      string
	strictErrors bool
	demoDate     string
	openapiSpec  []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Approver and OpenAPISpec are optional.
type HandlersDeps struct {
	Portfolio    *portfolio.Service
	Approver     *auth.Approver
	Logger       *slog.Logger
	Version      string
	StrictErrors bool
	DemoDate     string
	OpenAPISpec  []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		portfolio:    d.Portfolio,
		approver:     d.Approver,
		logger:       d.Logger,
		startedAt:    time.Now(),
		version:      d.Version,
		strictErrors: d.StrictErrors,
		demoDate:     d.DemoDate,
		openapiSpec:  d.OpenAPISpec,
	}
}

// respond writes data, or a 503 when the read failed and strict errors are
// on. Otherwise a failed read still answers 200 with the empty value the
// service returned; the service has already logged the failure.
func (h *Handlers) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if err != nil && h.strictErrors {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "portfolio data is temporarily unavailable")
		return
	}
	writeJSON(w, r, http.StatusOK, data)
}

// HandlePriority handles GET /v1/priority.
func (h *Handlers) HandlePriority(w http.ResponseWriter, r *http.Request) {
	renewalsOnly, err := queryBool(r, "renewals_only")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "renewals_only must be a boolean")
		return
	}
	list, err := h.portfolio.PriorityList(r.Context(), renewalsOnly)
	h.respond(w, r, list, err)
}

// HandleStats handles GET /v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.portfolio.DashboardStats(r.Context())
	h.respond(w, r, stats, err)
}

// HandleAccountDetail handles GET /v1/accounts/{account_id}.
func (h *Handlers) HandleAccountDetail(w http.ResponseWriter, r *http.Request) {
	accountID := strings.TrimSpace(r.PathValue("account_id"))
	if accountID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "account_id is required")
		return
	}

	detail, err := h.portfolio.AccountDetail(r.Context(), accountID)
	if err != nil && h.strictErrors {
		writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "portfolio data is temporarily unavailable")
		return
	}
	if detail == nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "account not found")
		return
	}
	writeJSON(w, r, http.StatusOK, detail)
}

// HandleOverview handles GET /v1/portfolio/overview.
func (h *Handlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	stats, err := h.portfolio.OverviewStats(r.Context(), queryOwner(r))
	h.respond(w, r, stats, err)
}

// HandleHistory handles GET /v1/portfolio/history.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", portfolio.DefaultHistoryDays)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "days must be an integer")
		return
	}
	points, err := h.portfolio.HealthHistory(r.Context(), portfolio.ClampHistoryDays(days), queryOwner(r))
	h.respond(w, r, points, err)
}

// HandleRenewals handles GET /v1/portfolio/renewals.
func (h *Handlers) HandleRenewals(w http.ResponseWriter, r *http.Request) {
	forecast, err := h.portfolio.RenewalForecast(r.Context(), queryOwner(r))
	h.respond(w, r, forecast, err)
}

// HandleOwners handles GET /v1/owners.
func (h *Handlers) HandleOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.portfolio.Owners(r.Context())
	h.respond(w, r, owners, err)
}

// HandleHealth handles GET /health. It reports 503 when the store is unreachable.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	resp := model.HealthResponse{
		Status:   "healthy",
		Version:  h.version,
		Store:    "connected",
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
		DemoDate: h.demoDate,
	}
	status := http.StatusOK
	if err := h.portfolio.Ping(ctx); err != nil {
		h.logger.WarnContext(r.Context(), "health: store ping failed", "error", err)
		resp.Status = "unhealthy"
		resp.Store = "disconnected"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}

// HandleOpenAPISpec serves the embedded OpenAPI document.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// HandleInvalidateApproval handles DELETE /v1/admin/approval-cache/{user_id}.
func (h *Handlers) HandleInvalidateApproval(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "user_id is required")
		return
	}
	removed := h.approver.Cache().Invalidate(userID)
	h.logger.InfoContext(r.Context(), "approval cache entry invalidated", "user_id", userID, "removed", removed)
	writeJSON(w, r, http.StatusOK, map[string]any{"user_id": userID, "invalidated": removed})
}

// HandleInvalidateAllApprovals handles DELETE /v1/admin/approval-cache.
func (h *Handlers) HandleInvalidateAllApprovals(w http.ResponseWriter, r *http.Request) {
	n := h.approver.Cache().InvalidateAll()
	h.logger.InfoContext(r.Context(), "approval cache flushed", "entries", n)
	writeJSON(w, r, http.StatusOK, map[string]any{"invalidated": n})
}

func queryOwner(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("owner"))
}

func queryInt(r *http.Request, key string, defaultVal int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
