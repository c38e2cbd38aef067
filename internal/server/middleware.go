package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/ctxutil"
	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/telemetry"
)

// maxRequestIDLen bounds client-supplied X-Request-ID values.
const maxRequestIDLen = 128

// requestIDMiddleware assigns a unique request ID to each request, keeping a
// well-formed one supplied by the client.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" || len(reqID) > maxRequestIDLen || strings.ContainsAny(reqID, "\r\n") {
			reqID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctxutil.WithRequestID(r.Context(), reqID)))
	})
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		if strings.HasPrefix(r.URL.Path, "/v1/") {
			// Account data is per-user; never let a shared cache keep it.
			h.Set("Cache-Control", "no-store")
		}
		next.ServeHTTP(w, r)
	})
}

// caller is filled in by authMiddleware so that the outer logging and
// tracing middleware can report who made the request.
type caller struct {
	userID string
	role   model.UserRole
}

type callerKey struct{}

func callerFromContext(ctx context.Context) *caller {
	c, _ := ctx.Value(callerKey{}).(*caller)
	return c
}

// loggingMiddleware logs each request with structured fields.
func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		c := callerFromContext(r.Context())
		if c == nil {
			c = &caller{}
			r = r.WithContext(context.WithValue(r.Context(), callerKey{}, c))
		}
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", ctxutil.RequestID(r.Context()),
		}
		if tid := telemetry.TraceID(r.Context()); tid != "" {
			attrs = append(attrs, "trace_id", tid)
		}
		if c.userID != "" {
			attrs = append(attrs, "user_id", c.userID)
		}

		level := slog.LevelInfo
		if wrapped.statusCode >= 500 {
			level = slog.LevelError
		} else if wrapped.statusCode >= 400 {
			level = slog.LevelWarn
		}
		logger.Log(r.Context(), level, "http request", attrs...)
	})
}

type statusWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.statusCode = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Flush lets streamed MCP responses through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

var (
	tracer    = telemetry.Tracer("kansoku/http")
	httpMeter = telemetry.Meter("kansoku/http")
)

// tracingMiddleware creates an OTEL span for each HTTP request
// and records request count and duration metrics.
func tracingMiddleware(next http.Handler) http.Handler {
	requests, _ := httpMeter.Int64Counter("http.server.request_count")
	durations, _ := httpMeter.Float64Histogram("http.server.duration", otelmetric.WithUnit("ms"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := &caller{}
		ctx := context.WithValue(r.Context(), callerKey{}, c)
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", r.URL.Path),
				attribute.String("http.request_id", ctxutil.RequestID(r.Context())),
			),
		)
		defer span.End()

		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", wrapped.statusCode))
		if wrapped.statusCode >= 500 {
			span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
		}

		// r.Pattern is set by the mux on the inner request only, so the
		// route label falls back to the raw path.
		attrs := []attribute.KeyValue{
			attribute.String("http.method", r.Method),
			attribute.String("http.route", routeLabel(r.URL.Path)),
			attribute.String("http.status_code", strconv.Itoa(wrapped.statusCode)),
		}
		if c.userID != "" {
			span.SetAttributes(
				attribute.String("kansoku.user_id", c.userID),
				attribute.String("kansoku.role", string(c.role)),
			)
		}

		if requests != nil {
			requests.Add(ctx, 1, otelmetric.WithAttributes(attrs...))
		}
		if durations != nil {
			durations.Record(ctx, float64(time.Since(start).Milliseconds()), otelmetric.WithAttributes(attrs...))
		}
	})
}

// routeLabel collapses per-account paths so metric cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/accounts/"):
		return "/v1/accounts/{account_id}"
	case strings.HasPrefix(path, "/v1/admin/approval-cache/"):
		return "/v1/admin/approval-cache/{user_id}"
	default:
		return path
	}
}

// authMiddleware validates bearer tokens, resolves the caller's approval
// status, and rejects callers that are not yet approved. A nil verifier
// disables authentication entirely.
func authMiddleware(v *auth.Verifier, approver *auth.Approver, logger *slog.Logger, next http.Handler) http.Handler {
	if v == nil {
		return next
	}
	if approver == nil {
		approver = auth.NewApprover(nil, nil)
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "missing authorization header")
			return
		}
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid authorization format")
			return
		}

		claims, err := v.ValidateToken(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid or expired token")
			return
		}

		approval, err := approver.Resolve(r.Context(), claims)
		if err != nil {
			logger.ErrorContext(r.Context(), "auth: resolve approval failed", "error", err, "user_id", claims.Subject)
			writeError(w, r, http.StatusServiceUnavailable, model.ErrCodeUnavailable, "approval status unavailable")
			return
		}

		if c := callerFromContext(r.Context()); c != nil {
			c.userID = claims.Subject
			c.role = approval.Role
		}
		if !approval.IsApproved {
			writeError(w, r, http.StatusForbidden, model.ErrCodeNotApproved, "account is pending approval")
			return
		}

		ctx := ctxutil.WithClaims(r.Context(), claims)
		ctx = ctxutil.WithApproval(ctx, approval)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAdmin rejects callers whose approval does not carry the admin role.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		approval, ok := ctxutil.ApprovalFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "authentication required")
			return
		}
		if approval.Role != model.RoleAdmin {
			writeError(w, r, http.StatusForbidden, model.ErrCodeForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// timeoutMiddleware bounds the time a request may spend in store calls.
func timeoutMiddleware(d time.Duration, next http.Handler) http.Handler {
	if d <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoveryMiddleware turns a handler panic into a 500 with the standard
// error envelope.
func recoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.ErrorContext(r.Context(), "http: handler panic",
				"panic", rec,
				"path", r.URL.Path,
				"request_id", ctxutil.RequestID(r.Context()),
				"stack", string(debug.Stack()),
			)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternal, "internal error")
		}()
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the standard envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Data: data,
		Meta: model.ResponseMeta{
			RequestID: ctxutil.RequestID(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}

// writeError writes a JSON error response with the standard envelope.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIError{
		Error: model.ErrorDetail{Code: code, Message: message},
		Meta: model.ResponseMeta{
			RequestID: ctxutil.RequestID(r.Context()),
			Timestamp: time.Now().UTC(),
		},
	})
}
