package ratelimit_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/kansoku/internal/model"
	"github.com/ashita-ai/kansoku/internal/ratelimit"
)

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func (s *stubLimiter) Close() error { return nil }

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(t *testing.T, l ratelimit.Limiter, key ratelimit.KeyFunc) *httptest.ResponseRecorder {
	t.Helper()
	h := ratelimit.Middleware(l, key, func(*http.Request) string { return "req-1" }, discard)(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/api/priority", nil)
	req.RemoteAddr = "10.0.0.7:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_Allows(t *testing.T) {
	l := &stubLimiter{allow: true}
	rec := serve(t, l, ratelimit.IPKeyFunc)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ip:10.0.0.7"}, l.keys)
}

func TestMiddleware_Rejects(t *testing.T) {
	rec := serve(t, &stubLimiter{allow: false}, ratelimit.IPKeyFunc)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	var body model.APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, model.ErrCodeRateLimited, body.Error.Code)
	assert.Equal(t, "req-1", body.Meta.RequestID)
}

func TestMiddleware_FailsOpen(t *testing.T) {
	rec := serve(t, &stubLimiter{err: errors.New("backend down")}, ratelimit.IPKeyFunc)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_EmptyKeySkips(t *testing.T) {
	l := &stubLimiter{allow: false}
	rec := serve(t, l, func(*http.Request) string { return "" })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, l.keys)
}

func TestIPKeyFunc_NoPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9"
	assert.Equal(t, "ip:10.0.0.9", ratelimit.IPKeyFunc(req))
}
