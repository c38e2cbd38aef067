package kansoku

import (
	"io/fs"
	"log/slog"
	"net/http"
	"time"
)

// Middleware wraps the HTTP handler chain.
type Middleware func(http.Handler) http.Handler

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Callers set them through the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	fixturePath     string
	referenceDate   time.Time
	logger          *slog.Logger
	version         string
	shutdownTimeout time.Duration
	middlewares     []Middleware
	extraMigrations []fs.FS
}

// WithPort overrides the TCP port from config (KANSOKU_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithFixture serves a YAML portfolio snapshot instead of connecting to
// Postgres. DATABASE_URL and migrations are ignored.
func WithFixture(path string) Option {
	return func(o *resolvedOptions) { o.fixturePath = path }
}

// WithReferenceDate pins "today" for every computation, overriding
// KANSOKU_DEMO_MODE and KANSOKU_DEMO_DATE.
func WithReferenceDate(t time.Time) Option {
	return func(o *resolvedOptions) { o.referenceDate = t }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests after
// its context is cancelled. Zero waits indefinitely.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *resolvedOptions) { o.shutdownTimeout = d }
}

// WithMiddleware registers an outermost HTTP middleware.
// Multiple middlewares may be registered. Applied in registration order:
// the first-registered middleware is outermost (called first by every request).
func WithMiddleware(mw Middleware) Option {
	return func(o *resolvedOptions) { o.middlewares = append(o.middlewares, mw) }
}

// WithExtraMigrations adds an SQL migration filesystem applied after the
// embedded schema when KANSOKU_RUN_MIGRATIONS is on. Files are applied in
// name order and recorded like the embedded ones.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
