// Package kansoku is the public API for embedding the kansoku account health
// server.
//
// Consumers import this package to construct and extend the server without
// forking it:
//
//	app, err := kansoku.New(
//	    kansoku.WithVersion(version),
//	    kansoku.WithLogger(logger),
//	    kansoku.WithMiddleware(myAuditLog),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// kansoku (root) imports internal/*, but internal/* never imports kansoku (root).
package kansoku

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/kansoku/api"
	"github.com/ashita-ai/kansoku/internal/auth"
	"github.com/ashita-ai/kansoku/internal/clock"
	"github.com/ashita-ai/kansoku/internal/config"
	"github.com/ashita-ai/kansoku/internal/mcp"
	"github.com/ashita-ai/kansoku/internal/ratelimit"
	"github.com/ashita-ai/kansoku/internal/server"
	"github.com/ashita-ai/kansoku/internal/service/portfolio"
	"github.com/ashita-ai/kansoku/internal/storage"
	"github.com/ashita-ai/kansoku/internal/storage/fixture"
	"github.com/ashita-ai/kansoku/internal/telemetry"
	"github.com/ashita-ai/kansoku/migrations"
)

const defaultShutdownTimeout = 15 * time.Second

// App is the kansoku server lifecycle. Construct with New(), run with Run().
// App has no public fields; configure it with New() options.
type App struct {
	cfg             config.Config
	db              *storage.DB // nil when serving a fixture
	srv             *server.Server
	limiter         ratelimit.Limiter
	approvalCache   *auth.ApprovalCache // nil when auth is disabled
	otelShutdown    telemetry.Shutdown
	shutdownTimeout time.Duration
	logger          *slog.Logger
	version         string
}

// New initialises the kansoku server. It loads configuration, connects to
// the store, and wires all subsystems. It does NOT accept HTTP connections;
// call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{shutdownTimeout: defaultShutdownTimeout}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}

	clk, err := cfg.Clock()
	if err != nil {
		return nil, fmt.Errorf("clock: %w", err)
	}
	demoDate := ""
	if cfg.DemoMode {
		demoDate = cfg.DemoDate
	}
	if !o.referenceDate.IsZero() {
		clk = clock.NewFixed(o.referenceDate)
		demoDate = o.referenceDate.UTC().Format(time.DateOnly)
	}

	logger.Info("kansoku starting", "version", version, "port", cfg.Port, "demo_date", demoDate)

	otelShutdown, err := telemetry.Init(context.Background(), telemetry.Settings{
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
		ServiceName: cfg.ServiceName,
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	a := &App{
		cfg:             cfg,
		otelShutdown:    otelShutdown,
		shutdownTimeout: o.shutdownTimeout,
		logger:          logger,
		version:         version,
	}

	store, err := a.openStore(o)
	if err != nil {
		a.release()
		return nil, err
	}

	svc := portfolio.New(store, clk, logger, portfolio.Config{
		WindowDays:         cfg.WindowDays,
		RenewalHorizonDays: cfg.RenewalHorizonDays,
	})

	// Auth is optional: without a signing secret every route is open.
	var (
		verifier *auth.Verifier
		approver *auth.Approver
	)
	if cfg.JWTSecret != "" {
		verifier, err = auth.NewVerifier(cfg.JWTSecret)
		if err != nil {
			a.release()
			return nil, fmt.Errorf("auth: %w", err)
		}
		a.approvalCache = auth.NewApprovalCache(cfg.ApprovalCacheTTL)
		approver = auth.NewApprover(a.approvalCache, auth.ClaimRoles{})
		logger.Info("auth: enabled", "approval_cache_ttl", cfg.ApprovalCacheTTL)
	} else {
		logger.Warn("auth: disabled (no KANSOKU_JWT_SECRET)")
	}

	if cfg.RateLimitEnabled {
		a.limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		a.limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	mcpSrv := mcp.New(svc, logger, version)

	middlewares := make([]func(http.Handler) http.Handler, len(o.middlewares))
	for i, mw := range o.middlewares {
		middlewares[i] = mw
	}

	a.srv = server.New(server.ServerConfig{
		Portfolio:          svc,
		Logger:             logger,
		Verifier:           verifier,
		Approver:           approver,
		Limiter:            a.limiter,
		MCPServer:          mcpSrv.MCPServer(),
		Port:               cfg.Port,
		ReadTimeout:        cfg.ReadTimeout,
		WriteTimeout:       cfg.WriteTimeout,
		RequestTimeout:     cfg.RequestTimeout,
		Version:            version,
		StrictErrors:       cfg.StrictErrors,
		DemoDate:           demoDate,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		OpenAPISpec:        api.OpenAPISpec,
		Middlewares:        middlewares,
	})

	return a, nil
}

// openStore returns the fixture store when one was requested, otherwise the
// Postgres store with migrations applied if configured.
func (a *App) openStore(o resolvedOptions) (portfolio.Store, error) {
	if o.fixturePath != "" {
		store, err := fixture.Load(o.fixturePath)
		if err != nil {
			return nil, fmt.Errorf("fixture: %w", err)
		}
		a.logger.Info("store: fixture", "path", o.fixturePath)
		return store, nil
	}

	ctx := context.Background()
	db, err := storage.New(ctx, a.cfg.DatabaseURL, a.logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	a.db = db

	if !a.cfg.RunMigrations {
		a.logger.Info("embedded migrations skipped by config")
		return db, nil
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for i, extra := range o.extraMigrations {
		if err := db.RunMigrations(ctx, extra); err != nil {
			return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}
	return db, nil
}

// Handler returns the root HTTP handler, for mounting in tests or another server.
func (a *App) Handler() http.Handler {
	return a.srv.Handler()
}

// Run starts the HTTP server, then blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically, so callers
// should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	return errors.Join(runErr, a.Shutdown(context.Background()))
}

// Shutdown drains in-flight HTTP requests, then releases the limiter, the
// approval cache, the database pool, and telemetry exporters.
func (a *App) Shutdown(ctx context.Context) error {
	httpCtx, cancel := contextWithOptionalTimeout(ctx, a.shutdownTimeout)
	defer cancel()

	var err error
	if shutdownErr := a.srv.Shutdown(httpCtx); shutdownErr != nil {
		err = fmt.Errorf("http shutdown: %w", shutdownErr)
	}
	a.release()
	a.logger.Info("kansoku stopped")
	return err
}

// release frees everything New acquired. Safe on a partially built App.
func (a *App) release() {
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	if a.approvalCache != nil {
		a.approvalCache.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}
}

func contextWithOptionalTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
