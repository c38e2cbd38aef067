package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ashita-ai/kansoku"
	"github.com/ashita-ai/kansoku/internal/clock"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	var f flags
	flag.StringVar(&f.fixture, "fixture", os.Getenv("KANSOKU_FIXTURE"), "serve a YAML portfolio snapshot instead of Postgres")
	flag.StringVar(&f.databaseURL, "database-url", "", "Postgres connection string (overrides DATABASE_URL)")
	flag.StringVar(&f.date, "date", "", "pin the reference date, YYYY-MM-DD (overrides KANSOKU_DEMO_DATE)")
	flag.Parse()

	level := slog.LevelInfo
	if os.Getenv("KANSOKU_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, f); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

type flags struct {
	fixture     string
	databaseURL string
	date        string
}

func run(ctx context.Context, logger *slog.Logger, f flags) error {
	opts := []kansoku.Option{
		kansoku.WithVersion(version),
		kansoku.WithLogger(logger),
	}
	if f.fixture != "" {
		opts = append(opts, kansoku.WithFixture(f.fixture))
	}
	if f.databaseURL != "" {
		opts = append(opts, kansoku.WithDatabaseURL(f.databaseURL))
	}
	if f.date != "" {
		ref, err := clock.ParseDate(f.date)
		if err != nil {
			return err
		}
		opts = append(opts, kansoku.WithReferenceDate(ref))
	}

	app, err := kansoku.New(opts...)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return app.Run(ctx)
}
