package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ashita-ai/kansoku/internal/clock"
	"github.com/ashita-ai/kansoku/internal/config"
	"github.com/ashita-ai/kansoku/internal/service/portfolio"
	"github.com/ashita-ai/kansoku/internal/storage"
	"github.com/ashita-ai/kansoku/internal/storage/fixture"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	fixture     string
	databaseURL string
	date        string
	jsonOut     bool
	verbose     bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "kansokuctl",
		Short: "Inspect account health, priorities and renewals",
		Long: `kansokuctl runs the same read operations as the kansoku server and prints
the results as tables or JSON.

Examples:
  kansokuctl --fixture demo.yaml --date 2025-12-18 priority --renewals-only
  kansokuctl stats
  kansokuctl forecast --owner "Dana Whitfield"`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.fixture, "fixture", "", "read a YAML portfolio snapshot instead of Postgres")
	pf.StringVar(&g.databaseURL, "database-url", "", "Postgres connection string (default: DATABASE_URL)")
	pf.StringVar(&g.date, "date", "", "reference date YYYY-MM-DD treated as today (default: KANSOKU_DEMO_DATE in demo mode, else now)")
	pf.BoolVar(&g.jsonOut, "json", false, "print JSON instead of tables")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log store errors to stderr")

	root.AddCommand(
		newPriorityCmd(g),
		newStatsCmd(g),
		newDetailCmd(g),
		newOverviewCmd(g),
		newHistoryCmd(g),
		newForecastCmd(g),
		newOwnersCmd(g),
		newTokenCmd(),
	)
	return root
}

// openService builds a portfolio service over the selected store. The
// returned func releases the store.
func openService(ctx context.Context, g *globalFlags, stderr io.Writer) (*portfolio.Service, func(), error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelError + 1
	if g.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	var clk clock.Clock
	if g.date != "" {
		t, err := clock.ParseDate(g.date)
		if err != nil {
			return nil, nil, err
		}
		clk = clock.NewFixed(t)
	} else if clk, err = cfg.Clock(); err != nil {
		return nil, nil, err
	}

	var (
		store   portfolio.Store
		release = func() {}
	)
	if g.fixture != "" {
		fs, err := fixture.Load(g.fixture)
		if err != nil {
			return nil, nil, fmt.Errorf("fixture: %w", err)
		}
		store = fs
	} else {
		dsn := g.databaseURL
		if dsn == "" {
			dsn = cfg.DatabaseURL
		}
		db, err := storage.New(ctx, dsn, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("storage: %w", err)
		}
		store, release = db, db.Close
	}

	svc := portfolio.New(store, clk, logger, portfolio.Config{
		WindowDays:         cfg.WindowDays,
		RenewalHorizonDays: cfg.RenewalHorizonDays,
	})
	return svc, release, nil
}

// withService opens the store, runs fn, and closes the store.
func withService(g *globalFlags, fn func(cmd *cobra.Command, args []string, svc *portfolio.Service) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
			cmd.SetContext(ctx)
		}
		svc, release, err := openService(ctx, g, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer release()
		return fn(cmd, args, svc)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
