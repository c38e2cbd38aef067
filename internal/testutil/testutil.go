// Package testutil provides shared test infrastructure for integration tests
// that need a real Postgres.
//
// Usage in TestMain:
//
//	func TestMain(m *testing.M) {
//	    flag.Parse()
//	    if testing.Short() {
//	        os.Exit(m.Run())
//	    }
//	    tc := testutil.MustStartPostgres()
//	    testDB, _ = tc.NewTestDB(context.Background(), testutil.TestLogger())
//	    code := m.Run()
//	    tc.Terminate()
//	    os.Exit(code)
//	}
package testutil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ashita-ai/kansoku/internal/storage"
	"github.com/ashita-ai/kansoku/migrations"
)

// PostgresImage is the container image integration tests run against.
const PostgresImage = "postgres:17-alpine"

// TestContainer wraps a testcontainers container with a DSN for connecting.
type TestContainer struct {
	Container testcontainers.Container
	DSN       string
}

// MustStartPostgres starts a Postgres container. Calls os.Exit(1) on failure
// (suitable for TestMain).
func MustStartPostgres() *TestContainer {
	tc, err := StartPostgres(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "testutil: %v\n", err)
		os.Exit(1)
	}
	return tc
}

// StartPostgres starts a Postgres container and returns its DSN.
func StartPostgres(ctx context.Context) (*TestContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "kansoku",
			"POSTGRES_PASSWORD": "kansoku",
			"POSTGRES_DB":       "kansoku",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("container host: %w", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("container port: %w", err)
	}

	dsn := fmt.Sprintf("postgres://kansoku:kansoku@%s:%s/kansoku?sslmode=disable", host, port.Port())
	return &TestContainer{Container: container, DSN: dsn}, nil
}

// NewTestDB creates a storage.DB connected to this container and applies the
// embedded schema.
func (tc *TestContainer) NewTestDB(ctx context.Context, logger *slog.Logger) (*storage.DB, error) {
	db, err := storage.New(ctx, tc.DSN, logger)
	if err != nil {
		return nil, fmt.Errorf("testutil: create DB: %w", err)
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("testutil: run migrations: %w", err)
	}
	return db, nil
}

// Terminate stops and removes the container.
func (tc *TestContainer) Terminate() {
	_ = tc.Container.Terminate(context.Background())
}

// TestLogger returns a logger configured for test output (warns only).
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
