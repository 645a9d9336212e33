// Package testutil provides containerized PostgreSQL helpers for
// integration tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tomwolfe/storefront/internal/dbutil"
)

// NewTestPostgres starts a PostgreSQL container, applies the migrations
// from migrationsPath, and returns a connected pool. The container and
// pool are cleaned up when the test finishes.
func NewTestPostgres(t *testing.T, migrationsPath string) *sql.DB {
	t.Helper()

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("storefront_test"),
		tcpostgres.WithUsername("storefront"),
		tcpostgres.WithPassword("storefront"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(context.Background()); termErr != nil {
			t.Logf("warning: failed to terminate postgres container: %v", termErr)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("resolving postgres connection string: %v", err)
	}

	db, err := dbutil.Connect(ctx, dbutil.PoolConfig{DSN: dsn})
	if err != nil {
		t.Fatalf("connecting to test postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := dbutil.RunMigrations(db, migrationsPath); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db
}
