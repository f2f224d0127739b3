package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startPostgres runs a throwaway PostgreSQL container and returns its URL.
// Skipped unless TEST_INTEGRATION is set.
func startPostgres(t testing.TB) string {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("pichost_test"),
		postgres.WithUsername("pichost"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}
	return url
}

func TestPostgresCatalog(t *testing.T) {
	url := startPostgres(t)
	ctx := context.Background()

	// One container; each subtest starts from an empty table.
	newCatalog := func(t testing.TB) Catalog {
		c, err := NewPostgres(ctx, url)
		if err != nil {
			t.Fatalf("NewPostgres() error = %v", err)
		}
		if _, err := c.pool.Exec(ctx, "TRUNCATE files RESTART IDENTITY"); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		t.Cleanup(func() { _ = c.Close() })
		return c
	}

	runCatalogSuite(t, newCatalog)
}

func TestMigratePostgresIsRepeatable(t *testing.T) {
	url := startPostgres(t)

	if err := MigratePostgres(url); err != nil {
		t.Fatalf("first MigratePostgres() error = %v", err)
	}
	if err := MigratePostgres(url); err != nil {
		t.Fatalf("second MigratePostgres() error = %v", err)
	}
}

func TestIsPostgresTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"connection failure", &pgconn.PgError{Code: "08006"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"connection reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPostgresTransient(tt.err); got != tt.want {
				t.Errorf("isPostgresTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})) {
		t.Error("wrapped 23505 should be a unique violation")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("23503 is a foreign key violation, not unique")
	}
}
