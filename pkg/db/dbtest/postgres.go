//go:build integration

package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/db"
)

const postgresImage = "postgres:16-alpine"

// OpenPostgres starts a disposable Postgres container and returns a client for
// it. Schema setup is left to the caller so goose migrations can run against it.
func OpenPostgres(t testing.TB) *db.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("campuscart"),
		postgres.WithUsername("campuscart"),
		postgres.WithPassword("campuscart"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	client, err := db.New(ctx, config.DBConfig{
		Driver:       config.DBDriverPostgres,
		DSN:          dsn,
		MaxOpenConns: 16,
		MaxIdleConns: 4,
	}, nil)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}
