// Package dbtest opens throwaway sqlite databases carrying the full schema.
package dbtest

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/db"
	"github.com/campuscart/marketplace-backend/pkg/db/models"
)

// Open returns a client bound to a fresh in-memory database that is closed when
// the test ends.
func Open(t testing.TB) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	client, err := db.New(context.Background(), config.DBConfig{
		Driver:     config.DBDriverSQLite,
		SQLitePath: dsn,
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := client.DB().AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}
