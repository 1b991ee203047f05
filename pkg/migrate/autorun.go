package migrate

import (
	"context"
	"fmt"

	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/db"
	"github.com/campuscart/marketplace-backend/pkg/db/models"
	"github.com/campuscart/marketplace-backend/pkg/logger"
)

// MaybeRunDev brings the schema up to date on startup, but only in dev with
// the auto_migrate flag set. Postgres gets the embedded goose migrations;
// SQLite is built from the models.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver})

	if cfg.DB.Driver == config.DBDriverSQLite {
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite automigrate: %w", err)
		}
		logg.Info(ctx, "sqlite schema bootstrapped")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	runner, err := NewRunner(sqlDB, Embedded())
	if err != nil {
		return err
	}
	steps, err := runner.Execute(ctx, "up")
	if err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	logg.Info(logg.WithField(ctx, "applied", len(steps)), "dev auto-migrate finished")
	return nil
}
