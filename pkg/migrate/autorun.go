package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/storeconsole/pkg/config"
	"github.com/angelmondragon/storeconsole/pkg/db"
	"github.com/angelmondragon/storeconsole/pkg/db/models"
	"github.com/angelmondragon/storeconsole/pkg/logger"
)

// MaybeRunDev brings the schema up to date in dev when the auto-migrate flag is on.
// SQLite databases get a gorm AutoMigrate of the models since the goose files are Postgres SQL.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "sqlite": cfg.FeatureFlags.UseSQLite})

	if cfg.FeatureFlags.UseSQLite {
		logg.Info(ctx, "running gorm auto-migrate (dev auto-run)")
		if err := client.DB().WithContext(ctx).AutoMigrate(&models.Store{}, &models.StoreEvent{}); err != nil {
			return fmt.Errorf("auto-migrating models: %w", err)
		}
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "running Goose migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
