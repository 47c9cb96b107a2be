package migrate

import (
	"context"
	"fmt"

	"github.com/sara-platform/sara-hub/pkg/config"
	"github.com/sara-platform/sara-hub/pkg/db"
	"github.com/sara-platform/sara-hub/pkg/logger"
)

// MaybeRunDev applies pending migrations at boot when auto-migrate is
// enabled. Guarded to dev so production schema changes stay an explicit
// deploy step.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg == nil || !cfg.DB.AutoMigrate {
		return nil
	}
	if !cfg.App.IsDev() {
		return fmt.Errorf("auto-migrate is only allowed in dev (env=%s)", cfg.App.Env)
	}

	sqlDB, err := client.SQLDB()
	if err != nil {
		return fmt.Errorf("getting sql db handle: %w", err)
	}

	if logg != nil {
		logg.Info(ctx, "running dev auto-migrations")
	}
	return Up(ctx, sqlDB)
}
