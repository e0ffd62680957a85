package migrate

import (
	"context"
	"fmt"

	"github.com/YeLlowseaG/clientseeker/pkg/config"
	"github.com/YeLlowseaG/clientseeker/pkg/db"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
)

// MaybeRunDev applies the embedded migrations at boot, but only in dev with
// CLIENTSEEKER_AUTO_MIGRATE set. Elsewhere cmd/migrate owns schema changes.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.App.AutoMigrate {
		return nil
	}
	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}
	fsys, err := Source(DefaultDir)
	if err != nil {
		return err
	}
	ctx = logg.WithField(ctx, "auto_migrate", true)
	if err := Run(ctx, sqlDB, fsys, "up", logg); err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	return nil
}
