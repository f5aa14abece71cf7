package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/tebex-storefront/pkg/config"
	"github.com/angelmondragon/tebex-storefront/pkg/db"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
)

// MaybeRun applies the embedded migrations when gorm persistence is selected and
// auto-migrate is enabled.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !strings.EqualFold(cfg.Persistence.Driver, config.PersistenceGorm) || !cfg.DB.AutoMigrate {
		return nil
	}

	if err := ValidateEmbedded(); err != nil {
		return fmt.Errorf("validating embedded migrations: %w", err)
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "driver": cfg.DB.Driver}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (auto-run)")

	if err := RunEmbedded(ctx, sqlDB, cfg.DB.Driver, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}
