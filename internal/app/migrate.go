package app

import (
	"context"
	"fmt"

	"farewatch/internal/config"
	"farewatch/internal/storage"
)

// Migrate applies goose migrations to the PostgreSQL store.
func (a *App) Migrate(ctx context.Context, command string, args ...string) error {
	if a.Config.Storage.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations only apply to the %s driver, configured driver is %q", config.DriverPostgres, a.Config.Storage.Driver)
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	return storage.Migrate(ctx, pool, a.Logger, command, args...)
}
