package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"farewatch/internal/api"
)

// Serve runs the HTTP API until SIGINT/SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	analyzer, closeAnalyzer, err := a.newAnalyzer(store)
	if err != nil {
		return err
	}
	defer closeAnalyzer()

	if a.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := api.New(a.Config.HTTP, analyzer, a.Logger)

	a.Logger.Info().
		Str("storage", a.Config.Storage.Driver).
		Bool("alerting", a.Config.Alerting.Enabled).
		Bool("events", a.Config.Events.Enabled).
		Msg("starting farewatch api")
	err = server.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("api terminated with error")
		return err
	}

	a.Logger.Info().Msg("farewatch api stopped")
	return nil
}
