package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"farewatch/internal/demo"
	"farewatch/internal/scheduler"
)

// Demo feeds generated transactions into the analyzer at the configured
// rate. A positive count stops after that many transactions.
func (a *App) Demo(ctx context.Context, count int) error {
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

	gen, err := demo.NewGenerator(a.Config.Demo, a.Config.Scoring.HighRiskStations)
	if err != nil {
		return err
	}
	runner := demo.NewRunner(gen, analyzer, a.Logger)

	if count <= 0 {
		count = a.Config.Demo.Count
	}
	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.Demo.Interval(),
		RunImmediately: true,
		MaxTicks:       count,
	}, a.Logger)

	a.Logger.Info().
		Int("logs_per_minute", a.Config.Demo.LogsPerMinute).
		Float64("fraud_rate", a.Config.Demo.FraudRate).
		Int("count", count).
		Msg("starting demo feed")
	err = sched.Run(ctx, runner.Tick)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.Logger.Info().Int("analysed", runner.Analysed).Int("duplicates", runner.Duplicates).Msg("demo feed stopped")
	return nil
}
