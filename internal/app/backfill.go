package app

import (
	"context"
	"errors"
	"time"

	"farewatch/internal/demo"
	"farewatch/internal/storage"
)

// Backfill generates synthetic transactions for every step in [From, To),
// timestamped at the step, and analyses them like live traffic.
func (a *App) Backfill(ctx context.Context, opts BackfillOptions) error {
	every := opts.Every
	if every <= 0 {
		every = a.Config.Demo.Interval()
	}
	if every <= 0 {
		return errors.New("backfill step must be positive")
	}

	start := alignForward(opts.From.UTC(), every)
	end := opts.To.UTC()
	if !start.Before(end) {
		return errors.New("backfill range is empty; check --from/--to")
	}

	var store storage.Backend
	if opts.DryRun {
		a.Logger.Warn().Msg("backfill dry-run: nothing will be persisted")
		store = storage.NewMemoryStore()
	} else {
		var closeStore func()
		var err error
		store, closeStore, err = a.openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
	}

	analyzer, err := a.readAnalyzer(store)
	if err != nil {
		return err
	}

	gen, err := demo.NewGenerator(a.Config.Demo, a.Config.Scoring.HighRiskStations)
	if err != nil {
		return err
	}
	runner := demo.NewRunner(gen, analyzer, a.Logger)

	failed := 0
	for at := start; at.Before(end); at = at.Add(every) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := runner.Tick(ctx, at); err != nil {
			failed++
			a.Logger.Error().Err(err).Time("at", at).Msg("backfill step failed")
		}
	}

	a.Logger.Info().
		Int("analysed", runner.Analysed).
		Int("duplicates", runner.Duplicates).
		Int("failed", failed).
		Msg("backfill finished")
	if failed > 0 {
		return errors.New("some backfill steps failed; see logs")
	}
	return nil
}

func alignForward(t time.Time, interval time.Duration) time.Time {
	truncated := t.Truncate(interval)
	if truncated.Before(t) {
		return truncated.Add(interval)
	}
	return truncated
}
