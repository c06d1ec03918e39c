package app

import (
	"context"
	"errors"
	"fmt"

	"farewatch/internal/alerting"
	"farewatch/internal/fraud"
	"farewatch/internal/service"
	"farewatch/internal/storage"
)

// SimulateAlert scores a hypothetical transaction against a throwaway
// in-memory store and sends the alert through the configured channels when
// the score crosses the flag threshold.
func (a *App) SimulateAlert(ctx context.Context, opts AnalyzeOptions) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is disabled")
	}

	in, err := opts.input()
	if err != nil {
		return err
	}

	notifier, err := alerting.New(a.Config.Alerting, a.Logger)
	if err != nil {
		return err
	}
	if notifier == nil {
		return errors.New("no alert channels configured")
	}

	scorer, err := a.newScorer()
	if err != nil {
		return err
	}

	svc := service.New(scorer, storage.NewMemoryStore(), a.Logger, service.WithNotifier(notifier))
	res, err := svc.Analyze(ctx, in)
	if err != nil {
		return err
	}

	if err := a.printResult(res, svc.Thresholds()); err != nil {
		return err
	}
	if res.Status != fraud.StatusFlagged {
		fmt.Fprintln(a.Out, "score below flag threshold; no alert sent")
	}
	return nil
}
