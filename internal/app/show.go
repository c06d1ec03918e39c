package app

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"farewatch/internal/fraud"
	"farewatch/internal/service"
	"farewatch/internal/storage"
)

// Show prints the most recent transactions matching opts.Criteria.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	analyzer, err := a.readAnalyzer(store)
	if err != nil {
		return err
	}

	records, err := analyzer.Recent(ctx, a.Config.HTTP.ResolveListLimit(opts.Limit), opts.Criteria)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.Out, "no transactions found")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tTicket\tStation\tAmount\tScore\tRisk\tStatus")
	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%.3f\t%s\t%s\n",
			rec.Timestamp.UTC().Format(time.RFC3339),
			sanitizeInline(rec.TicketID),
			sanitizeInline(rec.Station),
			rec.Amount.StringFixed(2),
			rec.FraudScore,
			rec.RiskLevel(),
			rec.Status,
		)
	}
	return writer.Flush()
}

// Stats prints per-status counts.
func (a *App) Stats(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	analyzer, err := a.readAnalyzer(store)
	if err != nil {
		return err
	}

	counts, err := analyzer.Stats(ctx)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Status\tCount")
	for _, status := range []fraud.Status{fraud.StatusFlagged, fraud.StatusPending, fraud.StatusCleared} {
		fmt.Fprintf(writer, "%s\t%d\n", status, counts[status])
	}
	fmt.Fprintf(writer, "total\t%d\n", counts.Total())
	return writer.Flush()
}

// readAnalyzer builds an analyzer without alerting or events, for commands
// that only read.
func (a *App) readAnalyzer(store storage.TransactionStore) (*service.Analyzer, error) {
	scorer, err := a.newScorer()
	if err != nil {
		return nil, err
	}
	return service.New(scorer, store, a.Logger), nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
