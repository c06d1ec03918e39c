package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"farewatch/internal/fraud"
	"farewatch/internal/service"
)

// Analyze scores and records one transaction, printing the outcome.
func (a *App) Analyze(ctx context.Context, opts AnalyzeOptions) error {
	in, err := opts.input()
	if err != nil {
		return err
	}

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

	res, err := analyzer.Analyze(ctx, in)
	if err != nil {
		return err
	}
	return a.printResult(res, analyzer.Thresholds())
}

// SetStatus overrides the review status of a recorded transaction.
func (a *App) SetStatus(ctx context.Context, ticketID, status string) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	analyzer, err := a.readAnalyzer(store)
	if err != nil {
		return err
	}

	if err := analyzer.UpdateStatus(ctx, ticketID, status); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "%s marked %s\n", ticketID, strings.ToLower(strings.TrimSpace(status)))
	return nil
}

func (o AnalyzeOptions) input() (service.Input, error) {
	in := service.Input{
		TicketID:  strings.TrimSpace(o.TicketID),
		Station:   strings.TrimSpace(o.Station),
		Timestamp: o.Timestamp,
	}
	if raw := strings.TrimSpace(o.Amount); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return service.Input{}, fmt.Errorf("invalid --amount %q: %w", o.Amount, err)
		}
		in.Amount = &amount
	}
	if err := in.Validate(); err != nil {
		return service.Input{}, err
	}
	return in, nil
}

func (a *App) printResult(res fraud.Result, thresholds fraud.Thresholds) error {
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Ticket\t%s\n", res.TicketID)
	fmt.Fprintf(writer, "Station\t%s\n", res.Station)
	fmt.Fprintf(writer, "Amount\t%s\n", res.Amount.StringFixed(2))
	fmt.Fprintf(writer, "Time (UTC)\t%s\n", res.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(writer, "Score\t%.3f (flag > %.2f, clear < %.2f)\n", res.FraudScore, thresholds.Flag, thresholds.Clear)
	fmt.Fprintf(writer, "Risk\t%s\n", res.RiskLevel())
	fmt.Fprintf(writer, "Status\t%s\n", res.Status)

	names := make([]string, 0, len(res.Factors))
	for name := range res.Factors {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(writer, "  %s\t%+.3f\n", name, res.Factors[name])
	}
	return writer.Flush()
}
