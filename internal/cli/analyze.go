package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"farewatch/internal/app"
)

var (
	analyzeTicket    string
	analyzeStation   string
	analyzeAmount    string
	analyzeTimestamp string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score and record a single transaction",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := transactionOptions(analyzeTicket, analyzeStation, analyzeAmount, analyzeTimestamp)
		if err != nil {
			return err
		}
		return getApp().Analyze(cmd.Context(), opts)
	},
}

var setStatusCmd = &cobra.Command{
	Use:   "set-status <ticket-id> <pending|flagged|cleared>",
	Short: "Override the review status of a recorded transaction",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetStatus(cmd.Context(), args[0], args[1])
	},
}

func init() {
	addTransactionFlags(analyzeCmd, &analyzeTicket, &analyzeStation, &analyzeAmount, &analyzeTimestamp)
}

func addTransactionFlags(cmd *cobra.Command, ticket, station, amount, timestamp *string) {
	cmd.Flags().StringVar(ticket, "ticket", "", "Ticket identifier")
	cmd.Flags().StringVar(station, "station", "", "Station name")
	cmd.Flags().StringVar(amount, "amount", "", "Fare amount")
	cmd.Flags().StringVar(timestamp, "timestamp", "", "Transaction time (RFC3339, defaults to now)")
}

func transactionOptions(ticket, station, amount, timestamp string) (app.AnalyzeOptions, error) {
	opts := app.AnalyzeOptions{TicketID: ticket, Station: station, Amount: amount}
	if raw := strings.TrimSpace(timestamp); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return app.AnalyzeOptions{}, fmt.Errorf("invalid --timestamp value: %w", err)
		}
		opts.Timestamp = &ts
	}
	return opts, nil
}
