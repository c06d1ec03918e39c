package cli

import (
	"github.com/spf13/cobra"
)

var (
	simulateTicket    string
	simulateStation   string
	simulateAmount    string
	simulateTimestamp string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Score a hypothetical transaction without storing it and send the alert if flagged",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := transactionOptions(simulateTicket, simulateStation, simulateAmount, simulateTimestamp)
		if err != nil {
			return err
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	addTransactionFlags(simulateCmd, &simulateTicket, &simulateStation, &simulateAmount, &simulateTimestamp)
}
