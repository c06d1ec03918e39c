package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"farewatch/internal/app"
	"farewatch/internal/filter"
)

var (
	showLimit   int
	showStation string
	showStatus  string
	showFrom    string
	showTo      string
	showQuery   string
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		criteria, err := filter.Parse(filter.Params{
			Station: showStation,
			Status:  showStatus,
			From:    showFrom,
			To:      showTo,
			Query:   showQuery,
		})
		if err != nil {
			return err
		}

		return getApp().Show(cmd.Context(), app.ShowOptions{Limit: showLimit, Criteria: criteria})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count recorded transactions by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Stats(cmd.Context())
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of transactions to fetch before filtering")
	showCmd.Flags().StringVar(&showStation, "station", "", "Only show this station")
	showCmd.Flags().StringVar(&showStatus, "status", "", "Only show pending, flagged or cleared")
	showCmd.Flags().StringVar(&showFrom, "from", "", "Earliest transaction time (RFC3339 or YYYY-MM-DD)")
	showCmd.Flags().StringVar(&showTo, "to", "", "Latest transaction time (RFC3339 or YYYY-MM-DD)")
	showCmd.Flags().StringVar(&showQuery, "q", "", "Case-insensitive match on ticket id or station")
}
