package cli

import (
	"github.com/spf13/cobra"
)

var demoCount int

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Feed generated transactions into the analyzer at the configured rate",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Demo(cmd.Context(), demoCount)
	},
}

func init() {
	demoCmd.Flags().IntVar(&demoCount, "count", 0, "Stop after this many transactions (defaults to demo.count, 0 runs until interrupted)")
}
