package cli

import (
	"github.com/spf13/cobra"

	"farewatch/internal/app"
)

var exportOpts struct {
	from, to  string
	png, csv  string
	maxPoints int
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded transactions as CSV and/or a fraud score chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseTimeFlag("from", exportOpts.from)
		if err != nil {
			return err
		}
		to, err := parseTimeFlag("to", exportOpts.to)
		if err != nil {
			return err
		}

		return getApp().Export(cmd.Context(), app.ExportOptions{
			From:      from,
			To:        to,
			PNGPath:   exportOpts.png,
			CSVPath:   exportOpts.csv,
			MaxPoints: exportOpts.maxPoints,
		})
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportOpts.from, "from", "", "Window start, inclusive (defaults to 24h before --to)")
	f.StringVar(&exportOpts.to, "to", "", "Window end, inclusive (defaults to now)")
	f.StringVar(&exportOpts.png, "png", "", "Path to write the fraud score chart")
	f.StringVar(&exportOpts.csv, "csv", "", "Path to write CSV rows")
	f.IntVar(&exportOpts.maxPoints, "max-points", 0, "Maximum points plotted in the chart (defaults to config)")
}
