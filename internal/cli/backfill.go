package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"farewatch/internal/app"
)

var backfillOpts struct {
	from, to string
	every    time.Duration
	dryRun   bool
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Generate synthetic transaction history over a time range",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseTimeFlag("from", backfillOpts.from)
		if err != nil {
			return err
		}
		to, err := parseTimeFlag("to", backfillOpts.to)
		if err != nil {
			return err
		}
		if from == nil || to == nil {
			return errors.New("--from and --to must be provided")
		}
		if !from.Before(*to) {
			return errors.New("--from must be before --to")
		}

		return getApp().Backfill(cmd.Context(), app.BackfillOptions{
			From:   *from,
			To:     *to,
			Every:  backfillOpts.every,
			DryRun: backfillOpts.dryRun,
		})
	},
}

func init() {
	f := backfillCmd.Flags()
	f.StringVar(&backfillOpts.from, "from", "", "Range start, inclusive")
	f.StringVar(&backfillOpts.to, "to", "", "Range end, exclusive")
	f.DurationVar(&backfillOpts.every, "every", 0, "Spacing between generated transactions (defaults to the demo rate)")
	f.BoolVar(&backfillOpts.dryRun, "dry-run", false, "Score without writing to storage")
}
