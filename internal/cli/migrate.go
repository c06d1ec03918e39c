package cli

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status|redo|reset|version] [args...]",
	Short: "Apply PostgreSQL schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		command := "up"
		if len(args) > 0 {
			command, args = args[0], args[1:]
		}
		return getApp().Migrate(cmd.Context(), command, args...)
	},
}
