package cmd

import (
	"github.com/spf13/cobra"
)

// SendCmd sends an arbitrary command line.
var SendCmd = &cobra.Command{
	Use:   "send <command> [args...]",
	Short: "Send a raw command to the daemon",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd.Context(), cmd.OutOrStdout(), args)
	},
}
