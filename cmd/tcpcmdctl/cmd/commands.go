package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mfulz/tcpcmd/protocol"
)

// CommandsCmd lists the daemon's commands, or describes one.
var CommandsCmd = &cobra.Command{
	Use:     "commands [name]",
	Aliases: []string{"list"},
	Short:   "List commands registered on the daemon",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return execute(cmd.Context(), cmd.OutOrStdout(), append([]string{protocol.CmdHelp}, args...))
	},
}
