package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mfulz/tcpcmd/protocol"
)

// ShutdownCmd asks the daemon to stop after the queued work ahead of it.
var ShutdownCmd = &cobra.Command{
	Use:   "shutdown [sec]",
	Short: "Shut the daemon down, optionally after sec seconds on the worker",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		line, err := shutdownLine(args)
		if err != nil {
			return err
		}
		return execute(cmd.Context(), cmd.OutOrStdout(), line)
	},
}

// shutdownLine builds the request; the daemon applies the full range check.
func shutdownLine(args []string) ([]string, error) {
	line := []string{protocol.CmdShutdown}
	if len(args) == 1 {
		if _, err := strconv.ParseFloat(args[0], 64); err != nil {
			return nil, fmt.Errorf("invalid delay %q: %w", args[0], err)
		}
		line = append(line, args[0])
	}
	return line, nil
}
