// Command tcpcmdctl sends commands to a tcpcmd daemon and prints the replies.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mfulz/tcpcmd/cmd/tcpcmdctl/cmd"
	"github.com/mfulz/tcpcmd/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "tcpcmdctl",
	Short:         "Control client for the tcpcmd daemon",
	Long:          `tcpcmdctl connects to a tcpcmdd instance, sends one command and prints the reply.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		logCfg := logging.Config{Level: "warn", ToStderr: true}
		if cmd.Opts.Debug {
			logCfg.Level = "debug"
		}
		return logging.Init(logCfg)
	},
}

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[tcpcmdctl] %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cmd.RegisterFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(cmd.SendCmd)
	rootCmd.AddCommand(cmd.CommandsCmd)
	rootCmd.AddCommand(cmd.ShutdownCmd)
}
