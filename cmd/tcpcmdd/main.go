// Command tcpcmdd is the tcpcmd daemon. It loads configuration, registers the
// built-in commands and serves the line protocol until a termination signal
// or the shutdown command stops it.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfulz/tcpcmd/dispatch"
	"github.com/mfulz/tcpcmd/internal/commands"
	"github.com/mfulz/tcpcmd/internal/config"
	"github.com/mfulz/tcpcmd/internal/logging"
	"github.com/mfulz/tcpcmd/internal/server"
	"github.com/mfulz/tcpcmd/protocol"
)

var (
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "tcpcmdd [port]",
	Short: "Line-oriented TCP command daemon",
	Long: `tcpcmdd accepts client connections and dispatches each input line to the
registered command handlers. Queued handlers run one at a time in submission order.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func run(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		if _, err := strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("invalid port %q: %w", args[0], err)
		}
		if err := cmd.Flags().Set("port", args[0]); err != nil {
			return err
		}
	}

	cfg, err := config.Load(configPath, cmd.Flags())
	if err != nil {
		return err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	if err := logging.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logging.Sync()

	if cfg.Source != "" {
		logging.Log.Infof("[tcpcmdd] configuration loaded from %s", cfg.Source)
	} else {
		logging.Log.Infof("[tcpcmdd] no config file found, using defaults")
	}
	logging.Log.Debugf("[tcpcmdd] server config: %+v", cfg.Server)

	reg := dispatch.New()
	if err := commands.Register(reg); err != nil {
		return err
	}

	srv, err := server.New(cfg.Server, reg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		logging.Log.Errorf("[tcpcmdd] %v", err)
		return err
	}
	logging.Log.Infof("[tcpcmdd] shutdown complete")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[tcpcmdd] %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Config file (default: $TCPCMD_CONFIG, ~/.tcpcmd/tcpcmdd.yaml, /etc/tcpcmd/tcpcmdd.yaml)")
	rootCmd.Flags().String("host", "", "Listen host")
	rootCmd.Flags().IntP("port", "p", protocol.DefaultPort, "Listen port")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
}
