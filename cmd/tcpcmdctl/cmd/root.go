// Package cmd provides the tcpcmdctl subcommands. Every subcommand opens one
// session, sends one command line and prints the final reply.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"github.com/mfulz/tcpcmd/internal/controlcli"
	"github.com/mfulz/tcpcmd/internal/logging"
	"github.com/mfulz/tcpcmd/protocol"
)

// Options holds the persistent flags shared by all subcommands.
type Options struct {
	ConfigPath string
	Daemon     string
	Addr       string
	Timeout    time.Duration
	Debug      bool
}

// Opts is filled by the root command's flags.
var Opts Options

// ErrRejected is returned when the daemon answers NG.
var ErrRejected = errors.New("command rejected")

// RegisterFlags binds Opts to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&Opts.ConfigPath, "config", "", "Client config file (default ~/.tcpcmd/tcpcmdctl.yaml)")
	fs.StringVarP(&Opts.Daemon, "daemon", "n", "", "Daemon name from the client config")
	fs.StringVar(&Opts.Addr, "addr", "", "Direct daemon address (host:port), overrides --daemon")
	fs.DurationVarP(&Opts.Timeout, "timeout", "t", 0, "Dial and read timeout (0 waits for the reply indefinitely)")
	fs.BoolVarP(&Opts.Debug, "debug", "d", false, "Enable debug logging")
}

// execute resolves the daemon, sends args and prints the outcome to out.
func execute(ctx context.Context, out io.Writer, args []string) error {
	cfg, err := controlcli.LoadCTLConfig(Opts.ConfigPath)
	if err != nil {
		return err
	}
	addr, err := controlcli.ResolveAddr(cfg, Opts.Daemon, Opts.Addr)
	if err != nil {
		return err
	}
	timeout := Opts.Timeout
	if timeout == 0 {
		timeout = cfg.Timeout
	}

	logging.Log.Debugf("[tcpcmdctl] %s <- %q", addr, args)
	rep, err := controlcli.Call(ctx, addr, timeout, args, func(n protocol.Reply) {
		fmt.Fprintf(out, "%s %s\n", n.RC, formatMsg(n.Msg))
	})
	if err != nil {
		return err
	}
	printReply(out, *rep)
	if rep.RC == protocol.NG {
		return fmt.Errorf("%s: %w", args[0], ErrRejected)
	}
	return nil
}

func printReply(out io.Writer, rep protocol.Reply) {
	// help listings come back as [name, help] pairs
	if list, ok := rep.Msg.([]any); ok {
		fmt.Fprintln(out, rep.RC)
		for _, item := range list {
			if pair, ok := item.([]any); ok && len(pair) == 2 {
				fmt.Fprintf(out, "  %-12v %v\n", pair[0], pair[1])
				continue
			}
			fmt.Fprintf(out, "  %s\n", formatMsg(item))
		}
		return
	}
	if rep.Msg == nil {
		fmt.Fprintln(out, rep.RC)
		return
	}
	fmt.Fprintf(out, "%s %s\n", rep.RC, formatMsg(rep.Msg))
}

func formatMsg(msg any) string {
	if s, ok := msg.(string); ok {
		return s
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Sprint(msg)
	}
	return string(data)
}
