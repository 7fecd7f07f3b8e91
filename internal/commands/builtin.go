// Package commands registers the built-in tcpcmd commands: help, exit, sleep
// and shutdown.
package commands

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/mfulz/tcpcmd/dispatch"
	"github.com/mfulz/tcpcmd/internal/logging"
	"github.com/mfulz/tcpcmd/protocol"
)

// Register adds the built-in commands to reg.
func Register(reg *dispatch.Registry) error {
	builtins := []dispatch.Command{
		{Name: protocol.CmdSleep, Immediate: sleepCheck, Queued: sleepRun, Help: "sleep <sec>: block the queue for sec seconds"},
		{Name: protocol.CmdHelp, Immediate: helpFor(reg), Help: "help [command]: command help"},
		{Name: protocol.CmdExit, Immediate: exit, Help: "exit: disconnect"},
		{Name: protocol.CmdShutdown, Immediate: shutdownCheck, Queued: shutdownRun, Help: "shutdown [sec]: shutdown server after sec seconds"},
	}
	for _, cmd := range builtins {
		if err := reg.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// helpFor lists every command of reg, or describes one.
func helpFor(reg *dispatch.Registry) dispatch.HandlerFunc {
	return func(ctx context.Context, args []string) protocol.Reply {
		if len(args) >= 2 {
			cmd, ok := reg.Lookup(args[1])
			if !ok {
				return protocol.Ngf("%s: no such command", args[1])
			}
			return protocol.Reply{RC: protocol.OK, Msg: cmd.Help}
		}

		list := make([][]string, 0, reg.Len())
		for _, cmd := range reg.Commands() {
			list = append(list, []string{cmd.Name, cmd.Help})
		}
		return protocol.Reply{RC: protocol.OK, Msg: list}
	}
}

func exit(ctx context.Context, args []string) protocol.Reply {
	return protocol.Reply{RC: protocol.OK}
}

// maxSeconds is the longest delay a time.Duration can hold.
var maxSeconds = float64(math.MaxInt64) / float64(time.Second)

// parseSeconds parses a finite, non-negative float seconds argument that fits
// a time.Duration.
func parseSeconds(s string) (time.Duration, float64, error) {
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, 0, err
	}
	switch {
	case math.IsNaN(sec) || math.IsInf(sec, 0):
		return 0, 0, fmt.Errorf("invalid duration %v", sec)
	case sec < 0:
		return 0, 0, fmt.Errorf("negative duration %v", sec)
	case sec >= maxSeconds:
		return 0, 0, fmt.Errorf("duration %v out of range", sec)
	}
	return time.Duration(sec * float64(time.Second)), sec, nil
}

// sleepCheck only validates the argument; the actual sleep runs queued.
func sleepCheck(ctx context.Context, args []string) protocol.Reply {
	if len(args) < 2 {
		return protocol.Ngf("%s: missing seconds argument", args[0])
	}
	_, sec, err := parseSeconds(args[1])
	if err != nil {
		return protocol.Ngf("%s: %v", args[0], err)
	}
	return protocol.Reply{RC: protocol.Continue, Msg: fmt.Sprintf("sleep_sec=%v", sec)}
}

func sleepRun(ctx context.Context, args []string) protocol.Reply {
	d, sec, err := parseSeconds(args[1])
	if err != nil {
		return protocol.Ngf("%s: %v", args[0], err)
	}
	if err := pause(ctx, d); err != nil {
		return protocol.Terminated
	}
	logging.Log.Debugf("[commands] sleep: done")
	return protocol.Okf("%s: sleep_sec=%v", args[0], sec)
}

// shutdownCheck accepts the request; the client does not wait for it.
func shutdownCheck(ctx context.Context, args []string) protocol.Reply {
	if len(args) == 1 {
		return protocol.Reply{RC: protocol.Accept, Msg: "sleep_sec=0"}
	}
	_, sec, err := parseSeconds(args[1])
	if err != nil {
		return protocol.Ngf("%s: %v", args[0], err)
	}
	return protocol.Reply{RC: protocol.Accept, Msg: fmt.Sprintf("sleep_sec=%v", sec)}
}

// shutdownRun waits out the requested delay. The worker recognises the
// command name and stops the server once this returns.
func shutdownRun(ctx context.Context, args []string) protocol.Reply {
	var d time.Duration
	var sec float64
	if len(args) > 1 {
		var err error
		if d, sec, err = parseSeconds(args[1]); err != nil {
			return protocol.Ngf("%s: %v", args[0], err)
		}
	}
	logging.Log.Infof("[commands] shutdown in %v", d)
	if err := pause(ctx, d); err != nil {
		return protocol.Terminated
	}
	return protocol.Okf("%s: sleep_sec=%v", args[0], sec)
}

// pause sleeps for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
