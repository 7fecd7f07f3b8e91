package cmd

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfulz/tcpcmd/dispatch"
	"github.com/mfulz/tcpcmd/internal/commands"
	"github.com/mfulz/tcpcmd/internal/server"
	"github.com/mfulz/tcpcmd/protocol"
)

func startDaemon(t *testing.T) *server.Server {
	t.Helper()
	reg := dispatch.New()
	require.NoError(t, commands.Register(reg))
	s, err := server.New(server.Config{Host: "127.0.0.1"}, reg)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s
}

func useDaemon(t *testing.T, s *server.Server) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	prev := Opts
	Opts = Options{Addr: s.Addr().String(), Timeout: 5 * time.Second}
	t.Cleanup(func() { Opts = prev })
}

func TestExecuteHelpListing(t *testing.T) {
	useDaemon(t, startDaemon(t))

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), &out, []string{"help"}))
	assert.Contains(t, out.String(), "OK\n")
	assert.Contains(t, out.String(), "sleep")
	assert.Contains(t, out.String(), "shutdown [sec]")
}

func TestExecuteRejected(t *testing.T) {
	useDaemon(t, startDaemon(t))

	var out bytes.Buffer
	err := execute(context.Background(), &out, []string{"bogus"})
	assert.ErrorIs(t, err, ErrRejected)
	assert.Equal(t, "NG bogus: no such command\n", out.String())
}

func TestExecuteShutdown(t *testing.T) {
	s := startDaemon(t)
	useDaemon(t, s)

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), &out, []string{protocol.CmdShutdown}))
	assert.Equal(t, "OK sleep_sec=0\n", out.String())

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestShutdownLine(t *testing.T) {
	line, err := shutdownLine(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"shutdown"}, line)

	line, err = shutdownLine([]string{"1.5"})
	require.NoError(t, err)
	assert.Equal(t, []string{"shutdown", "1.5"}, line)

	_, err = shutdownLine([]string{"soon"})
	assert.Error(t, err)
}

func TestShutdownCmdArgs(t *testing.T) {
	assert.NoError(t, ShutdownCmd.Args(ShutdownCmd, nil))
	assert.NoError(t, ShutdownCmd.Args(ShutdownCmd, []string{"2"}))
	assert.Error(t, ShutdownCmd.Args(ShutdownCmd, []string{"1", "2"}))
}

func TestExecuteShutdownWithDelay(t *testing.T) {
	s := startDaemon(t)
	useDaemon(t, s)

	line, err := shutdownLine([]string{"0.1"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, execute(context.Background(), &out, line))
	assert.Equal(t, "OK sleep_sec=0.1\n", out.String())

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}

func TestFormatMsg(t *testing.T) {
	assert.Equal(t, "plain", formatMsg("plain"))
	assert.Equal(t, `{"a":1}`, formatMsg(map[string]int{"a": 1}))
}
