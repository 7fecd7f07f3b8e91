package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcpcmd.log")

	logger, err := New(Config{Level: "debug", ToFile: true, FilePath: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Sugar().Debugf("[test] hello %s", "file")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[test] hello file")
	assert.Contains(t, string(data), "\tdebug\t")
}

func TestNewLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcpcmd.log")

	logger, err := New(Config{Level: "warn", ToFile: true, FilePath: path})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestNewFileWithoutPath(t *testing.T) {
	_, err := New(Config{ToFile: true})
	assert.Error(t, err)
}

func TestNewInvalidLevelFallsBackToInfo(t *testing.T) {
	logger, err := New(Config{Level: "chatty"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestInitReplacesGlobal(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	require.NoError(t, Init(Config{Level: "error", ToStderr: true}))
	assert.NotSame(t, prev, Log)
	assert.False(t, Log.Desugar().Core().Enabled(zap.WarnLevel))
}
