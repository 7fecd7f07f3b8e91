// Package logging provides centralized structured logging for tcpcmd.
// It wraps zap.Logger and allows runtime-configurable level, output streams, and file logging.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config represents the logging configuration as defined in the daemon YAML config.
type Config struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error DEBUG INFO WARN ERROR"`
	ToStdout   bool   `mapstructure:"to_stdout"`                       // Enable output to stdout
	ToStderr   bool   `mapstructure:"to_stderr"`                       // Enable output to stderr
	ToFile     bool   `mapstructure:"to_file"`                         // Enable output to file
	FilePath   string `mapstructure:"file"`                            // Log file path, e.g. /var/log/tcpcmd.log
	MaxSizeMB  int    `mapstructure:"max_size" validate:"min=0"`       // Max size before rotation (in MB)
	MaxAge     int    `mapstructure:"max_age" validate:"min=0"`        // Max age of logs (in days)
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`    // Number of rotated backups to keep
	Compress   bool   `mapstructure:"compress"`                        // Gzip compress old log files
}

// Default returns the configuration used before any config file is loaded.
func Default() Config {
	return Config{
		Level:    "info",
		ToStdout: true,
	}
}

// Log is the globally accessible sugared logger instance.
var Log *zap.SugaredLogger

// Init replaces the global logger with one built from cfg.
func Init(cfg Config) error {
	logger, err := New(cfg)
	if err != nil {
		return err
	}
	Log = logger.Sugar()
	return nil
}

// New builds a zap.Logger from cfg without touching the global.
func New(cfg Config) (*zap.Logger, error) {
	var cores []zapcore.Core

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderCfg)

	level := zapcore.InfoLevel
	_ = level.Set(cfg.Level) // invalid or empty stays at info

	if cfg.ToStdout {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if cfg.ToStderr {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level))
	}

	if cfg.ToFile {
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("logging: to_file enabled without a file path")
		}
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		})
		cores = append(cores, zapcore.NewCore(encoder, writer, level))
	}

	if len(cores) == 0 {
		// Fallback: always log to stdout
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// Sync flushes buffered log entries.
func Sync() {
	_ = Log.Sync()
}

func init() {
	_ = Init(Default())
}
