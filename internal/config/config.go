// Package config loads the tcpcmdd daemon configuration using Viper.
// Values come, highest first, from bound command-line flags, TCPCMD_*
// environment variables, the YAML config file and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/mfulz/tcpcmd/internal/logging"
	"github.com/mfulz/tcpcmd/internal/server"
)

// EnvPrefix is the prefix of environment overrides, e.g. TCPCMD_SERVER_PORT.
const EnvPrefix = "TCPCMD"

// Config represents the full structure of the tcpcmdd configuration file.
type Config struct {
	Server server.Config  `mapstructure:"server"`
	Log    logging.Config `mapstructure:"log"`

	// Source is the file the configuration was read from, empty for defaults only.
	Source string `mapstructure:"-"`
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"host": "server.host",
	"port": "server.port",
}

// Load reads the configuration. An empty path is resolved with
// ResolveConfigPath; finding no file at all is not an error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path == "" {
		resolved, err := ResolveConfigPath(DaemonConfigFile)
		switch {
		case errors.Is(err, ErrNoConfig):
		case err != nil:
			return nil, err
		default:
			path = resolved
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error loading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal failed: %w", err)
	}
	cfg.Source = path

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults registers every key so environment overrides apply even when
// the file does not mention them.
func setDefaults(v *viper.Viper) {
	srv := server.DefaultConfig()
	v.SetDefault("server.host", srv.Host)
	v.SetDefault("server.port", srv.Port)
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.write_timeout", srv.WriteTimeout)
	v.SetDefault("server.queue_ceiling", srv.QueueCeiling)
	v.SetDefault("server.shutdown_timeout", srv.ShutdownTimeout)
	v.SetDefault("server.max_line_length", srv.MaxLineLength)
	v.SetDefault("server.greeting", srv.Greeting)
	v.SetDefault("server.notify_continue", srv.NotifyContinue)

	log := logging.Default()
	v.SetDefault("log.level", log.Level)
	v.SetDefault("log.to_stdout", log.ToStdout)
	v.SetDefault("log.to_stderr", log.ToStderr)
	v.SetDefault("log.to_file", log.ToFile)
	v.SetDefault("log.file", log.FilePath)
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.compress", false)
}
