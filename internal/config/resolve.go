package config

import (
	"errors"
	"os"
	"path/filepath"
)

// DaemonConfigFile is the file name looked up by ResolveConfigPath for tcpcmdd.
const DaemonConfigFile = "tcpcmdd.yaml"

// ErrNoConfig is returned by ResolveConfigPath when no candidate exists.
var ErrNoConfig = errors.New("no config file found")

// ResolveConfigPath returns the best config path for the given file name.
// It checks, in order:
// 1. $TCPCMD_CONFIG if set
// 2. ~/.tcpcmd/<file>
// 3. /etc/tcpcmd/<file>
func ResolveConfigPath(file string) (string, error) {
	if env := os.Getenv(EnvPrefix + "_CONFIG"); env != "" {
		return env, nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, ".tcpcmd", file)
		if _, err := os.Stat(userPath); err == nil {
			return userPath, nil
		}
	}
	systemPath := filepath.Join("/etc/tcpcmd", file)
	if _, err := os.Stat(systemPath); err == nil {
		return systemPath, nil
	}
	return "", ErrNoConfig
}
