// Package controlcli handles loading and managing local tcpcmdctl configuration
// and the client side of the tcpcmd line protocol.
package controlcli

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mfulz/tcpcmd/protocol"
)

// DaemonConfig represents one connection target.
type DaemonConfig struct {
	Addr string `yaml:"addr"`
}

// CTLConfig holds the entire client-side tcpcmdctl configuration.
type CTLConfig struct {
	Default string                  `yaml:"default,omitempty"`
	Timeout time.Duration           `yaml:"timeout,omitempty"`
	Daemons map[string]DaemonConfig `yaml:"daemons"`
}

// DefaultConfigPath returns ~/.tcpcmd/tcpcmdctl.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".tcpcmd", "tcpcmdctl.yaml")
	}
	return filepath.Join(home, ".tcpcmd", "tcpcmdctl.yaml")
}

// LoadCTLConfig reads path, or DefaultConfigPath when path is empty. A missing
// default file yields an empty configuration.
func LoadCTLConfig(path string) (*CTLConfig, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return &CTLConfig{Daemons: map[string]DaemonConfig{}}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var cfg CTLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Daemons == nil {
		cfg.Daemons = map[string]DaemonConfig{}
	}
	return &cfg, nil
}

// ListAvailableDaemons returns the configured daemon names, sorted.
func ListAvailableDaemons(cfg *CTLConfig) []string {
	list := make([]string, 0, len(cfg.Daemons))
	for name := range cfg.Daemons {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}

// GuessDefaultDaemon returns the configured default, else the first daemon
// name in sorted order, else an empty string.
func GuessDefaultDaemon(cfg *CTLConfig) string {
	if cfg.Default != "" {
		return cfg.Default
	}
	if names := ListAvailableDaemons(cfg); len(names) > 0 {
		return names[0]
	}
	return ""
}

// ResolveAddr picks the address to dial: override, then the named daemon,
// then the default daemon, then the local default port.
func ResolveAddr(cfg *CTLConfig, daemonName, override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if daemonName == "" {
		daemonName = GuessDefaultDaemon(cfg)
	}
	if daemonName == "" {
		return net.JoinHostPort("127.0.0.1", strconv.Itoa(protocol.DefaultPort)), nil
	}
	daemon, ok := cfg.Daemons[daemonName]
	if !ok {
		return "", fmt.Errorf("daemon '%s' not found", daemonName)
	}
	if daemon.Addr == "" {
		return "", fmt.Errorf("invalid daemon config '%s': no addr defined", daemonName)
	}
	return daemon.Addr, nil
}
