package server

import (
	"fmt"
	"time"

	"github.com/mfulz/tcpcmd/internal/queue"
	"github.com/mfulz/tcpcmd/protocol"
)

// Config holds the listener, timeout and queue settings of the server.
//
// Zero values are replaced by defaults in applyDefaults:
//   - Port: none, 0 picks an ephemeral port (DefaultConfig uses 59001)
//   - ReadTimeout: 3s (per read poll; the idle connection keeps waiting while the server runs)
//   - WriteTimeout: 30s
//   - QueueCeiling: 100
//   - ShutdownTimeout: 10s
//   - MaxLineLength: 4096
//   - Greeting: "tcpcmd ready"
type Config struct {
	Host string `mapstructure:"host"`

	// Port 0 picks an ephemeral port, see Server.Addr.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	QueueCeiling    int           `mapstructure:"queue_ceiling" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
	MaxLineLength   int           `mapstructure:"max_line_length" validate:"min=0"`
	Greeting        string        `mapstructure:"greeting"`

	// NotifyContinue sends an intermediate CONTINUE notice before blocking
	// on a queued result.
	NotifyContinue bool `mapstructure:"notify_continue"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() Config {
	c := Config{Port: protocol.DefaultPort}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.QueueCeiling == 0 {
		c.QueueCeiling = queue.DefaultCeiling
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxLineLength == 0 {
		c.MaxLineLength = 4096
	}
	if c.Greeting == "" {
		c.Greeting = "tcpcmd ready"
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("invalid ReadTimeout %v: must be > 0", c.ReadTimeout)
	}
	if c.QueueCeiling < 0 {
		return fmt.Errorf("invalid QueueCeiling %d: must be >= 0", c.QueueCeiling)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	return nil
}

func (c *Config) address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
