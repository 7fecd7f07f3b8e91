// Package dispatch provides the command registry consulted by every tcpcmd
// connection and by the queued-command worker.
//
// Each command may carry an immediate handler, run inline on the connection
// that received it, and a queued handler, run on the single worker in global
// submission order. The registry is filled during startup and sealed before
// the server accepts connections.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mfulz/tcpcmd/internal/logging"
	"github.com/mfulz/tcpcmd/protocol"
)

var (
	// ErrDuplicateCommand is returned when a name is registered twice.
	ErrDuplicateCommand = errors.New("command already registered")
	// ErrNoHandler is returned when a command has neither handler.
	ErrNoHandler = errors.New("command has no handler")
	// ErrSealed is returned when registering after the registry was sealed.
	ErrSealed = errors.New("registry is sealed")
)

// HandlerFunc defines the signature of an immediate or queued handler.
// args[0] is always the command name.
type HandlerFunc func(ctx context.Context, args []string) protocol.Reply

// Command describes one registered command.
type Command struct {
	Name      string
	Immediate HandlerFunc // optional, runs on the connection goroutine
	Queued    HandlerFunc // optional, runs on the worker
	Help      string
}

// Registry maps command names to their descriptors.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string
	sealed   bool
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		commands: make(map[string]Command),
	}
}

// Register adds a command. It fails if the name is empty or taken, if the
// command has no handler at all, or if the registry is already sealed.
func (r *Registry) Register(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("register: empty command name")
	}
	if cmd.Immediate == nil && cmd.Queued == nil {
		return fmt.Errorf("register %q: %w", cmd.Name, ErrNoHandler)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return fmt.Errorf("register %q: %w", cmd.Name, ErrSealed)
	}
	if _, exists := r.commands[cmd.Name]; exists {
		return fmt.Errorf("register %q: %w", cmd.Name, ErrDuplicateCommand)
	}
	r.commands[cmd.Name] = cmd
	r.order = append(r.order, cmd.Name)
	logging.Log.Debugf("[dispatch] registered %q (immediate=%t queued=%t)",
		cmd.Name, cmd.Immediate != nil, cmd.Queued != nil)
	return nil
}

// Seal freezes the registry. Further Register calls fail with ErrSealed.
func (r *Registry) Seal() {
	r.mu.Lock()
	r.sealed = true
	r.mu.Unlock()
}

// Lookup returns the descriptor for name. Unknown names are reported through
// ok, never through a panic or error.
func (r *Registry) Lookup(name string) (cmd Command, ok bool) {
	r.mu.RLock()
	cmd, ok = r.commands[name]
	r.mu.RUnlock()
	return cmd, ok
}

// Commands returns all descriptors in registration order.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Invoke runs fn and converts a panic inside it into an NG reply, so a
// failing handler never takes down its connection or the worker.
func Invoke(ctx context.Context, fn HandlerFunc, args []string) (rep protocol.Reply) {
	defer func() {
		if e := recover(); e != nil {
			logging.Log.Errorf("[dispatch] handler %q panicked: %v", args[0], e)
			rep = protocol.Ngf("%s: handler failure: %v", args[0], e)
		}
	}()
	return fn(ctx, args)
}
