// Package server implements the tcpcmd daemon core: a TCP listener whose
// connections resolve commands through a dispatch.Registry, run immediate
// handlers inline and hand queued handlers to a single worker.
//
// Lifecycle:
//
//	Created --Start--> Running --Stop / shutdown command / ctx--> Draining --> Stopped
//
// Shutdown flow:
//  1. Listener closed (no new connections)
//  2. Pending queue entries rejected with (NG, "terminated")
//  3. Worker and in-flight handlers cancelled through shutdownCtx
//  4. Idle readers woken, each replies (NG, "server is dead") and closes
//  5. Connections still active after ShutdownTimeout are force-closed
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mfulz/tcpcmd/dispatch"
	"github.com/mfulz/tcpcmd/internal/logging"
	"github.com/mfulz/tcpcmd/internal/queue"
	"github.com/mfulz/tcpcmd/internal/worker"
	"github.com/mfulz/tcpcmd/protocol"
)

// ErrAlreadyStarted is returned by Start on a server that is not in StateCreated.
var ErrAlreadyStarted = errors.New("server already started")

// State is the lifecycle phase of a Server. Transitions only move forward.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Option configures a Server.
type Option func(*Server)

// WithExecutionObserver is called by the worker after each queued execution.
func WithExecutionObserver(fn func(entry *queue.Entry, started, finished time.Time)) Option {
	return func(s *Server) { s.observer = fn }
}

// Server owns the registry, the command queue, the worker and the set of
// live connections.
type Server struct {
	config   Config
	registry *dispatch.Registry
	queue    *queue.Queue
	worker   *worker.Worker
	observer func(entry *queue.Entry, started, finished time.Time)

	// mu guards listener and the Created/Running edge
	mu       sync.Mutex
	listener net.Listener
	state    atomic.Int32

	group        errgroup.Group
	shutdownOnce sync.Once

	// shutdownCtx is cancelled when draining starts. It is handed to every
	// handler and every reply wait.
	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	stopped chan struct{}
	err     error

	activeConns sync.WaitGroup
	connCount   atomic.Int32
	connections sync.Map // uuid.UUID -> *connection
}

// New creates a server in StateCreated. reg may still be modified until Start
// seals it.
func New(config Config, reg *dispatch.Registry, opts ...Option) (*Server, error) {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if reg == nil {
		return nil, fmt.Errorf("invalid server config: nil registry")
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:         config,
		registry:       reg,
		queue:          queue.New(config.QueueCeiling),
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancel,
		stopped:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	workerOpts := []worker.Option{
		worker.WithShutdownHook(func() { s.initiateShutdown("shutdown command") }),
	}
	if s.observer != nil {
		workerOpts = append(workerOpts, worker.WithObserver(s.observer))
	}
	s.worker = worker.New(reg, s.queue, workerOpts...)
	return s, nil
}

// Run starts a server with default settings on port and blocks until it has
// stopped.
func Run(ctx context.Context, port int, reg *dispatch.Registry) error {
	cfg := DefaultConfig()
	cfg.Port = port
	s, err := New(cfg, reg)
	if err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve is Start followed by Wait.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	return s.Wait()
}

// Start seals the registry, launches the worker and begins accepting
// connections. It returns once the listener is bound. Cancelling ctx starts
// the shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return ErrAlreadyStarted
	}
	s.registry.Seal()

	listener, err := net.Listen("tcp", s.config.address())
	if err != nil {
		s.state.Store(int32(StateStopped))
		s.cancelRequests()
		s.err = fmt.Errorf("failed to listen on %s: %w", s.config.address(), err)
		close(s.stopped)
		return s.err
	}
	s.listener = listener

	logging.Log.Infof("[server] listening on %s (%d commands, queue ceiling %d)",
		listener.Addr(), s.registry.Len(), s.queue.Ceiling())

	s.group.Go(func() error {
		err := s.worker.Run(s.shutdownCtx)
		s.initiateShutdown("worker stopped")
		return err
	})
	s.group.Go(s.acceptLoop)

	go func() {
		select {
		case <-ctx.Done():
			s.initiateShutdown("context cancelled")
		case <-s.shutdownCtx.Done():
		}
	}()
	go s.finish()
	return nil
}

// Stop triggers the shutdown and waits until the server reached StateStopped
// or ctx is done. Calling Stop more than once has no additional effect.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown("stop requested")
	select {
	case <-s.stopped:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the server reached StateStopped.
func (s *Server) Wait() error {
	<-s.stopped
	return s.err
}

// Done is closed once the server reached StateStopped.
func (s *Server) Done() <-chan struct{} {
	return s.stopped
}

// State returns the current lifecycle phase.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Running reports whether the server still serves requests.
func (s *Server) Running() bool {
	return s.State() == StateRunning
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// QueueDepth returns the number of pending queued commands.
func (s *Server) QueueDepth() int {
	return s.queue.Len()
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int32 {
	return s.connCount.Load()
}

func (s *Server) acceptLoop() error {
	for {
		tcpConn, err := s.listener.Accept()
		if err != nil {
			if !s.Running() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Log.Warnf("[server] accept error: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		c := newConnection(s, tcpConn)
		s.activeConns.Add(1)
		current := s.connCount.Add(1)
		s.connections.Store(c.id, c)
		logging.Log.Debugf("[server] connection %s from %s (active: %d)", c.id, tcpConn.RemoteAddr(), current)

		go func() {
			defer func() {
				s.connections.Delete(c.id)
				current := s.connCount.Add(-1)
				logging.Log.Debugf("[server] connection %s closed (active: %d)", c.id, current)
				s.activeConns.Done()
			}()
			c.serve(s.shutdownCtx)
		}()
	}
}

// initiateShutdown moves Running to Draining exactly once.
func (s *Server) initiateShutdown(reason string) {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		prev := s.State()
		if prev != StateRunning {
			if prev == StateCreated {
				s.state.Store(int32(StateStopped))
				s.cancelRequests()
				close(s.stopped)
			}
			s.mu.Unlock()
			return
		}
		s.state.Store(int32(StateDraining))
		listener := s.listener
		s.mu.Unlock()

		logging.Log.Infof("[server] shutdown initiated: %s", reason)

		if err := listener.Close(); err != nil {
			logging.Log.Debugf("[server] error closing listener: %v", err)
		}

		pending := s.queue.Close()
		for _, entry := range pending {
			logging.Log.Debugf("[server] rejecting pending %s seq=%d args=%q", entry.ID, entry.Seq, entry.Args)
			if entry.Reply != nil {
				entry.Reply.Post(protocol.Terminated)
			}
		}
		if len(pending) > 0 {
			logging.Log.Infof("[server] rejected %d pending command(s)", len(pending))
		}

		s.cancelRequests()

		s.connections.Range(func(_, value any) bool {
			value.(*connection).wake()
			return true
		})
	})
}

// finish waits for the worker and accept loop, then for the connections.
func (s *Server) finish() {
	err := s.group.Wait()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Log.Infof("[server] graceful shutdown complete: all connections closed")
	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logging.Log.Warnf("[server] shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)
		s.forceCloseConnections()
		if err == nil {
			err = fmt.Errorf("shutdown timeout: %d connections force-closed", remaining)
		}
	}

	logging.Log.Infof("[server] stopped")
	s.err = err
	s.state.Store(int32(StateStopped))
	close(s.stopped)
}

func (s *Server) forceCloseConnections() {
	s.connections.Range(func(key, value any) bool {
		c := value.(*connection)
		if err := c.conn.Close(); err != nil {
			logging.Log.Debugf("[server] error force-closing %s: %v", key, err)
		}
		return true
	})
}
