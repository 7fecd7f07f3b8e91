// Package worker runs queued command handlers one at a time, in the order
// they were submitted to the command queue.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/mfulz/tcpcmd/dispatch"
	"github.com/mfulz/tcpcmd/internal/logging"
	"github.com/mfulz/tcpcmd/internal/queue"
	"github.com/mfulz/tcpcmd/protocol"
)

// Worker is the sole consumer of a queue.Queue. It never runs two queued
// handlers at the same time.
type Worker struct {
	registry   *dispatch.Registry
	queue      *queue.Queue
	onShutdown func()
	observe    func(entry *queue.Entry, started, finished time.Time)
}

// Option configures a Worker.
type Option func(*Worker)

// WithShutdownHook sets the callback invoked after the shutdown command ran.
func WithShutdownHook(fn func()) Option {
	return func(w *Worker) { w.onShutdown = fn }
}

// WithObserver sets a callback invoked after every executed entry.
func WithObserver(fn func(entry *queue.Entry, started, finished time.Time)) Option {
	return func(w *Worker) { w.observe = fn }
}

// New creates a Worker draining q and resolving handlers through reg.
func New(reg *dispatch.Registry, q *queue.Queue, opts ...Option) *Worker {
	w := &Worker{
		registry:   reg,
		queue:      q,
		onShutdown: func() {},
		observe:    func(*queue.Entry, time.Time, time.Time) {},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run pulls entries until ctx is done, the queue is closed, or the shutdown
// command was executed. A failing handler never ends the loop.
func (w *Worker) Run(ctx context.Context) error {
	logging.Log.Debugf("[worker] started")
	defer logging.Log.Debugf("[worker] stopped")

	for {
		entry, err := w.queue.Take(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		started := time.Now()
		rep := w.execute(ctx, entry)
		w.observe(entry, started, time.Now())

		if entry.Reply != nil {
			if !entry.Reply.Post(rep) {
				logging.Log.Debugf("[worker] %s: reply already delivered, result dropped", entry.ID)
			}
		}

		if entry.Name() == protocol.CmdShutdown {
			logging.Log.Infof("[worker] shutdown command executed")
			w.onShutdown()
			return nil
		}
	}
}

func (w *Worker) execute(ctx context.Context, entry *queue.Entry) protocol.Reply {
	logging.Log.Infof("[worker] %s seq=%d args=%q", entry.ID, entry.Seq, entry.Args)

	cmd, ok := w.registry.Lookup(entry.Name())
	if !ok || cmd.Queued == nil {
		logging.Log.Errorf("[worker] %s: no such queued handler .. ignored", entry.Name())
		return protocol.Ngf("%s: no such queued handler .. ignored", entry.Name())
	}

	rep := dispatch.Invoke(ctx, cmd.Queued, entry.Args)
	if rep.RC.Queues() {
		logging.Log.Warnf("[worker] %s: queued handler returned %s, treated as %s", entry.Name(), rep.RC, protocol.OK)
		rep.RC = protocol.OK
	}

	if rep.RC == protocol.OK {
		logging.Log.Infof("[worker] rc=%s msg=%v", rep.RC, rep.Msg)
	} else {
		logging.Log.Errorf("[worker] rc=%s msg=%v", rep.RC, rep.Msg)
	}
	return rep
}
