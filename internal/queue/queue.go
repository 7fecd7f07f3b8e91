// Package queue implements the bounded command queue shared by all
// connections and drained by the single worker, plus the per-submission
// reply channel used to hand results back.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mfulz/tcpcmd/internal/logging"
)

// DefaultCeiling is the pending depth beyond which submissions are rejected.
const DefaultCeiling = 100

var (
	// ErrQueueFull is returned by Submit when the pending depth exceeds the ceiling.
	ErrQueueFull = errors.New("server busy")
	// ErrClosed is returned once the queue has been closed for shutdown.
	ErrClosed = errors.New("queue closed")
)

// Entry is one queued invocation. Reply is nil when the submitter does not
// wait for the result.
type Entry struct {
	ID        uuid.UUID
	Seq       uint64
	Args      []string
	Reply     *ReplyChannel
	Submitted time.Time
}

// Name returns the command name of the entry.
func (e *Entry) Name() string {
	return e.Args[0]
}

// Queue is a FIFO with many producers and exactly one consumer.
type Queue struct {
	mu      sync.Mutex
	items   []*Entry
	ceiling int
	seq     uint64
	closed  bool

	notify chan struct{} // poked on every submit, capacity 1
	done   chan struct{} // closed by Close
}

// New creates a queue that rejects submissions once more than ceiling
// entries are pending. A ceiling <= 0 uses DefaultCeiling.
func New(ceiling int) *Queue {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Queue{
		ceiling: ceiling,
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Submit appends a new entry for args. The depth check and the append happen
// under one lock, so a rejected submission is never enqueued.
func (q *Queue) Submit(args []string, reply *ReplyChannel) (*Entry, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("submit: empty command")
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	if depth := len(q.items); depth > q.ceiling {
		q.mu.Unlock()
		return nil, fmt.Errorf("qsize=%d: %w", depth, ErrQueueFull)
	}
	q.seq++
	entry := &Entry{
		ID:        uuid.New(),
		Seq:       q.seq,
		Args:      args,
		Reply:     reply,
		Submitted: time.Now(),
	}
	q.items = append(q.items, entry)
	depth := len(q.items)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	logging.Log.Debugf("[queue] submitted %s seq=%d cmd=%q depth=%d", entry.ID, entry.Seq, entry.Name(), depth)
	return entry, nil
}

// Take removes and returns the oldest entry, blocking until one is available,
// the queue is closed (ErrClosed) or ctx is done.
func (q *Queue) Take(ctx context.Context) (*Entry, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		if len(q.items) > 0 {
			entry := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return entry, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Len returns the current pending depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Ceiling returns the configured backpressure ceiling.
func (q *Queue) Ceiling() int {
	return q.ceiling
}

// Close rejects all further submissions and returns the entries that were
// still pending, oldest first. Only the first call returns entries.
func (q *Queue) Close() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	pending := q.items
	q.items = nil
	close(q.done)
	return pending
}
