package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfulz/tcpcmd/dispatch"
	"github.com/mfulz/tcpcmd/internal/queue"
	"github.com/mfulz/tcpcmd/protocol"
)

func newRegistry(t *testing.T, cmds ...dispatch.Command) *dispatch.Registry {
	t.Helper()
	reg := dispatch.New()
	for _, c := range cmds {
		require.NoError(t, reg.Register(c))
	}
	return reg
}

func runWorker(t *testing.T, w *Worker) (cancel func(), done <-chan error) {
	t.Helper()
	ctx, cancelFn := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- w.Run(ctx) }()
	t.Cleanup(cancelFn)
	return cancelFn, errs
}

func TestWorkerPostsResult(t *testing.T) {
	reg := newRegistry(t, dispatch.Command{
		Name: "echo",
		Queued: func(ctx context.Context, args []string) protocol.Reply {
			return protocol.Reply{RC: protocol.OK, Msg: args[1]}
		},
	})
	q := queue.New(10)
	runWorker(t, New(reg, q))

	reply := queue.NewReplyChannel()
	_, err := q.Submit([]string{"echo", "hi"}, reply)
	require.NoError(t, err)

	rep := reply.Wait(context.Background())
	assert.Equal(t, protocol.OK, rep.RC)
	assert.Equal(t, "hi", rep.Msg)
}

func TestWorkerMissingQueuedHandler(t *testing.T) {
	reg := newRegistry(t, dispatch.Command{
		Name:      "inline",
		Immediate: func(ctx context.Context, args []string) protocol.Reply { return protocol.Reply{RC: protocol.OK} },
	})
	q := queue.New(10)
	runWorker(t, New(reg, q))

	for _, name := range []string{"inline", "unknown"} {
		reply := queue.NewReplyChannel()
		_, err := q.Submit([]string{name}, reply)
		require.NoError(t, err)

		rep := reply.Wait(context.Background())
		assert.Equal(t, protocol.NG, rep.RC)
		assert.Contains(t, rep.Msg, "no such queued handler")
	}
}

func TestWorkerSurvivesPanic(t *testing.T) {
	reg := newRegistry(t,
		dispatch.Command{Name: "boom", Queued: func(ctx context.Context, args []string) protocol.Reply { panic("bad") }},
		dispatch.Command{Name: "fine", Queued: func(ctx context.Context, args []string) protocol.Reply { return protocol.Okf("ok") }},
	)
	q := queue.New(10)
	runWorker(t, New(reg, q))

	r1, r2 := queue.NewReplyChannel(), queue.NewReplyChannel()
	_, err := q.Submit([]string{"boom"}, r1)
	require.NoError(t, err)
	_, err = q.Submit([]string{"fine"}, r2)
	require.NoError(t, err)

	assert.Equal(t, protocol.NG, r1.Wait(context.Background()).RC)
	assert.Equal(t, protocol.OK, r2.Wait(context.Background()).RC)
}

func TestWorkerCoercesQueueingStatus(t *testing.T) {
	reg := newRegistry(t, dispatch.Command{
		Name:   "odd",
		Queued: func(ctx context.Context, args []string) protocol.Reply { return protocol.Reply{RC: protocol.Continue} },
	})
	q := queue.New(10)
	runWorker(t, New(reg, q))

	reply := queue.NewReplyChannel()
	_, err := q.Submit([]string{"odd"}, reply)
	require.NoError(t, err)
	assert.Equal(t, protocol.OK, reply.Wait(context.Background()).RC)
}

func TestWorkerSerializesInSubmissionOrder(t *testing.T) {
	var running atomic.Int32
	var overlap atomic.Bool
	reg := newRegistry(t, dispatch.Command{
		Name: "work",
		Queued: func(ctx context.Context, args []string) protocol.Reply {
			if running.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
			return protocol.Reply{RC: protocol.OK}
		},
	})

	var mu sync.Mutex
	var seen []uint64
	const total = 60
	finished := make(chan struct{})
	q := queue.New(total)
	w := New(reg, q, WithObserver(func(entry *queue.Entry, started, done time.Time) {
		mu.Lock()
		seen = append(seen, entry.Seq)
		if len(seen) == total {
			close(finished)
		}
		mu.Unlock()
	}))

	var wg sync.WaitGroup
	for p := 0; p < 6; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < total/6; i++ {
				_, err := q.Submit([]string{"work"}, nil)
				assert.NoError(t, err)
			}
		}()
	}
	runWorker(t, w)
	wg.Wait()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not drain the queue")
	}

	assert.False(t, overlap.Load(), "queued handlers overlapped")
	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
}

func TestWorkerShutdownCommand(t *testing.T) {
	reg := newRegistry(t, dispatch.Command{
		Name:   protocol.CmdShutdown,
		Queued: func(ctx context.Context, args []string) protocol.Reply { return protocol.Okf("bye") },
	})
	q := queue.New(10)

	hooked := make(chan struct{})
	_, done := runWorker(t, New(reg, q, WithShutdownHook(func() { close(hooked) })))

	reply := queue.NewReplyChannel()
	_, err := q.Submit([]string{protocol.CmdShutdown}, reply)
	require.NoError(t, err)

	assert.Equal(t, "bye", reply.Wait(context.Background()).Msg)
	select {
	case <-hooked:
	case <-time.After(time.Second):
		t.Fatal("shutdown hook not called")
	}
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after shutdown")
	}
}

func TestWorkerStopsOnCancel(t *testing.T) {
	cancel, done := runWorker(t, New(dispatch.New(), queue.New(1)))
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker ignored cancellation")
	}
}
