package queue

import (
	"context"
	"sync"

	"github.com/mfulz/tcpcmd/protocol"
)

// ReplyChannel is a one-shot handoff from the worker to the connection that
// submitted a queued command. Only the first Post is delivered; the owner
// reads exactly once with Wait.
type ReplyChannel struct {
	once sync.Once
	ch   chan protocol.Reply
}

// NewReplyChannel creates an empty ReplyChannel.
func NewReplyChannel() *ReplyChannel {
	return &ReplyChannel{ch: make(chan protocol.Reply, 1)}
}

// Post delivers rep unless a reply was already posted. It never blocks and
// reports whether rep was the delivered value.
func (c *ReplyChannel) Post(rep protocol.Reply) (delivered bool) {
	c.once.Do(func() {
		c.ch <- rep
		delivered = true
	})
	return delivered
}

// Wait blocks until a reply is posted. There is no timeout: the wait ends
// with the worker's result or, once ctx is done, with protocol.Terminated.
// Either way exactly one reply is returned.
func (c *ReplyChannel) Wait(ctx context.Context) protocol.Reply {
	select {
	case rep := <-c.ch:
		return rep
	case <-ctx.Done():
		c.Post(protocol.Terminated)
		return <-c.ch
	}
}
