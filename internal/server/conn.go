package server

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/mfulz/tcpcmd/dispatch"
	"github.com/mfulz/tcpcmd/internal/logging"
	"github.com/mfulz/tcpcmd/internal/queue"
	"github.com/mfulz/tcpcmd/protocol"
)

var (
	errLineTooLong    = errors.New("line too long")
	errServerDraining = errors.New("server is dead")
)

// connection serves one client: it reads lines, dispatches them and writes
// exactly one final reply per command.
type connection struct {
	id     uuid.UUID
	server *Server
	conn   net.Conn
	reader *bufio.Reader

	// partial line kept across read timeouts
	pending []byte
	active  bool
}

func newConnection(s *Server, conn net.Conn) *connection {
	return &connection{
		id:     uuid.New(),
		server: s,
		conn:   conn,
		reader: bufio.NewReader(conn),
		active: true,
	}
}

// wake unblocks a pending read so the reader notices the state change.
func (c *connection) wake() {
	_ = c.conn.SetReadDeadline(time.Now())
}

func (c *connection) serve(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logging.Log.Errorf("[conn %s] panic: %v", c.id, r)
		}
		if err := c.conn.Close(); err != nil {
			logging.Log.Debugf("[conn %s] error closing: %v", c.id, err)
		}
	}()

	logging.Log.Infof("[conn %s] accepted from %s", c.id, c.conn.RemoteAddr())

	if err := c.write([]byte(c.server.config.Greeting + protocol.LineTerminator)); err != nil {
		return
	}

	for c.active {
		raw, eot, err := c.readLine()
		if err != nil {
			c.handleReadError(err)
			return
		}

		args, valid := decodeLine(raw)
		if !valid {
			logging.Log.Warnf("[conn %s] decode error in %q", c.id, raw)
			if len(args) == 0 {
				_ = c.reply(protocol.Ngf("decode error: no usable input"))
				return
			}
			if err := c.reply(protocol.Ngf("decode error: %q .. ignored", args)); err != nil || eot {
				return
			}
			continue
		}
		if len(args) == 0 {
			logging.Log.Infof("[conn %s] disconnected", c.id)
			return
		}

		logging.Log.Debugf("[conn %s] args=%q", c.id, args)
		if err := c.reply(c.dispatch(ctx, args)); err != nil {
			return
		}
		if eot {
			return
		}
	}
	logging.Log.Infof("[conn %s] exit", c.id)
}

// readLine reads up to '\n' or EOT. A read timeout while the server is
// running only re-arms the deadline.
func (c *connection) readLine() (line []byte, eot bool, err error) {
	for {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.server.config.ReadTimeout)); err != nil {
			return nil, false, err
		}
		// checked after arming the deadline so a concurrent wake is never lost
		if !c.server.Running() {
			return nil, false, errServerDraining
		}

		for {
			b, err := c.reader.ReadByte()
			if err != nil {
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() && c.server.Running() {
					break
				}
				if errors.Is(err, io.EOF) && len(c.pending) > 0 {
					return c.take(), false, nil
				}
				return nil, false, err
			}
			switch b {
			case '\n':
				return c.take(), false, nil
			case protocol.EOT:
				return c.take(), true, nil
			}
			c.pending = append(c.pending, b)
			if len(c.pending) > c.server.config.MaxLineLength {
				return nil, false, errLineTooLong
			}
		}
	}
}

func (c *connection) take() []byte {
	line := c.pending
	c.pending = nil
	return line
}

func (c *connection) handleReadError(err error) {
	switch {
	case errors.Is(err, io.EOF):
		logging.Log.Infof("[conn %s] closed by client", c.id)
	case errors.Is(err, errLineTooLong):
		logging.Log.Warnf("[conn %s] line exceeds %d bytes", c.id, c.server.config.MaxLineLength)
		_ = c.reply(protocol.Ngf("%v", errLineTooLong))
	case !c.server.Running():
		logging.Log.Infof("[conn %s] server is dead", c.id)
		_ = c.reply(protocol.Ngf("%v", errServerDraining))
	default:
		logging.Log.Warnf("[conn %s] read error: %v", c.id, err)
		_ = c.reply(protocol.Ngf("error: %v", err))
	}
}

// dispatch runs one command and returns its final reply.
func (c *connection) dispatch(ctx context.Context, args []string) protocol.Reply {
	name := args[0]
	cmd, ok := c.server.registry.Lookup(name)
	if !ok {
		logging.Log.Errorf("[conn %s] %s: no such command .. ignored", c.id, name)
		return protocol.Ngf("%s: no such command", name)
	}

	var rep protocol.Reply
	wait := true
	if cmd.Immediate != nil {
		logging.Log.Debugf("[conn %s] call immediate %s", c.id, name)
		rep = dispatch.Invoke(ctx, cmd.Immediate, args)
		logging.Log.Debugf("[conn %s] immediate %s: rc=%s msg=%v", c.id, name, rep.RC, rep.Msg)

		if name == protocol.CmdExit && rep.RC == protocol.OK {
			c.active = false
		}
		if !rep.RC.Queues() {
			return rep
		}
		wait = rep.RC != protocol.Accept
	}

	if cmd.Queued == nil {
		logging.Log.Warnf("[conn %s] %s: no queued handler .. ignored", c.id, name)
		if rep.Msg == nil {
			return protocol.Okf("%s: no queued handler .. ignored", name)
		}
		return protocol.Reply{RC: protocol.OK, Msg: rep.Msg}
	}

	var reply *queue.ReplyChannel
	if wait {
		reply = queue.NewReplyChannel()
	}
	entry, err := c.server.queue.Submit(args, reply)
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		logging.Log.Warnf("[conn %s] %s rejected: %v", c.id, name, err)
		return protocol.Ngf("%v", err)
	case errors.Is(err, queue.ErrClosed):
		return protocol.Terminated
	case err != nil:
		return protocol.Ngf("%s: %v", name, err)
	}
	logging.Log.Debugf("[conn %s] queued %s seq=%d", c.id, entry.ID, entry.Seq)

	if reply == nil {
		return protocol.Reply{RC: protocol.OK, Msg: rep.Msg}
	}

	if c.server.config.NotifyContinue {
		// a failed notice surfaces again on the final write
		_ = c.notice(protocol.Reply{RC: protocol.Continue, Msg: rep.Msg})
	}

	result := reply.Wait(ctx)
	logging.Log.Debugf("[conn %s] %s result: rc=%s msg=%v", c.id, name, result.RC, result.Msg)
	return result
}

// reply writes a final reply.
func (c *connection) reply(rep protocol.Reply) error {
	return c.send(rep, true)
}

// notice writes an intermediate reply without EOT.
func (c *connection) notice(rep protocol.Reply) error {
	return c.send(rep, false)
}

func (c *connection) send(rep protocol.Reply, final bool) error {
	data, err := protocol.EncodeReply(rep, final)
	if err != nil {
		logging.Log.Errorf("[conn %s] encode reply: %v", c.id, err)
		data, _ = protocol.EncodeReply(protocol.Ngf("encode error: %v", err), final)
	}
	return c.write(data)
}

func (c *connection) write(data []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.server.config.WriteTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		logging.Log.Warnf("[conn %s] write failed: %v", c.id, err)
		return err
	}
	return nil
}
