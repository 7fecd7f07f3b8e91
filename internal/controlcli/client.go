package controlcli

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/mfulz/tcpcmd/internal/logging"
	"github.com/mfulz/tcpcmd/protocol"
)

// Client is one session with a tcpcmd daemon.
type Client struct {
	conn     net.Conn
	reader   *bufio.Reader
	timeout  time.Duration
	Greeting string
}

// Dial connects to addr and consumes the greeting. timeout bounds the dial
// and every later read; zero disables the read bound.
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Client, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c := &Client{conn: conn, reader: bufio.NewReader(conn), timeout: timeout}
	if err := c.arm(); err != nil {
		conn.Close()
		return nil, err
	}
	c.Greeting, err = protocol.ReadGreeting(c.reader)
	if err != nil {
		conn.Close()
		return nil, err
	}
	logging.Log.Debugf("[tcpcmdctl] connected to %s: %s", addr, c.Greeting)
	return c, nil
}

func (c *Client) arm() error {
	if c.timeout <= 0 {
		return c.conn.SetReadDeadline(time.Time{})
	}
	return c.conn.SetReadDeadline(time.Now().Add(c.timeout))
}

// Send writes one command and returns its final reply. Intermediate notices
// are passed to onNotice when it is non-nil.
func (c *Client) Send(args []string, onNotice func(protocol.Reply)) (*protocol.Reply, error) {
	if err := protocol.WriteRequest(c.conn, args); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	logging.Log.Debugf("[tcpcmdctl] sent %q", args)

	for {
		if err := c.arm(); err != nil {
			return nil, err
		}
		rep, final, err := protocol.ReadReply(c.reader)
		if err != nil {
			return rep, err
		}
		if final {
			return rep, nil
		}
		logging.Log.Debugf("[tcpcmdctl] notice rc=%s msg=%v", rep.RC, rep.Msg)
		if onNotice != nil {
			onNotice(*rep)
		}
	}
}

// Close ends the session.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call dials addr, sends one command and closes the session.
func Call(ctx context.Context, addr string, timeout time.Duration, args []string, onNotice func(protocol.Reply)) (*protocol.Reply, error) {
	c, err := Dial(ctx, addr, timeout)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Send(args, onNotice)
}
