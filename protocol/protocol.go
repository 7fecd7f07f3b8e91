// Package protocol defines the wire format spoken between tcpcmd clients and
// the tcpcmdd daemon. It can be used externally to build additional tooling
// or integrations.
//
// A session is line oriented: the server writes a greeting line, the client
// writes one command line at a time and the server answers each with a JSON
// reply record terminated by CRLF. Final replies are followed by a single
// end-of-transmission byte.
package protocol

import "fmt"

// DefaultPort is the TCP port tcpcmdd listens on when none is configured.
const DefaultPort = 59001

const (
	// EOT ends a final reply (server side) or a session (client side).
	EOT byte = 0x04

	// LineTerminator ends every reply record.
	LineTerminator = "\r\n"
)

// Built-in command names.
const (
	CmdHelp     = "help"
	CmdExit     = "exit"
	CmdShutdown = "shutdown"
	CmdSleep    = "sleep"
)

// Status is the outcome of a handler invocation.
type Status string

const (
	// OK means success. For an immediate handler it also means no queueing.
	OK Status = "OK"
	// NG means failure.
	NG Status = "NG"
	// Continue is returned by an immediate handler when the queued stage must
	// run and the caller waits for its result.
	Continue Status = "CONTINUE"
	// Accept is returned by an immediate handler when the queued stage must
	// run but the caller does not wait for it.
	Accept Status = "ACCEPT"
	// None marks a queued-only result that is never replied directly.
	None Status = "NONE"
)

// Valid reports whether s is one of the known status codes.
func (s Status) Valid() bool {
	switch s {
	case OK, NG, Continue, Accept, None:
		return true
	}
	return false
}

// Queues reports whether an immediate handler returning s asked for its
// queued stage to run.
func (s Status) Queues() bool {
	return s == Continue || s == Accept
}

// Reply is the structured record written back to the client.
type Reply struct {
	RC  Status `json:"rc"`
	Msg any    `json:"msg,omitempty"`
}

// Okf builds an OK reply with a formatted message.
func Okf(format string, args ...any) Reply {
	return Reply{RC: OK, Msg: fmt.Sprintf(format, args...)}
}

// Ngf builds an NG reply with a formatted message.
func Ngf(format string, args ...any) Reply {
	return Reply{RC: NG, Msg: fmt.Sprintf(format, args...)}
}

// Terminated is delivered to every waiter whose queued command was discarded
// or interrupted by server shutdown.
var Terminated = Reply{RC: NG, Msg: "terminated"}
