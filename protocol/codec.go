package protocol

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMissingEOT is returned by ReadReply when a final reply is not followed by
// the end-of-transmission marker.
var ErrMissingEOT = errors.New("missing end-of-transmission marker")

// EncodeReply serializes a reply. Final replies get the EOT marker appended
// after the line terminator; intermediate notices do not.
func EncodeReply(rep Reply, final bool) ([]byte, error) {
	data, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("encode error: %w", err)
	}
	data = append(data, LineTerminator...)
	if final {
		data = append(data, EOT)
	}
	return data, nil
}

// WriteReply encodes and writes a reply to the given writer.
func WriteReply(w io.Writer, rep Reply, final bool) error {
	data, err := EncodeReply(rep, final)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteRequest writes one command line built from args.
func WriteRequest(w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("encode error: empty command")
	}
	_, err := io.WriteString(w, strings.Join(args, " ")+LineTerminator)
	return err
}

// ReadGreeting reads the greeting line the server sends on connect.
func ReadGreeting(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	return strings.TrimRight(line, LineTerminator), nil
}

// ReadReply reads a single reply record. final is false for intermediate
// CONTINUE notices; for final replies the trailing EOT byte is consumed.
func ReadReply(r *bufio.Reader) (rep *Reply, final bool, err error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, false, fmt.Errorf("read error: %w", err)
	}
	line = bytes.TrimLeft(line, string(EOT))

	var out Reply
	if err := json.Unmarshal(bytes.TrimSpace(line), &out); err != nil {
		return nil, false, fmt.Errorf("decode error: %w", err)
	}
	if out.RC == Continue {
		return &out, false, nil
	}

	b, err := r.ReadByte()
	if err != nil {
		return &out, true, fmt.Errorf("read error: %w", err)
	}
	if b != EOT {
		_ = r.UnreadByte()
		return &out, true, ErrMissingEOT
	}
	return &out, true, nil
}
