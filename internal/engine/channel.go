package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// maxResponseBytes bounds a single response frame. Sensor payloads can be
// large, but anything past this is a corrupt length prefix.
const maxResponseBytes = 512 << 20

// TransportError wraps any failure of the engine round-trip: dial errors,
// deadline timeouts, short frames, and malformed record batches. A trial
// that hits one is aborted and retried on the next scheduler run.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("engine transport: %s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// Channel is the synchronous link to the simulation engine. Send blocks for
// the full round-trip; there is no pipelining of batches.
type Channel interface {
	Send(ctx context.Context, cmds []Command) (*Response, error)
	Close() error
}

// TCPChannel implements Channel over a single TCP connection using
// length-prefixed JSON frames: a big-endian uint32 byte count followed by
// the batch. One request frame yields exactly one response frame.
type TCPChannel struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to the engine. timeout bounds the dial and every subsequent
// round-trip; a context deadline shorter than timeout wins.
func Dial(addr string, timeout time.Duration) (*TCPChannel, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, &TransportError{Op: "dial " + addr, Err: err}
	}
	return &TCPChannel{conn: conn, timeout: timeout}, nil
}

// Send writes one command batch and blocks until the engine's response
// frame arrives or the deadline passes.
func (c *TCPChannel) Send(ctx context.Context, cmds []Command) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := MarshalCommands(cmds)
	if err != nil {
		return nil, &TransportError{Op: "encode batch", Err: err}
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, &TransportError{Op: "set deadline", Err: err}
	}

	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(payload)))
	if _, err := c.conn.Write(n[:]); err != nil {
		return nil, &TransportError{Op: "write frame header", Err: err}
	}
	if _, err := c.conn.Write(payload); err != nil {
		return nil, &TransportError{Op: "write frame", Err: err}
	}

	if _, err := io.ReadFull(c.conn, n[:]); err != nil {
		return nil, &TransportError{Op: "read frame header", Err: err}
	}
	size := binary.BigEndian.Uint32(n[:])
	if size > maxResponseBytes {
		return nil, &TransportError{Op: "read frame", Err: fmt.Errorf("frame of %d bytes exceeds limit", size)}
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(c.conn, body); err != nil {
		return nil, &TransportError{Op: "read frame", Err: err}
	}

	resp, err := ParseResponse(body)
	if err != nil {
		return nil, &TransportError{Op: "decode response", Err: err}
	}
	return resp, nil
}

// Close shuts down the connection.
func (c *TCPChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}
