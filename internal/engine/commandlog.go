package engine

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// CommandLog appends every sent batch as one JSON line tagged with the
// current trial number, so a run can be replayed against the engine.
type CommandLog struct {
	mu sync.Mutex
	f  *os.File
}

// OpenCommandLog opens (or creates) an append-only command log.
func OpenCommandLog(path string) (*CommandLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open command log: %w", err)
	}
	return &CommandLog{f: f}, nil
}

func (l *CommandLog) append(trial int, batch []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.f, "%s trial %d\n", batch, trial)
	return err
}

// Close flushes and closes the log file.
func (l *CommandLog) Close() error { return l.f.Close() }

// LoggedChannel decorates a Channel, recording each outgoing batch. A
// logging failure fails the Send.
type LoggedChannel struct {
	Channel
	log *CommandLog

	mu    sync.Mutex
	trial int
}

// NewLoggedChannel wraps ch so every batch is appended to log.
func NewLoggedChannel(ch Channel, log *CommandLog) *LoggedChannel {
	return &LoggedChannel{Channel: ch, log: log}
}

// SetTrial tags subsequent batches with the given trial index.
func (c *LoggedChannel) SetTrial(n int) {
	c.mu.Lock()
	c.trial = n
	c.mu.Unlock()
}

// Send logs the batch and forwards it to the wrapped channel. The batch is
// encoded here and again inside the transport: Channel's contract takes
// commands, not bytes, so the two encodings stay independent.
func (c *LoggedChannel) Send(ctx context.Context, cmds []Command) (*Response, error) {
	payload, err := MarshalCommands(cmds)
	if err != nil {
		return nil, &TransportError{Op: "encode batch", Err: err}
	}
	c.mu.Lock()
	trial := c.trial
	c.mu.Unlock()
	if err := c.log.append(trial, payload); err != nil {
		return nil, fmt.Errorf("append command log: %w", err)
	}
	return c.Channel.Send(ctx, cmds)
}
