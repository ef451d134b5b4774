// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package instrument

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

// TCPConfig holds connection parameters for a line-oriented TCP instrument.
type TCPConfig struct {
	Address         string        // host:port
	DialTimeout     time.Duration // default 5s
	CommandTimeout  time.Duration // per-command fallback when ctx has no deadline, default 3s
	WriteTerminator string        // appended to every command, default "\r\n"
	// ResponseTerminator marks the end of a response and is stripped from
	// it, default "\n".
	ResponseTerminator string
}

func (c TCPConfig) withDefaults() TCPConfig {
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 3 * time.Second
	}
	if c.WriteTerminator == "" {
		c.WriteTerminator = "\r\n"
	}
	if c.ResponseTerminator == "" {
		c.ResponseTerminator = "\n"
	}
	return c
}

// TCPTransport is a Transport over a raw TCP socket. Lab instruments speak
// short line-based protocols (often on the telnet port), one response line
// per command. The connection is dialed lazily and re-dialed after errors.
type TCPTransport struct {
	cfg TCPConfig

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
	closed bool
}

// NewTCP creates a TCP transport. No connection is made until the first
// command.
func NewTCP(cfg TCPConfig) *TCPTransport {
	return &TCPTransport{cfg: cfg.withDefaults()}
}

// Ask sends cmd and reads one response line.
func (t *TCPTransport) Ask(ctx context.Context, cmd string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.sendLocked(ctx, cmd); err != nil {
		return "", err
	}
	term := t.cfg.ResponseTerminator
	line, err := t.reader.ReadString(term[len(term)-1])
	if err != nil {
		t.dropLocked()
		return "", fmt.Errorf("read response to %q: %w", cmd, err)
	}
	line = strings.TrimSuffix(line, term)
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("%w for %q", ErrEmptyResponse, cmd)
	}
	return line, nil
}

// Write sends cmd without waiting for a response.
func (t *TCPTransport) Write(ctx context.Context, cmd string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sendLocked(ctx, cmd)
}

// Flush discards any pending unread data, e.g. a banner printed by the
// instrument on connect.
func (t *TCPTransport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	if n := t.reader.Buffered(); n > 0 {
		if _, err := t.reader.Discard(n); err != nil {
			return err
		}
	}
	if err := t.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		return err
	}
	buf := make([]byte, 4096)
	for {
		if _, err := t.conn.Read(buf); err != nil {
			break
		}
	}
	return t.conn.SetReadDeadline(time.Time{})
}

// Close shuts the connection down. The transport cannot be reused.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.reader = nil
	return err
}

func (t *TCPTransport) sendLocked(ctx context.Context, cmd string) error {
	if t.closed {
		return ErrClosed
	}
	if err := t.connectLocked(ctx); err != nil {
		return err
	}
	deadline := time.Now().Add(t.cfg.CommandTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := t.conn.SetDeadline(deadline); err != nil {
		t.dropLocked()
		return fmt.Errorf("set deadline: %w", err)
	}
	if _, err := t.conn.Write([]byte(cmd + t.cfg.WriteTerminator)); err != nil {
		t.dropLocked()
		return fmt.Errorf("write %q: %w", cmd, err)
	}
	return nil
}

func (t *TCPTransport) connectLocked(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: t.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.cfg.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.cfg.Address, err)
	}
	t.conn = conn
	t.reader = bufio.NewReader(conn)
	return nil
}

// dropLocked closes a broken connection so the next command re-dials.
func (t *TCPTransport) dropLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
		t.reader = nil
	}
}
