// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package instrument provides the building blocks for instrument drivers:
// line-based command/response transports, a circuit breaker, and a base
// type implementing the parameter and submodule tree.
package instrument

import "context"

// Transport is a command/response connection to an instrument.
type Transport interface {
	// Ask sends a command and returns the next response line.
	Ask(ctx context.Context, cmd string) (string, error)
	// Write sends a command that produces no response.
	Write(ctx context.Context, cmd string) error
	// Close releases the connection.
	Close() error
}
