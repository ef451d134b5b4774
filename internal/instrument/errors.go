// SPDX-License-Identifier: MIT

package instrument

import "errors"

var (
	// ErrCircuitOpen is returned when the breaker blocks a command.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrEmptyResponse is returned when Ask reads an empty line.
	ErrEmptyResponse = errors.New("empty response from instrument")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport is closed")
)
