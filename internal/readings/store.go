// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package readings persists time-stamped parameter readings. Backends share
// one Store interface; the monitor appends, the API reads.
package readings

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoReadings reports a lookup for a parameter with no stored readings.
var ErrNoReadings = errors.New("readings: no readings for parameter")

// Reading is one sampled parameter value.
type Reading struct {
	Param string    `json:"param"`
	Value float64   `json:"value"`
	Unit  string    `json:"unit,omitempty"`
	TS    time.Time `json:"ts"`
}

// Store persists readings.
type Store interface {
	Append(ctx context.Context, r Reading) error
	Latest(ctx context.Context, param string) (Reading, error)
	Range(ctx context.Context, param string, from, to time.Time) ([]Reading, error)
	Close() error
}

// Open selects a backend by name. path is the database location for the
// durable backends and ignored by memory.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemory(0), nil
	case "sqlite":
		return OpenSqlite(path)
	case "badger":
		return OpenBadger(path)
	default:
		return nil, fmt.Errorf("readings: unknown backend %q (valid: memory, sqlite, badger)", backend)
	}
}
