// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package readings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/qbridge/qbridge/internal/metrics"
)

const defaultRingSize = 4096

// MemoryStore keeps a bounded ring of readings per parameter. Intended for
// tests and setups without durable storage.
type MemoryStore struct {
	mu    sync.RWMutex
	size  int
	rings map[string][]Reading
}

// NewMemory creates a memory store keeping at most size readings per
// parameter (0 means the default of 4096).
func NewMemory(size int) *MemoryStore {
	if size <= 0 {
		size = defaultRingSize
	}
	return &MemoryStore{size: size, rings: make(map[string][]Reading)}
}

func (m *MemoryStore) Append(_ context.Context, r Reading) error {
	m.mu.Lock()
	ring := append(m.rings[r.Param], r)
	if len(ring) > m.size {
		ring = ring[len(ring)-m.size:]
	}
	m.rings[r.Param] = ring
	m.mu.Unlock()
	metrics.IncReadingsWritten("memory")
	return nil
}

func (m *MemoryStore) Latest(_ context.Context, param string) (Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ring := m.rings[param]
	if len(ring) == 0 {
		return Reading{}, fmt.Errorf("%w: %s", ErrNoReadings, param)
	}
	return ring[len(ring)-1], nil
}

func (m *MemoryStore) Range(_ context.Context, param string, from, to time.Time) ([]Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Reading
	for _, r := range m.rings[param] {
		if r.TS.Before(from) || r.TS.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
