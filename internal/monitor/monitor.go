// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package monitor polls configured parameters, records readings and
// maintains a latest-snapshot file for dashboards.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/qbridge/qbridge/internal/cache"
	"github.com/qbridge/qbridge/internal/instrument"
	"github.com/qbridge/qbridge/internal/log"
	"github.com/qbridge/qbridge/internal/metrics"
	"github.com/qbridge/qbridge/internal/readings"
	"github.com/qbridge/qbridge/internal/station"
)

// ErrPollRunning reports a poll triggered while the previous one is still
// in flight. Polls never overlap.
var ErrPollRunning = errors.New("monitor: poll already running")

// Config holds monitor settings.
type Config struct {
	// Paths are the dotted parameter paths to sample each cycle.
	Paths []string `yaml:"paths"`
	// Interval between poll cycles.
	Interval time.Duration `yaml:"interval"`
	// SnapshotPath, when set, receives an atomically replaced JSON file
	// with the station snapshot after every cycle.
	SnapshotPath string `yaml:"snapshot_path"`
	// CacheTTL bounds how long polled values serve cached API reads.
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// Status is the outcome of the most recent poll cycle.
type Status struct {
	LastRun  time.Time `json:"last_run"`
	Readings int       `json:"readings"`
	Error    string    `json:"error,omitempty"`
}

// Monitor runs poll cycles over a station.
type Monitor struct {
	st     *station.Station
	store  readings.Store
	cache  cache.Cache
	cfg    Config
	logger zerolog.Logger

	running atomic.Bool
	mu      sync.RWMutex
	status  Status
}

// New creates a monitor. The cache may be nil when caching is disabled.
func New(st *station.Station, store readings.Store, c cache.Cache, cfg Config) *Monitor {
	if c == nil {
		c = cache.NewNoOp()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Monitor{
		st:     st,
		store:  store,
		cache:  c,
		cfg:    cfg,
		logger: log.Derive(func(c *zerolog.Context) { *c = c.Str(log.FieldComponent, "monitor") }),
	}
}

// Status returns the outcome of the last completed poll.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Poll runs one cycle: read every configured path (instruments in
// parallel, paths per instrument in sequence), record readings, refresh
// the cache and rewrite the snapshot file.
func (m *Monitor) Poll(ctx context.Context) (Status, error) {
	if !m.running.CompareAndSwap(false, true) {
		return Status{}, ErrPollRunning
	}
	defer m.running.Store(false)

	pollID := uuid.NewString()
	ctx = log.ContextWithPollID(ctx, pollID)
	logger := m.logger.With().Str(log.FieldPollID, pollID).Logger()
	start := time.Now()

	var sampled atomic.Int64
	var errMu sync.Mutex
	var pollErr error

	g, gctx := errgroup.WithContext(ctx)
	for instName, paths := range groupByInstrument(m.cfg.Paths) {
		g.Go(func() error {
			for _, path := range paths {
				if err := m.sample(gctx, path); err != nil {
					// One dead sensor must not starve the others; report
					// the failure through the status instead.
					logger.Warn().
						Err(err).
						Str(log.FieldEvent, "poll.sample_failed").
						Str(log.FieldParameter, path).
						Str(log.FieldInstrument, instName).
						Msg("sample failed")
					errMu.Lock()
					if pollErr == nil {
						pollErr = err
					}
					errMu.Unlock()
					continue
				}
				sampled.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	status := Status{LastRun: start, Readings: int(sampled.Load())}
	outcome := metrics.OutcomeSuccess
	if pollErr != nil {
		status.Error = pollErr.Error()
		outcome = metrics.OutcomeFailure
	}

	if m.cfg.SnapshotPath != "" {
		if err := m.writeSnapshot(status); err != nil {
			logger.Error().Err(err).Str(log.FieldEvent, "poll.snapshot_failed").Msg("snapshot write failed")
			if pollErr == nil {
				pollErr = err
				status.Error = err.Error()
				outcome = metrics.OutcomeFailure
			}
		}
	}

	m.mu.Lock()
	m.status = status
	m.mu.Unlock()

	elapsed := time.Since(start)
	metrics.IncPollRun(outcome)
	metrics.ObservePollDuration(elapsed.Seconds())
	metrics.RecordPollReadings(status.Readings)

	logger.Info().
		Str(log.FieldEvent, "poll.done").
		Int("readings", status.Readings).
		Dur("elapsed", elapsed).
		Msg("poll cycle complete")
	return status, pollErr
}

// sample reads one path and records the value.
func (m *Monitor) sample(ctx context.Context, path string) error {
	p, err := m.st.Resolve(path)
	if err != nil {
		return err
	}
	v, err := p.Get(ctx)
	if err != nil {
		return err
	}

	m.cache.Set(path, v, m.cfg.CacheTTL)

	f, ok := asSample(v)
	if !ok {
		// Non-numeric parameters (mode strings) are cached but not stored
		// as time series.
		return nil
	}
	metrics.RecordParameterValue(path, p.Unit(), f)
	return m.store.Append(ctx, readings.Reading{
		Param: path,
		Value: f,
		Unit:  p.Unit(),
		TS:    time.Now().UTC(),
	})
}

type snapshotFile struct {
	Status      Status                               `json:"status"`
	Instruments map[string]instrument.ModuleSnapshot `json:"instruments"`
}

// writeSnapshot atomically replaces the snapshot file so readers never see
// a torn write.
func (m *Monitor) writeSnapshot(status Status) error {
	pending, err := renameio.NewPendingFile(m.cfg.SnapshotPath)
	if err != nil {
		return fmt.Errorf("create pending snapshot: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snapshotFile{Status: status, Instruments: m.st.Snapshot()}); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

func groupByInstrument(paths []string) map[string][]string {
	out := make(map[string][]string)
	for _, path := range paths {
		inst, _, _ := strings.Cut(path, ".")
		out[inst] = append(out[inst], path)
	}
	return out
}

func asSample(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
