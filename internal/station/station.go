// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package station assembles configured instruments into a registry and
// resolves dotted parameter paths ("magnet.heater_switch",
// "dac.slot0.ch1.volt") across the instrument trees.
package station

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	unorm "golang.org/x/text/unicode/norm"

	"github.com/qbridge/qbridge/internal/instrument"
	"github.com/qbridge/qbridge/internal/log"
	"github.com/qbridge/qbridge/internal/metrics"
	"github.com/qbridge/qbridge/internal/param"
)

var (
	// ErrUnknownDriver reports a config entry naming a driver that is not
	// registered.
	ErrUnknownDriver = errors.New("station: unknown driver")
	// ErrUnknownInstrument reports a path whose first segment matches no
	// configured instrument.
	ErrUnknownInstrument = errors.New("station: unknown instrument")
	// ErrUnknownParameter reports a path that does not resolve to a
	// parameter inside the instrument tree.
	ErrUnknownParameter = errors.New("station: unknown parameter")
	// ErrDuplicateInstrument reports two config entries with the same
	// normalized name.
	ErrDuplicateInstrument = errors.New("station: duplicate instrument name")
)

// InstrumentConfig describes one instrument to build.
type InstrumentConfig struct {
	Name    string         `yaml:"name"`
	Driver  string         `yaml:"driver"`
	Address string         `yaml:"address"`
	Options map[string]any `yaml:"options"`
}

// TransportFactory builds the wire transport for an address. Overridden in
// tests to substitute fakes.
type TransportFactory func(address string) instrument.Transport

// Station is the registry of connected instruments.
type Station struct {
	logger zerolog.Logger

	mu          sync.RWMutex
	instruments map[string]instrument.Instrument
	order       []string
}

// Option configures station assembly.
type Option func(*builder)

type builder struct {
	transports TransportFactory
}

// WithTransportFactory overrides how transports are dialed.
func WithTransportFactory(f TransportFactory) Option {
	return func(b *builder) { b.transports = f }
}

// New builds (but does not connect) every configured instrument.
func New(cfgs []InstrumentConfig, opts ...Option) (*Station, error) {
	b := &builder{
		transports: func(address string) instrument.Transport {
			return instrument.NewTCP(instrument.TCPConfig{Address: address})
		},
	}
	for _, opt := range opts {
		opt(b)
	}

	s := &Station{
		logger:      log.Derive(func(c *zerolog.Context) { *c = c.Str(log.FieldComponent, "station") }),
		instruments: make(map[string]instrument.Instrument),
	}

	for _, cfg := range cfgs {
		name := NormalizeName(cfg.Name)
		if name == "" {
			return nil, fmt.Errorf("station: instrument with empty name (driver %q)", cfg.Driver)
		}
		if _, dup := s.instruments[name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateInstrument, name)
		}
		build, ok := lookupDriver(cfg.Driver)
		if !ok {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownDriver, cfg.Driver, strings.Join(DriverNames(), ", "))
		}
		base := instrument.NewBase(name, b.transports(cfg.Address))
		inst, err := build(base, cfg)
		if err != nil {
			return nil, fmt.Errorf("station: build %s: %w", name, err)
		}
		s.instruments[name] = inst
		s.order = append(s.order, name)
		s.logger.Debug().
			Str(log.FieldEvent, "station.instrument").
			Str(log.FieldInstrument, name).
			Str(log.FieldDriver, cfg.Driver).
			Str(log.FieldAddress, cfg.Address).
			Msg("instrument registered")
	}
	return s, nil
}

// Connect connects every instrument concurrently and fails fast on the
// first error.
func (s *Station) Connect(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, name := range s.order {
		inst := s.instruments[name]
		g.Go(func() error {
			if err := inst.Connect(ctx); err != nil {
				return fmt.Errorf("connect %s: %w", inst.Name(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	metrics.SetInstrumentsConnected(len(s.order))
	s.logger.Info().
		Str(log.FieldEvent, "station.connected").
		Int("instruments", len(s.order)).
		Msg("all instruments connected")
	return nil
}

// Instrument looks up an instrument by normalized name.
func (s *Station) Instrument(name string) (instrument.Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instruments[NormalizeName(name)]
	return inst, ok
}

// Instruments lists instruments in configuration order.
func (s *Station) Instruments() []instrument.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]instrument.Instrument, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.instruments[name])
	}
	return out
}

// Resolve walks a dotted path to a parameter. The first segment names the
// instrument, intermediate segments name submodules, the last segment names
// the parameter.
func (s *Station) Resolve(path string) (*param.Parameter, error) {
	segs := strings.Split(path, ".")
	if len(segs) < 2 {
		return nil, fmt.Errorf("%w: path %q needs at least instrument.parameter", ErrUnknownParameter, path)
	}
	inst, ok := s.Instrument(segs[0])
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstrument, segs[0])
	}
	var mod instrument.Module = inst
	for _, seg := range segs[1 : len(segs)-1] {
		sub, ok := mod.Submodule(seg)
		if !ok {
			return nil, fmt.Errorf("%w: %q has no submodule %q", ErrUnknownParameter, path, seg)
		}
		mod = sub
	}
	p, ok := mod.Parameter(segs[len(segs)-1])
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParameter, path)
	}
	return p, nil
}

// Snapshot reports the cached state of every instrument tree.
func (s *Station) Snapshot() map[string]instrument.ModuleSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]instrument.ModuleSnapshot, len(s.order))
	for _, name := range s.order {
		out[name] = s.instruments[name].Snapshot()
	}
	return out
}

// Close closes every instrument and joins the errors.
func (s *Station) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for _, name := range s.order {
		if err := s.instruments[name].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	metrics.SetInstrumentsConnected(0)
	return errors.Join(errs...)
}

// NormalizeName canonicalizes an instrument name: NFC, lowercase, spaces
// and dashes collapsed to underscores. Paths and config entries compare
// equal after normalization.
func NormalizeName(s string) string {
	s = unorm.NFC.String(strings.TrimSpace(s))
	s = strings.ToLower(s)
	s = unorm.NFC.String(s)
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '\t':
			return '_'
		}
		return r
	}, s)
	for strings.Contains(mapped, "__") {
		mapped = strings.ReplaceAll(mapped, "__", "_")
	}
	return mapped
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
