// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package instrument

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/qbridge/qbridge/internal/log"
	"github.com/qbridge/qbridge/internal/metrics"
	"github.com/qbridge/qbridge/internal/param"
)

// Module is a node in an instrument tree: an instrument, a slot or a
// channel. Each node owns parameters and may own submodules.
type Module interface {
	Name() string
	Parameter(name string) (*param.Parameter, bool)
	Parameters() []*param.Parameter
	Submodule(name string) (Module, bool)
	Submodules() []Module
	Snapshot() ModuleSnapshot
}

// Instrument is a root module bound to a transport.
type Instrument interface {
	Module
	// Connect performs the driver's post-dial initialization (feature
	// detection, channel construction, identity query).
	Connect(ctx context.Context) error
	// IDN returns the instrument identity (vendor, model, serial, firmware).
	IDN(ctx context.Context) (map[string]string, error)
	Close() error
}

// ModuleSnapshot is the serializable state of a module subtree.
type ModuleSnapshot struct {
	Name       string           `json:"name"`
	Parameters []param.Snapshot `json:"parameters,omitempty"`
	Submodules []ModuleSnapshot `json:"submodules,omitempty"`
}

// Base implements the shared machinery of Module plus the param.Asker
// contract: command pacing, circuit breaking, metrics and logging. Drivers
// embed *Base in the root instrument and in every channel.
type Base struct {
	name      string
	transport Transport
	breaker   *Breaker
	limiter   *rate.Limiter
	logger    zerolog.Logger
	startedAt time.Time

	mu       sync.RWMutex
	params   map[string]*param.Parameter
	order    []string
	subs     map[string]Module
	subOrder []string
}

// BaseOption configures a Base.
type BaseOption func(*Base)

// WithBreaker overrides the default breaker (5 failures, 30s reset).
func WithBreaker(threshold int, resetTimeout time.Duration) BaseOption {
	return func(b *Base) {
		b.breaker = NewBreaker(b.name, threshold, resetTimeout)
	}
}

// WithCommandRate paces commands to at most rps per second with the given
// burst. Serial bridges lose bytes when flooded.
func WithCommandRate(rps float64, burst int) BaseOption {
	return func(b *Base) {
		b.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewBase creates the root node of an instrument tree.
func NewBase(name string, transport Transport, opts ...BaseOption) *Base {
	b := &Base{
		name:      name,
		transport: transport,
		logger:    log.Derive(func(c *zerolog.Context) { *c = c.Str(log.FieldInstrument, name) }),
		startedAt: time.Now(),
		params:    make(map[string]*param.Parameter),
		subs:      make(map[string]Module),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.breaker == nil {
		b.breaker = NewBreaker(name, 5, 30*time.Second)
	}
	return b
}

// Child creates a subordinate node (slot, channel) sharing the parent's
// transport, breaker and pacing. The child is NOT registered; call
// AddSubmodule on the parent.
func (b *Base) Child(name string) *Base {
	return &Base{
		name:      name,
		transport: b.transport,
		breaker:   b.breaker,
		limiter:   b.limiter,
		logger:    b.logger.With().Str(log.FieldChannel, name).Logger(),
		startedAt: b.startedAt,
		params:    make(map[string]*param.Parameter),
		subs:      make(map[string]Module),
	}
}

// Name returns the module name.
func (b *Base) Name() string { return b.name }

// Logger returns the module's annotated logger.
func (b *Base) Logger() zerolog.Logger { return b.logger }

// Ask sends a command and returns the trimmed response, applying pacing,
// breaker and metrics.
func (b *Base) Ask(ctx context.Context, cmd string) (string, error) {
	var resp string
	err := b.execute(ctx, cmd, func() error {
		var err error
		resp, err = b.transport.Ask(ctx, cmd)
		return err
	})
	return resp, err
}

// Write sends a command without reading a response.
func (b *Base) Write(ctx context.Context, cmd string) error {
	return b.execute(ctx, cmd, func() error {
		return b.transport.Write(ctx, cmd)
	})
}

func (b *Base) execute(ctx context.Context, cmd string, fn func() error) error {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("command pacing: %w", err)
		}
	}
	start := time.Now()
	err := b.breaker.Execute(fn)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, ErrCircuitOpen):
		metrics.IncCommand(b.name, metrics.OutcomeRejected)
		return fmt.Errorf("instrument %s: %w", b.name, err)
	case err != nil:
		metrics.IncCommand(b.name, metrics.OutcomeFailure)
		metrics.ObserveCommandDuration(b.name, elapsed.Seconds())
		b.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "command.failed").
			Str(log.FieldCommand, cmd).
			Msg("instrument command failed")
		return err
	default:
		metrics.IncCommand(b.name, metrics.OutcomeSuccess)
		metrics.ObserveCommandDuration(b.name, elapsed.Seconds())
		b.logger.Trace().
			Str(log.FieldEvent, "command.ok").
			Str(log.FieldCommand, cmd).
			Dur("elapsed", elapsed).
			Msg("instrument command")
		return nil
	}
}

// AddParameter registers a parameter on this node. Duplicate names panic:
// they are driver construction bugs, not runtime conditions.
func (b *Base) AddParameter(p *param.Parameter) *param.Parameter {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.params[p.Name()]; dup {
		panic(fmt.Sprintf("instrument %s: duplicate parameter %s", b.name, p.Name()))
	}
	b.params[p.Name()] = p
	b.order = append(b.order, p.Name())
	return p
}

// Parameter looks up a parameter by name.
func (b *Base) Parameter(name string) (*param.Parameter, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.params[name]
	return p, ok
}

// Parameters lists parameters in registration order.
func (b *Base) Parameters() []*param.Parameter {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*param.Parameter, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.params[name])
	}
	return out
}

// AddSubmodule registers a child module.
func (b *Base) AddSubmodule(m Module) Module {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.subs[m.Name()]; dup {
		panic(fmt.Sprintf("instrument %s: duplicate submodule %s", b.name, m.Name()))
	}
	b.subs[m.Name()] = m
	b.subOrder = append(b.subOrder, m.Name())
	return m
}

// Submodule looks up a child module by name.
func (b *Base) Submodule(name string) (Module, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, ok := b.subs[name]
	return m, ok
}

// Submodules lists child modules in registration order.
func (b *Base) Submodules() []Module {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Module, 0, len(b.subOrder))
	for _, name := range b.subOrder {
		out = append(out, b.subs[name])
	}
	return out
}

// Snapshot reports the cached state of the whole subtree.
func (b *Base) Snapshot() ModuleSnapshot {
	snap := ModuleSnapshot{Name: b.name}
	for _, p := range b.Parameters() {
		snap.Parameters = append(snap.Parameters, p.Snapshot())
	}
	for _, m := range b.Submodules() {
		snap.Submodules = append(snap.Submodules, m.Snapshot())
	}
	return snap
}

// IDN queries the SCPI identity string and splits it into the conventional
// four fields. Drivers for instruments without *IDN? override this.
func (b *Base) IDN(ctx context.Context) (map[string]string, error) {
	raw, err := b.Ask(ctx, "*IDN?")
	if err != nil {
		return nil, err
	}
	parts := strings.Split(raw, ",")
	idn := map[string]string{"vendor": "", "model": "", "serial": "", "firmware": ""}
	keys := []string{"vendor", "model", "serial", "firmware"}
	for i, k := range keys {
		if i < len(parts) {
			idn[k] = strings.TrimSpace(parts[i])
		}
	}
	return idn, nil
}

// LogConnectMessage emits the standard post-connect log line.
func (b *Base) LogConnectMessage(idn map[string]string) {
	b.logger.Info().
		Str(log.FieldEvent, "instrument.connected").
		Str("vendor", idn["vendor"]).
		Str("model", idn["model"]).
		Str("serial", idn["serial"]).
		Str("firmware", idn["firmware"]).
		Dur("elapsed", time.Since(b.startedAt)).
		Msg("connected to instrument")
}

// Flush discards pending transport input when the transport supports it.
// Instruments that print a banner on connect need this before the first
// command.
func (b *Base) Flush() error {
	if f, ok := b.transport.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Close releases the transport.
func (b *Base) Close() error {
	return b.transport.Close()
}
