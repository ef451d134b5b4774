// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package param models instrument parameters: named, typed accessors bound
// to hardware get/set commands. A parameter translates Get into a command
// string sent over the owning instrument's transport and parses the raw
// response into a typed value; Set validates, formats and writes. Manual
// parameters hold their value locally.
package param

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/qbridge/qbridge/internal/validate"
)

// Asker issues commands on behalf of a parameter. Implemented by the
// instrument base (which adds pacing, circuit breaking and metrics).
type Asker interface {
	Ask(ctx context.Context, cmd string) (string, error)
	Write(ctx context.Context, cmd string) error
}

// Parser converts a raw wire response into a typed value.
type Parser func(string) (any, error)

// Formatter converts a typed value into its wire representation.
type Formatter func(any) (string, error)

// GetFunc is a custom getter for parameters that need multi-command reads.
type GetFunc func(ctx context.Context) (any, error)

// SetFunc is a custom setter for parameters that need multi-command writes.
type SetFunc func(ctx context.Context, v any) error

// Parameter is a single named accessor on an instrument.
type Parameter struct {
	name  string
	label string
	unit  string

	asker     Asker
	getCmd    string
	setCmd    string // fmt template with a single %s verb for the wire value
	getFn     GetFunc
	setFn     SetFunc
	parser    Parser
	formatter Formatter
	mapping   *ValueMap
	validator validate.Validator
	manual    bool

	mu       sync.Mutex
	cached   any
	cachedAt time.Time
	hasValue bool
}

// Option configures a Parameter.
type Option func(*Parameter)

// WithLabel sets the human-readable label.
func WithLabel(label string) Option {
	return func(p *Parameter) { p.label = label }
}

// WithUnit sets the physical unit (e.g. "V", "K", "us").
func WithUnit(unit string) Option {
	return func(p *Parameter) { p.unit = unit }
}

// WithGetCmd binds a get command and a parser for its response.
func WithGetCmd(cmd string, parser Parser) Option {
	return func(p *Parameter) {
		p.getCmd = cmd
		p.parser = parser
	}
}

// WithSetCmd binds a set command template. The template must contain a
// single %s verb which receives the formatted value.
func WithSetCmd(template string) Option {
	return func(p *Parameter) { p.setCmd = template }
}

// WithGetFunc binds a custom getter.
func WithGetFunc(fn GetFunc) Option {
	return func(p *Parameter) { p.getFn = fn }
}

// WithSetFunc binds a custom setter.
func WithSetFunc(fn SetFunc) Option {
	return func(p *Parameter) { p.setFn = fn }
}

// WithFormatter overrides the default %v formatting of set values.
func WithFormatter(f Formatter) Option {
	return func(p *Parameter) { p.formatter = f }
}

// WithValues attaches a validator checked on every Set.
func WithValues(v validate.Validator) Option {
	return func(p *Parameter) { p.validator = v }
}

// WithMapping attaches a bidirectional value mapping (user value <-> wire
// string), e.g. true<->"ON". The mapping replaces parser and formatter.
func WithMapping(m *ValueMap) Option {
	return func(p *Parameter) { p.mapping = m }
}

// Manual marks the parameter as software-only with an initial value.
func Manual(initial any) Option {
	return func(p *Parameter) {
		p.manual = true
		p.cached = initial
		p.cachedAt = time.Now()
		p.hasValue = true
	}
}

// New builds a parameter owned by asker. Manual parameters pass a nil asker.
func New(name string, asker Asker, opts ...Option) *Parameter {
	p := &Parameter{
		name:  name,
		label: name,
		asker: asker,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the parameter name.
func (p *Parameter) Name() string { return p.name }

// Label returns the human-readable label.
func (p *Parameter) Label() string { return p.label }

// Unit returns the physical unit.
func (p *Parameter) Unit() string { return p.unit }

// Gettable reports whether Get is supported.
func (p *Parameter) Gettable() bool {
	return p.manual || p.getFn != nil || p.getCmd != ""
}

// Settable reports whether Set is supported.
func (p *Parameter) Settable() bool {
	return p.manual || p.setFn != nil || p.setCmd != ""
}

// Get reads the parameter value from the instrument (or the local store for
// manual parameters) and refreshes the cache.
func (p *Parameter) Get(ctx context.Context) (any, error) {
	if p.manual {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.cached, nil
	}

	var v any
	var err error
	switch {
	case p.getFn != nil:
		v, err = p.getFn(ctx)
	case p.getCmd != "":
		var raw string
		raw, err = p.asker.Ask(ctx, p.getCmd)
		if err == nil {
			v, err = p.decode(strings.TrimSpace(raw))
		}
	default:
		return nil, fmt.Errorf("parameter %s: %w", p.name, ErrNotGettable)
	}
	if err != nil {
		return nil, fmt.Errorf("parameter %s: get: %w", p.name, err)
	}
	p.remember(v)
	return v, nil
}

// Set validates, formats and writes a new parameter value.
func (p *Parameter) Set(ctx context.Context, v any) error {
	if p.validator != nil {
		if err := p.validator.Validate(v); err != nil {
			return fmt.Errorf("parameter %s: %w: %w", p.name, ErrInvalidValue, err)
		}
	}

	if p.manual {
		p.remember(v)
		return nil
	}

	var err error
	switch {
	case p.setFn != nil:
		err = p.setFn(ctx, v)
	case p.setCmd != "":
		var wire string
		wire, err = p.encode(v)
		if err == nil {
			err = p.asker.Write(ctx, fmt.Sprintf(p.setCmd, wire))
		}
	default:
		return fmt.Errorf("parameter %s: %w", p.name, ErrNotSettable)
	}
	if err != nil {
		return fmt.Errorf("parameter %s: set: %w", p.name, err)
	}
	p.remember(v)
	return nil
}

// Cached returns the last known value and its timestamp.
func (p *Parameter) Cached() (any, time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hasValue {
		return nil, time.Time{}, fmt.Errorf("parameter %s: %w", p.name, ErrNoCachedValue)
	}
	return p.cached, p.cachedAt, nil
}

func (p *Parameter) remember(v any) {
	p.mu.Lock()
	p.cached = v
	p.cachedAt = time.Now()
	p.hasValue = true
	p.mu.Unlock()
}

func (p *Parameter) decode(raw string) (any, error) {
	if p.mapping != nil {
		return p.mapping.FromWire(raw)
	}
	if p.parser != nil {
		return p.parser(raw)
	}
	return raw, nil
}

func (p *Parameter) encode(v any) (string, error) {
	if p.mapping != nil {
		return p.mapping.ToWire(v)
	}
	if p.formatter != nil {
		return p.formatter(v)
	}
	return fmt.Sprintf("%v", v), nil
}

// Snapshot is the serializable state of a parameter.
type Snapshot struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	Unit      string    `json:"unit,omitempty"`
	Value     any       `json:"value,omitempty"`
	Timestamp time.Time `json:"ts,omitempty"`
	Gettable  bool      `json:"gettable"`
	Settable  bool      `json:"settable"`
	Values    string    `json:"values,omitempty"`
}

// Snapshot reports the cached state without touching the instrument.
func (p *Parameter) Snapshot() Snapshot {
	s := Snapshot{
		Name:     p.name,
		Label:    p.label,
		Unit:     p.unit,
		Gettable: p.Gettable(),
		Settable: p.Settable(),
	}
	if p.validator != nil {
		s.Values = p.validator.String()
	}
	p.mu.Lock()
	if p.hasValue {
		s.Value = p.cached
		s.Timestamp = p.cachedAt
	}
	p.mu.Unlock()
	return s
}
