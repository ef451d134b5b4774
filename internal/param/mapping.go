// SPDX-License-Identifier: MIT

package param

import "fmt"

// ValueMap is a bidirectional mapping between user-facing values and wire
// strings, e.g. true<->"ON" for a heater switch or "Coarse"<->"2" for a DAC
// slot mode.
type ValueMap struct {
	toWire   map[any]string
	fromWire map[string]any
}

// NewValueMap builds a mapping from user value to wire string. Wire strings
// must be unique.
func NewValueMap(pairs map[any]string) (*ValueMap, error) {
	m := &ValueMap{
		toWire:   make(map[any]string, len(pairs)),
		fromWire: make(map[string]any, len(pairs)),
	}
	for v, wire := range pairs {
		if _, dup := m.fromWire[wire]; dup {
			return nil, fmt.Errorf("duplicate wire value %q in mapping", wire)
		}
		m.toWire[v] = wire
		m.fromWire[wire] = v
	}
	return m, nil
}

// MustValueMap is NewValueMap for static driver tables.
func MustValueMap(pairs map[any]string) *ValueMap {
	m, err := NewValueMap(pairs)
	if err != nil {
		panic(err)
	}
	return m
}

// ToWire maps a user value to its wire string.
func (m *ValueMap) ToWire(v any) (string, error) {
	wire, ok := m.toWire[v]
	if !ok {
		return "", fmt.Errorf("%w: %v", ErrUnmappedValue, v)
	}
	return wire, nil
}

// FromWire maps a wire string back to the user value.
func (m *ValueMap) FromWire(wire string) (any, error) {
	v, ok := m.fromWire[wire]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnmappedValue, wire)
	}
	return v, nil
}

// Values lists the user-facing values, for validators and error messages.
func (m *ValueMap) Values() []any {
	out := make([]any, 0, len(m.toWire))
	for v := range m.toWire {
		out = append(out, v)
	}
	return out
}
