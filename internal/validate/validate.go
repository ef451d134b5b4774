// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package validate provides value validators for instrument parameters.
// A validator constrains what a parameter accepts before the value is
// formatted into a hardware command.
package validate

import (
	"fmt"
	"math"
)

// Validator checks a candidate parameter value.
type Validator interface {
	// Validate returns nil if v is acceptable.
	Validate(v any) error
	// String describes the accepted values, for error messages and snapshots.
	String() string
}

// Numbers accepts float64 (and integer) values within [Min, Max].
type Numbers struct {
	Min float64
	Max float64
}

// NumbersBetween builds a Numbers validator with the given bounds.
func NumbersBetween(min, max float64) Numbers {
	return Numbers{Min: min, Max: max}
}

// AnyNumber accepts every finite number.
func AnyNumber() Numbers {
	return Numbers{Min: math.Inf(-1), Max: math.Inf(1)}
}

func (n Numbers) Validate(v any) error {
	f, ok := toFloat(v)
	if !ok {
		return fmt.Errorf("expected a number, got %T", v)
	}
	if math.IsNaN(f) {
		return fmt.Errorf("NaN is not a valid number")
	}
	if f < n.Min || f > n.Max {
		return fmt.Errorf("%v is out of range (%v to %v)", f, n.Min, n.Max)
	}
	return nil
}

func (n Numbers) String() string {
	return fmt.Sprintf("Numbers %v to %v", n.Min, n.Max)
}

// Ints accepts integral values within [Min, Max].
type Ints struct {
	Min int64
	Max int64
}

// IntsBetween builds an Ints validator with the given bounds.
func IntsBetween(min, max int64) Ints {
	return Ints{Min: min, Max: max}
}

func (n Ints) Validate(v any) error {
	i, ok := toInt(v)
	if !ok {
		return fmt.Errorf("expected an integer, got %T (%v)", v, v)
	}
	if i < n.Min || i > n.Max {
		return fmt.Errorf("%d is out of range (%d to %d)", i, n.Min, n.Max)
	}
	return nil
}

func (n Ints) String() string {
	return fmt.Sprintf("Ints %d to %d", n.Min, n.Max)
}

// Bools accepts boolean values.
type Bools struct{}

func (Bools) Validate(v any) error {
	if _, ok := v.(bool); !ok {
		return fmt.Errorf("expected a bool, got %T", v)
	}
	return nil
}

func (Bools) String() string { return "Bool" }

// Enum accepts any of a fixed set of values.
type Enum struct {
	Allowed []any
}

// OneOf builds an Enum validator.
func OneOf(allowed ...any) Enum {
	return Enum{Allowed: allowed}
}

func (e Enum) Validate(v any) error {
	for _, a := range e.Allowed {
		if a == v {
			return nil
		}
	}
	return fmt.Errorf("%v is not one of %v", v, e.Allowed)
}

func (e Enum) String() string {
	return fmt.Sprintf("Enum %v", e.Allowed)
}

// Strings accepts strings with a length within [MinLen, MaxLen].
type Strings struct {
	MinLen int
	MaxLen int
}

func (s Strings) Validate(v any) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected a string, got %T", v)
	}
	if len(str) < s.MinLen {
		return fmt.Errorf("string shorter than %d characters", s.MinLen)
	}
	if s.MaxLen > 0 && len(str) > s.MaxLen {
		return fmt.Errorf("string longer than %d characters", s.MaxLen)
	}
	return nil
}

func (s Strings) String() string {
	return fmt.Sprintf("Strings len %d to %d", s.MinLen, s.MaxLen)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint16:
		return float64(n), true
	}
	return 0, false
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) {
			return int64(n), true
		}
	}
	return 0, false
}
