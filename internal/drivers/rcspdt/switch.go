// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package rcspdt

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/qbridge/qbridge/internal/instrument"
	"github.com/qbridge/qbridge/internal/param"
	"github.com/qbridge/qbridge/internal/validate"
)

// Switch is a single SPDT relay on the box.
type Switch struct {
	*instrument.Base

	dev    *Device
	letter string // "A".."H"
	bit    uint   // bit position in SWPORT?, LSB is switch A

	// Position is the relay position, 1 or 2.
	Position *param.Parameter
}

func newSwitch(dev *Device, letter string) *Switch {
	s := &Switch{
		Base:   dev.Child("switch_" + letter),
		dev:    dev,
		letter: strings.ToUpper(letter),
		bit:    uint(letter[0] - 'a'),
	}

	s.Position = s.AddParameter(param.New("position", nil,
		param.WithLabel("switch "+s.letter),
		param.WithValues(validate.IntsBetween(1, 2)),
		param.WithGetFunc(s.getPosition),
		param.WithSetFunc(s.setPosition),
	))
	return s
}

// getPosition reads the SWPORT? bitmask and extracts this switch's bit.
func (s *Switch) getPosition(ctx context.Context) (any, error) {
	resp, err := s.dev.Ask(ctx, "SWPORT?")
	if err != nil {
		return nil, err
	}
	mask, err := strconv.ParseInt(strings.TrimSpace(resp), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: non-numeric SWPORT? response %q", ErrProtocol, resp)
	}
	return int((mask>>s.bit)&1) + 1, nil
}

// setPosition writes SET<letter>=<0|1> and checks the box's acknowledgment.
func (s *Switch) setPosition(ctx context.Context, v any) error {
	pos, ok := asInt(v)
	if !ok {
		return fmt.Errorf("expected a switch position, got %T", v)
	}
	resp, err := s.dev.Ask(ctx, fmt.Sprintf("SET%s=%d", s.letter, pos-1))
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp) != "1" {
		return fmt.Errorf("%w: switch %s rejected position %d: %q", ErrProtocol, s.letter, pos, resp)
	}
	return nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
