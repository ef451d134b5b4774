// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package decadac

import (
	"context"
	"fmt"

	"github.com/qbridge/qbridge/internal/instrument"
	"github.com/qbridge/qbridge/internal/param"
	"github.com/qbridge/qbridge/internal/validate"
)

// Slot is one of the five DAC slots, each carrying four channels.
//
// Slot modes:
//   - Off: channel outputs disconnected, grounded with 10MOhm
//   - Fine: 2-channel mode, channels 2/3 fine-adjust channels 0/1
//   - Coarse: all 4 channels are outputs
//   - FineCald: calibrated fine mode, only on calibrated units
//
// The mode register cannot be read reliably on all firmware revisions, so
// it is written during Connect.
type Slot struct {
	*instrument.Base

	dev   *Device
	index int

	// Mode selects the slot operating mode (val-mapped).
	Mode *param.Parameter

	channels []*Channel
}

func newSlot(dev *Device, index int) *Slot {
	s := &Slot{
		Base:  dev.Child(fmt.Sprintf("slot%d", index)),
		dev:   dev,
		index: index,
	}

	modes := map[any]string{"Off": "0", "Fine": "1", "Coarse": "2"}
	allowed := []any{"Off", "Fine", "Coarse"}
	if dev.calSupported {
		modes["FineCald"] = "3"
		allowed = append(allowed, "FineCald")
	}
	mapping := param.MustValueMap(modes)

	s.Mode = s.AddParameter(param.New("slot_mode", nil,
		param.WithValues(validate.OneOf(allowed...)),
		param.WithGetFunc(func(ctx context.Context) (any, error) {
			resp, err := s.ask(ctx, "m;")
			if err != nil {
				return nil, err
			}
			payload, err := parseEcho(resp)
			if err != nil {
				return nil, err
			}
			return mapping.FromWire(payload)
		}),
		param.WithSetFunc(func(ctx context.Context, v any) error {
			wire, err := mapping.ToWire(v)
			if err != nil {
				return err
			}
			_, err = s.ask(ctx, fmt.Sprintf("M%s;", wire))
			return err
		}),
	))

	for c := 0; c < channelsPerSlot; c++ {
		ch := newChannel(s, c)
		s.channels = append(s.channels, ch)
		s.AddSubmodule(ch)
	}
	return s
}

// Channels returns the slot's four channels.
func (s *Slot) Channels() []*Channel { return s.channels }

// selectSlot makes this slot the target of subsequent slot commands and
// verifies the echo.
func (s *Slot) selectSlot(ctx context.Context) error {
	n, err := s.dev.askParsed(ctx, fmt.Sprintf("B%d;", s.index))
	if err != nil {
		return err
	}
	if n != int64(s.index) {
		return fmt.Errorf("%w: unexpected return when setting slot %d", ErrProtocol, s.index)
	}
	return nil
}

// ask selects the slot before issuing the command. All commands are echoed,
// so a stray selection response would otherwise be read as the answer to
// the next command.
func (s *Slot) ask(ctx context.Context, cmd string) (string, error) {
	if err := s.selectSlot(ctx); err != nil {
		return "", err
	}
	return s.dev.Ask(ctx, cmd)
}
