// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package rcspdt drives Mini-Circuits RC-SPDT RF switch boxes over their
// ethernet (telnet) port. The box carries one to eight SPDT switches named
// A through H; each switch sits in position 1 or 2.
package rcspdt

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/qbridge/qbridge/internal/instrument"
)

// ErrProtocol reports an unexpected response from the switch box.
var ErrProtocol = errors.New("rcspdt: protocol error")

var letters = []string{"a", "b", "c", "d", "e", "f", "g", "h"}

// Device is the root RC-SPDT instrument.
type Device struct {
	*instrument.Base

	switches []*Switch

	model    string
	serial   string
	firmware string
}

// New creates an RC-SPDT driver on an already constructed base.
func New(base *instrument.Base) *Device {
	return &Device{Base: base}
}

// Connect flushes the connect banner, reads the identity and builds one
// switch submodule per SPDT on the box. The switch count is the digit in
// the model number: "RC-4SPDT-A18" carries four.
func (d *Device) Connect(ctx context.Context) error {
	if err := d.Flush(); err != nil {
		return fmt.Errorf("rcspdt: flush: %w", err)
	}

	idn, err := d.IDN(ctx)
	if err != nil {
		return fmt.Errorf("rcspdt: identity: %w", err)
	}

	if len(d.model) < 4 {
		return fmt.Errorf("%w: model %q too short to carry a switch count", ErrProtocol, d.model)
	}
	count, err := strconv.Atoi(d.model[3:4])
	if err != nil || count < 1 || count > len(letters) {
		return fmt.Errorf("%w: cannot derive switch count from model %q", ErrProtocol, d.model)
	}

	for _, letter := range letters[:count] {
		sw := newSwitch(d, letter)
		d.switches = append(d.switches, sw)
		d.AddSubmodule(sw)
	}

	d.LogConnectMessage(idn)
	return nil
}

// IDN queries the box identity. The box has no *IDN?; model and serial
// arrive prefixed with "MN=" and "SN=".
func (d *Device) IDN(ctx context.Context) (map[string]string, error) {
	fw, err := d.Ask(ctx, "FIRMWARE?")
	if err != nil {
		return nil, err
	}
	mn, err := d.Ask(ctx, "MN?")
	if err != nil {
		return nil, err
	}
	sn, err := d.Ask(ctx, "SN?")
	if err != nil {
		return nil, err
	}
	d.firmware = fw
	d.model = strip(mn, "MN=")
	d.serial = strip(sn, "SN=")
	return map[string]string{
		"vendor":   "Mini-Circuits",
		"model":    d.model,
		"serial":   d.serial,
		"firmware": d.firmware,
	}, nil
}

// Switches returns the switch submodules in letter order.
func (d *Device) Switches() []*Switch { return d.switches }

// SetAll puts every switch in the given position.
func (d *Device) SetAll(ctx context.Context, position int) error {
	for _, sw := range d.switches {
		if err := sw.Position.Set(ctx, position); err != nil {
			return err
		}
	}
	return nil
}

func strip(s, prefix string) string {
	if len(s) >= len(prefix) {
		return s[len(prefix):]
	}
	return s
}
