// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package decadac

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/qbridge/qbridge/internal/instrument"
	"github.com/qbridge/qbridge/internal/log"
)

const (
	numSlots        = 5
	channelsPerSlot = 4

	// EEPROM identity block
	addrEEPROMMagic  = 1107296256
	addrSerial       = 1107296264
	addrVersion      = 1107296266
	eepromMagicValue = 21930
)

// Device is the root DecaDAC instrument.
type Device struct {
	*instrument.Base

	minVal float64
	maxVal float64

	rampPoll time.Duration

	slots    []*Slot
	channels []*Channel

	eepromAvailable bool
	calSupported    bool
	version         int64
	serial          int64
}

// Option configures the driver.
type Option func(*Device)

// WithRange sets the output range corresponding to codes 0 and 65535.
// Default is -5 V to 5 V.
func WithRange(minVal, maxVal float64) Option {
	return func(d *Device) {
		d.minVal = minVal
		d.maxVal = maxVal
	}
}

// WithRampPoll sets the interval at which blocking ramps poll the slope
// register. Default 50ms.
func WithRampPoll(interval time.Duration) Option {
	return func(d *Device) { d.rampPoll = interval }
}

// New creates a DecaDAC on an already constructed base (the station builds
// the base so transports can be shared with tests).
func New(base *instrument.Base, opts ...Option) *Device {
	d := &Device{
		Base:     base,
		minVal:   -5,
		maxVal:   5,
		rampPoll: 50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Connect probes the hardware, builds the slot/channel tree and enables all
// slots in coarse mode.
func (d *Device) Connect(ctx context.Context) error {
	if err := d.detectFeatures(ctx); err != nil {
		return fmt.Errorf("decadac: feature detection: %w", err)
	}

	for s := 0; s < numSlots; s++ {
		slot := newSlot(d, s)
		d.slots = append(d.slots, slot)
		d.AddSubmodule(slot)
		d.channels = append(d.channels, slot.channels...)
	}

	// Enable all slots in coarse mode: every channel is an output.
	for _, slot := range d.slots {
		if err := slot.Mode.Set(ctx, "Coarse"); err != nil {
			return fmt.Errorf("decadac: slot %d mode: %w", slot.index, err)
		}
	}

	idn, err := d.IDN(ctx)
	if err != nil {
		return err
	}
	d.LogConnectMessage(idn)
	return nil
}

// IDN reports serial and hardware version. The DecaDAC has no *IDN?; both
// values come from the EEPROM identity block when present.
func (d *Device) IDN(context.Context) (map[string]string, error) {
	return map[string]string{
		"vendor":   "Harvard",
		"model":    "DecaDAC",
		"serial":   strconv.FormatInt(d.serial, 10),
		"firmware": strconv.FormatInt(d.version, 10),
	}, nil
}

// Slots returns the five DAC slots.
func (d *Device) Slots() []*Slot { return d.slots }

// Channels returns all twenty channels in slot order.
func (d *Device) Channels() []*Channel { return d.channels }

// SetAll sets every channel to the given voltage. Channels configured to
// ramp will ramp in sequence, not simultaneously.
func (d *Device) SetAll(ctx context.Context, volt float64) error {
	for _, ch := range d.channels {
		if err := ch.Volt.Set(ctx, volt); err != nil {
			return err
		}
	}
	return nil
}

// RampAll ramps every channel to the target voltage at the given rate.
// Ramps start as soon as each channel's registers are written, then the
// call waits for all slopes to return to zero.
func (d *Device) RampAll(ctx context.Context, volt, ratePerSec float64) error {
	for _, ch := range d.channels {
		if err := ch.Ramp(ctx, volt, ratePerSec, false); err != nil {
			return err
		}
	}
	for _, ch := range d.channels {
		if err := ch.waitRampDone(ctx); err != nil {
			return err
		}
	}
	return nil
}

// askParsed sends a command and parses the echoed integer payload.
func (d *Device) askParsed(ctx context.Context, cmd string) (int64, error) {
	resp, err := d.Ask(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return parseEchoInt(resp)
}

// queryAddress reads count 32-bit words starting at addr. The DAC exposes
// its memory through an address pointer ("A<addr>;") and a peek command
// ("p;", or "e;" for the slot EEPROM).
func (d *Device) queryAddress(ctx context.Context, addr int64, count int, eeprom bool) (int64, error) {
	if count == 0 {
		return 0, nil
	}
	if err := checkAddr(addr); err != nil {
		return 0, err
	}
	peek := "p;"
	if eeprom {
		peek = "e;"
	}
	var val int64
	for i := 0; i < count; i++ {
		ret, err := d.askParsed(ctx, fmt.Sprintf("A%d;", addr))
		if err != nil {
			return 0, err
		}
		if ret != addr {
			return 0, fmt.Errorf("%w: failed to set address pointer to %d", ErrProtocol, addr)
		}
		word, err := d.askParsed(ctx, peek)
		if err != nil {
			return 0, err
		}
		val += word << (32 * (count - i - 1))
		addr++
	}
	return val, nil
}

// writeAddress writes a 32-bit value at addr and verifies it by reading it
// back.
func (d *Device) writeAddress(ctx context.Context, addr, val int64, eeprom bool) error {
	if err := checkAddr(addr); err != nil {
		return err
	}
	if val < 0 || val >= 1<<32 {
		return fmt.Errorf("%w: writing invalid value %d to address %d", ErrProtocol, val, addr)
	}
	peek, poke := "p;", "P"
	if eeprom {
		peek, poke = "e;", "E"
	}
	ret, err := d.askParsed(ctx, fmt.Sprintf("A%d;", addr))
	if err != nil {
		return err
	}
	if ret != addr {
		return fmt.Errorf("%w: failed to set address pointer to %d", ErrProtocol, addr)
	}
	if _, err := d.Ask(ctx, fmt.Sprintf("%s%d;", poke, val)); err != nil {
		return err
	}
	check, err := d.askParsed(ctx, peek)
	if err != nil {
		return err
	}
	if check != val {
		return fmt.Errorf("%w: failed to write value %d to address %d", ErrProtocol, val, addr)
	}
	return nil
}

// detectFeatures probes EEPROM presence, calibration support and the
// identity block.
func (d *Device) detectFeatures(ctx context.Context) error {
	logger := d.Logger()

	magic, err := d.queryAddress(ctx, addrEEPROMMagic, 1, false)
	if err == nil && magic == eepromMagicValue {
		d.eepromAvailable = true
	}

	if resp, err := d.Ask(ctx, "k;"); err == nil {
		if payload, perr := parseEcho(resp); perr == nil && payload != "" {
			d.calSupported = true
		}
	}

	if d.eepromAvailable {
		if d.version, err = d.queryAddress(ctx, addrVersion, 1, false); err != nil {
			return err
		}
		if d.serial, err = d.queryAddress(ctx, addrSerial, 1, false); err != nil {
			return err
		}
	}

	logger.Debug().
		Str(log.FieldEvent, "decadac.features").
		Bool("eeprom", d.eepromAvailable).
		Bool("calibration", d.calSupported).
		Int64("version", d.version).
		Int64("serial", d.serial).
		Msg("feature detection complete")
	return nil
}
