// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package cryomag drives a cryostat magnet power supply. The supply speaks
// a line protocol where every set command is acknowledged by echoing the
// command back. Field changes go through a superconducting persistent
// switch: the switch heater must be on and warmed through before the
// output may move.
package cryomag

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/qbridge/qbridge/internal/instrument"
	"github.com/qbridge/qbridge/internal/log"
	"github.com/qbridge/qbridge/internal/param"
	"github.com/qbridge/qbridge/internal/validate"
)

var (
	// ErrProtocol reports an unexpected response from the supply.
	ErrProtocol = errors.New("cryomag: protocol error")
	// ErrHeaterOff reports a field change attempted with the persistent
	// switch heater off.
	ErrHeaterOff = errors.New("cryomag: persistent switch heater is off")
	// ErrHeaterSettling reports a field change attempted before the switch
	// heater settle time has elapsed.
	ErrHeaterSettling = errors.New("cryomag: persistent switch heater is still settling")
)

// Sensor names accepted by the TEMP? query.
const (
	sensorMagnet = "MAG"
	sensorPT1    = "PT1"
	sensorPT2    = "PT2"
)

// Device is the magnet power supply.
type Device struct {
	*instrument.Base

	settle   time.Duration
	maxField float64

	mu         sync.Mutex
	heaterOn   bool
	switchedAt time.Time

	// HeaterSwitch controls the persistent switch heater (val-mapped bool).
	HeaterSwitch *param.Parameter
	// MagnetTemp, PT1Temp and PT2Temp read the cryostat temperature
	// sensors in kelvin.
	MagnetTemp *param.Parameter
	PT1Temp    *param.Parameter
	PT2Temp    *param.Parameter
	// OutputField is the magnet field in tesla. Settable only while the
	// heater is on and settled.
	OutputField *param.Parameter
}

// Option configures the driver.
type Option func(*Device)

// WithSettle sets how long the switch heater needs after turning on before
// field changes are allowed. Default 30s.
func WithSettle(d time.Duration) Option {
	return func(dev *Device) { dev.settle = d }
}

// WithMaxField bounds the output field magnitude in tesla. Default 8 T.
func WithMaxField(t float64) Option {
	return func(dev *Device) { dev.maxField = t }
}

// New creates the driver on an already constructed base.
func New(base *instrument.Base, opts ...Option) *Device {
	d := &Device{
		Base:     base,
		settle:   30 * time.Second,
		maxField: 8,
	}
	for _, opt := range opts {
		opt(d)
	}

	heaterMap := param.MustValueMap(map[any]string{true: "ON", false: "OFF"})

	d.HeaterSwitch = d.AddParameter(param.New("heater_switch", nil,
		param.WithLabel("Persistent switch heater"),
		param.WithValues(validate.Bools{}),
		param.WithGetFunc(func(ctx context.Context) (any, error) {
			payload, err := d.askPrefixed(ctx, "HEATER?", "HEATER:")
			if err != nil {
				return nil, err
			}
			on, err := heaterMap.FromWire(payload)
			if err != nil {
				return nil, err
			}
			d.mu.Lock()
			d.heaterOn = on == true
			d.mu.Unlock()
			return on, nil
		}),
		param.WithSetFunc(func(ctx context.Context, v any) error {
			wire, err := heaterMap.ToWire(v)
			if err != nil {
				return err
			}
			if err := d.command(ctx, "HEATER:"+wire); err != nil {
				return err
			}
			d.mu.Lock()
			was := d.heaterOn
			d.heaterOn = v == true
			d.switchedAt = time.Now()
			d.mu.Unlock()
			if was != (v == true) {
				logger := d.Logger()
				logger.Info().
					Str(log.FieldEvent, "cryomag.heater").
					Bool("on", v == true).
					Dur("settle", d.settle).
					Msg("persistent switch heater toggled")
			}
			return nil
		}),
	))

	d.MagnetTemp = d.addTempParam("magnet_temp", "Magnet temperature", sensorMagnet)
	d.PT1Temp = d.addTempParam("pt1_temp", "PT1 stage temperature", sensorPT1)
	d.PT2Temp = d.addTempParam("pt2_temp", "PT2 stage temperature", sensorPT2)

	d.OutputField = d.AddParameter(param.New("output_field", nil,
		param.WithLabel("Output field"),
		param.WithUnit("T"),
		param.WithValues(validate.NumbersBetween(-d.maxField, d.maxField)),
		param.WithGetFunc(func(ctx context.Context) (any, error) {
			payload, err := d.askPrefixed(ctx, "FIELD?", "FIELD:")
			if err != nil {
				return nil, err
			}
			payload = strings.TrimSuffix(payload, "T")
			f, err := strconv.ParseFloat(payload, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad field reading %q", ErrProtocol, payload)
			}
			return f, nil
		}),
		param.WithSetFunc(func(ctx context.Context, v any) error {
			if err := d.requireHeaterSettled(); err != nil {
				return err
			}
			f, ok := v.(float64)
			if !ok {
				if i, iok := v.(int); iok {
					f = float64(i)
				} else {
					return fmt.Errorf("expected a field in tesla, got %T", v)
				}
			}
			return d.command(ctx, fmt.Sprintf("FIELD:%g", f))
		}),
	))

	return d
}

func (d *Device) addTempParam(name, label, sensor string) *param.Parameter {
	return d.AddParameter(param.New(name, nil,
		param.WithLabel(label),
		param.WithUnit("K"),
		param.WithGetFunc(func(ctx context.Context) (any, error) {
			payload, err := d.askPrefixed(ctx, "TEMP? "+sensor, "TEMP:")
			if err != nil {
				return nil, err
			}
			payload = strings.TrimSuffix(payload, "K")
			f, err := strconv.ParseFloat(payload, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: sensor %s: bad reading %q", ErrProtocol, sensor, payload)
			}
			return f, nil
		}),
	))
}

// Connect reads the identity and seeds the heater state.
func (d *Device) Connect(ctx context.Context) error {
	if err := d.Flush(); err != nil {
		return fmt.Errorf("cryomag: flush: %w", err)
	}
	idn, err := d.IDN(ctx)
	if err != nil {
		return fmt.Errorf("cryomag: identity: %w", err)
	}
	// Seed the cached heater state; an already-on heater counts as settled.
	if _, err := d.HeaterSwitch.Get(ctx); err != nil {
		return fmt.Errorf("cryomag: heater state: %w", err)
	}
	d.LogConnectMessage(idn)
	return nil
}

// HeaterSettled reports whether field changes are currently allowed.
func (d *Device) HeaterSettled() bool {
	return d.requireHeaterSettled() == nil
}

func (d *Device) requireHeaterSettled() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.heaterOn {
		return ErrHeaterOff
	}
	if !d.switchedAt.IsZero() {
		if remaining := d.settle - time.Since(d.switchedAt); remaining > 0 {
			return fmt.Errorf("%w: %s remaining", ErrHeaterSettling, remaining.Round(time.Millisecond))
		}
	}
	return nil
}

// askPrefixed sends a query and strips the expected response prefix.
func (d *Device) askPrefixed(ctx context.Context, cmd, prefix string) (string, error) {
	resp, err := d.Ask(ctx, cmd)
	if err != nil {
		return "", err
	}
	resp = strings.TrimSpace(resp)
	if !strings.HasPrefix(resp, prefix) {
		return "", fmt.Errorf("%w: response %q to %q lacks prefix %q", ErrProtocol, resp, cmd, prefix)
	}
	return resp[len(prefix):], nil
}

// command sends a set command and verifies the echoed acknowledgment.
func (d *Device) command(ctx context.Context, cmd string) error {
	resp, err := d.Ask(ctx, cmd)
	if err != nil {
		return err
	}
	if strings.TrimSpace(resp) != cmd {
		return fmt.Errorf("%w: command %q not acknowledged: %q", ErrProtocol, cmd, resp)
	}
	return nil
}
