// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package decadac

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/qbridge/qbridge/internal/instrument"
	"github.com/qbridge/qbridge/internal/param"
	"github.com/qbridge/qbridge/internal/validate"
)

// Channel is a single DAC output.
//
// Channel registers, relative to the channel base address:
//
//	0: interrupt (update) period
//	4: DAC high limit
//	5: DAC low limit
//	6: slope (two words)
//	9: DAC value
type Channel struct {
	*instrument.Base

	slot  *Slot
	dev   *Device
	index int // 0..3 within the slot

	baseAddr int64
	minVal   float64
	maxVal   float64

	// Volt is the output voltage. Sets ramp when EnableRamp is on.
	Volt *param.Parameter
	// LowerLimit and UpperLimit bound hardware ramps. They are sweep
	// helpers, not safety limits.
	LowerLimit *param.Parameter
	UpperLimit *param.Parameter
	// UpdatePeriod is the DAC refresh interval in microseconds.
	UpdatePeriod *param.Parameter
	// Slope is the signed ramp slope register; zero means idle.
	Slope *param.Parameter
	// EnableRamp switches Volt sets from jumps to ramps at RampRate.
	EnableRamp *param.Parameter
	// RampRate is the ramp speed in V/s used when EnableRamp is set.
	RampRate *param.Parameter
}

func newChannel(slot *Slot, index int) *Channel {
	dev := slot.dev
	c := &Channel{
		Base:     slot.Child(fmt.Sprintf("ch%d", index)),
		slot:     slot,
		dev:      dev,
		index:    index,
		baseAddr: 1536 + int64(16*channelsPerSlot*slot.index) + int64(16*index),
		minVal:   dev.minVal,
		maxVal:   dev.maxVal,
	}

	globalIndex := slot.index*channelsPerSlot + index
	voltRange := validate.NumbersBetween(c.minVal, c.maxVal)

	c.Volt = c.AddParameter(param.New("volt", nil,
		param.WithLabel(fmt.Sprintf("channel %d", globalIndex)),
		param.WithUnit("V"),
		param.WithValues(voltRange),
		param.WithGetFunc(func(ctx context.Context) (any, error) {
			code, err := dev.queryAddress(ctx, c.baseAddr+9, 1, false)
			if err != nil {
				return nil, err
			}
			return codeToVolt(code, c.minVal, c.maxVal), nil
		}),
		param.WithSetFunc(c.setVolt),
	))

	c.LowerLimit = c.AddParameter(param.New("lower_ramp_limit", nil,
		param.WithLabel("Lower_Ramp_Limit"),
		param.WithUnit("V"),
		param.WithValues(voltRange),
		param.WithGetFunc(c.limitGetter(c.baseAddr+5)),
		param.WithSetFunc(c.limitSetter("L%d;")),
	))

	c.UpperLimit = c.AddParameter(param.New("upper_ramp_limit", nil,
		param.WithLabel("Upper_Ramp_Limit"),
		param.WithUnit("V"),
		param.WithValues(voltRange),
		param.WithGetFunc(c.limitGetter(c.baseAddr+4)),
		param.WithSetFunc(c.limitSetter("U%d;")),
	))

	c.UpdatePeriod = c.AddParameter(param.New("update_period", nil,
		param.WithLabel("Update_Period"),
		param.WithUnit("us"),
		param.WithValues(validate.IntsBetween(50, 65535)),
		param.WithGetFunc(func(ctx context.Context) (any, error) {
			n, err := dev.queryAddress(ctx, c.baseAddr, 1, false)
			if err != nil {
				return nil, err
			}
			return n, nil
		}),
		param.WithSetFunc(func(ctx context.Context, v any) error {
			_, err := c.ask(ctx, fmt.Sprintf("T%v;", v))
			return err
		}),
	))

	c.Slope = c.AddParameter(param.New("slope", nil,
		param.WithLabel("Ramp_Slope"),
		param.WithValues(validate.IntsBetween(-(1<<32), 1<<32)),
		param.WithGetFunc(func(ctx context.Context) (any, error) {
			n, err := dev.queryAddress(ctx, c.baseAddr+6, 2, false)
			if err != nil {
				return nil, err
			}
			return n, nil
		}),
		param.WithSetFunc(func(ctx context.Context, v any) error {
			_, err := c.ask(ctx, fmt.Sprintf("S%v;", v))
			return err
		}),
	))

	c.EnableRamp = c.AddParameter(param.New("enable_ramp", nil,
		param.Manual(false),
		param.WithValues(validate.Bools{}),
	))

	c.RampRate = c.AddParameter(param.New("ramp_rate", nil,
		param.Manual(0.1),
		param.WithUnit("V/s"),
		param.WithValues(validate.NumbersBetween(0, 10)),
	))

	return c
}

func (c *Channel) limitGetter(addr int64) param.GetFunc {
	return func(ctx context.Context) (any, error) {
		code, err := c.dev.queryAddress(ctx, addr, 1, false)
		if err != nil {
			return nil, err
		}
		return codeToVolt(code, c.minVal, c.maxVal), nil
	}
}

func (c *Channel) limitSetter(template string) param.SetFunc {
	return func(ctx context.Context, v any) error {
		volt, ok := asFloat(v)
		if !ok {
			return fmt.Errorf("expected a voltage, got %T", v)
		}
		code, err := voltToCode(volt, c.minVal, c.maxVal)
		if err != nil {
			return err
		}
		_, err = c.ask(ctx, fmt.Sprintf(template, code))
		return err
	}
}

// selectChannel targets this channel and verifies the echoed selection.
func (c *Channel) selectChannel(ctx context.Context) error {
	cmd := fmt.Sprintf("B%d;C%d;", c.slot.index, c.index)
	resp, err := c.dev.Ask(ctx, cmd)
	if err != nil {
		return err
	}
	want := fmt.Sprintf("B%d!C%d!", c.slot.index, c.index)
	if resp != want {
		return fmt.Errorf("%w: unexpected return when selecting channel: %q", ErrProtocol, resp)
	}
	return nil
}

// ask selects the channel before issuing a channel-scoped command.
func (c *Channel) ask(ctx context.Context, cmd string) (string, error) {
	if err := c.selectChannel(ctx); err != nil {
		return "", err
	}
	return c.dev.Ask(ctx, cmd)
}

// setVolt jumps or ramps depending on EnableRamp.
func (c *Channel) setVolt(ctx context.Context, v any) error {
	volt, ok := asFloat(v)
	if !ok {
		return fmt.Errorf("expected a voltage, got %T", v)
	}

	enabled, err := c.EnableRamp.Get(ctx)
	if err != nil {
		return err
	}
	if enabled == true {
		rv, err := c.RampRate.Get(ctx)
		if err != nil {
			return err
		}
		rate, _ := asFloat(rv)
		return c.Ramp(ctx, volt, rate, true)
	}

	code, err := voltToCode(volt, c.minVal, c.maxVal)
	if err != nil {
		return err
	}
	// Open the hardware limits before the jump, otherwise a stale ramp
	// limit clips the target.
	_, err = c.ask(ctx, fmt.Sprintf("U%d;L0;D%d;", codeSteps, code))
	return err
}

// Ramp sweeps the channel to target at ratePerSec (V/s) using the hardware
// slope register. With block set, it polls the slope until the ramp ends or
// ctx is cancelled.
func (c *Channel) Ramp(ctx context.Context, target, ratePerSec float64, block bool) error {
	cv, err := c.Volt.Get(ctx)
	if err != nil {
		return err
	}
	current, _ := asFloat(cv)
	if current == target {
		return nil
	}

	curCode, err := voltToCode(current, c.minVal, c.maxVal)
	if err != nil {
		return err
	}
	endCode, err := voltToCode(target, c.minVal, c.maxVal)
	if err != nil {
		return err
	}

	pv, err := c.UpdatePeriod.Get(ctx)
	if err != nil {
		return err
	}
	period, _ := asFloat(pv)
	updatesPerSec := 1 / (period * 1e-6)
	seconds := math.Abs((current - target) / ratePerSec)

	// DAC steps per update tick, scaled by 2^16 for the fractional slope
	// register.
	slope := int64(float64(endCode-curCode) / (updatesPerSec * seconds) * 65536)

	if slope > 0 {
		if err := c.UpperLimit.Set(ctx, target); err != nil {
			return err
		}
	} else {
		if err := c.LowerLimit.Set(ctx, target); err != nil {
			return err
		}
	}
	if err := c.Slope.Set(ctx, slope); err != nil {
		return err
	}

	if block {
		return c.waitRampDone(ctx)
	}
	return nil
}

// waitRampDone polls the slope register until the hardware clears it.
func (c *Channel) waitRampDone(ctx context.Context) error {
	ticker := time.NewTicker(c.dev.rampPoll)
	defer ticker.Stop()
	for {
		sv, err := c.Slope.Get(ctx)
		if err != nil {
			return err
		}
		if s, _ := sv.(int64); s == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
