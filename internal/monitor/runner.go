// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package monitor

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/qbridge/qbridge/internal/log"
)

// Runner drives the monitor on a fixed interval until its context ends.
type Runner struct {
	mon      *Monitor
	interval time.Duration
	logger   zerolog.Logger
}

// NewRunner creates a runner. A non-positive interval defaults to one
// minute.
func NewRunner(mon *Monitor, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		mon:      mon,
		interval: interval,
		logger:   log.Derive(func(c *zerolog.Context) { *c = c.Str(log.FieldComponent, "monitor") }),
	}
}

// Run polls once immediately, then on every tick. Poll failures are logged
// and retried on the next tick; only ctx cancellation stops the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.poll(ctx)

	timer := time.NewTimer(r.next())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			r.poll(ctx)
			timer.Reset(r.next())
		}
	}
}

// next returns the interval stretched by up to 10% random jitter so
// several gateways polling the same rack do not fire in lockstep.
func (r *Runner) next() time.Duration {
	if span := int64(r.interval) / 10; span > 0 {
		return r.interval + time.Duration(rand.Int64N(span))
	}
	return r.interval
}

func (r *Runner) poll(ctx context.Context) {
	if _, err := r.mon.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Warn().
			Err(err).
			Str(log.FieldEvent, "poll.failed").
			Msg("poll cycle reported errors")
	}
}
