// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package instrument

import (
	"sync"
	"time"

	"github.com/qbridge/qbridge/internal/metrics"
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = iota // Normal operation, commands allowed
	StateOpen                  // Circuit open, commands blocked
	StateHalfOpen              // Testing if the instrument recovered
)

func stateLabel(s State) string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker blocks commands to an instrument that keeps failing, so a dead
// serial bridge does not stall every poll cycle.
type Breaker struct {
	mu               sync.Mutex
	instrument       string
	state            State
	failures         int
	failureThreshold int
	resetTimeout     time.Duration
	lastFailure      time.Time
}

// NewBreaker creates a breaker for the named instrument.
func NewBreaker(instrument string, threshold int, resetTimeout time.Duration) *Breaker {
	b := &Breaker{
		instrument:       instrument,
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     resetTimeout,
	}
	metrics.SetCircuitBreakerState(instrument, stateLabel(b.state))
	return b
}

// Execute runs fn if the circuit is closed or half-open.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	if err := fn(); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	switch b.state {
	case StateClosed:
		b.mu.Unlock()
		return true
	case StateOpen:
		if time.Since(b.lastFailure) > b.resetTimeout {
			b.transitionLocked(StateHalfOpen)
			b.mu.Unlock()
			return true
		}
		b.mu.Unlock()
		return false
	default: // StateHalfOpen: allow a probe command
		b.mu.Unlock()
		return true
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	b.failures++
	b.lastFailure = time.Now()
	if b.state == StateHalfOpen || b.failures >= b.failureThreshold {
		b.transitionLocked(StateOpen)
	}
	b.mu.Unlock()
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	b.failures = 0
	if b.state != StateClosed {
		b.transitionLocked(StateClosed)
	}
	b.mu.Unlock()
}

func (b *Breaker) transitionLocked(next State) {
	if b.state == next {
		return
	}
	b.state = next
	metrics.SetCircuitBreakerState(b.instrument, stateLabel(next))
}
