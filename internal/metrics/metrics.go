// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus collectors for instrument traffic,
// polling and storage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Instrument command metrics
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qbridge_instrument_commands_total",
		Help: "Instrument commands issued by instrument and outcome",
	}, []string{"instrument", "outcome"}) // outcome=success|failure|rejected

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qbridge_instrument_command_duration_seconds",
		Help:    "Round-trip latency of instrument commands",
		Buckets: prometheus.DefBuckets,
	}, []string{"instrument"})

	instrumentsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qbridge_instruments_connected",
		Help: "Number of instruments currently connected",
	})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "qbridge_circuit_breaker_state",
		Help: "Circuit breaker state per instrument (0=closed, 1=open, 2=half-open)",
	}, []string{"instrument"})

	// Parameter metrics
	parameterValue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "qbridge_parameter_value",
		Help: "Last polled numeric value per parameter path",
	}, []string{"parameter", "unit"})

	parameterSetTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qbridge_parameter_set_total",
		Help: "Parameter writes by outcome",
	}, []string{"parameter", "outcome"}) // outcome=success|validation|failure

	// Poll metrics
	pollRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qbridge_poll_runs_total",
		Help: "Poll cycles by outcome",
	}, []string{"outcome"}) // outcome=success|partial|failure|skipped

	pollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "qbridge_poll_duration_seconds",
		Help:    "Duration of a full poll cycle",
		Buckets: prometheus.DefBuckets,
	})

	pollReadings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qbridge_poll_readings",
		Help: "Readings recorded in the last poll cycle",
	})

	// Storage metrics
	readingsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qbridge_readings_written_total",
		Help: "Readings appended to the store by backend",
	}, []string{"backend"})

	readingsErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qbridge_readings_errors_total",
		Help: "Reading store failures by backend",
	}, []string{"backend"})

	// Cache metrics
	cacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qbridge_cache_operations_total",
		Help: "Latest-value cache operations by backend, op and outcome",
	}, []string{"backend", "op", "outcome"}) // op=get|set outcome=hit|miss|ok|error
)

const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

func IncCommand(instrument, outcome string) {
	commandsTotal.WithLabelValues(instrument, outcome).Inc()
}

func ObserveCommandDuration(instrument string, seconds float64) {
	commandDuration.WithLabelValues(instrument).Observe(seconds)
}

func SetInstrumentsConnected(n int) { instrumentsConnected.Set(float64(n)) }

// SetCircuitBreakerState records the breaker state for an instrument.
// Accepted labels: "closed", "open", "half-open".
func SetCircuitBreakerState(instrument, state string) {
	var v float64
	switch state {
	case "open":
		v = 1
	case "half-open":
		v = 2
	}
	circuitBreakerState.WithLabelValues(instrument).Set(v)
}

func RecordParameterValue(parameter, unit string, v float64) {
	parameterValue.WithLabelValues(parameter, unit).Set(v)
}

func IncParameterSet(parameter, outcome string) {
	parameterSetTotal.WithLabelValues(parameter, outcome).Inc()
}

func IncPollRun(outcome string)              { pollRunsTotal.WithLabelValues(outcome).Inc() }
func ObservePollDuration(seconds float64)    { pollDuration.Observe(seconds) }
func RecordPollReadings(n int)               { pollReadings.Set(float64(n)) }
func IncReadingsWritten(backend string)      { readingsWritten.WithLabelValues(backend).Inc() }
func IncReadingsError(backend string)        { readingsErrors.WithLabelValues(backend).Inc() }
func IncCacheOp(backend, op, outcome string) { cacheOps.WithLabelValues(backend, op, outcome).Inc() }
