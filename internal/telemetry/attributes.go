// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys so spans stay queryable across the codebase.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Instrument attributes
	InstrumentNameKey    = "instrument.name"
	InstrumentDriverKey  = "instrument.driver"
	InstrumentAddressKey = "instrument.address"

	// Parameter attributes
	ParameterPathKey   = "parameter.path"
	ParameterUnitKey   = "parameter.unit"
	ParameterCachedKey = "parameter.cached"

	// Poll attributes
	PollIDKey       = "poll.id"
	PollReadingsKey = "poll.readings"
	PollDurationKey = "poll.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// InstrumentAttributes creates instrument-related span attributes. Empty
// fields are omitted.
func InstrumentAttributes(name, driver, address string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if name != "" {
		attrs = append(attrs, attribute.String(InstrumentNameKey, name))
	}
	if driver != "" {
		attrs = append(attrs, attribute.String(InstrumentDriverKey, driver))
	}
	if address != "" {
		attrs = append(attrs, attribute.String(InstrumentAddressKey, address))
	}
	return attrs
}

// ParameterAttributes creates parameter-related span attributes.
func ParameterAttributes(path, unit string, cached bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ParameterPathKey, path),
		attribute.String(ParameterUnitKey, unit),
		attribute.Bool(ParameterCachedKey, cached),
	}
}

// PollAttributes creates poll-cycle span attributes.
func PollAttributes(pollID string, readings int, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PollIDKey, pollID),
		attribute.Int(PollReadingsKey, readings),
		attribute.Int64(PollDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
