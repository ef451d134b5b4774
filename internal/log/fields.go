// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID     = "request_id"
	FieldCorrelationID = "correlation_id"
	FieldPollID        = "poll_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Instrument fields
	FieldInstrument = "instrument"
	FieldDriver     = "driver"
	FieldAddress    = "address"
	FieldParameter  = "parameter"
	FieldCommand    = "command"
	FieldChannel    = "channel"
	FieldUnit       = "unit"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// Path fields
	FieldPath = "path"
)
