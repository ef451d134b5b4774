// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/qbridge/qbridge/internal/instrument"
	"github.com/qbridge/qbridge/internal/monitor"
	"github.com/qbridge/qbridge/internal/param"
	"github.com/qbridge/qbridge/internal/readings"
	"github.com/qbridge/qbridge/internal/station"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

// respondError maps domain errors onto HTTP statuses: unknown targets are
// 404, rejected values 422, an open breaker 503, a busy monitor 409 and
// everything else a 502 (the instrument, not the gateway, failed).
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, station.ErrUnknownInstrument),
		errors.Is(err, station.ErrUnknownParameter),
		errors.Is(err, readings.ErrNoReadings):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, param.ErrInvalidValue),
		errors.Is(err, param.ErrNotSettable),
		errors.Is(err, param.ErrNotGettable):
		writeError(w, http.StatusUnprocessableEntity, "invalid_value", err.Error())
	case errors.Is(err, instrument.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, "circuit_open", err.Error())
	case errors.Is(err, monitor.ErrPollRunning):
		writeError(w, http.StatusConflict, "poll_running", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "instrument_error", err.Error())
	}
}
