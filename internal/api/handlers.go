// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/qbridge/qbridge/internal/log"
	"github.com/qbridge/qbridge/internal/metrics"
	"github.com/qbridge/qbridge/internal/monitor"
	"github.com/qbridge/qbridge/internal/station"
	"github.com/qbridge/qbridge/internal/version"
)

type instrumentInfo struct {
	Name       string `json:"name"`
	Driver     string `json:"driver,omitempty"`
	Address    string `json:"address,omitempty"`
	Parameters int    `json:"parameters"`
	Submodules int    `json:"submodules"`
}

// handleInstruments lists the configured instruments.
func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	insts := s.st.Instruments()
	out := make([]instrumentInfo, 0, len(insts))
	for _, inst := range insts {
		info := instrumentInfo{
			Name:       inst.Name(),
			Parameters: len(inst.Parameters()),
			Submodules: len(inst.Submodules()),
		}
		if cfg, ok := s.instrumentConfig(inst.Name()); ok {
			info.Driver = cfg.Driver
			info.Address = cfg.Address
		}
		out = append(out, info)
	}
	writeJSON(w, http.StatusOK, out)
}

type instrumentDetail struct {
	instrumentInfo
	Snapshot any `json:"snapshot"`
}

// handleInstrument returns the full cached tree of one instrument.
func (s *Server) handleInstrument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	inst, ok := s.st.Instrument(name)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown instrument "+name)
		return
	}
	detail := instrumentDetail{
		instrumentInfo: instrumentInfo{
			Name:       inst.Name(),
			Parameters: len(inst.Parameters()),
			Submodules: len(inst.Submodules()),
		},
		Snapshot: inst.Snapshot(),
	}
	if cfg, ok := s.instrumentConfig(inst.Name()); ok {
		detail.Driver = cfg.Driver
		detail.Address = cfg.Address
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) instrumentConfig(name string) (station.InstrumentConfig, bool) {
	for _, cfg := range s.cfg.Instruments {
		if station.NormalizeName(cfg.Name) == name {
			return cfg, true
		}
	}
	return station.InstrumentConfig{}, false
}

type parameterResponse struct {
	Path   string `json:"path"`
	Value  any    `json:"value"`
	Unit   string `json:"unit,omitempty"`
	Cached bool   `json:"cached"`
}

// handleGetParameter reads a parameter. With ?cached=1 a fresh cache entry
// (usually written by the poll loop) is served without touching the
// hardware.
func (s *Server) handleGetParameter(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")

	if wantCached(r) {
		if v, ok := s.cache.Get(path); ok {
			writeJSON(w, http.StatusOK, parameterResponse{Path: path, Value: v, Cached: true})
			return
		}
	}

	p, err := s.st.Resolve(path)
	if err != nil {
		respondError(w, err)
		return
	}
	v, err := p.Get(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	s.cache.Set(path, v, s.cfg.Cache.TTL)
	writeJSON(w, http.StatusOK, parameterResponse{Path: path, Value: v, Unit: p.Unit()})
}

func wantCached(r *http.Request) bool {
	switch r.URL.Query().Get("cached") {
	case "1", "true", "yes":
		return true
	}
	return false
}

type setRequest struct {
	Value any `json:"value"`
}

// handleSetParameter writes a parameter value.
func (s *Server) handleSetParameter(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")

	var req setRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return
	}

	p, err := s.st.Resolve(path)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := p.Set(r.Context(), req.Value); err != nil {
		metrics.IncParameterSet(path, metrics.OutcomeRejected)
		respondError(w, err)
		return
	}
	metrics.IncParameterSet(path, metrics.OutcomeSuccess)

	logger := log.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(log.FieldEvent, "parameter.set").
		Str(log.FieldParameter, path).
		Interface("value", req.Value).
		Msg("parameter written")

	s.cache.Set(path, req.Value, s.cfg.Cache.TTL)
	writeJSON(w, http.StatusOK, parameterResponse{Path: path, Value: req.Value, Unit: p.Unit()})
}

// handleReadings returns the stored time series for a parameter. The range
// defaults to the last hour.
func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "path")

	now := time.Now().UTC()
	from := now.Add(-time.Hour)
	to := now
	if q := r.URL.Query().Get("from"); q != "" {
		t, err := time.Parse(time.RFC3339, q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid 'from' timestamp: "+err.Error())
			return
		}
		from = t
	}
	if q := r.URL.Query().Get("to"); q != "" {
		t, err := time.Parse(time.RFC3339, q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid 'to' timestamp: "+err.Error())
			return
		}
		to = t
	}

	rows, err := s.store.Range(r.Context(), path, from, to)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

type statusResponse struct {
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Instruments   int            `json:"instruments"`
	LastPoll      monitor.Status `json:"last_poll"`
}

// handleStatus reports daemon identity, uptime and the last poll outcome.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Version:       version.Version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Instruments:   len(s.st.Instruments()),
	}
	if s.mon != nil {
		resp.LastPoll = s.mon.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePoll triggers one poll cycle. Overlapping requests get a 409.
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if s.mon == nil {
		writeError(w, http.StatusNotFound, "not_found", "monitoring is not configured")
		return
	}
	status, err := s.mon.Poll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
