// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package logscan parses structured JSON log output back into records for
// offline analysis: filtering by component or event, and measuring the time
// between correlated entries (e.g. command sent vs. response parsed).
package logscan

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Record is one parsed log line. Well-known zerolog fields are lifted into
// struct fields; everything else stays in Fields.
type Record struct {
	Time      time.Time
	Level     string
	Service   string
	Component string
	Event     string
	Message   string
	Fields    map[string]any
}

var wellKnown = map[string]bool{
	"time":      true,
	"level":     true,
	"service":   true,
	"component": true,
	"event":     true,
	"message":   true,
}

// Parse reads JSON log lines from r. Lines that are not valid JSON objects
// are skipped: production logs can interleave panic traces and other
// free-form output.
func Parse(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			continue
		}
		out = append(out, toRecord(raw))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("logscan: read: %w", err)
	}
	return out, nil
}

// ParseFile reads a log file produced by the daemon.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logscan: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file
	return Parse(f)
}

func toRecord(raw map[string]any) Record {
	rec := Record{Fields: make(map[string]any)}
	if s, ok := raw["time"].(string); ok {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			rec.Time = ts
		}
	}
	rec.Level, _ = raw["level"].(string)
	rec.Service, _ = raw["service"].(string)
	rec.Component, _ = raw["component"].(string)
	rec.Event, _ = raw["event"].(string)
	rec.Message, _ = raw["message"].(string)
	for k, v := range raw {
		if !wellKnown[k] {
			rec.Fields[k] = v
		}
	}
	return rec
}

// Filter returns the records matching all non-empty criteria.
type Filter struct {
	Level     string
	Component string
	Event     string
}

// Select applies f to recs.
func (f Filter) Select(recs []Record) []Record {
	var out []Record
	for _, r := range recs {
		if f.Level != "" && r.Level != f.Level {
			continue
		}
		if f.Component != "" && r.Component != f.Component {
			continue
		}
		if f.Event != "" && r.Event != f.Event {
			continue
		}
		out = append(out, r)
	}
	return out
}

// TimeDifference pairs two record slices index-by-index and returns the
// elapsed time from first to second in seconds. Both slices must have the
// same length.
func TimeDifference(first, second []Record) ([]float64, error) {
	if len(first) != len(second) {
		return nil, fmt.Errorf("logscan: mismatched record counts: %d vs %d", len(first), len(second))
	}
	out := make([]float64, len(first))
	for i := range first {
		out[i] = second[i].Time.Sub(first[i].Time).Seconds()
	}
	return out, nil
}
