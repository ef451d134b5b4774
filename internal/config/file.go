// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/qbridge/qbridge/internal/log"
)

// Deprecation describes a renamed configuration key.
type Deprecation struct {
	OldField        string
	NewField        string
	DeprecatedSince string
	RemovalVersion  string
	// apply migrates the old key's value into the new location.
	apply func(cfg *AppConfig, value any)
}

// deprecationRegistry maps old top-level YAML keys to their replacements.
// Old keys still work (with a warning) until their removal version.
var deprecationRegistry = map[string]Deprecation{
	"snapshot_file": {
		OldField:        "snapshot_file",
		NewField:        "monitor.snapshot_path",
		DeprecatedSince: "v0.3.0",
		RemovalVersion:  "v1.0.0",
		apply: func(cfg *AppConfig, value any) {
			if s, ok := value.(string); ok {
				cfg.Monitor.SnapshotPath = s
			}
		},
	},
	"poll_interval": {
		OldField:        "poll_interval",
		DeprecatedSince: "v0.3.0",
		NewField:        "monitor.interval",
		RemovalVersion:  "v1.0.0",
		apply: func(cfg *AppConfig, value any) {
			if s, ok := value.(string); ok {
				if d, err := time.ParseDuration(s); err == nil {
					cfg.Monitor.Interval = d
				}
			}
		},
	},
}

// applyFile overlays the YAML file at path on cfg. Deprecated keys are
// migrated with a warning; unknown keys are rejected so typos fail loudly
// instead of being silently ignored.
func applyFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	logger := log.WithComponent("config")
	for key, value := range raw {
		dep, found := deprecationRegistry[key]
		if !found {
			continue
		}
		logger.Warn().
			Str("old_field", dep.OldField).
			Str("new_field", dep.NewField).
			Str("deprecated_since", dep.DeprecatedSince).
			Str("removal_version", dep.RemovalVersion).
			Msgf("deprecated configuration field %q, use %q instead (removed in %s)",
				dep.OldField, dep.NewField, dep.RemovalVersion)
		dep.apply(cfg, value)
		delete(raw, key)
	}

	// Re-encode the remaining keys and decode strictly into the config.
	cleaned, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("reencode config: %w", err)
	}
	if err := strictDecode(cleaned, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func strictDecode(data []byte, cfg *AppConfig) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
