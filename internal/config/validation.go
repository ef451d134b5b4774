// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/qbridge/qbridge/internal/station"
)

var validReadingsBackends = map[string]bool{
	"":       true,
	"memory": true,
	"sqlite": true,
	"badger": true,
}

var validCacheBackends = map[string]bool{
	"":       true,
	"memory": true,
	"redis":  true,
	"off":    true,
}

// Validate rejects configurations that cannot run. It is called on every
// load and on every hot reload; a config that fails here never replaces a
// working one.
func Validate(cfg AppConfig) error {
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if cfg.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate_limit_per_minute must not be negative, got %d", cfg.RateLimitPerMinute)
	}
	if !validReadingsBackends[cfg.ReadingsBackend] {
		return fmt.Errorf("unknown readings backend %q (valid: memory, sqlite, badger)", cfg.ReadingsBackend)
	}
	if (cfg.ReadingsBackend == "sqlite" || cfg.ReadingsBackend == "badger") &&
		strings.TrimSpace(cfg.ReadingsPath) == "" && strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("readings backend %q requires readings_path or data_dir", cfg.ReadingsBackend)
	}
	if !validCacheBackends[cfg.Cache.Backend] {
		return fmt.Errorf("unknown cache backend %q (valid: memory, redis, off)", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == "redis" && strings.TrimSpace(cfg.Cache.Addr) == "" {
		return fmt.Errorf("cache backend redis requires an addr")
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry sampling rate must be within [0, 1], got %g", cfg.Telemetry.SamplingRate)
	}
	if cfg.Monitor.Interval < 0 {
		return fmt.Errorf("monitor interval must not be negative")
	}
	if cfg.Monitor.Interval > 0 && cfg.Monitor.Interval < 100*time.Millisecond {
		return fmt.Errorf("monitor interval %s is below the 100ms minimum", cfg.Monitor.Interval)
	}

	known := make(map[string]bool, len(cfg.Instruments))
	for i, inst := range cfg.Instruments {
		if strings.TrimSpace(inst.Name) == "" {
			return fmt.Errorf("instrument %d: name must not be empty", i)
		}
		if strings.TrimSpace(inst.Driver) == "" {
			return fmt.Errorf("instrument %q: driver must not be empty", inst.Name)
		}
		if strings.TrimSpace(inst.Address) == "" {
			return fmt.Errorf("instrument %q: address must not be empty", inst.Name)
		}
		known[station.NormalizeName(inst.Name)] = true
	}

	for _, path := range cfg.Monitor.Paths {
		inst, rest, found := strings.Cut(path, ".")
		if !found || rest == "" {
			return fmt.Errorf("monitor path %q is not of the form instrument.parameter", path)
		}
		if !known[station.NormalizeName(inst)] {
			return fmt.Errorf("monitor path %q names unknown instrument %q", path, inst)
		}
	}
	return nil
}
