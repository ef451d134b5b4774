// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package monitor

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts human-readable durations ("30s", "1m") for the
// interval fields. Absent fields keep their current (default) values.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Paths        []string `yaml:"paths"`
		Interval     string   `yaml:"interval"`
		SnapshotPath string   `yaml:"snapshot_path"`
		CacheTTL     string   `yaml:"cache_ttl"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Paths != nil {
		c.Paths = raw.Paths
	}
	if raw.SnapshotPath != "" {
		c.SnapshotPath = raw.SnapshotPath
	}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("monitor interval: %w", err)
		}
		c.Interval = d
	}
	if raw.CacheTTL != "" {
		d, err := time.ParseDuration(raw.CacheTTL)
		if err != nil {
			return fmt.Errorf("monitor cache_ttl: %w", err)
		}
		c.CacheTTL = d
	}
	return nil
}
