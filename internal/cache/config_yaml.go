// SPDX-License-Identifier: MIT

package cache

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML accepts human-readable TTLs ("30s"). Absent fields keep
// their current (default) values.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Backend  string `yaml:"backend"`
		TTL      string `yaml:"ttl"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       *int   `yaml:"db"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if raw.Backend != "" {
		c.Backend = raw.Backend
	}
	if raw.Addr != "" {
		c.Addr = raw.Addr
	}
	if raw.Password != "" {
		c.Password = raw.Password
	}
	if raw.DB != nil {
		c.DB = *raw.DB
	}
	if raw.TTL != "" {
		d, err := time.ParseDuration(raw.TTL)
		if err != nil {
			return fmt.Errorf("cache ttl: %w", err)
		}
		c.TTL = d
	}
	return nil
}
