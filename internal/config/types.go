// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads and validates the daemon configuration. Precedence:
// environment variables override the YAML file, which overrides built-in
// defaults.
package config

import (
	"time"

	"github.com/qbridge/qbridge/internal/cache"
	"github.com/qbridge/qbridge/internal/monitor"
	"github.com/qbridge/qbridge/internal/station"
)

// AppConfig is the full daemon configuration.
type AppConfig struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// APIToken guards mutating API routes. Empty disables them.
	APIToken string `yaml:"api_token"`
	// TrustedProxies are CIDRs or IPs whose X-Forwarded-For is honored.
	TrustedProxies []string `yaml:"trusted_proxies"`
	// RateLimitPerMinute bounds API requests per client IP. 0 disables.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`

	// DataDir holds databases and the snapshot file.
	DataDir string `yaml:"data_dir"`

	LogLevel string `yaml:"log_level"`

	// ReadingsBackend selects the readings store: memory, sqlite, badger.
	ReadingsBackend string `yaml:"readings_backend"`
	// ReadingsPath is the store location for the durable backends.
	ReadingsPath string `yaml:"readings_path"`

	Cache cache.Config `yaml:"cache"`

	Instruments []station.InstrumentConfig `yaml:"instruments"`

	Monitor monitor.Config `yaml:"monitor"`

	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TelemetryConfig configures OTLP trace export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // "grpc" or "http"
	Endpoint     string  `yaml:"endpoint"`
	Environment  string  `yaml:"environment"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Listen:             ":8080",
		DataDir:            "./data",
		LogLevel:           "info",
		RateLimitPerMinute: 120,
		ReadingsBackend:    "memory",
		Cache: cache.Config{
			Backend: "memory",
			TTL:     30 * time.Second,
		},
		Monitor: monitor.Config{
			Interval: time.Minute,
			CacheTTL: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Environment:  "development",
			SamplingRate: 1.0,
		},
	}
}
