// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/qbridge/qbridge/internal/log"
)

// ParseString reads a string environment variable, falling back to the
// default. Source and value are logged, except for secrets.
func ParseString(key, defaultValue string) string {
	return parseStringWithLogger(log.WithComponent("config"), key, defaultValue)
}

func parseStringWithLogger(logger zerolog.Logger, key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		logger.Debug().
			Str("key", key).
			Str("source", "default").
			Msg("using default value")
		return defaultValue
	}
	lowerKey := strings.ToLower(key)
	if strings.Contains(lowerKey, "token") || strings.Contains(lowerKey, "password") {
		logger.Debug().
			Str("key", key).
			Str("source", "environment").
			Bool("sensitive", true).
			Msg("using environment variable")
	} else {
		logger.Debug().
			Str("key", key).
			Str("value", value).
			Str("source", "environment").
			Msg("using environment variable")
	}
	return value
}

// ParseInt reads an integer environment variable. Unparsable values fall
// back to the default with a warning.
func ParseInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", value).
			Int("default", defaultValue).
			Msg("invalid integer in environment, using default")
		return defaultValue
	}
	return n
}

// ParseFloat reads a float environment variable.
func ParseFloat(key string, defaultValue float64) float64 {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", value).
			Float64("default", defaultValue).
			Msg("invalid float in environment, using default")
		return defaultValue
	}
	return f
}

// ParseBool reads a boolean environment variable ("true", "1", "yes").
func ParseBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	logger := log.WithComponent("config")
	logger.Warn().
		Str("key", key).
		Str("value", value).
		Bool("default", defaultValue).
		Msg("invalid boolean in environment, using default")
	return defaultValue
}

// ParseDuration reads a duration environment variable ("30s", "5m").
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger := log.WithComponent("config")
		logger.Warn().
			Str("key", key).
			Str("value", value).
			Dur("default", defaultValue).
			Msg("invalid duration in environment, using default")
		return defaultValue
	}
	return d
}

// applyEnv overlays QBRIDGE_* environment variables on cfg. The
// environment wins over the file.
func applyEnv(cfg *AppConfig) {
	cfg.Listen = ParseString("QBRIDGE_LISTEN", cfg.Listen)
	cfg.APIToken = ParseString("QBRIDGE_API_TOKEN", cfg.APIToken)
	cfg.DataDir = ParseString("QBRIDGE_DATA_DIR", cfg.DataDir)
	cfg.LogLevel = ParseString("QBRIDGE_LOG_LEVEL", cfg.LogLevel)
	cfg.RateLimitPerMinute = ParseInt("QBRIDGE_RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)

	if proxies := ParseString("QBRIDGE_TRUSTED_PROXIES", ""); proxies != "" {
		cfg.TrustedProxies = splitAndTrim(proxies)
	}

	cfg.ReadingsBackend = ParseString("QBRIDGE_READINGS_BACKEND", cfg.ReadingsBackend)
	cfg.ReadingsPath = ParseString("QBRIDGE_READINGS_PATH", cfg.ReadingsPath)

	cfg.Cache.Backend = ParseString("QBRIDGE_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = ParseDuration("QBRIDGE_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Addr = ParseString("QBRIDGE_REDIS_ADDR", cfg.Cache.Addr)
	cfg.Cache.Password = ParseString("QBRIDGE_REDIS_PASSWORD", cfg.Cache.Password)
	cfg.Cache.DB = ParseInt("QBRIDGE_REDIS_DB", cfg.Cache.DB)

	cfg.Monitor.Interval = ParseDuration("QBRIDGE_POLL_INTERVAL", cfg.Monitor.Interval)
	cfg.Monitor.SnapshotPath = ParseString("QBRIDGE_SNAPSHOT_PATH", cfg.Monitor.SnapshotPath)
	cfg.Monitor.CacheTTL = ParseDuration("QBRIDGE_MONITOR_CACHE_TTL", cfg.Monitor.CacheTTL)
	if paths := ParseString("QBRIDGE_POLL_PATHS", ""); paths != "" {
		cfg.Monitor.Paths = splitAndTrim(paths)
	}

	cfg.Telemetry.Enabled = ParseBool("QBRIDGE_OTLP_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = ParseString("QBRIDGE_OTLP_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = ParseString("QBRIDGE_OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.Environment = ParseString("QBRIDGE_OTLP_ENVIRONMENT", cfg.Telemetry.Environment)
	cfg.Telemetry.SamplingRate = ParseFloat("QBRIDGE_OTLP_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
