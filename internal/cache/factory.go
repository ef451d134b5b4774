// SPDX-License-Identifier: MIT

package cache

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/qbridge/qbridge/internal/log"
)

// Config selects and configures the cache backend.
type Config struct {
	Backend  string        `yaml:"backend"` // "memory", "redis" or "off"
	TTL      time.Duration `yaml:"ttl"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
}

// NewFromConfig builds the configured cache. An unreachable redis degrades
// to the in-memory cache with a warning rather than failing startup: the
// cache is an optimization, not a dependency.
func NewFromConfig(cfg Config) Cache {
	logger := log.Derive(func(c *zerolog.Context) { *c = c.Str(log.FieldComponent, "cache") })
	switch cfg.Backend {
	case "off":
		return NewNoOp()
	case "redis":
		rc, err := NewRedis(RedisConfig{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Str("addr", cfg.Addr).
				Msg("redis unavailable, falling back to in-memory cache")
			return NewMemory(time.Minute)
		}
		return rc
	default:
		return NewMemory(time.Minute)
	}
}
