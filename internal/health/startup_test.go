package health

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbridge/qbridge/internal/config"
	"github.com/qbridge/qbridge/internal/station"
)

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Defaults()
	cfg.Listen = "127.0.0.1:8080"
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.Instruments = []station.InstrumentConfig{
		{Name: "dac", Driver: "decadac", Address: "10.0.0.2:4001"},
	}
	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
}

func TestStartupChecksRejectBadInstrumentAddress(t *testing.T) {
	cfg := config.Defaults()
	cfg.Listen = "127.0.0.1:8080"
	cfg.DataDir = t.TempDir()
	cfg.Instruments = []station.InstrumentConfig{
		{Name: "dac", Driver: "decadac", Address: "no-port"},
	}
	err := PerformStartupChecks(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dac")
}

func TestStartupChecksRejectBadListen(t *testing.T) {
	cfg := config.Defaults()
	cfg.Listen = "8080"
	cfg.DataDir = t.TempDir()
	require.Error(t, PerformStartupChecks(context.Background(), cfg))
}

func TestStartupChecksRedisAddr(t *testing.T) {
	cfg := config.Defaults()
	cfg.Listen = ":8080"
	cfg.DataDir = t.TempDir()
	cfg.Cache.Backend = "redis"
	cfg.Cache.Addr = "localhost"
	require.Error(t, PerformStartupChecks(context.Background(), cfg))

	cfg.Cache.Addr = "localhost:6379"
	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
}
