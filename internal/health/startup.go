// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package health

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/qbridge/qbridge/internal/config"
	"github.com/qbridge/qbridge/internal/log"
)

// PerformStartupChecks validates the environment before the daemon starts
// talking to hardware or accepting requests.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("Running pre-flight startup checks...")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	if err := checkAddresses(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("✅ All startup checks passed")
	return nil
}

// checkDataDir ensures the data directory exists and is writable. Databases
// and the snapshot file land here.
func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return fmt.Errorf("create data directory %s: %w", path, err)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(path)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str("data_dir", path).
			Msg("data directory is under temp; readings may be lost on reboot")
	}

	logger.Info().Str("path", path).Msg("✓ Data directory is writable")
	return nil
}

func checkAddresses(logger zerolog.Logger, cfg config.AppConfig) error {
	if err := checkHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", cfg.Listen, err)
	}
	logger.Info().Str("addr", cfg.Listen).Msg("✓ Listen address is valid")

	for _, inst := range cfg.Instruments {
		if err := checkHostPort(inst.Address); err != nil {
			return fmt.Errorf("instrument %q: invalid address %q: %w", inst.Name, inst.Address, err)
		}
	}
	if n := len(cfg.Instruments); n > 0 {
		logger.Info().Int("count", n).Msg("✓ Instrument addresses are valid")
	} else {
		logger.Warn().Msg("no instruments configured; API will serve an empty station")
	}

	if cfg.Cache.Backend == "redis" {
		if err := checkHostPort(cfg.Cache.Addr); err != nil {
			return fmt.Errorf("invalid redis address %q: %w", cfg.Cache.Addr, err)
		}
		logger.Info().Str("addr", cfg.Cache.Addr).Msg("✓ Redis address is valid")
	}
	return nil
}

func checkHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	portNum, err := strconv.Atoi(port)
	if err != nil || portNum < 0 || portNum > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}
