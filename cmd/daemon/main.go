// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Command daemon runs the instrument gateway: it connects the configured
// instruments, polls them on a schedule and serves the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/qbridge/qbridge/internal/api"
	"github.com/qbridge/qbridge/internal/cache"
	"github.com/qbridge/qbridge/internal/config"
	"github.com/qbridge/qbridge/internal/health"
	"github.com/qbridge/qbridge/internal/log"
	"github.com/qbridge/qbridge/internal/monitor"
	"github.com/qbridge/qbridge/internal/readings"
	"github.com/qbridge/qbridge/internal/station"
	"github.com/qbridge/qbridge/internal/telemetry"
	"github.com/qbridge/qbridge/internal/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		os.Exit(0)
	}

	// Safe defaults until the config is loaded.
	log.Configure(log.Config{Level: "info", Service: "qbridge", Version: version.Version})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit via -config, otherwise ${QBRIDGE_DATA_DIR}/config.yaml
	// when it exists.
	effectivePath := strings.TrimSpace(*configPath)
	if effectivePath == "" {
		dataDir := strings.TrimSpace(config.ParseString("QBRIDGE_DATA_DIR", "./data"))
		autoPath := filepath.Join(dataDir, "config.yaml")
		if _, err := os.Stat(autoPath); err == nil {
			effectivePath = autoPath
		}
	}

	cfg, err := config.Load(effectivePath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "config.load_failed").
			Str("config_path", effectivePath).
			Msg("failed to load configuration")
	}

	log.Configure(log.Config{Level: cfg.LogLevel, Service: "qbridge", Version: version.Version})

	source := "env+defaults"
	if effectivePath != "" {
		source = "file"
	}
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("source", source).
		Str("path", effectivePath).
		Msg("configuration loaded")

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		logger.Fatal().
			Err(err).
			Str(log.FieldEvent, "startup.check_failed").
			Msg("startup checks failed, verify configuration and permissions")
	}

	logger.Info().
		Str(log.FieldEvent, "startup").
		Str("version", version.Version).
		Str("commit", version.Commit).
		Str("addr", cfg.Listen).
		Int("instruments", len(cfg.Instruments)).
		Msg("starting qbridge")
	if cfg.APIToken == "" {
		logger.Warn().Msg("API token not configured, mutating routes fail closed")
	}

	if err := run(ctx, cfg, effectivePath); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("daemon failed")
	}
	logger.Info().Str(log.FieldEvent, "shutdown.complete").Msg("goodbye")
}

func run(ctx context.Context, cfg config.AppConfig, configPath string) error {
	logger := log.WithComponent("daemon")

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "qbridge",
		ServiceVersion: version.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	st, err := station.New(cfg.Instruments)
	if err != nil {
		return fmt.Errorf("build station: %w", err)
	}
	if err := st.Connect(ctx); err != nil {
		return fmt.Errorf("connect instruments: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("station close failed")
		}
	}()

	store, err := readings.Open(cfg.ReadingsBackend, readingsPath(cfg))
	if err != nil {
		return fmt.Errorf("open readings store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("readings store close failed")
		}
	}()

	c := cache.NewFromConfig(cfg.Cache)

	var mon *monitor.Monitor
	if len(cfg.Monitor.Paths) > 0 {
		mon = monitor.New(st, store, c, cfg.Monitor)
	}

	healthMgr := health.NewManager(version.Version)
	for _, inst := range st.Instruments() {
		healthMgr.RegisterChecker(health.NewPingChecker("instrument:"+inst.Name(), func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			_, err := inst.IDN(ctx)
			return err
		}))
	}
	if mon != nil {
		healthMgr.RegisterChecker(health.NewLastPollChecker(func() (time.Time, string) {
			status := mon.Status()
			return status.LastRun, status.Error
		}, 3*pollInterval(cfg)))
		if cfg.Monitor.SnapshotPath != "" {
			healthMgr.RegisterChecker(health.NewFileChecker("snapshot", cfg.Monitor.SnapshotPath))
		}
	}

	// Hot reload: file watcher plus SIGHUP. Log level changes apply live;
	// instrument changes still need a restart.
	holder := config.NewHolder(cfg, configPath)
	if err := holder.StartWatcher(ctx); err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	reloaded := make(chan config.AppConfig, 1)
	holder.RegisterListener(reloaded)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.New(cfg, st, store, c, mon, healthMgr).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str(log.FieldEvent, "http.listen").Str("addr", cfg.Listen).Msg("API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if mon != nil {
		g.Go(func() error {
			err := monitor.NewRunner(mon, pollInterval(cfg)).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				if err := holder.Reload(ctx); err != nil {
					logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case newCfg := <-reloaded:
				log.Configure(log.Config{Level: newCfg.LogLevel, Service: "qbridge", Version: version.Version})
				logger.Info().
					Str(log.FieldEvent, "config.applied").
					Str("log_level", newCfg.LogLevel).
					Msg("reloaded configuration applied (instrument changes need a restart)")
			}
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Str(log.FieldEvent, "shutdown.start").Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// readingsPath picks the store location: the configured path, or a backend
// specific default under the data directory.
func readingsPath(cfg config.AppConfig) string {
	if cfg.ReadingsPath != "" {
		return cfg.ReadingsPath
	}
	switch cfg.ReadingsBackend {
	case "sqlite":
		return filepath.Join(cfg.DataDir, "readings.db")
	case "badger":
		return filepath.Join(cfg.DataDir, "readings")
	}
	return ""
}

func pollInterval(cfg config.AppConfig) time.Duration {
	if cfg.Monitor.Interval > 0 {
		return cfg.Monitor.Interval
	}
	return time.Minute
}
