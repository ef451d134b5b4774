// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api provides the HTTP control surface of the gateway.
package api

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/qbridge/qbridge/internal/cache"
	"github.com/qbridge/qbridge/internal/config"
	"github.com/qbridge/qbridge/internal/health"
	"github.com/qbridge/qbridge/internal/log"
	"github.com/qbridge/qbridge/internal/monitor"
	"github.com/qbridge/qbridge/internal/readings"
	"github.com/qbridge/qbridge/internal/station"
	"github.com/qbridge/qbridge/internal/version"
)

// Server is the HTTP API server.
type Server struct {
	cfg       config.AppConfig
	st        *station.Station
	store     readings.Store
	cache     cache.Cache
	mon       *monitor.Monitor
	healthMgr *health.Manager
	logger    zerolog.Logger
	startTime time.Time

	trustedNets []*net.IPNet
}

// New creates a server. The monitor and cache may be nil when polling or
// caching is disabled.
func New(cfg config.AppConfig, st *station.Station, store readings.Store, c cache.Cache, mon *monitor.Monitor, healthMgr *health.Manager) *Server {
	if c == nil {
		c = cache.NewNoOp()
	}
	if healthMgr == nil {
		healthMgr = health.NewManager(version.Version)
	}
	return &Server{
		cfg:         cfg,
		st:          st,
		store:       store,
		cache:       c,
		mon:         mon,
		healthMgr:   healthMgr,
		logger:      log.WithComponent("api"),
		startTime:   time.Now(),
		trustedNets: parseTrustedProxies(cfg.TrustedProxies),
	}
}

// Router builds the HTTP handler with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Recoverer first, correlation second, then observability.
	r.Use(s.recoverer)
	r.Use(requestID)
	r.Use(tracing("qbridge.api"))
	r.Use(httpMetrics)
	r.Use(s.accessLog)
	if s.cfg.RateLimitPerMinute > 0 {
		r.Use(s.rateLimit())
	}

	r.Get("/healthz", s.healthMgr.ServeHealth)
	r.Get("/readyz", s.healthMgr.ServeReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/instruments", s.handleInstruments)
		r.Get("/instruments/{name}", s.handleInstrument)
		r.Get("/parameters/{path}", s.handleGetParameter)
		r.Get("/readings/{path}", s.handleReadings)
		r.Get("/status", s.handleStatus)

		// Mutating routes require the API token.
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Put("/parameters/{path}", s.handleSetParameter)
			r.Post("/poll", s.handlePoll)
		})
	})

	return r
}

func parseTrustedProxies(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if _, ipnet, err := net.ParseCIDR(entry); err == nil {
			nets = append(nets, ipnet)
			continue
		}
		// A bare IP counts as a /32 (or /128).
		if ip := net.ParseIP(entry); ip != nil {
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		}
	}
	return nets
}
