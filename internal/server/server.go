// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package server wires configuration, storage, the ceremony service,
// and the HTTP surface into a runnable passkey server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/pkg/correlation"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/kv"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/passkey/engine"
	passkeyhttp "github.com/jeremyhahn/go-passkey/pkg/passkey/http"
)

// Server is the passkey HTTP server.
type Server struct {
	cfg     *config.Config
	server  *http.Server
	store   kv.Store
	service *passkey.Service
	checker *health.Checker
	logger  *slog.Logger
}

// New builds a server from the given configuration. The context is
// used for storage initialization (connecting and migrating the
// Postgres backend).
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	verifier, err := engine.New(engine.Config{
		RPID:          cfg.RelyingParty.ID,
		RPDisplayName: cfg.RelyingParty.DisplayName,
		Origins:       cfg.RPOrigins(),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create webauthn engine: %w", err)
	}

	service, err := passkey.NewService(passkey.ServiceParams{
		Store:                store,
		Verifier:             verifier,
		ChallengeTTL:         cfg.RelyingParty.ChallengeTTL,
		AllowUnverifiedUsers: !cfg.RelyingParty.RequireUserVerification,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create passkey service: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		store:   store,
		service: service,
		checker: health.NewChecker(),
		logger:  logger,
	}
	s.checker.RegisterCheck("store", s.storeCheck)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.setupRouter(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// newStore builds the credential store selected by the configuration.
func newStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		store, err := kv.NewPostgresStore(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return store, nil
	case config.StorageMemory, "":
		return kv.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(correlation.Middleware)
	r.Use(s.loggingMiddleware)
	r.Use(metrics.HTTPMiddleware)

	if s.cfg.Health.Enabled {
		path := s.cfg.Health.Path
		if path == "" {
			path = "/health"
		}
		r.Get(path, s.healthHandler)
		r.Head(path, s.healthHandler)
	}

	if s.cfg.Metrics.Enabled {
		path := s.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Get(path, promhttp.Handler().ServeHTTP)
	}

	handler := passkeyhttp.NewHandler(s.service).WithLogger(s.logger)
	passkeyhttp.MountChi(r, handler)

	return r
}

// loggingMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
			"request_id", correlation.GetRequestID(r.Context()))
	})
}

// storeCheck probes the credential store with a read. A missing probe
// key still proves the backend answers.
func (s *Server) storeCheck(ctx context.Context) health.CheckResult {
	_, _, err := s.store.Get(ctx, "healthcheck")
	if err != nil && !errors.Is(err, kv.ErrKeyNotFound) {
		return health.CheckResult{
			Name:   "store",
			Status: health.StatusUnhealthy,
			Error:  err.Error(),
		}
	}
	return health.CheckResult{
		Name:    "store",
		Status:  health.StatusHealthy,
		Message: "Store is reachable",
	}
}

// healthHandler aggregates readiness checks into a single status report.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	results := s.checker.Ready(r.Context())
	status := health.AggregateStatus(results)

	code := http.StatusOK
	if status != health.StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if r.Method == http.MethodHead {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": results,
		"uptime": s.checker.Uptime().String(),
	})
}

// Start starts the HTTP server and blocks until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		"addr", s.server.Addr,
		"rp_id", s.cfg.RelyingParty.ID,
		"storage", s.cfg.Storage.Backend)

	s.checker.MarkStarted()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server and closes the credential store.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", "error", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	if err := s.store.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Service exposes the ceremony service, primarily for tests.
func (s *Server) Service() *passkey.Service {
	return s.service
}

// Handler returns the configured HTTP handler, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
