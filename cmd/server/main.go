// AniMori - Anime Catalog and Recommendation Backend
// Copyright 2026 K. Watanabe (kwatanabe42)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kwatanabe42/animori

// Package main is the entry point for the AniMori server.
//
// AniMori serves personalized anime recommendations over a REST API, backed
// by a DuckDB catalog of anime, users, and watchlists. Recommendations are
// generated in three phases (collaborative filtering, content-based scoring,
// popularity fallback) and cached per user with a rolling expiry window.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional YAML file, environment variables (Koanf v2)
//  2. Database: DuckDB with the catalog schema and prepared statement cache
//  3. Recommendation engine: collaborative/content-based/fallback pipeline
//  4. Authentication: JWT or no-auth mode
//  5. Supervisor tree: HTTP server plus background maintenance services
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (HTTP_PORT, DUCKDB_PATH, JWT_SECRET, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// For JWT authentication (default):
//   - JWT_SECRET: 32+ character secret for token signing
//
// For local development:
//   - AUTH_MODE=none trusts the X-User-ID header instead
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Checkpoints and closes the database
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kwatanabe42/animori/internal/api"
	"github.com/kwatanabe42/animori/internal/cache"
	"github.com/kwatanabe42/animori/internal/config"
	"github.com/kwatanabe42/animori/internal/database"
	"github.com/kwatanabe42/animori/internal/logging"
	"github.com/kwatanabe42/animori/internal/recommend"
	"github.com/kwatanabe42/animori/internal/supervisor"
	"github.com/kwatanabe42/animori/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("auth_mode", cfg.Security.AuthMode).
		Int("port", cfg.Server.Port).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	// The database serves the engine twice: catalog reads (DataProvider) and
	// recommendation persistence (Store).
	engine, err := recommend.NewEngine(
		cfg.Recommend,
		db,
		db,
		logging.With().Str("component", "recommend").Logger(),
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize recommendation engine")
	}

	similarCache := cache.NewLRU(cfg.Cache.Size, cfg.Cache.TTL)

	authenticator, err := api.NewAuthenticator(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authentication")
	}
	switch cfg.Security.AuthMode {
	case "jwt":
		logging.Info().Msg("JWT authentication enabled")
	case "none":
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("User identity is taken from the X-User-ID header. Development only!")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	handler, err := api.NewHandler(engine, db, db, similarCache)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize API handler")
	}
	router := api.NewRouter(handler, authenticator, &cfg.Security)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// sutureslog wants an slog.Logger; the adapter bridges it to zerolog
	slogLogger := logging.NewSlogLogger()
	tree := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	maintenanceLogger := logging.Logger()
	tree.AddMaintenanceService(services.NewSweepService(db, cfg.Sweep.Interval, maintenanceLogger))
	tree.AddMaintenanceService(services.NewCacheCleanupService(similarCache, cfg.Cache.TTL, maintenanceLogger))
	logging.Info().
		Dur("sweep_interval", cfg.Sweep.Interval).
		Dur("cache_ttl", cfg.Cache.TTL).
		Msg("Maintenance services added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor closes the channel
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
