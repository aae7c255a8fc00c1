// Lumiere - Marketing Site Visitor Analytics and Lead Tracking
// Copyright 2026 Atelier Lumiere
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atelierlumiere/lumiere

// Package main is the entry point for the Lumiere analytics server.
//
// Lumiere is the backend for a marketing site: it ingests behavioral
// tracking events from the browser collector, enriches them with
// IP-derived geolocation, accumulates per-session visitor rows, captures
// newsletter subscriptions as leads, alerts via Slack/email, and serves
// the admin reporting API (filtered listings, server-side aggregation,
// CSV export, map-ready GeoJSON).
//
// # Startup order
//
//  1. Configuration: Koanf v2 layered defaults -> optional YAML -> env.
//  2. Logging: zerolog, configured from LOG_LEVEL/LOG_FORMAT.
//  3. Database: Postgres via lib/pq, schema applied if missing.
//  4. Geolocation resolver: provider chain with circuit breakers.
//  5. Notification dispatcher: channels resolved once at config load.
//  6. HTTP server: Chi router, graceful shutdown on SIGINT/SIGTERM.
//
// # Configuration
//
// DATABASE_URL is required. Everything else has a working default; see
// internal/config for the full surface (SLACK_WEBHOOK_*, SMTP_*,
// GEOIP_*, CORS_ORIGINS, RATE_LIMIT_*).
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

	"github.com/atelierlumiere/lumiere/internal/api"
	"github.com/atelierlumiere/lumiere/internal/cache"
	"github.com/atelierlumiere/lumiere/internal/config"
	"github.com/atelierlumiere/lumiere/internal/database"
	"github.com/atelierlumiere/lumiere/internal/geoip"
	"github.com/atelierlumiere/lumiere/internal/logging"
	"github.com/atelierlumiere/lumiere/internal/notify"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Int("port", cfg.Server.Port).
		Msg("Lumiere starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := database.New(ctx, &cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Warn().Err(err).Msg("Database close failed")
		}
	}()

	resolver := geoip.NewResolver(&cfg.GeoIP)

	dispatcher := notify.NewDispatcher(&cfg.Notify)
	if dispatcher.Configured() {
		logging.Info().Msg("Notification dispatcher configured")
	} else {
		logging.Info().Msg("No notification channel configured, alerts disabled")
	}

	handler := api.NewHandler(store, resolver, dispatcher, cache.New(5*time.Minute), cfg)
	router := api.NewRouter(handler, cfg.Security)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}

	logging.Info().Msg("Lumiere stopped gracefully")
}
