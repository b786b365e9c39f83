// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package main is the entry point for the Harmonia recommendation server.
//
// The server loads a similarity bundle produced by the pipeline binary
// and serves cosine-similarity recommendations over HTTP. Startup is
// fail-loud: a missing or malformed bundle stops the process instead of
// serving an empty model.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and config file (Koanf v2)
//  2. Similarity engine: load and validate the bundle from disk
//  3. HTTP server: Chi router with rate limiting and Prometheus metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (HARMONIA_ prefix)
//   - Config file (config.yaml, or --config / HARMONIA_CONFIG)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections and waits up to the configured shutdown
// timeout for in-flight requests to complete.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/harmonia/internal/api"
	"github.com/tomtom215/harmonia/internal/config"
	"github.com/tomtom215/harmonia/internal/logging"
	"github.com/tomtom215/harmonia/internal/recommend"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("bundle_path", cfg.Bundle.Path).Msg("Starting Harmonia server")

	engine, err := recommend.LoadEngine(cfg.Bundle.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load similarity bundle (run the pipeline first)")
	}
	logging.Info().Int("tracks", engine.Tracks()).Msg("Similarity engine loaded")

	handler := api.NewHandler(engine, cfg.Recommend)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal")
	case err := <-errCh:
		logging.Fatal().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
		os.Exit(1)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error().Err(err).Msg("HTTP server error during shutdown")
	}

	logging.Info().Msg("Server stopped gracefully")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
