// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package main runs one full corpus rebuild: extract the dataset into
// the grouping index, merge submissions into canonical tracks, persist
// the catalog, and export the similarity bundle.
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (HARMONIA_ prefix)
//   - Config file (config.yaml, or --config / HARMONIA_CONFIG)
//   - Built-in defaults
//
// The run is interruptible: SIGINT or SIGTERM cancels the extraction
// workers and the process exits non-zero without a bundle.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/harmonia/internal/config"
	"github.com/tomtom215/harmonia/internal/logging"
	"github.com/tomtom215/harmonia/internal/pipeline"
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

	logging.Info().
		Str("dataset_root", cfg.Dataset.Root).
		Str("index_dir", cfg.Index.Dir).
		Str("catalog_path", cfg.Catalog.Path).
		Str("bundle_path", cfg.Bundle.Path).
		Msg("Starting Harmonia pipeline")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := pipeline.New(cfg).Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logging.Error().Msg("Pipeline canceled")
			os.Exit(2)
		}
		logging.Fatal().Err(err).Msg("Pipeline failed")
	}

	logging.Info().
		Int64("extracted", report.Extracted.Load()).
		Int64("rejected", report.TotalRejected()).
		Int64("duplicates", report.Duplicates.Load()).
		Int64("tracks", report.Tracks.Load()).
		Int64("dropped_no_artist", report.DroppedNoArtist.Load()).
		Int64("inconsistent_albums", report.InconsistentAlbums.Load()).
		Int64("missing_data", report.Diagnostics.MissingData.Load()).
		Int64("invalid_dates", report.Diagnostics.InvalidDates.Load()).
		Int("bundle_tracks", report.BundleTracks).
		Dur("elapsed", report.Elapsed).
		Msg("Pipeline finished")
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
