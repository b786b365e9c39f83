// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package config loads and validates Harmonia configuration.
//
// Configuration is layered with koanf: built-in defaults, then an optional
// YAML file, then HARMONIA_-prefixed environment variables. Precedence is
// ENV > file > defaults. Struct tags drive both unmarshaling (koanf) and
// validation (go-playground/validator).
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for both the pipeline and the server.
type Config struct {
	Dataset   DatasetConfig   `koanf:"dataset" validate:"required"`
	Index     IndexConfig     `koanf:"index" validate:"required"`
	Catalog   CatalogConfig   `koanf:"catalog"`
	Bundle    BundleConfig    `koanf:"bundle" validate:"required"`
	Server    ServerConfig    `koanf:"server"`
	Recommend RecommendConfig `koanf:"recommend"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// DatasetConfig describes where raw AcousticBrainz submissions come from.
type DatasetConfig struct {
	// Root is the directory scanned for .json files or .tar.zst archives.
	Root string `koanf:"root" validate:"required"`

	// Parts restricts ingestion to the first N dump parts (0 = all).
	Parts int `koanf:"parts" validate:"min=0"`

	// Workers is the extraction worker pool size (0 = NumCPU).
	Workers int `koanf:"workers" validate:"min=0,max=256"`

	// LogRejections emits a debug log line per rejected submission.
	// Noisy on full dumps; rejections are always counted either way.
	LogRejections bool `koanf:"log_rejections"`
}

// IndexConfig configures the on-disk grouping index.
type IndexConfig struct {
	// Dir is the BadgerDB directory. Recreated on every pipeline run.
	Dir string `koanf:"dir" validate:"required"`

	// BatchSize is the number of appends per write transaction.
	BatchSize int `koanf:"batch_size" validate:"min=1"`

	// Compression enables zstd compression of stored submission groups.
	Compression bool `koanf:"compression"`
}

// CatalogConfig configures the DuckDB catalog store.
type CatalogConfig struct {
	// Path is the DuckDB database file. Empty disables catalog persistence.
	Path string `koanf:"path"`

	// InsertBatchSize bounds rows per multi-row INSERT statement.
	InsertBatchSize int `koanf:"insert_batch_size" validate:"min=1"`
}

// BundleConfig configures the serialized feature-matrix artifact.
type BundleConfig struct {
	// Path is the bundle file written by the pipeline and read by the server.
	Path string `koanf:"path" validate:"required"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins is empty by default, requiring explicit configuration.
	CORSOrigins []string `koanf:"cors_origins"`

	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// RecommendConfig holds recommendation defaults applied when a request
// omits the corresponding option.
type RecommendConfig struct {
	DefaultK int `koanf:"default_k" validate:"min=1,max=1000"`
	MaxK     int `koanf:"max_k" validate:"min=1,max=10000"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Root:    "./data/acousticbrainz",
			Parts:   0,
			Workers: runtime.NumCPU(),
		},
		Index: IndexConfig{
			Dir:         "./data/trackindex",
			BatchSize:   10000,
			Compression: false,
		},
		Catalog: CatalogConfig{
			Path:            "./data/harmonia.duckdb",
			InsertBatchSize: 20000,
		},
		Bundle: BundleConfig{
			Path: "./data/features.bundle.zst",
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Recommend: RecommendConfig{
			DefaultK: 50,
			MaxK:     500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// validate is the singleton validator; validator.Validate caches struct
// metadata and is safe for concurrent use.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against its struct tags plus
// cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config field %s failed rule %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("config validation: %w", err)
	}

	if c.Recommend.DefaultK > c.Recommend.MaxK {
		return fmt.Errorf("recommend.default_k (%d) exceeds recommend.max_k (%d)",
			c.Recommend.DefaultK, c.Recommend.MaxK)
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the slice directly
	if ok {
		*target = verrs
	}
	return ok
}
