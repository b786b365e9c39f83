// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "empty dataset root",
			mutate: func(c *Config) { c.Dataset.Root = "" },
		},
		{
			name:   "zero index batch size",
			mutate: func(c *Config) { c.Index.BatchSize = 0 },
		},
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 70000 },
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
		},
		{
			name:   "default_k above max_k",
			mutate: func(c *Config) { c.Recommend.DefaultK = 1000; c.Recommend.MaxK = 100 },
		},
		{
			name:   "negative workers",
			mutate: func(c *Config) { c.Dataset.Workers = -1 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestLoadFileLayering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
dataset:
  root: /srv/dumps
  workers: 4
index:
  dir: /srv/index
  batch_size: 500
server:
  port: 9090
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	if cfg.Dataset.Root != "/srv/dumps" {
		t.Errorf("Dataset.Root = %q, want /srv/dumps", cfg.Dataset.Root)
	}
	if cfg.Index.BatchSize != 500 {
		t.Errorf("Index.BatchSize = %d, want 500", cfg.Index.BatchSize)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Unset fields keep defaults.
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want default 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Recommend.DefaultK != 50 {
		t.Errorf("Recommend.DefaultK = %d, want default 50", cfg.Recommend.DefaultK)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("LoadFile() on missing file = nil, want error")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HARMONIA_SERVER_PORT", "7070")
	t.Setenv("HARMONIA_LOGGING_LEVEL", "warn")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want env override warn", cfg.Logging.Level)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"HARMONIA_DATASET_ROOT", "dataset.root"},
		{"HARMONIA_SERVER_RATE_LIMIT_WINDOW", "server.rate_limit_window"},
		{"HARMONIA_LOGGING_LEVEL", "logging.level"},
		{"HARMONIA_BOGUS_KEY", ""},
		{"HARMONIA_NOSECTION", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransform(tt.input); got != tt.want {
				t.Errorf("envTransform(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
