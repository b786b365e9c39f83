// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package catalog persists canonical tracks and their derived artist and
// album records into DuckDB. The catalog is rebuilt whole on every
// pipeline run; there is no incremental update path.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/harmonia/internal/config"
	"github.com/tomtom215/harmonia/internal/logging"
)

// DB wraps the DuckDB connection holding the music catalog.
type DB struct {
	conn      *sql.DB
	batchSize int
	logger    zerolog.Logger
}

// schema is executed on every open; all statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tracks (
		mbid VARCHAR PRIMARY KEY,
		title VARCHAR NOT NULL,
		duration DOUBLE,
		genre_dortmund VARCHAR,
		genre_rosamerica VARCHAR,
		submissions INTEGER NOT NULL,
		album_mbid VARCHAR
	)`,
	`CREATE TABLE IF NOT EXISTS artists (
		mbid VARCHAR PRIMARY KEY,
		name VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS albums (
		mbid VARCHAR PRIMARY KEY,
		name VARCHAR NOT NULL,
		release_date DATE
	)`,
	`CREATE TABLE IF NOT EXISTS track_artists (
		track_mbid VARCHAR NOT NULL,
		artist_mbid VARCHAR NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS album_artists (
		album_mbid VARCHAR NOT NULL,
		artist_mbid VARCHAR NOT NULL
	)`,
}

// Open opens or creates the catalog at cfg.Path and applies the schema.
func Open(cfg config.CatalogConfig) (*DB, error) {
	if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create catalog directory %s: %w", dir, err)
		}
	}

	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		connStr += "?access_mode=read_write&autoinstall_known_extensions=false&autoload_known_extensions=false"
	}
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	batchSize := cfg.InsertBatchSize
	if batchSize <= 0 {
		batchSize = 500
	}
	db := &DB{
		conn:      conn,
		batchSize: batchSize,
		logger:    logging.With().Str("component", "catalog").Logger(),
	}

	for _, stmt := range schema {
		if _, err := conn.Exec(stmt); err != nil {
			closeQuietly(conn)
			return nil, fmt.Errorf("apply catalog schema: %w", err)
		}
	}

	db.logger.Debug().Str("path", cfg.Path).Msg("catalog opened")
	return db, nil
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("catalog close failed")
	}
}

// CountRows returns the row count of one catalog table.
func (db *DB) CountRows(ctx context.Context, table string) (int64, error) {
	switch table {
	case "tracks", "artists", "albums", "track_artists", "album_artists":
	default:
		return 0, fmt.Errorf("unknown catalog table %q", table)
	}

	var count int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return count, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("close catalog: %w", err)
	}
	return nil
}
