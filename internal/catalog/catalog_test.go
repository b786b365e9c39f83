// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/harmonia/internal/config"
	"github.com/tomtom215/harmonia/internal/extract"
	"github.com/tomtom215/harmonia/internal/merge"
)

func openTestCatalog(t *testing.T) *DB {
	t.Helper()
	// Batch size 2 forces chunked inserts even for small fixtures.
	db, err := Open(config.CatalogConfig{Path: ":memory:", InsertBatchSize: 2})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return db
}

func canonical(mbid, title, artistName string) *merge.CanonicalTrack {
	return &merge.CanonicalTrack{
		MBID:            mbid,
		Title:           title,
		Duration:        180,
		GenreDortmund:   "rock",
		GenreRosamerica: "roc",
		Features:        make([]float64, extract.NumFeatures),
		Mirex:           make([]float64, extract.NumMirex),
		Artists: []extract.ArtistPair{
			{ID: "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa", Name: artistName},
		},
		Album: &extract.AlbumInfo{
			ID:          "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb",
			Name:        "Shared Album",
			ReleaseDate: time.Date(1998, time.April, 1, 0, 0, 0, 0, time.UTC),
		},
		Submissions: 3,
	}
}

func TestReplaceAll(t *testing.T) {
	db := openTestCatalog(t)
	ctx := context.Background()

	tracks := []*merge.CanonicalTrack{
		canonical("11111111-1111-1111-1111-111111111111", "One", "Artist"),
		canonical("22222222-2222-2222-2222-222222222222", "Two", "Artist"),
		canonical("33333333-3333-3333-3333-333333333333", "Three", "Artist"),
	}
	tracks[2].Album = nil

	stats, err := db.ReplaceAll(ctx, tracks)
	if err != nil {
		t.Fatalf("ReplaceAll() error: %v", err)
	}
	if stats.Tracks != 3 || stats.Artists != 1 || stats.Albums != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TrackArtists != 3 {
		t.Errorf("TrackArtists = %d, want 3", stats.TrackArtists)
	}
	// Both album tracks share one artist, so one association row.
	if stats.AlbumArtists != 1 {
		t.Errorf("AlbumArtists = %d, want 1", stats.AlbumArtists)
	}

	for table, want := range map[string]int64{
		"tracks": 3, "artists": 1, "albums": 1, "track_artists": 3, "album_artists": 1,
	} {
		got, err := db.CountRows(ctx, table)
		if err != nil {
			t.Fatalf("CountRows(%s) error: %v", table, err)
		}
		if got != want {
			t.Errorf("CountRows(%s) = %d, want %d", table, got, want)
		}
	}
}

func TestReplaceAllRebuildTruncates(t *testing.T) {
	db := openTestCatalog(t)
	ctx := context.Background()

	first := []*merge.CanonicalTrack{
		canonical("11111111-1111-1111-1111-111111111111", "One", "Artist"),
		canonical("22222222-2222-2222-2222-222222222222", "Two", "Artist"),
	}
	if _, err := db.ReplaceAll(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := []*merge.CanonicalTrack{
		canonical("33333333-3333-3333-3333-333333333333", "Three", "Artist"),
	}
	stats, err := db.ReplaceAll(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Tracks != 1 {
		t.Errorf("stats.Tracks = %d, want 1", stats.Tracks)
	}

	count, err := db.CountRows(ctx, "tracks")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("tracks after rebuild = %d, want 1 (prior rows gone)", count)
	}
}

func TestArtistNameVoting(t *testing.T) {
	db := openTestCatalog(t)
	ctx := context.Background()

	tracks := []*merge.CanonicalTrack{
		canonical("11111111-1111-1111-1111-111111111111", "One", "The Band"),
		canonical("22222222-2222-2222-2222-222222222222", "Two", "the band"),
		canonical("33333333-3333-3333-3333-333333333333", "Three", "The Band"),
	}
	if _, err := db.ReplaceAll(ctx, tracks); err != nil {
		t.Fatal(err)
	}

	var name string
	err := db.conn.QueryRowContext(ctx,
		"SELECT name FROM artists WHERE mbid = ?", "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa").Scan(&name)
	if err != nil {
		t.Fatalf("query artist: %v", err)
	}
	if name != "The Band" {
		t.Errorf("artist name = %q, want majority spelling", name)
	}
}

func TestTrackRowValues(t *testing.T) {
	db := openTestCatalog(t)
	ctx := context.Background()

	track := canonical("11111111-1111-1111-1111-111111111111", "One", "Artist")
	if _, err := db.ReplaceAll(ctx, []*merge.CanonicalTrack{track}); err != nil {
		t.Fatal(err)
	}

	var (
		title       string
		duration    float64
		submissions int
		albumID     string
	)
	err := db.conn.QueryRowContext(ctx,
		"SELECT title, duration, submissions, album_mbid FROM tracks WHERE mbid = ?",
		track.MBID).Scan(&title, &duration, &submissions, &albumID)
	if err != nil {
		t.Fatalf("query track: %v", err)
	}
	if title != "One" || duration != 180 || submissions != 3 || albumID != track.Album.ID {
		t.Errorf("track row = (%q, %v, %d, %s)", title, duration, submissions, albumID)
	}
}

func TestCountRowsUnknownTable(t *testing.T) {
	db := openTestCatalog(t)
	if _, err := db.CountRows(context.Background(), "pg_shadow; DROP TABLE tracks"); err == nil {
		t.Error("CountRows() with unknown table = nil, want error")
	}
}
