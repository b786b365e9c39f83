// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/harmonia/internal/extract"
	"github.com/tomtom215/harmonia/internal/merge"
	"github.com/tomtom215/harmonia/internal/metrics"
)

// Stats reports the rows written by one ReplaceAll call.
type Stats struct {
	Tracks       int `json:"tracks"`
	Artists      int `json:"artists"`
	Albums       int `json:"albums"`
	TrackArtists int `json:"track_artists"`
	AlbumArtists int `json:"album_artists"`
}

// ReplaceAll rebuilds the whole catalog from the canonical track set
// inside one transaction: prior rows are removed, then tracks plus the
// derived artist, album, and association rows are bulk-inserted. An
// artist id appearing with several name spellings across tracks gets its
// most frequent spelling; ties go to the spelling that reached the
// winning count first in input order.
func (db *DB) ReplaceAll(ctx context.Context, tracks []*merge.CanonicalTrack) (*Stats, error) {
	artists := collectArtists(tracks)
	albums, albumArtists := collectAlbums(tracks)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("catalog insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range []string{"album_artists", "track_artists", "tracks", "albums", "artists"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return nil, fmt.Errorf("truncate %s: %w", table, err)
		}
	}

	stats := &Stats{}

	artistRows := make([][]any, 0, len(artists))
	for id, name := range artists {
		artistRows = append(artistRows, []any{id, name})
	}
	if err := db.batchInsert(ctx, tx, "artists", []string{"mbid", "name"}, artistRows); err != nil {
		return nil, err
	}
	stats.Artists = len(artistRows)

	albumRows := make([][]any, 0, len(albums))
	for id, a := range albums {
		var date any
		if !a.ReleaseDate.IsZero() {
			date = a.ReleaseDate
		}
		albumRows = append(albumRows, []any{id, a.Name, date})
	}
	if err := db.batchInsert(ctx, tx, "albums", []string{"mbid", "name", "release_date"}, albumRows); err != nil {
		return nil, err
	}
	stats.Albums = len(albumRows)

	trackRows := make([][]any, 0, len(tracks))
	assocRows := make([][]any, 0, len(tracks))
	for _, t := range tracks {
		var albumID any
		if t.Album != nil {
			albumID = t.Album.ID
		}
		trackRows = append(trackRows, []any{
			t.MBID, t.Title, t.Duration, t.GenreDortmund, t.GenreRosamerica, t.Submissions, albumID,
		})
		for _, p := range t.Artists {
			assocRows = append(assocRows, []any{t.MBID, p.ID})
		}
	}
	trackCols := []string{"mbid", "title", "duration", "genre_dortmund", "genre_rosamerica", "submissions", "album_mbid"}
	if err := db.batchInsert(ctx, tx, "tracks", trackCols, trackRows); err != nil {
		return nil, err
	}
	stats.Tracks = len(trackRows)

	if err := db.batchInsert(ctx, tx, "track_artists", []string{"track_mbid", "artist_mbid"}, assocRows); err != nil {
		return nil, err
	}
	stats.TrackArtists = len(assocRows)

	albumArtistRows := make([][]any, 0, len(albumArtists))
	for pair := range albumArtists {
		albumArtistRows = append(albumArtistRows, []any{pair.album, pair.artist})
	}
	if err := db.batchInsert(ctx, tx, "album_artists", []string{"album_mbid", "artist_mbid"}, albumArtistRows); err != nil {
		return nil, err
	}
	stats.AlbumArtists = len(albumArtistRows)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("catalog commit: %w", err)
	}

	db.logger.Info().
		Int("tracks", stats.Tracks).
		Int("artists", stats.Artists).
		Int("albums", stats.Albums).
		Msg("catalog rebuilt")
	return stats, nil
}

// collectArtists derives the artist table: one row per artist id with
// the most frequent name spelling across all track line-ups.
func collectArtists(tracks []*merge.CanonicalTrack) map[string]string {
	counts := make(map[string]map[string]int)
	winner := make(map[string]string)
	winnerCount := make(map[string]int)

	for _, t := range tracks {
		for _, p := range t.Artists {
			if counts[p.ID] == nil {
				counts[p.ID] = make(map[string]int)
			}
			counts[p.ID][p.Name]++
			if counts[p.ID][p.Name] > winnerCount[p.ID] {
				winner[p.ID] = p.Name
				winnerCount[p.ID] = counts[p.ID][p.Name]
			}
		}
	}
	return winner
}

type albumArtistKey struct {
	album  string
	artist string
}

// collectAlbums derives the album table and the album-artist
// associations (the union of the artists on each album's tracks). The
// merge phase only emits albums with id, name, and date all present, so
// the first occurrence of an id fixes its row.
func collectAlbums(tracks []*merge.CanonicalTrack) (map[string]*extract.AlbumInfo, map[albumArtistKey]struct{}) {
	albums := make(map[string]*extract.AlbumInfo)
	assocs := make(map[albumArtistKey]struct{})

	for _, t := range tracks {
		if t.Album == nil || t.Album.ID == "" || t.Album.Name == "" {
			continue
		}
		if _, seen := albums[t.Album.ID]; !seen {
			albums[t.Album.ID] = t.Album
		}
		for _, p := range t.Artists {
			assocs[albumArtistKey{album: t.Album.ID, artist: p.ID}] = struct{}{}
		}
	}
	return albums, assocs
}

// batchInsert writes rows in multi-row VALUES chunks inside tx.
func (db *DB) batchInsert(ctx context.Context, tx txExecer, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()

	placeholder := "(" + strings.Repeat("?,", len(columns)-1) + "?)"
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", table, strings.Join(columns, ", "))

	for offset := 0; offset < len(rows); offset += db.batchSize {
		end := offset + db.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[offset:end]

		placeholders := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			placeholders[i] = placeholder
			args = append(args, row...)
		}

		query := prefix + strings.Join(placeholders, ",")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	metrics.RecordCatalogInsert(table, len(rows), time.Since(start))
	return nil
}

// txExecer is the slice of *sql.Tx that batchInsert needs.
type txExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
