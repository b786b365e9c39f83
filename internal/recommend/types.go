// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package recommend

import "errors"

// Errors crossing the API boundary. Anything else coming out of the
// engine is an internal failure and must not leak detail to clients.
var (
	// ErrTargetNotFound means the requested track id is not in the model.
	ErrTargetNotFound = errors.New("recommend: target track not in model")

	// ErrBundleUnavailable means the similarity model could not be
	// loaded. Retryable once a pipeline run has produced a bundle.
	ErrBundleUnavailable = errors.New("recommend: bundle unavailable")
)

// Options tunes one recommendation query.
type Options struct {
	// K is the maximum number of recommendations returned.
	K int

	// UseRosamerica selects the genre classifier used for filtering:
	// rosamerica when true, dortmund when false.
	UseRosamerica bool

	// MatchGenre keeps only candidates sharing the target's genre label
	// on the selected classifier; an unlabeled target matches only other
	// unlabeled tracks.
	MatchGenre bool

	// MatchDecade keeps only candidates released in the target's decade.
	// The unknown-year sentinel 0 windows to [0, 10), so an unknown-year
	// target matches only other unknown-year tracks.
	MatchDecade bool

	// ExcludeIDs removes specific tracks from the candidate set. The
	// target itself is always excluded.
	ExcludeIDs []string
}

// DefaultOptions mirrors the query defaults served when a client passes
// no parameters.
func DefaultOptions() Options {
	return Options{
		K:             50,
		UseRosamerica: true,
		MatchGenre:    true,
		MatchDecade:   true,
	}
}

// TrackScore is one scored track in a recommendation response. For the
// target entry Similarity is 1 by construction.
type TrackScore struct {
	MBID            string  `json:"mbid"`
	Similarity      float64 `json:"similarity"`
	Year            int     `json:"year,omitempty"`
	GenreDortmund   string  `json:"genre_dortmund,omitempty"`
	GenreRosamerica string  `json:"genre_rosamerica,omitempty"`
}

// SearchStats summarizes the similarity distribution over the full
// candidate set, not just the returned top K.
type SearchStats struct {
	Candidates int     `json:"candidates"`
	ElapsedMS  float64 `json:"elapsed_ms"`
	Mean       float64 `json:"mean"`
	Std        float64 `json:"std"`
	P95        float64 `json:"p95"`
	Max        float64 `json:"max"`
}

// Result is a full recommendation response.
type Result struct {
	Target TrackScore   `json:"target"`
	Tracks []TrackScore `json:"tracks"`
	Stats  SearchStats  `json:"stats"`
}

// MatrixStats describes the loaded model for the diagnostics endpoint.
type MatrixStats struct {
	Tracks             int `json:"tracks"`
	UniqueRows         int `json:"unique_rows"`
	NearZeroStdColumns int `json:"near_zero_std_columns"`
	Columns            int `json:"columns"`
}
