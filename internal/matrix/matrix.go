// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package matrix builds the similarity model from canonical tracks: a
// dense row-per-track feature matrix standardized per column and
// L2-normalized per row, so that downstream cosine similarity reduces to
// a plain dot product.
package matrix

import (
	"fmt"
	"math"

	"github.com/tomtom215/harmonia/internal/extract"
	"github.com/tomtom215/harmonia/internal/merge"
)

// NumColumns is the feature-matrix width: the continuous features plus
// the mirex probability components.
const NumColumns = extract.NumFeatures + extract.NumMirex

// normEpsilon keeps the row normalization defined for all-zero rows.
const normEpsilon = 1e-8

// ColumnNames returns the matrix column names in storage order.
func ColumnNames() []string {
	names := make([]string, 0, NumColumns)
	names = append(names, extract.FeatureNames...)
	for i := 1; i <= extract.NumMirex; i++ {
		names = append(names, fmt.Sprintf("moods_mirex_%d", i))
	}
	return names
}

// Build assembles the bundle from merged tracks. Row i of the matrix and
// index i of every metadata array describe the same track; that alignment
// is what the recommender trades on, so malformed inputs fail the build
// rather than producing a shifted matrix.
func Build(tracks []*merge.CanonicalTrack) (*Bundle, error) {
	if len(tracks) == 0 {
		return nil, fmt.Errorf("matrix build: no tracks")
	}

	b := &Bundle{
		Version:         BundleVersion,
		Columns:         ColumnNames(),
		TrackIDs:        make([]string, len(tracks)),
		Years:           make([]int, len(tracks)),
		GenreDortmund:   make([]string, len(tracks)),
		GenreRosamerica: make([]string, len(tracks)),
		Rows:            make([][]float32, len(tracks)),
	}

	raw := make([][]float64, len(tracks))
	for i, t := range tracks {
		if len(t.Features) != extract.NumFeatures {
			return nil, fmt.Errorf("matrix build: track %s has %d features, want %d", t.MBID, len(t.Features), extract.NumFeatures)
		}
		if len(t.Mirex) != extract.NumMirex {
			return nil, fmt.Errorf("matrix build: track %s has %d mirex components, want %d", t.MBID, len(t.Mirex), extract.NumMirex)
		}

		row := make([]float64, 0, NumColumns)
		row = append(row, t.Features...)
		row = append(row, t.Mirex...)
		raw[i] = row

		b.TrackIDs[i] = t.MBID
		b.Years[i] = releaseYear(t)
		b.GenreDortmund[i] = t.GenreDortmund
		b.GenreRosamerica[i] = t.GenreRosamerica
	}

	b.Raw = raw
	mean, std := columnStats(raw)
	b.Mean = mean
	b.Std = std

	for i, row := range raw {
		scaled := make([]float32, NumColumns)
		norm := 0.0
		for c := 0; c < NumColumns; c++ {
			v := (row[c] - mean[c]) / std[c]
			scaled[c] = float32(v)
			norm += v * v
		}
		norm = math.Sqrt(norm) + normEpsilon
		for c := range scaled {
			scaled[c] = float32(float64(scaled[c]) / norm)
		}
		b.Rows[i] = scaled
	}
	return b, nil
}

// releaseYear maps a missing album or date to the 0 sentinel that the
// recommender's decade filter treats as "unknown".
func releaseYear(t *merge.CanonicalTrack) int {
	if t.Album == nil || t.Album.ReleaseDate.IsZero() {
		return 0
	}
	return t.Album.ReleaseDate.Year()
}

// columnStats computes the population mean and standard deviation per
// column. A column with near-zero spread gets std 1 so standardizing it
// yields zeros instead of dividing by zero.
func columnStats(rows [][]float64) (mean, std []float64) {
	n := float64(len(rows))
	mean = make([]float64, NumColumns)
	std = make([]float64, NumColumns)

	for _, row := range rows {
		for c, v := range row {
			mean[c] += v
		}
	}
	for c := range mean {
		mean[c] /= n
	}

	for _, row := range rows {
		for c, v := range row {
			d := v - mean[c]
			std[c] += d * d
		}
	}
	for c := range std {
		std[c] = math.Sqrt(std[c] / n)
		if std[c] < 1e-12 {
			std[c] = 1
		}
	}
	return mean, std
}
