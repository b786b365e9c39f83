// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package recommend serves cosine-similarity track recommendations from
// a loaded matrix bundle. The engine is immutable after construction, so
// any number of request goroutines can query it without locking.
package recommend

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/harmonia/internal/logging"
	"github.com/tomtom215/harmonia/internal/matrix"
)

// Engine answers similarity queries against one bundle.
type Engine struct {
	bundle *matrix.Bundle
	rows   map[string]int

	logger zerolog.Logger
}

// NewEngine wraps a validated bundle. Duplicate track ids would make
// lookups ambiguous and indicate a broken merge phase, so they fail
// construction.
func NewEngine(b *matrix.Bundle) (*Engine, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBundleUnavailable, err)
	}

	rows := make(map[string]int, b.Len())
	for i, id := range b.TrackIDs {
		if _, dup := rows[id]; dup {
			return nil, fmt.Errorf("%w: duplicate track id %s", ErrBundleUnavailable, id)
		}
		rows[id] = i
	}

	e := &Engine{
		bundle: b,
		rows:   rows,
		logger: logging.With().Str("component", "recommend").Logger(),
	}
	e.logger.Info().Int("tracks", b.Len()).Msg("recommendation engine ready")
	return e, nil
}

// LoadEngine builds an engine from a bundle file. Load failures map to
// ErrBundleUnavailable so the API layer can answer with a retryable
// status instead of an opaque 500.
func LoadEngine(path string) (*Engine, error) {
	b, err := matrix.LoadBundle(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBundleUnavailable, err)
	}
	return NewEngine(b)
}

// Tracks returns the number of tracks in the model.
func (e *Engine) Tracks() int { return e.bundle.Len() }

// Recommend returns the top-K most similar tracks to targetID under the
// given filters, plus distribution stats over every candidate that
// passed the mask.
func (e *Engine) Recommend(targetID string, opts Options) (*Result, error) {
	start := time.Now()

	if opts.K <= 0 {
		opts.K = DefaultOptions().K
	}

	target, ok := e.rows[targetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, targetID)
	}
	b := e.bundle

	excluded := make(map[int]struct{}, len(opts.ExcludeIDs)+1)
	excluded[target] = struct{}{}
	for _, id := range opts.ExcludeIDs {
		if row, ok := e.rows[id]; ok {
			excluded[row] = struct{}{}
		}
	}

	genre := func(row int) string {
		if opts.UseRosamerica {
			return b.GenreRosamerica[row]
		}
		return b.GenreDortmund[row]
	}
	targetGenre := genre(target)

	// The decade window applies to the 0 sentinel too: an unknown-year
	// target is restricted to other unknown-year tracks via [0, 10).
	// Likewise an empty target genre matches only other unlabeled tracks.
	targetYear := b.Years[target]
	decadeLo := targetYear / 10 * 10
	decadeHi := decadeLo + 10

	targetRow := b.Rows[target]
	candidates := make([]TrackScore, 0, 256)
	sims := make([]float64, 0, 256)

	for row := 0; row < b.Len(); row++ {
		if _, skip := excluded[row]; skip {
			continue
		}
		if opts.MatchDecade && (b.Years[row] < decadeLo || b.Years[row] >= decadeHi) {
			continue
		}
		if opts.MatchGenre && genre(row) != targetGenre {
			continue
		}

		sim := dot(targetRow, b.Rows[row])
		sims = append(sims, sim)
		candidates = append(candidates, TrackScore{
			MBID:            b.TrackIDs[row],
			Similarity:      sim,
			Year:            b.Years[row],
			GenreDortmund:   b.GenreDortmund[row],
			GenreRosamerica: b.GenreRosamerica[row],
		})
	}

	// Stable sort keeps ties in row order, which is fixed per bundle.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > opts.K {
		candidates = candidates[:opts.K]
	}

	stats := distributionStats(sims)
	stats.ElapsedMS = float64(time.Since(start).Microseconds()) / 1000

	e.logger.Debug().
		Str("target", targetID).
		Int("candidates", stats.Candidates).
		Int("returned", len(candidates)).
		Float64("elapsed_ms", stats.ElapsedMS).
		Msg("recommendation served")

	return &Result{
		Target: TrackScore{
			MBID:            targetID,
			Similarity:      1,
			Year:            targetYear,
			GenreDortmund:   b.GenreDortmund[target],
			GenreRosamerica: b.GenreRosamerica[target],
		},
		Tracks: candidates,
		Stats:  stats,
	}, nil
}

// dot computes the inner product of two rows. Rows are pre-normalized at
// build time, so this is the cosine similarity directly.
func dot(a, b []float32) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// distributionStats summarizes similarity scores: population mean and
// std, the 95th percentile with linear interpolation, and the max.
func distributionStats(sims []float64) SearchStats {
	stats := SearchStats{Candidates: len(sims)}
	if len(sims) == 0 {
		return stats
	}

	sum := 0.0
	max := sims[0]
	for _, s := range sims {
		sum += s
		if s > max {
			max = s
		}
	}
	mean := sum / float64(len(sims))

	variance := 0.0
	for _, s := range sims {
		d := s - mean
		variance += d * d
	}

	stats.Mean = mean
	stats.Std = math.Sqrt(variance / float64(len(sims)))
	stats.P95 = quantile(sims, 0.95)
	stats.Max = max
	return stats
}

// quantile computes the q-quantile with linear interpolation between the
// two nearest order statistics.
func quantile(vals []float64, q float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// FeatureStats reports model diagnostics: how many rows remain distinct
// after rounding to four decimals (collapsed rows mean tracks the model
// cannot tell apart) and how many columns carry almost no signal.
func (e *Engine) FeatureStats() MatrixStats {
	b := e.bundle

	unique := make(map[string]struct{}, b.Len())
	var key strings.Builder
	for _, row := range b.Rows {
		key.Reset()
		for _, v := range row {
			rounded := math.Round(float64(v)*1e4) / 1e4
			if rounded == 0 {
				// Collapse -0 so it keys identically to +0.
				rounded = 0
			}
			key.WriteString(strconv.FormatFloat(rounded, 'f', 4, 64))
			key.WriteByte(',')
		}
		unique[key.String()] = struct{}{}
	}

	nearZero := 0
	for c := 0; c < matrix.NumColumns; c++ {
		mean := 0.0
		for _, row := range b.Rows {
			mean += float64(row[c])
		}
		mean /= float64(b.Len())

		variance := 0.0
		for _, row := range b.Rows {
			d := float64(row[c]) - mean
			variance += d * d
		}
		if math.Sqrt(variance/float64(b.Len())) < 1e-6 {
			nearZero++
		}
	}

	return MatrixStats{
		Tracks:             b.Len(),
		UniqueRows:         len(unique),
		NearZeroStdColumns: nearZero,
		Columns:            matrix.NumColumns,
	}
}
