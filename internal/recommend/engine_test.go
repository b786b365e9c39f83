// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package recommend

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/tomtom215/harmonia/internal/matrix"
)

const (
	idA = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
	idB = "bbbbbbbb-bbbb-bbbb-bbbb-bbbbbbbbbbbb"
	idC = "cccccccc-cccc-cccc-cccc-cccccccccccc"
	idD = "dddddddd-dddd-dddd-dddd-dddddddddddd"
)

// row builds a unit-norm 16-column row from the first two components.
func row(x, y float64) []float32 {
	out := make([]float32, matrix.NumColumns)
	norm := math.Sqrt(x*x + y*y)
	out[0] = float32(x / norm)
	out[1] = float32(y / norm)
	return out
}

// rawOf widens normalized rows into the raw-matrix slot; the engine only
// checks its alignment.
func rawOf(rows [][]float32) [][]float64 {
	raw := make([][]float64, len(rows))
	for i, r := range rows {
		raw[i] = make([]float64, len(r))
		for c, v := range r {
			raw[i][c] = float64(v)
		}
	}
	return raw
}

// testBundle is the fixed 4-track model: A, B, C share the 1990s and the
// "roc" rosamerica label, D is a different decade and genre. By
// construction cos(A,B) ~ 0.99 and cos(A,C) = 0.8.
func testBundle() *matrix.Bundle {
	ones := make([]float64, matrix.NumColumns)
	zeros := make([]float64, matrix.NumColumns)
	for i := range ones {
		ones[i] = 1
	}
	rows := [][]float32{
		row(1, 0),
		row(0.99, 0.14107),
		row(0.8, 0.6),
		row(0, 1),
	}
	return &matrix.Bundle{
		Version:         matrix.BundleVersion,
		Columns:         matrix.ColumnNames(),
		TrackIDs:        []string{idA, idB, idC, idD},
		Years:           []int{1994, 1991, 1999, 2005},
		GenreDortmund:   []string{"rock", "rock", "rock", "electronic"},
		GenreRosamerica: []string{"roc", "roc", "roc", "dan"},
		Rows:            rows,
		Raw:             rawOf(rows),
		Mean:            zeros,
		Std:             ones,
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(testBundle())
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return e
}

func TestRecommendTopK(t *testing.T) {
	e := testEngine(t)

	opts := DefaultOptions()
	opts.K = 2
	res, err := e.Recommend(idA, opts)
	if err != nil {
		t.Fatalf("Recommend() error: %v", err)
	}

	if res.Stats.Candidates != 2 {
		t.Errorf("Candidates = %d, want 2 (D filtered out)", res.Stats.Candidates)
	}
	if len(res.Tracks) != 2 || res.Tracks[0].MBID != idB || res.Tracks[1].MBID != idC {
		t.Fatalf("Tracks = %+v, want [B C]", res.Tracks)
	}
	if res.Tracks[0].Similarity <= res.Tracks[1].Similarity {
		t.Errorf("similarities not descending: %v >= %v wanted",
			res.Tracks[0].Similarity, res.Tracks[1].Similarity)
	}
	if res.Target.MBID != idA || res.Target.Similarity != 1 {
		t.Errorf("Target = %+v", res.Target)
	}
}

func TestRecommendExclude(t *testing.T) {
	e := testEngine(t)

	opts := DefaultOptions()
	opts.K = 2
	opts.ExcludeIDs = []string{idB}
	res, err := e.Recommend(idA, opts)
	if err != nil {
		t.Fatal(err)
	}

	if res.Stats.Candidates != 1 {
		t.Errorf("Candidates = %d, want 1", res.Stats.Candidates)
	}
	if len(res.Tracks) != 1 || res.Tracks[0].MBID != idC {
		t.Errorf("Tracks = %+v, want [C]", res.Tracks)
	}
}

func TestRecommendUnfiltered(t *testing.T) {
	e := testEngine(t)

	res, err := e.Recommend(idA, Options{K: 10})
	if err != nil {
		t.Fatal(err)
	}

	if res.Stats.Candidates != 3 {
		t.Errorf("Candidates = %d, want full non-self population 3", res.Stats.Candidates)
	}
	want := []string{idB, idC, idD}
	for i, id := range want {
		if res.Tracks[i].MBID != id {
			t.Fatalf("Tracks order = %+v, want [B C D]", res.Tracks)
		}
	}
}

func TestRecommendDortmundClassifier(t *testing.T) {
	e := testEngine(t)

	// Dortmund labels also separate D from the rest, so switching the
	// classifier keeps the same candidate set here.
	opts := DefaultOptions()
	opts.UseRosamerica = false
	res, err := e.Recommend(idA, opts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Candidates != 2 {
		t.Errorf("Candidates = %d, want 2", res.Stats.Candidates)
	}
}

func TestRecommendTargetNotFound(t *testing.T) {
	e := testEngine(t)
	if _, err := e.Recommend("99999999-9999-9999-9999-999999999999", DefaultOptions()); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Recommend() error = %v, want ErrTargetNotFound", err)
	}
}

func TestRecommendDefaultK(t *testing.T) {
	e := testEngine(t)
	res, err := e.Recommend(idA, Options{MatchGenre: true, MatchDecade: true, UseRosamerica: true})
	if err != nil {
		t.Fatal(err)
	}
	// K defaulted to 50, far above the candidate count; everything comes
	// back.
	if len(res.Tracks) != 2 {
		t.Errorf("len(Tracks) = %d, want 2", len(res.Tracks))
	}
}

func TestRecommendUnknownYearWindow(t *testing.T) {
	// The 0 sentinel falls in the [0, 10) window, so an unknown-year
	// target is restricted to other unknown-year tracks.
	b := testBundle()
	b.Years[0] = 0
	b.Years[2] = 0

	e, err := NewEngine(b)
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Recommend(idA, Options{K: 5, MatchDecade: true, MatchGenre: false})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Candidates != 1 {
		t.Fatalf("Candidates = %d, want 1 (only the other unknown-year track)", res.Stats.Candidates)
	}
	if res.Tracks[0].MBID != idC {
		t.Errorf("Tracks = %+v, want [C]", res.Tracks)
	}
}

func TestRecommendEmptyGenreMatchesUnlabeled(t *testing.T) {
	b := testBundle()
	b.GenreRosamerica[0] = ""
	b.GenreRosamerica[2] = ""

	e, err := NewEngine(b)
	if err != nil {
		t.Fatal(err)
	}
	res, err := e.Recommend(idA, Options{K: 5, MatchGenre: true, UseRosamerica: true, MatchDecade: false})
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Candidates != 1 || res.Tracks[0].MBID != idC {
		t.Errorf("Candidates = %d Tracks = %+v, want only the other unlabeled track C",
			res.Stats.Candidates, res.Tracks)
	}
}

func TestRecommendStats(t *testing.T) {
	e := testEngine(t)

	opts := DefaultOptions()
	opts.K = 1
	res, err := e.Recommend(idA, opts)
	if err != nil {
		t.Fatal(err)
	}

	// Stats cover both masked candidates even though only one track was
	// returned.
	if res.Stats.Candidates != 2 {
		t.Fatalf("Candidates = %d, want 2", res.Stats.Candidates)
	}
	simB := res.Tracks[0].Similarity
	if math.Abs(res.Stats.Max-simB) > 1e-9 {
		t.Errorf("Max = %v, want %v", res.Stats.Max, simB)
	}
	wantMean := (simB + 0.8) / 2
	if math.Abs(res.Stats.Mean-wantMean) > 1e-3 {
		t.Errorf("Mean = %v, want ~%v", res.Stats.Mean, wantMean)
	}
	if res.Stats.P95 <= res.Stats.Mean || res.Stats.P95 > res.Stats.Max {
		t.Errorf("P95 = %v, want between mean %v and max %v", res.Stats.P95, res.Stats.Mean, res.Stats.Max)
	}
}

func TestQuantileInterpolation(t *testing.T) {
	tests := []struct {
		name string
		vals []float64
		q    float64
		want float64
	}{
		{"median of pair", []float64{1, 2}, 0.5, 1.5},
		{"p95 of pair", []float64{0.8, 0.99}, 0.95, 0.8 + 0.95*0.19},
		{"single value", []float64{3}, 0.95, 3},
		{"upper bound", []float64{1, 2, 3}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quantile(tt.vals, tt.q); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("quantile(%v, %v) = %v, want %v", tt.vals, tt.q, got, tt.want)
			}
		})
	}
}

func TestFeatureStats(t *testing.T) {
	e := testEngine(t)
	stats := e.FeatureStats()

	if stats.Tracks != 4 || stats.Columns != matrix.NumColumns {
		t.Errorf("stats = %+v", stats)
	}
	if stats.UniqueRows != 4 {
		t.Errorf("UniqueRows = %d, want 4 distinct rows", stats.UniqueRows)
	}
	// Only the first two columns carry any values in the fixture.
	if stats.NearZeroStdColumns != matrix.NumColumns-2 {
		t.Errorf("NearZeroStdColumns = %d, want %d", stats.NearZeroStdColumns, matrix.NumColumns-2)
	}
}

func TestFeatureStatsNegativeZero(t *testing.T) {
	// Rows differing only in the sign of a value that rounds to zero are
	// the same row; -0.0000 must not key separately from 0.0000.
	b := testBundle()
	pos := row(1, 0)
	neg := row(1, 0)
	pos[2] = 1e-9
	neg[2] = -1e-9
	b.Rows = [][]float32{pos, neg, row(0.8, 0.6), row(0, 1)}
	b.Raw = rawOf(b.Rows)

	e, err := NewEngine(b)
	if err != nil {
		t.Fatal(err)
	}
	if stats := e.FeatureStats(); stats.UniqueRows != 3 {
		t.Errorf("UniqueRows = %d, want 3 (zero-sign rows collapsed)", stats.UniqueRows)
	}
}

func TestNewEngineDuplicateID(t *testing.T) {
	b := testBundle()
	b.TrackIDs[1] = idA
	if _, err := NewEngine(b); !errors.Is(err, ErrBundleUnavailable) {
		t.Errorf("NewEngine() with duplicate id error = %v, want ErrBundleUnavailable", err)
	}
}

func TestLoadEngineMissingBundle(t *testing.T) {
	if _, err := LoadEngine(filepath.Join(t.TempDir(), "absent.zst")); !errors.Is(err, ErrBundleUnavailable) {
		t.Errorf("LoadEngine() error = %v, want ErrBundleUnavailable", err)
	}
}
