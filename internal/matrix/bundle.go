// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package matrix

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// BundleVersion is bumped whenever the envelope layout changes; loads of
// a different version fail instead of guessing.
const BundleVersion = 2

// Bundle is the persisted similarity model: the normalized matrix plus
// the metadata arrays the recommender filters on, all row-aligned, and
// the scaler parameters the matrix was standardized with. Raw keeps the
// unscaled feature values per row; standardization and L2 normalization
// are lossy, so without it the original values could not be recovered
// for re-weighting.
type Bundle struct {
	Version         int         `json:"version"`
	Columns         []string    `json:"columns"`
	TrackIDs        []string    `json:"track_ids"`
	Years           []int       `json:"years"`
	GenreDortmund   []string    `json:"genre_dortmund"`
	GenreRosamerica []string    `json:"genre_rosamerica"`
	Rows            [][]float32 `json:"rows"`
	Raw             [][]float64 `json:"raw"`
	Mean            []float64   `json:"mean"`
	Std             []float64   `json:"std"`
}

// Len returns the number of tracks in the bundle.
func (b *Bundle) Len() int { return len(b.TrackIDs) }

// Validate checks the row alignment and matrix shape. A bundle failing
// validation must never be served; a shifted array would silently return
// recommendations for the wrong tracks.
func (b *Bundle) Validate() error {
	if b.Version != BundleVersion {
		return fmt.Errorf("bundle version %d, want %d", b.Version, BundleVersion)
	}
	if len(b.Columns) != NumColumns {
		return fmt.Errorf("bundle has %d columns, want %d", len(b.Columns), NumColumns)
	}
	n := len(b.TrackIDs)
	if n == 0 {
		return fmt.Errorf("bundle has no tracks")
	}
	if len(b.Years) != n || len(b.GenreDortmund) != n || len(b.GenreRosamerica) != n || len(b.Rows) != n || len(b.Raw) != n {
		return fmt.Errorf("bundle arrays misaligned: ids=%d years=%d dortmund=%d rosamerica=%d rows=%d raw=%d",
			n, len(b.Years), len(b.GenreDortmund), len(b.GenreRosamerica), len(b.Rows), len(b.Raw))
	}
	for i, row := range b.Rows {
		if len(row) != NumColumns {
			return fmt.Errorf("bundle row %d has %d columns, want %d", i, len(row), NumColumns)
		}
	}
	for i, row := range b.Raw {
		if len(row) != NumColumns {
			return fmt.Errorf("bundle raw row %d has %d columns, want %d", i, len(row), NumColumns)
		}
	}
	if len(b.Mean) != NumColumns || len(b.Std) != NumColumns {
		return fmt.Errorf("bundle scaler params misaligned: mean=%d std=%d", len(b.Mean), len(b.Std))
	}
	return nil
}

// Save writes the bundle as a zstd-compressed JSON envelope. The write
// goes through a temp file and rename so a crash mid-write never leaves
// a truncated bundle at the target path.
func (b *Bundle) Save(path string) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bundle-*.tmp")
	if err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	defer os.Remove(tmp.Name())

	zw, err := zstd.NewWriter(tmp, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		tmp.Close()
		return fmt.Errorf("save bundle: %w", err)
	}
	if err := json.NewEncoder(zw).Encode(b); err != nil {
		zw.Close()
		tmp.Close()
		return fmt.Errorf("encode bundle: %w", err)
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("save bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save bundle: %w", err)
	}
	return nil
}

// LoadBundle reads and validates a bundle written by Save.
func LoadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load bundle: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("load bundle: %w", err)
	}
	defer zr.Close()

	var b Bundle
	if err := json.NewDecoder(zr).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", path, err)
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("load bundle %s: %w", path, err)
	}
	return &b, nil
}
