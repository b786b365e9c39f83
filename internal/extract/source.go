// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package extract

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/tomtom215/harmonia/internal/logging"
)

// Blob is one raw submission handed to the extractor: its origin label
// (file path or archive member name) and its bytes.
type Blob struct {
	Source string
	Data   []byte
}

// ListArchives returns the .tar.zst archives directly under root, sorted
// by name. AcousticBrainz full dumps ship as one archive per part.
func ListArchives(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir %s: %w", root, err)
	}
	var archives []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), ".tar.zst") {
			archives = append(archives, filepath.Join(root, entry.Name()))
		}
	}
	sort.Strings(archives)
	return archives, nil
}

// ListJSONFiles walks root recursively and returns every .json file path.
// Used for extracted dumps; sample datasets are one JSON file per track.
func ListJSONFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk dataset dir %s: %w", root, err)
	}
	return paths, nil
}

// ReadFileBlob loads one JSON file as a Blob.
func ReadFileBlob(path string) (Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Blob{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Blob{Source: filepath.Clean(path), Data: data}, nil
}

// StreamArchive decompresses a .tar.zst archive and calls fn for each
// .json member. Unreadable members are skipped with a warning; fn errors
// abort the stream and propagate.
func StreamArchive(ctx context.Context, path string, fn func(Blob) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only file

	zr, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("zstd reader for %s: %w", path, err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read archive %s: %w", path, err)
		}
		if hdr.Typeflag != tar.TypeReg || !strings.HasSuffix(strings.ToLower(hdr.Name), ".json") {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			logging.Warn().Err(err).Str("member", hdr.Name).Str("archive", path).
				Msg("skipping unreadable archive member")
			continue
		}

		if err := fn(Blob{Source: hdr.Name, Data: data}); err != nil {
			return err
		}
	}
}
