// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package extract

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func writeTestArchive(t *testing.T, path string, members map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	tw := tar.NewWriter(zw)

	for name, data := range members {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(data)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write(data); err != nil {
			t.Fatal(err)
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestStreamArchive(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part-0.tar.zst")
	writeTestArchive(t, path, map[string][]byte{
		"highlevel/00/a.json": []byte(`{"a":1}`),
		"highlevel/00/b.json": []byte(`{"b":2}`),
		"highlevel/readme":    []byte("not json"),
	})

	got := map[string]string{}
	err := StreamArchive(context.Background(), path, func(b Blob) error {
		got[b.Source] = string(b.Data)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamArchive() error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("streamed %d members, want 2 (non-JSON skipped): %v", len(got), got)
	}
	if got["highlevel/00/a.json"] != `{"a":1}` {
		t.Errorf("member a = %q", got["highlevel/00/a.json"])
	}
}

func TestStreamArchiveContextCancel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "part-0.tar.zst")
	writeTestArchive(t, path, map[string][]byte{"a.json": []byte(`{}`)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := StreamArchive(ctx, path, func(Blob) error { return nil }); err == nil {
		t.Error("StreamArchive() with canceled context = nil, want error")
	}
}

func TestListJSONFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "00")
	if err := os.MkdirAll(sub, 0o750); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{filepath.Join(sub, "a.json"), filepath.Join(sub, "b.JSON"), filepath.Join(dir, "skip.txt")} {
		if err := os.WriteFile(name, []byte("{}"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := ListJSONFiles(dir)
	if err != nil {
		t.Fatalf("ListJSONFiles() error: %v", err)
	}
	if len(paths) != 2 {
		t.Errorf("found %d files, want 2: %v", len(paths), paths)
	}
}

func TestListArchives(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"part-1.tar.zst", "part-0.tar.zst", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	archives, err := ListArchives(dir)
	if err != nil {
		t.Fatalf("ListArchives() error: %v", err)
	}
	if len(archives) != 2 {
		t.Fatalf("found %d archives, want 2", len(archives))
	}
	if filepath.Base(archives[0]) != "part-0.tar.zst" {
		t.Errorf("archives not sorted: %v", archives)
	}
}
