// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package pipeline orchestrates a full corpus rebuild: parallel
// extraction into the grouping index, the merge pass, catalog
// persistence, and the similarity-bundle export.
//
// Failure policy: per-document extraction failures and per-group merge
// failures are converted to counters and never abort the run; index,
// catalog, and bundle I/O failures do.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/harmonia/internal/catalog"
	"github.com/tomtom215/harmonia/internal/config"
	"github.com/tomtom215/harmonia/internal/extract"
	"github.com/tomtom215/harmonia/internal/logging"
	"github.com/tomtom215/harmonia/internal/matrix"
	"github.com/tomtom215/harmonia/internal/merge"
	"github.com/tomtom215/harmonia/internal/metrics"
	"github.com/tomtom215/harmonia/internal/trackindex"
)

// Runner executes one full pipeline run.
type Runner struct {
	cfg    *config.Config
	logger zerolog.Logger
}

// New returns a Runner for cfg.
func New(cfg *config.Config) *Runner {
	return &Runner{
		cfg:    cfg,
		logger: logging.With().Str("component", "pipeline").Logger(),
	}
}

// Run rebuilds the index, catalog, and bundle from the configured
// dataset root. The grouping index directory is recreated from scratch;
// a run is never incremental.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := NewReport()

	if err := os.RemoveAll(r.cfg.Index.Dir); err != nil {
		return nil, fmt.Errorf("reset index dir: %w", err)
	}
	ix, err := trackindex.Open(trackindex.Options{
		Dir:         r.cfg.Index.Dir,
		BatchSize:   r.cfg.Index.BatchSize,
		Compression: r.cfg.Index.Compression,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ix.Close(); err != nil {
			r.logger.Error().Err(err).Msg("index close failed")
		}
	}()

	if err := r.extractPhase(ctx, ix, report); err != nil {
		return nil, err
	}

	tracks, err := r.mergePhase(ix, report)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("pipeline: no tracks survived merge")
	}

	if err := r.catalogPhase(ctx, tracks, report); err != nil {
		return nil, err
	}

	if err := r.bundlePhase(tracks, report); err != nil {
		return nil, err
	}

	report.Elapsed = time.Since(start)
	r.logger.Info().
		Int64("extracted", report.Extracted.Load()).
		Int64("rejected", report.TotalRejected()).
		Int64("duplicates", report.Duplicates.Load()).
		Int64("tracks", report.Tracks.Load()).
		Int64("dropped_no_artist", report.DroppedNoArtist.Load()).
		Int64("inconsistent_albums", report.InconsistentAlbums.Load()).
		Dur("elapsed", report.Elapsed).
		Msg("pipeline run complete")
	return report, nil
}

// extractPhase streams source documents through a worker pool into the
// grouping index.
func (r *Runner) extractPhase(ctx context.Context, ix *trackindex.Index, report *Report) error {
	phaseStart := time.Now()

	workers := r.cfg.Dataset.Workers
	if workers <= 0 {
		workers = 4
	}
	extractor := extract.NewExtractor(&report.Diagnostics, r.cfg.Dataset.LogRejections)

	blobs := make(chan extract.Blob, 4*workers)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(blobs)
		return r.produceBlobs(gctx, blobs)
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for blob := range blobs {
				sub, err := extractor.Extract(blob.Data, blob.Source)
				if err != nil {
					var rej *extract.Rejection
					if errors.As(err, &rej) {
						report.CountRejection(rej.Kind)
						metrics.RecordRejection(string(rej.Kind))
						continue
					}
					return err
				}

				size, err := ix.Append(sub.MBID, sub)
				if err != nil {
					return fmt.Errorf("pipeline extract: %w", err)
				}
				report.Extracted.Add(1)
				metrics.PipelineSubmissionsProcessed.Inc()
				if size > 1 {
					report.Duplicates.Add(1)
					metrics.PipelineDuplicates.Inc()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ix.Flush(); err != nil {
		return err
	}

	metrics.IndexSizeBytes.Set(float64(ix.SizeBytes()))
	metrics.RecordPhase("extract", time.Since(phaseStart))
	r.logger.Info().
		Int64("extracted", report.Extracted.Load()).
		Int64("rejected", report.TotalRejected()).
		Int64("index_bytes", ix.SizeBytes()).
		Dur("elapsed", time.Since(phaseStart)).
		Msg("extraction complete")
	return nil
}

// produceBlobs feeds source documents into out. Zstd tar archives are
// preferred; a dataset root with none is walked for loose JSON files.
// Dataset.Parts caps how many archives are consumed.
func (r *Runner) produceBlobs(ctx context.Context, out chan<- extract.Blob) error {
	archives, err := extract.ListArchives(r.cfg.Dataset.Root)
	if err != nil {
		return err
	}
	if parts := r.cfg.Dataset.Parts; parts > 0 && len(archives) > parts {
		archives = archives[:parts]
	}

	if len(archives) > 0 {
		for _, path := range archives {
			r.logger.Info().Str("archive", path).Msg("streaming archive")
			err := extract.StreamArchive(ctx, path, func(b extract.Blob) error {
				select {
				case out <- b:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			})
			if err != nil {
				return err
			}
		}
		return nil
	}

	paths, err := extract.ListJSONFiles(r.cfg.Dataset.Root)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("pipeline: no archives or JSON files under %s", r.cfg.Dataset.Root)
	}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		blob, err := extract.ReadFileBlob(path)
		if err != nil {
			return err
		}
		select {
		case out <- blob:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// mergePhase walks every group once, merging it to a canonical track.
// Groups are then shrunk in the index to their canonical singleton, or
// deleted when the track was dropped. Single-threaded so frequency
// tie-breaks stay reproducible.
func (r *Runner) mergePhase(ix *trackindex.Index, report *Report) ([]*merge.CanonicalTrack, error) {
	phaseStart := time.Now()

	var tracks []*merge.CanonicalTrack
	var dropped []string

	err := ix.Items(func(id string, group []*extract.Submission) error {
		track, err := merge.Group(id, group)
		switch {
		case errors.Is(err, merge.ErrNoArtist):
			report.DroppedNoArtist.Add(1)
			metrics.PipelineTracksDropped.WithLabelValues("no_artist").Inc()
			dropped = append(dropped, id)
			return nil
		case errors.Is(err, merge.ErrInconsistentAlbum):
			report.InconsistentAlbums.Add(1)
			metrics.PipelineMergeInconsistencies.Inc()
			r.logger.Warn().Str("track", id).Err(err).Msg("album merge inconsistency")
		case err != nil:
			return err
		}

		tracks = append(tracks, track)
		report.Tracks.Add(1)
		metrics.PipelineTracksMerged.Inc()
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range dropped {
		if err := ix.Replace(id, nil); err != nil {
			return nil, err
		}
	}
	for _, track := range tracks {
		if err := ix.Replace(track.MBID, []*extract.Submission{canonicalSubmission(track)}); err != nil {
			return nil, err
		}
	}
	if err := ix.Flush(); err != nil {
		return nil, err
	}

	metrics.RecordPhase("merge", time.Since(phaseStart))
	r.logger.Info().
		Int("tracks", len(tracks)).
		Int("dropped", len(dropped)).
		Dur("elapsed", time.Since(phaseStart)).
		Msg("merge complete")
	return tracks, nil
}

// canonicalSubmission is the post-merge singleton written back into the
// grouping index.
func canonicalSubmission(t *merge.CanonicalTrack) *extract.Submission {
	return &extract.Submission{
		MBID:            t.MBID,
		Title:           t.Title,
		Duration:        t.Duration,
		GenreDortmund:   t.GenreDortmund,
		GenreRosamerica: t.GenreRosamerica,
		Features:        t.Features,
		Mirex:           t.Mirex,
		Artists:         t.Artists,
		Album:           t.Album,
		Source:          "merged",
	}
}

func (r *Runner) catalogPhase(ctx context.Context, tracks []*merge.CanonicalTrack, report *Report) error {
	if r.cfg.Catalog.Path == "" {
		r.logger.Info().Msg("catalog persistence disabled")
		return nil
	}
	phaseStart := time.Now()

	db, err := catalog.Open(r.cfg.Catalog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			r.logger.Error().Err(err).Msg("catalog close failed")
		}
	}()

	stats, err := db.ReplaceAll(ctx, tracks)
	if err != nil {
		return err
	}
	report.Catalog = stats

	metrics.RecordPhase("catalog", time.Since(phaseStart))
	return nil
}

func (r *Runner) bundlePhase(tracks []*merge.CanonicalTrack, report *Report) error {
	phaseStart := time.Now()

	bundle, err := matrix.Build(tracks)
	if err != nil {
		return err
	}
	if err := bundle.Save(r.cfg.Bundle.Path); err != nil {
		return err
	}
	report.BundleTracks = bundle.Len()

	metrics.RecordPhase("bundle", time.Since(phaseStart))
	r.logger.Info().
		Str("path", r.cfg.Bundle.Path).
		Int("tracks", bundle.Len()).
		Dur("elapsed", time.Since(phaseStart)).
		Msg("bundle exported")
	return nil
}

// CountRejection increments the per-kind rejection counter.
func (rep *Report) CountRejection(kind extract.RejectKind) {
	switch kind {
	case extract.RejectBadJSON:
		rep.RejectedBadJSON.Add(1)
	case extract.RejectMissingField:
		rep.RejectedMissingField.Add(1)
	case extract.RejectInvalidID:
		rep.RejectedInvalidID.Add(1)
	case extract.RejectEmptyTitle:
		rep.RejectedEmptyTitle.Add(1)
	default:
		rep.RejectedOther.Add(1)
	}
}

// Report aggregates one run's diagnostics. Counter fields are atomic so
// extraction workers can update them concurrently.
type Report struct {
	Diagnostics extract.Diagnostics

	Extracted            atomic.Int64
	RejectedBadJSON      atomic.Int64
	RejectedMissingField atomic.Int64
	RejectedInvalidID    atomic.Int64
	RejectedEmptyTitle   atomic.Int64
	RejectedOther        atomic.Int64
	Duplicates           atomic.Int64
	Tracks               atomic.Int64
	DroppedNoArtist      atomic.Int64
	InconsistentAlbums   atomic.Int64

	Catalog      *catalog.Stats
	BundleTracks int
	Elapsed      time.Duration
}

// NewReport returns an empty report.
func NewReport() *Report { return &Report{} }

// TotalRejected sums the per-kind rejection counters.
func (rep *Report) TotalRejected() int64 {
	return rep.RejectedBadJSON.Load() +
		rep.RejectedMissingField.Load() +
		rep.RejectedInvalidID.Load() +
		rep.RejectedEmptyTitle.Load() +
		rep.RejectedOther.Load()
}
