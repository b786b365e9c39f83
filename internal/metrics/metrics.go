// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package metrics provides Prometheus instrumentation for the pipeline
// and the recommendation API, exposed on /metrics by the server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline metrics

	PipelineSubmissionsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_submissions_processed_total",
			Help: "Total number of source documents extracted successfully",
		},
	)

	PipelineRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_rejections_total",
			Help: "Total number of source documents rejected during extraction",
		},
		[]string{"reason"}, // bad_json, missing_field, invalid_id, empty_title
	)

	PipelineDuplicates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_duplicate_submissions_total",
			Help: "Total number of submissions beyond the first per track",
		},
	)

	PipelineTracksMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_tracks_merged_total",
			Help: "Total number of canonical tracks produced by the merge phase",
		},
	)

	PipelineTracksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tracks_dropped_total",
			Help: "Total number of track groups dropped during merge",
		},
		[]string{"reason"}, // no_artist
	)

	PipelineMergeInconsistencies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_merge_inconsistencies_total",
			Help: "Total number of album merges hitting the consistency guard",
		},
	)

	PipelinePhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_phase_duration_seconds",
			Help:    "Duration of pipeline phases in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600, 14400},
		},
		[]string{"phase"}, // extract, merge, catalog, bundle
	)

	IndexSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "grouping_index_size_bytes",
			Help: "Approximate on-disk size of the grouping index",
		},
	)

	// Catalog metrics

	CatalogInsertDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_insert_duration_seconds",
			Help:    "Duration of DuckDB batch inserts in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	CatalogRowsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_rows_inserted_total",
			Help: "Total number of rows inserted into the catalog",
		},
		[]string{"table"},
	)

	// API metrics

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	RecommendationCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recommendation_candidates",
			Help:    "Number of masked candidates per recommendation query",
			Buckets: []float64{10, 100, 1000, 10000, 100000, 1000000},
		},
	)

	RecommendationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_errors_total",
			Help: "Total number of failed recommendation queries",
		},
		[]string{"kind"}, // target_not_found, bundle_unavailable, internal
	)
)

// RecordPhase records one completed pipeline phase.
func RecordPhase(phase string, duration time.Duration) {
	PipelinePhaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordRejection records one extraction rejection by reason.
func RecordRejection(reason string) {
	PipelineRejections.WithLabelValues(reason).Inc()
}

// RecordCatalogInsert records one batch insert into a catalog table.
func RecordCatalogInsert(table string, rows int, duration time.Duration) {
	CatalogInsertDuration.WithLabelValues(table).Observe(duration.Seconds())
	CatalogRowsInserted.WithLabelValues(table).Add(float64(rows))
}
