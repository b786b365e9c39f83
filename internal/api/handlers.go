// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/harmonia/internal/config"
	"github.com/tomtom215/harmonia/internal/extract"
	"github.com/tomtom215/harmonia/internal/logging"
	"github.com/tomtom215/harmonia/internal/metrics"
	"github.com/tomtom215/harmonia/internal/recommend"
)

// Handler holds the request handlers' dependencies.
type Handler struct {
	engine *recommend.Engine
	cfg    config.RecommendConfig
}

// NewHandler wires the handlers to a loaded engine.
func NewHandler(engine *recommend.Engine, cfg config.RecommendConfig) *Handler {
	return &Handler{engine: engine, cfg: cfg}
}

// Recommendations serves GET /api/v1/recommendations/{mbid}.
//
// Query parameters: k (result count, capped at the configured maximum),
// match_genre, match_decade, use_rosamerica (booleans, default true),
// exclude (comma-separated track MBIDs).
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	mbid := strings.ToLower(chi.URLParam(r, "mbid"))
	if !extract.IsMBID(mbid) {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "mbid must be a canonical hyphenated UUID")
		return
	}

	opts, err := h.parseOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	result, err := h.engine.Recommend(mbid, opts)
	if err != nil {
		h.writeRecommendError(w, r, err)
		return
	}

	metrics.RecommendationCandidates.Observe(float64(result.Stats.Candidates))
	writeSuccess(w, result)
}

// FeatureStats serves GET /api/v1/features/stats.
func (h *Handler) FeatureStats(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, h.engine.FeatureStats())
}

// Health serves GET /health. The server refuses to start without a
// loaded bundle, so a live process is a ready process.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeSuccess(w, map[string]any{
		"status": "ok",
		"tracks": h.engine.Tracks(),
	})
}

func (h *Handler) parseOptions(r *http.Request) (recommend.Options, error) {
	opts := recommend.DefaultOptions()
	opts.K = h.cfg.DefaultK
	q := r.URL.Query()

	if raw := q.Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 1 {
			return opts, errors.New("k must be a positive integer")
		}
		if k > h.cfg.MaxK {
			k = h.cfg.MaxK
		}
		opts.K = k
	}

	for name, dst := range map[string]*bool{
		"match_genre":    &opts.MatchGenre,
		"match_decade":   &opts.MatchDecade,
		"use_rosamerica": &opts.UseRosamerica,
	} {
		if raw := q.Get(name); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				return opts, errors.New(name + " must be a boolean")
			}
			*dst = v
		}
	}

	if raw := q.Get("exclude"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			id = strings.ToLower(strings.TrimSpace(id))
			if id == "" {
				continue
			}
			if !extract.IsMBID(id) {
				return opts, errors.New("exclude entries must be canonical hyphenated UUIDs")
			}
			opts.ExcludeIDs = append(opts.ExcludeIDs, id)
		}
	}
	return opts, nil
}

// writeRecommendError maps the engine's error taxonomy onto HTTP
// statuses: unknown target is client-correctable, a missing bundle is
// retryable, everything else stays opaque.
func (h *Handler) writeRecommendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, recommend.ErrTargetNotFound):
		metrics.RecommendationErrors.WithLabelValues("target_not_found").Inc()
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "track not in model")
	case errors.Is(err, recommend.ErrBundleUnavailable):
		metrics.RecommendationErrors.WithLabelValues("bundle_unavailable").Inc()
		writeError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "similarity model unavailable, retry later")
	default:
		metrics.RecommendationErrors.WithLabelValues("internal").Inc()
		logging.Error().Err(err).Str("path", r.URL.Path).Msg("recommendation failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "internal error")
	}
}
