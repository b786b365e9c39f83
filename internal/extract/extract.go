// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package extract

import (
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/harmonia/internal/logging"
)

// Extractor parses raw submissions and records diagnostics. Safe for
// concurrent use by extraction workers; counters are atomic.
type Extractor struct {
	diag          *Diagnostics
	logRejections bool
	logger        zerolog.Logger
}

// NewExtractor creates an Extractor writing counters into diag.
// A nil diag gets a private Diagnostics.
func NewExtractor(diag *Diagnostics, logRejections bool) *Extractor {
	if diag == nil {
		diag = &Diagnostics{}
	}
	return &Extractor{
		diag:          diag,
		logRejections: logRejections,
		logger:        logging.With().Str("component", "extract").Logger(),
	}
}

// Diagnostics returns the extractor's diagnostics counters.
func (e *Extractor) Diagnostics() *Diagnostics { return e.diag }

// Extract parses one raw JSON blob into a Submission. The error, when
// non-nil, is always a *Rejection; rejections are counted in Diagnostics.
// source labels the origin (file path or archive member) for logging.
func (e *Extractor) Extract(raw []byte, source string) (*Submission, error) {
	sub, rej := e.extract(raw, source)
	if rej != nil {
		e.diag.MissingData.Add(1)
		if e.logRejections {
			e.logger.Debug().
				Str("reason", rej.Reason()).
				Str("source", source).
				Msg("submission rejected")
		}
		return nil, rej
	}
	return sub, nil
}

func (e *Extractor) extract(raw []byte, source string) (*Submission, *Rejection) {
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &Rejection{Kind: RejectBadJSON, Source: source}
	}

	highlevel := subMap(data, "highlevel")
	metadata := subMap(data, "metadata")
	tags := subMap(metadata, "tags")

	mbid, ok := tagValue(tags, "musicbrainz_recordingid")
	if !ok || mbid == "" {
		return nil, rejectMissing("metadata.tags.musicbrainz_recordingid", source)
	}
	if !IsMBID(mbid) {
		return nil, &Rejection{Kind: RejectInvalidID, Detail: mbid, Source: source}
	}

	title, ok := tagValue(tags, "title")
	if !ok {
		return nil, rejectMissing("metadata.tags.title", source)
	}
	if strings.TrimSpace(title) == "" {
		return nil, &Rejection{Kind: RejectEmptyTitle, Source: source}
	}

	duration, ok := numberAt(subMap(metadata, "audio_properties"), "length")
	if !ok {
		return nil, rejectMissing("metadata.audio_properties.length", source)
	}

	genreDortmund, ok := stringAt(subMap(highlevel, "genre_dortmund"), "value")
	if !ok {
		return nil, rejectMissing("highlevel.genre_dortmund.value", source)
	}
	genreRosamerica, ok := stringAt(subMap(highlevel, "genre_rosamerica"), "value")
	if !ok {
		return nil, rejectMissing("highlevel.genre_rosamerica.value", source)
	}

	features := make([]float64, NumFeatures)
	for i, src := range featureSources {
		v, ok := numberAt(subMap(subMap(highlevel, src.parent), "all"), src.leaf)
		if !ok {
			return nil, rejectMissing("highlevel."+src.parent+".all."+src.leaf, source)
		}
		features[i] = v
	}

	sub := &Submission{
		MBID:            mbid,
		Title:           title,
		Duration:        duration,
		GenreDortmund:   genreDortmund,
		GenreRosamerica: genreRosamerica,
		Features:        features,
		Mirex:           extractProbVector(highlevel, "moods_mirex", MirexClusters),
		Artists:         extractArtists(tags),
		Album:           e.extractAlbum(tags),
		Source:          source,
	}
	return sub, nil
}

// extractProbVector reads highlevel.<parentKey>.all and builds a vector in
// `order`, defaulting missing entries to 0. When the sum is positive the
// vector is normalized to sum to 1; an all-zero vector is left as-is.
func extractProbVector(highlevel map[string]interface{}, parentKey string, order []string) []float64 {
	probs := subMap(subMap(highlevel, parentKey), "all")

	vec := make([]float64, len(order))
	sum := 0.0
	for i, key := range order {
		if v, ok := numberAt(probs, key); ok {
			vec[i] = v
			sum += v
		}
	}
	if sum > 0 {
		for i := range vec {
			vec[i] /= sum
		}
	}
	return vec
}

// extractArtists returns the (artist_id, artist_name) pairs of a
// submission. Tracks can legitimately lack artists at the submission
// level, so absence returns an empty list rather than a rejection; the
// no-artist drop happens after merge.
func extractArtists(tags map[string]interface{}) []ArtistPair {
	ids := tagList(tags, "musicbrainz_artistid")
	if len(ids) == 0 {
		return nil
	}

	// Names may live under "artist" or "artists"; only a list whose
	// length matches the id list can be index-matched to it.
	var names []string
	for _, key := range []string{"artist", "artists"} {
		if candidate := tagList(tags, key); len(candidate) == len(ids) {
			names = candidate
			break
		}
	}
	if names == nil {
		return nil
	}

	pairs := make([]ArtistPair, 0, len(ids))
	for i, id := range ids {
		id = strings.TrimSpace(id)
		// Invalid artist ids are dropped silently, not rejected.
		if IsMBID(id) {
			pairs = append(pairs, ArtistPair{ID: id, Name: names[i]})
		}
	}
	return pairs
}

// extractAlbum returns the album tuple of a submission, or nil when none
// of (valid id, name, date) is present. The release date is tried from
// the more specific "originaldate" tag first, then "date"; when neither
// yields a date the invalid-date counter is incremented but the record is
// kept.
func (e *Extractor) extractAlbum(tags map[string]interface{}) *AlbumInfo {
	albumID, _ := tagValue(tags, "musicbrainz_albumid")
	albumName, _ := tagValue(tags, "album")

	originalDate, _ := tagValue(tags, "originaldate")
	dateTag, _ := tagValue(tags, "date")

	releaseDate, ok := ParseFlexibleDate(originalDate)
	if !ok {
		releaseDate, ok = ParseFlexibleDate(dateTag)
	}
	if !ok {
		e.diag.InvalidDates.Add(1)
	}

	if !IsMBID(albumID) {
		albumID = ""
	}
	if albumID == "" && albumName == "" && !ok {
		return nil
	}

	info := &AlbumInfo{ID: albumID, Name: albumName}
	if ok {
		info.ReleaseDate = releaseDate
	}
	return info
}

// subMap returns m[key] as a map, or an empty map when absent or of the
// wrong type, so nested navigation never panics.
func subMap(m map[string]interface{}, key string) map[string]interface{} {
	if m == nil {
		return nil
	}
	if sub, ok := m[key].(map[string]interface{}); ok {
		return sub
	}
	return nil
}

// tagValue returns the first element of the string list stored under a
// metadata tag key. Tag values in AcousticBrainz dumps are JSON arrays.
func tagValue(tags map[string]interface{}, key string) (string, bool) {
	list := tagList(tags, key)
	if len(list) == 0 {
		return "", false
	}
	return list[0], true
}

// tagList returns the string list stored under a metadata tag key.
func tagList(tags map[string]interface{}, key string) []string {
	if tags == nil {
		return nil
	}
	raw, ok := tags[key].([]interface{})
	if !ok {
		return nil
	}
	list := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		list = append(list, s)
	}
	return list
}

func stringAt(m map[string]interface{}, key string) (string, bool) {
	if m == nil {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}

func numberAt(m map[string]interface{}, key string) (float64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
