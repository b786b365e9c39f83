// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package extract parses raw AcousticBrainz high-level JSON submissions
// into validated records.
//
// One raw blob describes one submission for one track; a track usually has
// several duplicate submissions, which are resolved later by the merge
// engine. Extraction either produces a complete Submission or a typed
// Rejection naming exactly which field was missing or malformed —
// downstream reporting counts rejections by reason text.
package extract

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// FeatureNames lists the 11 continuous high-level features in the fixed
// order used for feature vectors and matrix columns.
var FeatureNames = []string{
	"danceability",
	"aggressiveness",
	"happiness",
	"sadness",
	"relaxedness",
	"partyness",
	"acousticness",
	"electronicness",
	"instrumentalness",
	"tonality",
	"brightness",
}

// MirexClusters lists the mood cluster keys of the moods_mirex probability
// distribution, in the fixed order used for vectors and matrix columns.
var MirexClusters = []string{"Cluster1", "Cluster2", "Cluster3", "Cluster4", "Cluster5"}

// NumFeatures is the length of the continuous feature vector.
const NumFeatures = 11

// NumMirex is the length of the moods_mirex probability vector.
const NumMirex = 5

// featureSources maps each feature name to its highlevel.<parent>.all.<leaf>
// source path, in FeatureNames order.
var featureSources = []struct {
	name   string
	parent string
	leaf   string
}{
	{"danceability", "danceability", "danceable"},
	{"aggressiveness", "mood_aggressive", "aggressive"},
	{"happiness", "mood_happy", "happy"},
	{"sadness", "mood_sad", "sad"},
	{"relaxedness", "mood_relaxed", "relaxed"},
	{"partyness", "mood_party", "party"},
	{"acousticness", "mood_acoustic", "acoustic"},
	{"electronicness", "mood_electronic", "electronic"},
	{"instrumentalness", "voice_instrumental", "instrumental"},
	{"tonality", "tonal_atonal", "tonal"},
	{"brightness", "timbre", "bright"},
}

// mbidPattern is the canonical 8-4-4-4-12 hyphenated hex form of a
// MusicBrainz identifier. https://musicbrainz.org/doc/MusicBrainz_Identifier
var mbidPattern = regexp.MustCompile(`^(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// IsMBID reports whether s is a valid 36-character MBID: it must match the
// canonical hyphenated form and parse as a UUID.
func IsMBID(s string) bool {
	if !mbidPattern.MatchString(s) {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

// ArtistPair associates an artist MBID with the name it appeared under in
// one submission.
type ArtistPair struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// AlbumInfo carries the album fields of one submission. At least one of
// ID, Name or ReleaseDate is set; a submission with none of the three has
// a nil *AlbumInfo instead. A zero ReleaseDate means unknown.
type AlbumInfo struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name,omitempty"`
	ReleaseDate time.Time `json:"release_date,omitempty"`
}

// Submission is one parsed and validated AcousticBrainz submission.
// Immutable once created; consumed and discarded by the merge engine.
type Submission struct {
	MBID            string       `json:"mbid"`
	Title           string       `json:"title"`
	Duration        float64      `json:"duration"`
	GenreDortmund   string       `json:"genre_dortmund"`
	GenreRosamerica string       `json:"genre_rosamerica"`
	Features        []float64    `json:"features"`
	Mirex           []float64    `json:"mirex"`
	Artists         []ArtistPair `json:"artists,omitempty"`
	Album           *AlbumInfo   `json:"album,omitempty"`
	Source          string       `json:"source,omitempty"`
}

// RejectKind classifies why a submission was rejected.
type RejectKind string

// Rejection kinds. MissingField rejections carry a Detail naming the
// offending field expression.
const (
	RejectBadJSON      RejectKind = "bad_json"
	RejectMissingField RejectKind = "missing_field"
	RejectInvalidID    RejectKind = "invalid_id"
	RejectEmptyTitle   RejectKind = "empty_title"
)

// Rejection is the typed error returned when a submission cannot be
// extracted. Rejections are expected and high-frequency: they are counted,
// optionally logged, and never abort a batch.
type Rejection struct {
	Kind   RejectKind
	Detail string
	Source string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
}

// Reason returns the stable reason text used for rejection accounting.
func (r *Rejection) Reason() string {
	return r.Error()
}

func rejectMissing(detail, source string) *Rejection {
	return &Rejection{Kind: RejectMissingField, Detail: detail, Source: source}
}
