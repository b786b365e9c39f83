// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

// Package merge reduces the duplicate submissions of one track to a
// single canonical record.
//
// Each field is aggregated independently with a policy suited to its
// type: medians for numeric fields (robust to a few garbage submissions),
// frequency votes for categorical fields and artist line-ups, element-wise
// means for probability distributions. One field having no data never
// blocks another field's aggregation.
//
// Tie-breaking is deterministic per run: among values sharing the winning
// frequency, the first one to reach that count in input order wins.
package merge

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/harmonia/internal/extract"
)

// Merge errors.
var (
	// ErrEmptyGroup is returned for a group with no submissions.
	ErrEmptyGroup = errors.New("merge: empty submission group")

	// ErrNoArtist is returned when the merged artist list is empty.
	// A track with no identifiable performer is dropped entirely.
	ErrNoArtist = errors.New("merge: no artist after merge")

	// ErrInconsistentAlbum signals that the winning album id had no name
	// or date votes. Every submission contributing to the id vote also
	// feeds the same id's name/date buckets, so this indicates a logic
	// bug upstream. The caller counts it and keeps the track with a nil
	// album.
	ErrInconsistentAlbum = errors.New("merge: winning album id missing name or date")
)

// CanonicalTrack is the single record surviving merge for one track.
// Fields hold the most representative value across duplicates.
type CanonicalTrack struct {
	MBID            string
	Title           string
	Duration        float64
	GenreDortmund   string
	GenreRosamerica string
	Features        []float64
	Mirex           []float64
	Artists         []extract.ArtistPair
	Album           *extract.AlbumInfo

	// Submissions is the duplicate count, exposed downstream as a
	// popularity signal.
	Submissions int
}

// Group merges all submissions for one track id into a CanonicalTrack.
//
// ErrNoArtist and ErrEmptyGroup return a nil track. ErrInconsistentAlbum
// returns BOTH a valid track (with nil album) and the error, so the
// caller can count the inconsistency without losing the track.
func Group(id string, subs []*extract.Submission) (*CanonicalTrack, error) {
	if len(subs) == 0 {
		return nil, ErrEmptyGroup
	}

	artists := ArtistPairs(subs)
	if len(artists) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoArtist, id)
	}

	album, albumErr := AlbumData(subs)

	track := &CanonicalTrack{
		MBID:            id,
		Title:           mostFrequent(collectStrings(subs, func(s *extract.Submission) string { return s.Title })),
		Duration:        median(collectFloats(subs, func(s *extract.Submission) (float64, bool) { return s.Duration, true })),
		GenreDortmund:   mostFrequent(collectStrings(subs, func(s *extract.Submission) string { return s.GenreDortmund })),
		GenreRosamerica: mostFrequent(collectStrings(subs, func(s *extract.Submission) string { return s.GenreRosamerica })),
		Features:        medianVector(subs),
		Mirex:           Distribution(subs),
		Artists:         artists,
		Album:           album,
		Submissions:     len(subs),
	}
	return track, albumErr
}

// median returns the middle value of vals (mean of the two middles for
// even counts), or NaN when vals is empty.
func median(vals []float64) float64 {
	if len(vals) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// medianVector computes the per-column median of the continuous feature
// vectors. Submissions with a malformed vector length are ignored; nil is
// returned when none qualify.
func medianVector(subs []*extract.Submission) []float64 {
	var vecs [][]float64
	for _, s := range subs {
		if len(s.Features) == extract.NumFeatures {
			vecs = append(vecs, s.Features)
		}
	}
	if len(vecs) == 0 {
		return nil
	}

	out := make([]float64, extract.NumFeatures)
	column := make([]float64, len(vecs))
	for col := 0; col < extract.NumFeatures; col++ {
		for i, v := range vecs {
			column[i] = v[col]
		}
		out[col] = median(column)
	}
	return out
}

// Distribution merges the moods_mirex probability vectors by element-wise
// mean over the submissions that provide one, renormalizing when the
// result sums to a positive value.
func Distribution(subs []*extract.Submission) []float64 {
	var vecs [][]float64
	for _, s := range subs {
		if len(s.Mirex) == extract.NumMirex {
			vecs = append(vecs, s.Mirex)
		}
	}
	if len(vecs) == 0 {
		return make([]float64, extract.NumMirex)
	}

	out := make([]float64, extract.NumMirex)
	for _, v := range vecs {
		for i := range out {
			out[i] += v[i]
		}
	}
	sum := 0.0
	for i := range out {
		out[i] /= float64(len(vecs))
		sum += out[i]
	}
	if sum > 0 {
		for i := range out {
			out[i] /= sum
		}
	}
	return out
}

// mostFrequent returns the most frequent non-empty value. Among values
// tied on frequency, the first to reach the winning count in input order
// wins, which keeps results reproducible per run.
func mostFrequent(vals []string) string {
	counts := make(map[string]int, len(vals))
	best := ""
	bestCount := 0
	for _, v := range vals {
		if v == "" {
			continue
		}
		counts[v]++
		if counts[v] > bestCount {
			best = v
			bestCount = counts[v]
		}
	}
	return best
}

func collectStrings(subs []*extract.Submission, get func(*extract.Submission) string) []string {
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, get(s))
	}
	return out
}

func collectFloats(subs []*extract.Submission, get func(*extract.Submission) (float64, bool)) []float64 {
	out := make([]float64, 0, len(subs))
	for _, s := range subs {
		if v, ok := get(s); ok && !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// ArtistPairs merges artist line-ups by voting on order-independent
// signatures: each submission's pairs are sorted by artist id before
// counting, so the same set of artists in a different input order casts
// the same vote. The most frequent line-up wins; the empty result means
// no submission had any artist.
func ArtistPairs(subs []*extract.Submission) []extract.ArtistPair {
	counts := make(map[string]int)
	lineups := make(map[string][]extract.ArtistPair)

	var best string
	bestCount := 0
	for _, s := range subs {
		if len(s.Artists) == 0 {
			continue
		}
		sorted := append([]extract.ArtistPair(nil), s.Artists...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

		sig := signature(sorted)
		counts[sig]++
		if _, seen := lineups[sig]; !seen {
			lineups[sig] = sorted
		}
		if counts[sig] > bestCount {
			best = sig
			bestCount = counts[sig]
		}
	}
	if bestCount == 0 {
		return nil
	}
	return lineups[best]
}

func signature(pairs []extract.ArtistPair) string {
	var b strings.Builder
	for _, p := range pairs {
		b.WriteString(p.ID)
		b.WriteByte(0x1f)
		b.WriteString(p.Name)
		b.WriteByte(0x1e)
	}
	return b.String()
}

// AlbumData merges album info through three independent decisions:
// the most frequent album id; the most frequent name among submissions
// carrying that id; and the median-low release date among those same
// submissions (for even counts, the lower of the two middle dates, never
// an interpolated value). A nil result with nil error means no submission
// supplied an album id.
func AlbumData(subs []*extract.Submission) (*extract.AlbumInfo, error) {
	idCounts := make(map[string]int)
	nameVotes := make(map[string][]string)
	dateVotes := make(map[string][]time.Time)

	var best string
	bestCount := 0
	for _, s := range subs {
		if s.Album == nil {
			continue
		}
		a := s.Album
		if a.ID != "" {
			idCounts[a.ID]++
			if idCounts[a.ID] > bestCount {
				best = a.ID
				bestCount = idCounts[a.ID]
			}
		}
		if a.Name != "" {
			nameVotes[a.ID] = append(nameVotes[a.ID], a.Name)
		}
		if !a.ReleaseDate.IsZero() {
			dateVotes[a.ID] = append(dateVotes[a.ID], a.ReleaseDate)
		}
	}
	if bestCount == 0 {
		return nil, nil
	}

	name := mostFrequent(nameVotes[best])
	date := medianLowDate(dateVotes[best])
	if name == "" || date.IsZero() {
		return nil, fmt.Errorf("%w: id=%s name=%q date=%s", ErrInconsistentAlbum, best, name, date.Format(time.DateOnly))
	}

	return &extract.AlbumInfo{ID: best, Name: name, ReleaseDate: date}, nil
}

// medianLowDate returns the lower-middle date of the sample, or the zero
// time for an empty sample.
func medianLowDate(dates []time.Time) time.Time {
	if len(dates) == 0 {
		return time.Time{}
	}
	sorted := append([]time.Time(nil), dates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return sorted[(len(sorted)-1)/2]
}
