// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// MinYear is the floor below which a parsed year is treated as invalid.
// Dump data contains placeholder dates like "0001-01-01" and "0010".
const MinYear = 1000

var (
	ordinalRe    = regexp.MustCompile(`(?i)(\d{1,2})(st|nd|rd|th)`)
	ofWordRe     = regexp.MustCompile(`(?i)\bof\b`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	partSplitRe  = regexp.MustCompile(`[-./]`)
)

// dateLayouts are the explicit formats tried in order. Year-only and
// year-month matches get their missing components filled with 1.
var dateLayouts = []string{
	"2006-01-02",          // "2005-07-14"
	"2006-01",             // "2005-07"
	"2006",                // "2005"
	"2006.01.02",          // "2000.06.21"
	"2 January 2006",      // "23 February 1998"
	"2 Jan 2006",          // "23 Feb 1998"
	"2006-01-02T15:04:05", // "2005-07-14T13:45:30"
	time.RFC3339,          // "2005-07-14T13:45:30Z"
	"2006-01-02 15:04:05", // "2005-07-14 13:45:30"
}

// ParseFlexibleDate tries to extract a calendar date from a free-form tag
// value. It tolerates ordinal suffixes ("23rd"), the word "of", commas,
// irregular whitespace, dotted dates and partial dates. The boolean result
// is false when no acceptable date was found; parsing never panics.
func ParseFlexibleDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	// Common invalid placeholders.
	if strings.HasPrefix(s, "0000") || strings.Contains(s, "00-00") {
		return time.Time{}, false
	}

	s = ordinalRe.ReplaceAllString(s, "$1")
	s = ofWordRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))

	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		if d.Year() < MinYear {
			return time.Time{}, false
		}
		return d, true
	}

	// Fallback: positional year/month/day from "-", ".", "/" separated
	// parts, e.g. "1984-1". Missing parts default to 1.
	return parsePositional(s)
}

func parsePositional(s string) (time.Time, bool) {
	parts := partSplitRe.Split(s, -1)
	year, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return time.Time{}, false
	}

	month, day := 1, 1
	if len(parts) > 1 {
		if month, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return time.Time{}, false
		}
	}
	if len(parts) > 2 {
		if day, err = strconv.Atoi(strings.TrimSpace(parts[2])); err != nil {
			return time.Time{}, false
		}
	}

	if year < MinYear || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}

	// time.Date normalizes out-of-range days (Feb 30 -> Mar 2); require
	// the components to round-trip so impossible dates are rejected.
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Year() != year || d.Month() != time.Month(month) || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}
