// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package extract

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseFlexibleDate(t *testing.T) {
	tests := []struct {
		input  string
		want   time.Time
		wantOK bool
	}{
		// Explicit formats.
		{"2005-07-14", date(2005, time.July, 14), true},
		{"2005-07", date(2005, time.July, 1), true},
		{"2005", date(2005, time.January, 1), true},
		{"2000.06.21", date(2000, time.June, 21), true},
		{"23 February 1998", date(1998, time.February, 23), true},
		{"23 Feb 1998", date(1998, time.February, 23), true},
		{"2005-07-14T13:45:30", date(2005, time.July, 14), true},
		{"2005-07-14T13:45:30Z", date(2005, time.July, 14), true},
		{"2005-07-14 13:45:30", date(2005, time.July, 14), true},

		// Cleanup rules.
		{"  2005-07-14  ", date(2005, time.July, 14), true},
		{"23rd February 1998", date(1998, time.February, 23), true},
		{"1st January 2001", date(2001, time.January, 1), true},
		{"23 of February 1998", date(1998, time.February, 23), true},
		{"23 February, 1998", date(1998, time.February, 23), true},
		{"23   February   1998", date(1998, time.February, 23), true},

		// Positional fallback.
		{"1984-1", date(1984, time.January, 1), true},
		{"1984/3/7", date(1984, time.March, 7), true},

		// Invalid placeholders.
		{"0000-00-00", time.Time{}, false},
		{"0000", time.Time{}, false},
		{"1990-00-00", time.Time{}, false},
		{"", time.Time{}, false},
		{"not a date", time.Time{}, false},

		// Impossible calendar dates via fallback.
		{"2001-02-30", time.Time{}, false},
		{"2001-13-01", time.Time{}, false},

		// Minimum-year floor: exactly at the floor parses, below fails.
		{"1000-01-01", date(1000, time.January, 1), true},
		{"0999-01-01", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseFlexibleDate(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseFlexibleDate(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseFlexibleDate(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// Round-trip property: a date formatted with any supported explicit layout
// parses back to the same calendar date.
func TestParseFlexibleDateRoundTrip(t *testing.T) {
	dates := []time.Time{
		date(1964, time.March, 2),
		date(1999, time.December, 31),
		date(2020, time.February, 29),
	}
	layouts := []string{"2006-01-02", "2006.01.02", "2 January 2006", "2 Jan 2006"}

	for _, d := range dates {
		for _, layout := range layouts {
			formatted := d.Format(layout)
			got, ok := ParseFlexibleDate(formatted)
			if !ok {
				t.Errorf("ParseFlexibleDate(%q) failed", formatted)
				continue
			}
			if !got.Equal(d) {
				t.Errorf("ParseFlexibleDate(%q) = %v, want %v", formatted, got, d)
			}
		}
	}
}

func TestIsMBID(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"62c2e20a-559e-422f-a44c-9afa7882f0c4", true},
		{"62C2E20A-559E-422F-A44C-9AFA7882F0C4", true},
		{"", false},
		{"62c2e20a559e422fa44c9afa7882f0c4", false},     // no hyphens
		{"62c2e20a-559e-422f-a44c-9afa7882f0c", false},  // too short
		{"62c2e20a-559e-422f-a44c-9afa7882f0c45", false}, // too long
		{"62c2e20g-559e-422f-a44c-9afa7882f0c4", false}, // invalid hex
		{"62c2e20a-559e422f-a44c-9afa-7882f0c4", false}, // wrong grouping
		{"urn:uuid:62c2e20a-559e-422f-a44c-9afa7882f0c4", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsMBID(tt.input); got != tt.want {
				t.Errorf("IsMBID(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
