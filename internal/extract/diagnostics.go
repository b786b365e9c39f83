// Harmonia - Acoustic Corpus Ingestion and Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/harmonia

package extract

import "sync/atomic"

// Diagnostics collects extraction counters. It is passed explicitly
// rather than kept in package globals so parallel extraction aggregates
// through one shared value with atomic increments, and tests stay
// isolated.
type Diagnostics struct {
	// MissingData counts submissions rejected for any reason.
	MissingData atomic.Int64

	// InvalidDates counts submissions where no date tag yielded a
	// parseable release date. These submissions are kept.
	InvalidDates atomic.Int64
}

// Merge adds other's counts into d. Used when workers keep per-worker
// diagnostics and reduce at the end of a run.
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil {
		return
	}
	d.MissingData.Add(other.MissingData.Load())
	d.InvalidDates.Add(other.InvalidDates.Load())
}

// Snapshot returns the current counter values.
func (d *Diagnostics) Snapshot() (missingData, invalidDates int64) {
	return d.MissingData.Load(), d.InvalidDates.Load()
}
