// SPDX-License-Identifier: MIT

// Package staleness detects content changes on display resources by comparing
// lightweight probe markers per identifier.
package staleness

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Prober performs the metadata-only change probe for an identifier.
type Prober interface {
	Probe(ctx context.Context, ref string) (marker string, err error)
}

// Result of a single probe.
type Result struct {
	Changed bool
	Marker  string
	// FirstProbe is set when no marker had been recorded for the
	// identifier before this call.
	FirstProbe bool
}

// record holds per-identifier probe state. probeMu totally orders probes
// for one identifier and is held across the network call; mu guards the
// fields and is only held for snapshots and updates, so readers such as
// LastChecked never wait on in-flight I/O.
type record struct {
	probeMu sync.Mutex

	mu            sync.Mutex
	marker        string
	hasMarker     bool
	assumedChange bool // "never probed successfully" was already reported as changed
	lastCheckedAt time.Time
}

// Detector tracks last-known change markers per identifier. It never fails:
// probe errors degrade to "unchanged" (with one conservative exception for
// identifiers that have never been probed successfully).
type Detector struct {
	mu      sync.Mutex
	records map[string]*record
	prober  Prober
	logger  zerolog.Logger
	now     func() time.Time
}

// NewDetector creates a Detector on top of the given prober.
func NewDetector(prober Prober, logger zerolog.Logger) *Detector {
	return &Detector{
		records: make(map[string]*record),
		prober:  prober,
		logger:  logger,
		now:     time.Now,
	}
}

func (d *Detector) recordFor(ref string) *record {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.records[ref]
	if !ok {
		rec = &record{}
		d.records[ref] = rec
	}
	return rec
}

// Probe checks whether ref's content changed since the last probe.
//
// The first successful probe only records the marker and reports unchanged
// (there is nothing to compare against yet). A failing probe reports changed
// exactly once while no marker has ever been recorded, so a transport that
// rejects metadata-only requests still gets its initial display; afterwards
// failures report unchanged.
func (d *Detector) Probe(ctx context.Context, ref string) Result {
	rec := d.recordFor(ref)
	rec.probeMu.Lock()
	defer rec.probeMu.Unlock()

	rec.mu.Lock()
	rec.lastCheckedAt = d.now()
	rec.mu.Unlock()

	marker, err := d.prober.Probe(ctx, ref)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if err != nil {
		if !rec.hasMarker && !rec.assumedChange {
			rec.assumedChange = true
			d.logger.Warn().Err(err).
				Str("event", "probe.assume_changed").
				Str("resource", ref).
				Msg("probe failed before any marker was recorded, assuming changed once")
			return Result{Changed: true, FirstProbe: true}
		}
		d.logger.Warn().Err(err).
			Str("event", "probe.failed").
			Str("resource", ref).
			Msg("probe failed, treating as unchanged")
		return Result{Changed: false, Marker: rec.marker}
	}

	if !rec.hasMarker {
		rec.marker = marker
		rec.hasMarker = true
		d.logger.Debug().
			Str("event", "probe.first").
			Str("resource", ref).
			Str("marker", marker).
			Msg("recorded initial marker")
		return Result{Changed: false, Marker: marker, FirstProbe: true}
	}

	if marker != rec.marker {
		old := rec.marker
		rec.marker = marker
		d.logger.Info().
			Str("event", "probe.changed").
			Str("resource", ref).
			Str("old_marker", old).
			Str("marker", marker).
			Msg("resource changed")
		return Result{Changed: true, Marker: marker}
	}

	return Result{Changed: false, Marker: marker}
}

// LastChecked reports when ref was last probed, for "next check" countdowns.
func (d *Detector) LastChecked(ref string) (time.Time, bool) {
	d.mu.Lock()
	rec, ok := d.records[ref]
	d.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.lastCheckedAt.IsZero() {
		return time.Time{}, false
	}
	return rec.lastCheckedAt, true
}
