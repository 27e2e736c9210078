// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the display sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProbeTotal counts staleness probes by outcome
	// (changed, unchanged, assumed_changed, failed).
	ProbeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispsync_probe_total",
		Help: "Total number of staleness probes, by outcome.",
	}, []string{"outcome"})

	// ExtractionTotal counts metadata extractions by outcome and cache result.
	ExtractionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispsync_extraction_total",
		Help: "Total number of metadata extractions, by outcome (ok/fallback/timeout/canceled) and cache (hit/miss/bypass).",
	}, []string{"outcome", "cache"})

	// TransitionTotal counts started transitions by type.
	TransitionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispsync_transition_total",
		Help: "Total number of started transitions, by type.",
	}, []string{"type"})

	// TransitionSupersededTotal counts transitions cancelled by a newer one.
	TransitionSupersededTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispsync_transition_superseded_total",
		Help: "Total number of transitions superseded before completion.",
	})

	// CheckBusy indicates whether a check pipeline is currently running.
	CheckBusy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispsync_check_busy",
		Help: "1 while a check pipeline is in flight, 0 otherwise.",
	})

	// CheckDuration observes full check-pipeline latency.
	CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispsync_check_duration_seconds",
		Help:    "Duration of a full check pipeline (probe, extract, transition start).",
		Buckets: prometheus.DefBuckets,
	})

	// ManualCheckRejectedTotal counts manual checks refused while busy.
	ManualCheckRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispsync_manual_check_rejected_total",
		Help: "Total number of manual checks rejected because one was already running.",
	})
)
