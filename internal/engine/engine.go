// SPDX-License-Identifier: MIT

// Package engine orchestrates the display synchronization pipeline: staleness
// probe, metadata extraction, transition, caption recomputation.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/gjbm2/screen-machine-sub000/internal/caption"
	"github.com/gjbm2/screen-machine-sub000/internal/history"
	"github.com/gjbm2/screen-machine-sub000/internal/log"
	"github.com/gjbm2/screen-machine-sub000/internal/metadata"
	"github.com/gjbm2/screen-machine-sub000/internal/metrics"
	"github.com/gjbm2/screen-machine-sub000/internal/mode"
	"github.com/gjbm2/screen-machine-sub000/internal/params"
	"github.com/gjbm2/screen-machine-sub000/internal/staleness"
	"github.com/gjbm2/screen-machine-sub000/internal/telemetry"
	"github.com/gjbm2/screen-machine-sub000/internal/transition"
)

// Recorder persists check outcomes; history recording is best-effort.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Callbacks are supplied by the view layer.
type Callbacks struct {
	// Render receives the combined view state after each swap.
	Render func(ViewUpdate)
	// OnError receives typed, non-fatal pipeline failures.
	OnError func(*Failure)
}

// Config holds engine scheduling settings.
type Config struct {
	// MinPeriod is the floor for the polling period. Default 5s.
	MinPeriod time.Duration
	// DebugPollPeriod is how often debug mode polls regardless of the
	// refresh interval. Default 60s.
	DebugPollPeriod time.Duration
}

// Engine composes the detector, extractor, transition controller and mode
// reconciler. At most one check pipeline runs at a time; a torn-down engine
// fences every asynchronous continuation.
type Engine struct {
	cfg         Config
	detector    *staleness.Detector
	extractor   *metadata.Extractor
	transitions *transition.Controller
	reconciler  *mode.Reconciler
	recorder    Recorder
	cb          Callbacks
	logger      zerolog.Logger

	mu           sync.Mutex
	params       params.DisplayParams
	displayedRef string
	lastMeta     map[string]string
	captionText  string
	lastMode     ModeState
	busy         bool
	closed       bool

	closeOnce sync.Once
	closedCh  chan struct{}
	kick      chan struct{}
}

// New creates an Engine. recorder may be nil.
func New(
	detector *staleness.Detector,
	extractor *metadata.Extractor,
	transitions *transition.Controller,
	reconciler *mode.Reconciler,
	recorder Recorder,
	cfg Config,
	cb Callbacks,
	logger zerolog.Logger,
) *Engine {
	if cfg.MinPeriod <= 0 {
		cfg.MinPeriod = 5 * time.Second
	}
	if cfg.DebugPollPeriod <= 0 {
		cfg.DebugPollPeriod = 60 * time.Second
	}
	return &Engine{
		cfg:         cfg,
		detector:    detector,
		extractor:   extractor,
		transitions: transitions,
		reconciler:  reconciler,
		recorder:    recorder,
		cb:          cb,
		logger:      logger,
		params:      params.Defaults(),
		closedCh:    make(chan struct{}),
		kick:        make(chan struct{}, 1),
	}
}

// ApplyParams replaces the current parameter snapshot, reconciles the mode
// and nudges the scheduler so a changed resource shows up promptly.
func (e *Engine) ApplyParams(p params.DisplayParams) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}

	oldQuery := params.Encode(e.params, params.EncodeOptions{IncludeDebug: true})
	newQuery := params.Encode(p, params.EncodeOptions{IncludeDebug: true})
	if oldQuery != newQuery {
		e.reconciler.ResetQueryState()
	}
	e.params = p

	decision := e.reconciler.Reconcile(p)
	e.lastMode = ModeState{
		InDebugMode:           p.DebugMode,
		ShouldRedirectToDebug: decision.ShouldRedirectToDebug,
	}
	e.mu.Unlock()

	e.logger.Debug().
		Str("event", "params.applied").
		Str("resource", p.ResourceRef).
		Bool("debug", p.DebugMode).
		Msg("parameter snapshot replaced")

	e.Kick()
}

// Params returns the current parameter snapshot.
func (e *Engine) Params() params.DisplayParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// CommitExitDebug persists the explicit exit out of debug mode; it must be
// called before the view navigates away.
func (e *Engine) CommitExitDebug() error {
	return e.reconciler.CommitExitDebug()
}

// Kick asks the scheduler to run a check as soon as possible. Non-blocking.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Tick runs one scheduled check cycle. It is a no-op when no resource is
// configured, and skips silently when a check is already running.
func (e *Engine) Tick(ctx context.Context) {
	if _, err := e.check(ctx, "timer"); err != nil && err != ErrCheckInProgress && err != ErrTornDown {
		e.logger.Warn().Err(err).Str("event", "tick.failed").Msg("scheduled check failed")
	}
}

// ManualCheck runs the pipeline on demand. It reports whether an update was
// detected, and refuses immediately with ErrCheckInProgress while a check is
// already running.
func (e *Engine) ManualCheck(ctx context.Context) (bool, error) {
	updated, err := e.check(ctx, "manual")
	if err == ErrCheckInProgress {
		metrics.ManualCheckRejectedTotal.Inc()
	}
	return updated, err
}

func (e *Engine) check(ctx context.Context, source string) (bool, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return false, ErrTornDown
	}
	if e.busy {
		e.mu.Unlock()
		return false, ErrCheckInProgress
	}
	e.busy = true
	p := e.params
	displayed := e.displayedRef
	e.mu.Unlock()

	metrics.CheckBusy.Set(1)
	start := time.Now()
	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
		metrics.CheckBusy.Set(0)
		metrics.CheckDuration.Observe(time.Since(start).Seconds())
	}()

	if p.ResourceRef == "" {
		return false, nil
	}

	checkID := uuid.NewString()
	ctx = log.ContextWithCheckID(ctx, checkID)
	ctx, span := telemetry.Tracer("engine").Start(ctx, "engine.check",
		trace.WithAttributes(
			attribute.String("resource", p.ResourceRef),
			attribute.String("source", source),
		))
	defer span.End()

	e.logger.Debug().
		Str("event", "check.started").
		Str(log.FieldCheckID, checkID).
		Str(log.FieldResource, p.ResourceRef).
		Str("source", source).
		Msg("check pipeline started")

	res := e.detector.Probe(ctx, p.ResourceRef)
	e.observeProbe(res)
	e.record(ctx, p.ResourceRef, res, source)

	if e.isClosed() {
		return false, ErrTornDown
	}

	// A changed resource and a not-yet-displayed resource both need the
	// full pipeline; anything else is done here.
	if !res.Changed && displayed == p.ResourceRef {
		return false, nil
	}

	meta := e.extractor.Extract(ctx, p.ResourceRef, p.DataHint, true)

	if e.isClosed() {
		return false, ErrTornDown
	}

	err := e.transitions.Begin(ctx, p.ResourceRef, displayed, p.TransitionType, func(terr error) {
		e.completeSwap(p, meta, terr)
	})
	if err != nil {
		return false, ErrTornDown
	}
	return true, nil
}

// completeSwap applies the result of a finished (or degenerate) transition:
// the displayed resource advances and the caption is recomputed from the
// metadata fetched earlier in the pipeline. Deferring the caption until the
// transition concludes is purely visual polish.
func (e *Engine) completeSwap(p params.DisplayParams, meta map[string]string, terr error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.displayedRef = p.ResourceRef
	e.lastMeta = meta
	if p.CaptionTemplate != "" {
		e.captionText = caption.Render(p.CaptionTemplate, meta)
	} else {
		e.captionText = ""
	}
	update := e.viewUpdateLocked()
	e.mu.Unlock()

	if terr != nil && e.cb.OnError != nil {
		e.cb.OnError(&Failure{Kind: FailurePreload, Err: terr})
	}
	if e.cb.Render != nil {
		e.cb.Render(update)
	}
}

func (e *Engine) viewUpdateLocked() ViewUpdate {
	snap := e.transitions.Snapshot()
	return ViewUpdate{
		ImageRef:        e.displayedRef,
		ImageStyle:      imageStyleFor(e.params),
		CaptionText:     e.captionText,
		CaptionStyle:    captionStyleFor(e.params),
		IsTransitioning: snap.Phase != transition.PhaseIdle,
		OldResourceRef:  snap.PreviousRef,
		OldStyle:        snap.StyleOld,
		NewStyle:        snap.StyleNew,
	}
}

func (e *Engine) observeProbe(res staleness.Result) {
	switch {
	case res.Changed && res.FirstProbe:
		metrics.ProbeTotal.WithLabelValues("assumed_changed").Inc()
	case res.Changed:
		metrics.ProbeTotal.WithLabelValues("changed").Inc()
	default:
		metrics.ProbeTotal.WithLabelValues("unchanged").Inc()
	}
}

func (e *Engine) record(ctx context.Context, ref string, res staleness.Result, source string) {
	if e.recorder == nil {
		return
	}
	err := e.recorder.Record(ctx, history.Entry{
		Identifier: ref,
		Changed:    res.Changed,
		Marker:     res.Marker,
		Source:     source,
		CheckedAt:  time.Now(),
	})
	if err != nil {
		e.logger.Warn().Err(err).Str("event", "history.record_failed").Msg("could not record check outcome")
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// State returns the combined observable state for the view layer.
func (e *Engine) State() State {
	e.mu.Lock()
	p := e.params
	st := State{
		Query:           params.Encode(p, params.EncodeOptions{IncludeDebug: true}),
		Params:          p,
		DisplayedRef:    e.displayedRef,
		CaptionText:     e.captionText,
		Metadata:        e.lastMeta,
		Busy:            e.busy,
		Mode:            e.lastMode,
	}
	e.mu.Unlock()

	st.Transition = e.transitions.Snapshot()
	st.IsTransitioning = st.Transition.Phase != transition.PhaseIdle

	if p.ResourceRef != "" {
		if last, ok := e.detector.LastChecked(p.ResourceRef); ok {
			st.LastCheckedAt = &last
			if period, active := e.period(p); active {
				next := last.Add(period)
				st.NextCheckAt = &next
			}
		}
	}
	return st
}

// period computes the polling period for the given snapshot:
// max(MinPeriod, min(DebugPollPeriod, refresh interval)). The second result
// is false when no timer should run at all.
func (e *Engine) period(p params.DisplayParams) (time.Duration, bool) {
	refresh := time.Duration(p.RefreshIntervalSeconds) * time.Second

	if refresh == 0 && !p.DebugMode {
		return 0, false
	}

	candidate := refresh
	if p.DebugMode && (candidate == 0 || e.cfg.DebugPollPeriod < candidate) {
		candidate = e.cfg.DebugPollPeriod
	}
	if candidate < e.cfg.MinPeriod {
		candidate = e.cfg.MinPeriod
	}
	return candidate, true
}

// Run drives the periodic timer until ctx is cancelled or the engine is
// closed. A Kick recomputes the period and checks immediately, so parameter
// changes and file-watch events take effect without waiting out a full
// period.
func (e *Engine) Run(ctx context.Context) error {
	for {
		period, active := e.period(e.Params())

		var tickC <-chan time.Time
		var timer *time.Timer
		if active {
			timer = time.NewTimer(period)
			tickC = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil
		case <-e.closedCh:
			stopTimer(timer)
			return nil
		case <-e.kick:
			stopTimer(timer)
			e.Tick(ctx)
		case <-tickC:
			e.Tick(ctx)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Close tears the engine down: the scheduler stops, and no in-flight probe,
// extraction or transition completion mutates state afterwards. Idempotent.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.closed = true
		e.mu.Unlock()
		close(e.closedCh)
		e.transitions.Close()
		e.logger.Info().Str("event", "engine.closed").Msg("engine torn down")
	})
}
