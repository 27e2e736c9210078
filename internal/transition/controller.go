// SPDX-License-Identifier: MIT

// Package transition sequences the visual swap between the displayed image
// and its replacement: Idle, Preloading, Revealing, Concluding, back to Idle.
package transition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gjbm2/screen-machine-sub000/internal/metrics"
	"github.com/gjbm2/screen-machine-sub000/internal/params"
)

// ErrPreloadFailed indicates the next image failed to load; the swap still
// happens so the user is never stuck on a stale image.
var ErrPreloadFailed = errors.New("preload failed")

// ErrTornDown indicates the controller has been closed.
var ErrTornDown = errors.New("transition controller torn down")

// Phase of the transition state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhasePreloading Phase = "preloading"
	PhaseRevealing  Phase = "revealing"
	PhaseConcluding Phase = "concluding"
)

// Style is the rendering target for one image layer. Opacity is the value
// the layer animates towards over FadeMs.
type Style struct {
	Opacity float64 `json:"opacity"`
	FadeMs  int     `json:"fade_ms"`
}

// Snapshot is the controller's observable state.
type Snapshot struct {
	Phase       Phase  `json:"phase"`
	PreviousRef string `json:"previous_ref,omitempty"`
	NextRef     string `json:"next_ref,omitempty"`
	DurationMs  int    `json:"duration_ms"`
	StyleOld    Style  `json:"style_old"`
	StyleNew    Style  `json:"style_new"`
}

// Preloader loads the next image off-screen before the reveal starts.
type Preloader interface {
	Preload(ctx context.Context, ref string) error
}

// Config holds the fade durations.
type Config struct {
	FadeFast time.Duration // default 1s
	FadeSlow time.Duration // default 10s, locally configurable
}

// Controller is the transition state machine. A single timer drives the
// active transition; starting a new one supersedes the previous atomically,
// partial animations are discarded and never layered.
type Controller struct {
	mu        sync.Mutex
	cfg       Config
	preloader Preloader
	logger    zerolog.Logger

	phase    Phase
	prevRef  string
	nextRef  string
	duration time.Duration
	timer    *time.Timer
	done     func(error)

	// gen fences async continuations: preload results and timer fires
	// belonging to a superseded transition are dropped.
	gen    uint64
	closed bool
}

// NewController creates a Controller.
func NewController(preloader Preloader, cfg Config, logger zerolog.Logger) *Controller {
	if cfg.FadeFast <= 0 {
		cfg.FadeFast = time.Second
	}
	if cfg.FadeSlow <= 0 {
		cfg.FadeSlow = 10 * time.Second
	}
	return &Controller{
		cfg:       cfg,
		preloader: preloader,
		logger:    logger,
		phase:     PhaseIdle,
	}
}

func (c *Controller) durationFor(tt params.TransitionType) time.Duration {
	switch tt {
	case params.TransitionFadeFast:
		return c.cfg.FadeFast
	case params.TransitionFadeSlow:
		return c.cfg.FadeSlow
	default:
		return 0
	}
}

// Begin starts a transition from currentRef to nextRef. done fires exactly
// once when the transition concludes, unless a newer Begin supersedes it, in
// which case it never fires. A cut, or a first image (empty currentRef),
// swaps with no animation and concludes synchronously.
//
// On preload failure done receives an error wrapping ErrPreloadFailed; the
// swap still happens immediately.
func (c *Controller) Begin(ctx context.Context, nextRef, currentRef string, tt params.TransitionType, done func(error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrTornDown
	}

	if c.phase != PhaseIdle {
		c.supersedeLocked()
	}
	metrics.TransitionTotal.WithLabelValues(string(tt)).Inc()

	if tt == params.TransitionCut || currentRef == "" {
		c.phase = PhaseIdle
		c.prevRef = ""
		c.nextRef = nextRef
		c.duration = 0
		c.mu.Unlock()
		c.logger.Debug().
			Str("event", "transition.cut").
			Str("resource", nextRef).
			Msg("instant swap")
		if done != nil {
			done(nil)
		}
		return nil
	}

	c.phase = PhasePreloading
	c.prevRef = currentRef
	c.nextRef = nextRef
	c.duration = c.durationFor(tt)
	c.done = done
	c.gen++
	gen := c.gen
	duration := c.duration
	c.mu.Unlock()

	c.logger.Debug().
		Str("event", "transition.preload").
		Str("resource", nextRef).
		Dur("duration", duration).
		Msg("preloading next image")

	go c.preload(ctx, gen, nextRef)
	return nil
}

func (c *Controller) preload(ctx context.Context, gen uint64, ref string) {
	err := c.preloader.Preload(ctx, ref)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}

	if err != nil {
		// Swap without animation and surface the failure; never retry.
		done := c.done
		c.phase = PhaseIdle
		c.prevRef = ""
		c.done = nil
		c.mu.Unlock()
		c.logger.Warn().Err(err).
			Str("event", "transition.preload_failed").
			Str("resource", ref).
			Msg("preload failed, swapping without animation")
		if done != nil {
			done(fmt.Errorf("%w: %v", ErrPreloadFailed, err))
		}
		return
	}

	c.phase = PhaseRevealing
	duration := c.duration
	c.timer = time.AfterFunc(duration, func() { c.conclude(gen) })
	c.mu.Unlock()

	c.logger.Debug().
		Str("event", "transition.reveal").
		Str("resource", ref).
		Dur("duration", duration).
		Msg("cross-fade started")
}

func (c *Controller) conclude(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.phase = PhaseConcluding
	done := c.done
	next := c.nextRef
	c.done = nil
	c.phase = PhaseIdle
	c.prevRef = ""
	c.mu.Unlock()

	c.logger.Debug().
		Str("event", "transition.concluded").
		Str("resource", next).
		Msg("transition concluded")
	if done != nil {
		done(nil)
	}
}

// supersedeLocked cancels the active transition. Caller holds c.mu.
func (c *Controller) supersedeLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.done = nil
	metrics.TransitionSupersededTotal.Inc()
}

// Snapshot returns the current observable state, including the styling the
// renderer needs for each layer.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Phase:       c.phase,
		PreviousRef: c.prevRef,
		NextRef:     c.nextRef,
		DurationMs:  int(c.duration / time.Millisecond),
	}

	switch c.phase {
	case PhasePreloading:
		snap.StyleOld = Style{Opacity: 1}
		snap.StyleNew = Style{Opacity: 0}
	case PhaseRevealing, PhaseConcluding:
		snap.StyleOld = Style{Opacity: 0, FadeMs: snap.DurationMs}
		snap.StyleNew = Style{Opacity: 1, FadeMs: snap.DurationMs}
	default:
		snap.StyleNew = Style{Opacity: 1}
	}
	return snap
}

// Active reports whether a transition is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase != PhaseIdle
}

// Close tears the controller down: the timer stops and no pending completion
// callback fires afterwards. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.supersedeLocked()
	c.phase = PhaseIdle
}
