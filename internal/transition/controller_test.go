// SPDX-License-Identifier: MIT

package transition

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gjbm2/screen-machine-sub000/internal/params"
)

type fakePreloader struct {
	calls atomic.Int64
	err   error
	delay time.Duration
}

func (p *fakePreloader) Preload(ctx context.Context, ref string) error {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return p.err
}

func newController(p Preloader) *Controller {
	// Short fades keep the tests fast; the machine is duration-agnostic.
	return NewController(p, Config{FadeFast: 60 * time.Millisecond, FadeSlow: 200 * time.Millisecond}, zerolog.Nop())
}

func TestBegin_CutSwapsSynchronously(t *testing.T) {
	c := newController(&fakePreloader{})
	var fired atomic.Int64

	err := c.Begin(context.Background(), "b.jpg", "a.jpg", params.TransitionCut, func(err error) {
		assert.NoError(t, err)
		fired.Add(1)
	})
	require.NoError(t, err)

	assert.Equal(t, int64(1), fired.Load())
	assert.Equal(t, PhaseIdle, c.Snapshot().Phase)
}

func TestBegin_NoCurrentImageSkipsAnimation(t *testing.T) {
	p := &fakePreloader{}
	c := newController(p)
	var fired atomic.Int64

	require.NoError(t, c.Begin(context.Background(), "first.jpg", "", params.TransitionFadeSlow, func(error) {
		fired.Add(1)
	}))

	assert.Equal(t, int64(1), fired.Load())
	assert.Equal(t, int64(0), p.calls.Load(), "degenerate transition must not preload")
}

func TestBegin_FadeFastCompletesOnce(t *testing.T) {
	c := newController(&fakePreloader{})
	completions := make(chan error, 4)

	require.NoError(t, c.Begin(context.Background(), "b.jpg", "a.jpg", params.TransitionFadeFast, func(err error) {
		completions <- err
	}))

	// Preloading or Revealing while the fade runs.
	assert.True(t, c.Active())

	select {
	case err := <-completions:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("transition never concluded")
	}

	assert.Equal(t, PhaseIdle, c.Snapshot().Phase)

	select {
	case <-completions:
		t.Fatal("completion callback fired more than once")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestBegin_RevealStyles(t *testing.T) {
	p := &fakePreloader{}
	c := newController(p)

	require.NoError(t, c.Begin(context.Background(), "b.jpg", "a.jpg", params.TransitionFadeSlow, nil))

	require.Eventually(t, func() bool {
		return c.Snapshot().Phase == PhaseRevealing
	}, time.Second, 5*time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, "a.jpg", snap.PreviousRef)
	assert.Equal(t, "b.jpg", snap.NextRef)
	assert.Equal(t, 200, snap.DurationMs)
	assert.Equal(t, Style{Opacity: 0, FadeMs: 200}, snap.StyleOld)
	assert.Equal(t, Style{Opacity: 1, FadeMs: 200}, snap.StyleNew)
}

func TestBegin_PreloadFailureSwapsImmediately(t *testing.T) {
	p := &fakePreloader{err: errors.New("404")}
	c := newController(p)
	completions := make(chan error, 1)

	require.NoError(t, c.Begin(context.Background(), "b.jpg", "a.jpg", params.TransitionFadeFast, func(err error) {
		completions <- err
	}))

	select {
	case err := <-completions:
		assert.ErrorIs(t, err, ErrPreloadFailed)
	case <-time.After(time.Second):
		t.Fatal("completion callback never fired")
	}
	assert.Equal(t, PhaseIdle, c.Snapshot().Phase)
}

func TestBegin_SupersessionCancelsPreviousCallback(t *testing.T) {
	p := &fakePreloader{delay: 30 * time.Millisecond}
	c := newController(p)

	var firstFired, secondFired atomic.Int64
	require.NoError(t, c.Begin(context.Background(), "b.jpg", "a.jpg", params.TransitionFadeFast, func(error) {
		firstFired.Add(1)
	}))
	require.NoError(t, c.Begin(context.Background(), "c.jpg", "a.jpg", params.TransitionFadeFast, func(error) {
		secondFired.Add(1)
	}))

	assert.Eventually(t, func() bool {
		return secondFired.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(0), firstFired.Load(), "superseded completion must never fire")
	assert.Equal(t, "c.jpg", c.Snapshot().NextRef)
}

func TestClose_FencesPendingCompletion(t *testing.T) {
	p := &fakePreloader{delay: 20 * time.Millisecond}
	c := newController(p)

	var fired atomic.Int64
	require.NoError(t, c.Begin(context.Background(), "b.jpg", "a.jpg", params.TransitionFadeFast, func(error) {
		fired.Add(1)
	}))

	c.Close()
	c.Close() // idempotent

	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int64(0), fired.Load())

	err := c.Begin(context.Background(), "c.jpg", "b.jpg", params.TransitionCut, nil)
	assert.ErrorIs(t, err, ErrTornDown)
}
