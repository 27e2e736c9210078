// SPDX-License-Identifier: MIT

package engine

import (
	"time"

	"github.com/gjbm2/screen-machine-sub000/internal/params"
	"github.com/gjbm2/screen-machine-sub000/internal/transition"
)

// ImageStyle is the layout styling for the displayed image, derived from the
// current parameter snapshot.
type ImageStyle struct {
	ShowMode        params.ShowMode `json:"show_mode"`
	Position        params.Position `json:"position"`
	BackgroundColor string          `json:"background_color"`
}

// CaptionStyle is the styling for the caption overlay.
type CaptionStyle struct {
	Position  params.Position `json:"position"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Font      string          `json:"font"`
	BgColor   string          `json:"bg_color"`
	BgOpacity float64         `json:"bg_opacity"`
}

// ViewUpdate is what the render callback receives after each swap.
type ViewUpdate struct {
	ImageRef        string           `json:"image_ref"`
	ImageStyle      ImageStyle       `json:"image_style"`
	CaptionText     string           `json:"caption_text"`
	CaptionStyle    CaptionStyle     `json:"caption_style"`
	IsTransitioning bool             `json:"is_transitioning"`
	OldResourceRef  string           `json:"old_resource_ref,omitempty"`
	OldStyle        transition.Style `json:"old_style"`
	NewStyle        transition.Style `json:"new_style"`
}

// ModeState is the reconciler outcome exposed to the view layer.
type ModeState struct {
	InDebugMode           bool `json:"in_debug_mode"`
	ShouldRedirectToDebug bool `json:"should_redirect_to_debug"`
}

// State is the engine's combined observable state, served by the API.
type State struct {
	Query           string               `json:"query"`
	Params          params.DisplayParams `json:"-"`
	DisplayedRef    string               `json:"displayed_ref,omitempty"`
	CaptionText     string               `json:"caption_text,omitempty"`
	Metadata        map[string]string    `json:"metadata,omitempty"`
	Transition      transition.Snapshot  `json:"transition"`
	IsTransitioning bool                 `json:"is_transitioning"`
	Busy            bool                 `json:"busy"`
	Mode            ModeState            `json:"mode"`
	LastCheckedAt   *time.Time           `json:"last_checked_at,omitempty"`
	NextCheckAt     *time.Time           `json:"next_check_at,omitempty"`
}

func imageStyleFor(p params.DisplayParams) ImageStyle {
	return ImageStyle{
		ShowMode:        p.ShowMode,
		Position:        p.Position,
		BackgroundColor: p.BackgroundColor,
	}
}

func captionStyleFor(p params.DisplayParams) CaptionStyle {
	return CaptionStyle{
		Position:  p.CaptionPosition,
		Size:      p.CaptionSize,
		Color:     p.CaptionColor,
		Font:      p.CaptionFont,
		BgColor:   p.CaptionBgColor,
		BgOpacity: p.CaptionBgOpacity,
	}
}
