// SPDX-License-Identifier: MIT

// Package params defines the display parameter snapshot and its query-string codec.
package params

// ShowMode controls how the image is scaled into the viewport.
type ShowMode string

const (
	ShowFit     ShowMode = "fit"
	ShowFill    ShowMode = "fill"
	ShowStretch ShowMode = "stretch"
	ShowActual  ShowMode = "actual"
	ShowCover   ShowMode = "cover"
	ShowContain ShowMode = "contain"
)

// TransitionType selects the visual effect used when swapping images.
type TransitionType string

const (
	TransitionCut      TransitionType = "cut"
	TransitionFadeFast TransitionType = "fade-fast"
	TransitionFadeSlow TransitionType = "fade-slow"
)

// Position is one of the nine anchor positions inside the viewport.
type Position string

const (
	PosTopLeft      Position = "top-left"
	PosTopCenter    Position = "top-center"
	PosTopRight     Position = "top-right"
	PosCenterLeft   Position = "center-left"
	PosCenter       Position = "center"
	PosCenterRight  Position = "center-right"
	PosBottomLeft   Position = "bottom-left"
	PosBottomCenter Position = "bottom-center"
	PosBottomRight  Position = "bottom-right"
)

// DisplayParams is an immutable configuration snapshot for one render pass.
// A zero field behaves as its documented default; snapshots are replaced
// wholesale when the query string changes, never mutated in place.
type DisplayParams struct {
	// ResourceRef is the opaque identifier/URL of the image to show.
	// Empty means "nothing to display".
	ResourceRef string

	ShowMode               ShowMode
	Position               Position
	RefreshIntervalSeconds int // 0 disables polling
	BackgroundColor        string
	DebugMode              bool

	CaptionTemplate  string // empty means "no caption"
	CaptionPosition  Position
	CaptionSize      string
	CaptionColor     string
	CaptionFont      string
	CaptionBgColor   string // canonical form carries a leading '#'
	CaptionBgOpacity float64

	TransitionType TransitionType

	// DataHint is an opaque pass-through used as a metadata-extraction hint.
	DataHint string
}

// Documented defaults for every field.
const (
	DefaultShowMode         = ShowFit
	DefaultPosition         = PosCenter
	DefaultRefreshInterval  = 5
	DefaultBackgroundColor  = "000000"
	DefaultCaptionPosition  = PosBottomCenter
	DefaultCaptionSize      = "16px"
	DefaultCaptionColor     = "ffffff"
	DefaultCaptionFont      = "Arial, sans-serif"
	DefaultCaptionBgColor   = "#000000"
	DefaultCaptionBgOpacity = 0.7
	DefaultTransitionType   = TransitionCut
)

// Defaults returns a DisplayParams with every field at its documented default.
func Defaults() DisplayParams {
	return DisplayParams{
		ShowMode:               DefaultShowMode,
		Position:               DefaultPosition,
		RefreshIntervalSeconds: DefaultRefreshInterval,
		BackgroundColor:        DefaultBackgroundColor,
		CaptionPosition:        DefaultCaptionPosition,
		CaptionSize:            DefaultCaptionSize,
		CaptionColor:           DefaultCaptionColor,
		CaptionFont:            DefaultCaptionFont,
		CaptionBgColor:         DefaultCaptionBgColor,
		CaptionBgOpacity:       DefaultCaptionBgOpacity,
		TransitionType:         DefaultTransitionType,
	}
}

var validShowModes = map[ShowMode]bool{
	ShowFit: true, ShowFill: true, ShowStretch: true,
	ShowActual: true, ShowCover: true, ShowContain: true,
}

var validTransitions = map[TransitionType]bool{
	TransitionCut: true, TransitionFadeFast: true, TransitionFadeSlow: true,
}

var validPositions = map[Position]bool{
	PosTopLeft: true, PosTopCenter: true, PosTopRight: true,
	PosCenterLeft: true, PosCenter: true, PosCenterRight: true,
	PosBottomLeft: true, PosBottomCenter: true, PosBottomRight: true,
}

// Valid reports whether m is a recognised show mode.
func (m ShowMode) Valid() bool { return validShowModes[m] }

// Valid reports whether t is a recognised transition type.
func (t TransitionType) Valid() bool { return validTransitions[t] }

// Valid reports whether p is a recognised anchor position.
func (p Position) Valid() bool { return validPositions[p] }
