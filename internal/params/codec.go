// SPDX-License-Identifier: MIT

package params

import (
	"net/url"
	"strconv"
	"strings"
)

// Query-string keys recognised by the codec. Unknown keys are ignored on
// decode and never produced on encode.
const (
	keyOutput           = "output"
	keyShow             = "show"
	keyPosition         = "position"
	keyRefresh          = "refresh"
	keyBackground       = "background"
	keyDebug            = "debug"
	keyCaption          = "caption"
	keyCaptionPosition  = "caption-position"
	keyCaptionSize      = "caption-size"
	keyCaptionColor     = "caption-color"
	keyCaptionFont      = "caption-font"
	keyCaptionBgColor   = "caption-bg-color"
	keyCaptionBgOpacity = "caption-bg-opacity"
	keyTransition       = "transition"
	keyData             = "data"
)

// Decode parses a query string (with or without a leading '?') into a
// DisplayParams. Malformed or unrecognised values fall back to their
// documented defaults; Decode never fails.
func Decode(query string) DisplayParams {
	query = strings.TrimPrefix(query, "?")
	p := Defaults()

	values, err := url.ParseQuery(query)
	if err != nil {
		return p
	}

	if v := values.Get(keyOutput); v != "" {
		p.ResourceRef = v
	}
	if v := ShowMode(values.Get(keyShow)); v.Valid() {
		p.ShowMode = v
	}
	if v := Position(values.Get(keyPosition)); v.Valid() {
		p.Position = v
	}
	if v := values.Get(keyRefresh); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			p.RefreshIntervalSeconds = n
		}
	}
	if v := values.Get(keyBackground); v != "" {
		p.BackgroundColor = strings.TrimPrefix(v, "#")
	}
	if v := values.Get(keyDebug); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			p.DebugMode = b
		}
	}
	if v := values.Get(keyCaption); v != "" {
		p.CaptionTemplate = v
	}
	if v := Position(values.Get(keyCaptionPosition)); v.Valid() {
		p.CaptionPosition = v
	}
	if v := values.Get(keyCaptionSize); v != "" {
		p.CaptionSize = v
	}
	if v := values.Get(keyCaptionColor); v != "" {
		p.CaptionColor = strings.TrimPrefix(v, "#")
	}
	if v := values.Get(keyCaptionFont); v != "" {
		p.CaptionFont = v
	}
	if v := values.Get(keyCaptionBgColor); v != "" {
		// Stored without the leading '#' in the query; canonical form has it.
		p.CaptionBgColor = "#" + strings.TrimPrefix(v, "#")
	}
	if v := values.Get(keyCaptionBgOpacity); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			p.CaptionBgOpacity = f
		}
	}
	if v := TransitionType(values.Get(keyTransition)); v.Valid() {
		p.TransitionType = v
	}
	if v := values.Get(keyData); v != "" {
		p.DataHint = v
	}

	return p
}

// EncodeOptions controls optional keys emitted by Encode.
type EncodeOptions struct {
	// IncludeDebug emits the debug key when DebugMode is set.
	IncludeDebug bool
}

// Encode renders p as a query string with a leading '?'. Fields equal to
// their documented default are omitted, except ResourceRef (always emitted
// when set) and DebugMode (emitted only when true and IncludeDebug is set).
// Encode is the inverse of Decode for any snapshot built from defaults plus
// explicitly set fields.
func Encode(p DisplayParams, opts EncodeOptions) string {
	values := url.Values{}

	if p.ResourceRef != "" {
		values.Set(keyOutput, p.ResourceRef)
	}
	if p.ShowMode != DefaultShowMode {
		values.Set(keyShow, string(p.ShowMode))
	}
	if p.Position != DefaultPosition {
		values.Set(keyPosition, string(p.Position))
	}
	if p.RefreshIntervalSeconds != DefaultRefreshInterval {
		values.Set(keyRefresh, strconv.Itoa(p.RefreshIntervalSeconds))
	}
	if p.BackgroundColor != DefaultBackgroundColor {
		values.Set(keyBackground, p.BackgroundColor)
	}
	if p.DebugMode && opts.IncludeDebug {
		values.Set(keyDebug, "true")
	}
	if p.CaptionTemplate != "" {
		values.Set(keyCaption, p.CaptionTemplate)
	}
	if p.CaptionPosition != DefaultCaptionPosition {
		values.Set(keyCaptionPosition, string(p.CaptionPosition))
	}
	if p.CaptionSize != DefaultCaptionSize {
		values.Set(keyCaptionSize, p.CaptionSize)
	}
	if p.CaptionColor != DefaultCaptionColor {
		values.Set(keyCaptionColor, p.CaptionColor)
	}
	if p.CaptionFont != DefaultCaptionFont {
		values.Set(keyCaptionFont, p.CaptionFont)
	}
	if p.CaptionBgColor != DefaultCaptionBgColor {
		values.Set(keyCaptionBgColor, strings.TrimPrefix(p.CaptionBgColor, "#"))
	}
	if p.CaptionBgOpacity != DefaultCaptionBgOpacity {
		values.Set(keyCaptionBgOpacity, strconv.FormatFloat(p.CaptionBgOpacity, 'f', -1, 64))
	}
	if p.TransitionType != DefaultTransitionType {
		values.Set(keyTransition, string(p.TransitionType))
	}
	if p.DataHint != "" {
		values.Set(keyData, p.DataHint)
	}

	encoded := values.Encode()
	if encoded == "" {
		return ""
	}
	return "?" + encoded
}
