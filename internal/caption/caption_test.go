// SPDX-License-Identifier: MIT

package caption

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_Substitution(t *testing.T) {
	got := Render("Hello {name}, unknown {missing}", map[string]string{"name": "Ana"})
	assert.Equal(t, "Hello Ana, unknown {missing}", got)
}

func TestRender_AllToken(t *testing.T) {
	got := Render("{all}", map[string]string{"a": "1", "b": "2"})
	assert.Equal(t, "a: 1\nb: 2", got)
}

func TestRender_AllTokenEmptyMetadata(t *testing.T) {
	assert.Equal(t, "", Render("{all}", nil))
}

func TestRender_NoTokens(t *testing.T) {
	assert.Equal(t, "plain text", Render("plain text", map[string]string{"a": "1"}))
}

func TestRender_EmptyTemplate(t *testing.T) {
	assert.Equal(t, "", Render("", map[string]string{"a": "1"}))
}

func TestRender_Idempotent(t *testing.T) {
	meta := map[string]string{"camera": "X100", "iso": "400"}
	first := Render("shot on {camera} at ISO {iso}", meta)
	second := Render("shot on {camera} at ISO {iso}", meta)
	assert.Equal(t, first, second)
}

func TestRender_RegexLiteralStaysInert(t *testing.T) {
	got := Render("/{pat}/gi", map[string]string{"pat": "ab+c"})
	assert.Equal(t, "[Regex pattern: /ab+c/gi]", got)
}

func TestRender_SlashesInsideTextNotRegex(t *testing.T) {
	// Only a full /pattern/flags result triggers the placeholder.
	got := Render("path {p} end", map[string]string{"p": "/usr/local"})
	assert.Equal(t, "path /usr/local end", got)
}

func TestRender_UnresolvedKeptVerbatim(t *testing.T) {
	got := Render("{a}{b}{c}", map[string]string{"b": "2"})
	assert.Equal(t, "{a}2{c}", got)
}
