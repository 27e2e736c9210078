// SPDX-License-Identifier: MIT

// Package caption renders caption text by substituting metadata tokens into a
// template. Rendering is pure: no I/O, identical inputs yield identical output.
package caption

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// AllToken dumps every metadata pair instead of substituting single keys.
const AllToken = "{all}"

var (
	tokenRe = regexp.MustCompile(`\{([^{}]+)\}`)

	// Matches JavaScript-style regex-literal syntax: /pattern/flags.
	regexLiteralRe = regexp.MustCompile(`^/(.*)/([a-z]*)$`)
)

// Render substitutes metadata tokens into template.
//
// The special template "{all}" renders every pair as "key: value", one per
// line, in sorted key order. Otherwise every {key} occurrence is replaced by
// its metadata value; tokens whose key is absent are left verbatim so a user
// editing a template live can see which tags are unresolved.
//
// A result that matches regex-literal syntax (/pattern/flags) is never
// evaluated against anything; it renders as the inert placeholder
// "[Regex pattern: /pattern/flags]".
func Render(template string, metadata map[string]string) (out string) {
	// Substitution must never take the display down; a panicking template
	// falls back to its raw text.
	defer func() {
		if r := recover(); r != nil {
			out = template
		}
	}()

	if template == AllToken {
		return renderAll(metadata)
	}

	out = tokenRe.ReplaceAllStringFunc(template, func(token string) string {
		key := token[1 : len(token)-1]
		if v, ok := metadata[key]; ok {
			return v
		}
		return token
	})

	if regexLiteralRe.MatchString(out) {
		return fmt.Sprintf("[Regex pattern: %s]", out)
	}
	return out
}

func renderAll(metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(metadata[k])
	}
	return b.String()
}
