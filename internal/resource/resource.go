// SPDX-License-Identifier: MIT

// Package resource provides the fetch capability for display resources: a
// lightweight change probe and a full fetch, for HTTP(S) URLs and local files.
package resource

import (
	"context"
	"errors"
	"strings"
)

// ErrProbeUnsupported indicates the transport rejected the metadata-only probe.
var ErrProbeUnsupported = errors.New("probe not supported by transport")

// Payload is the result of a full fetch.
type Payload struct {
	Body []byte
	// Attrs carries transport-level attributes (content type, size,
	// modification time) merged into the extracted metadata.
	Attrs map[string]string
}

// FetchOptions controls a full fetch.
type FetchOptions struct {
	// NoCache appends a unique per-call disambiguating parameter so
	// intermediary HTTP caches are bypassed.
	NoCache bool
	// Hint is the opaque pass-through from the query string; when set it
	// names a sidecar JSON document whose pairs are merged into the result.
	Hint string
}

// Source fetches and probes resources named by opaque identifiers.
type Source interface {
	// Probe performs a metadata-only check and returns an opaque change
	// marker for the resource's current content.
	Probe(ctx context.Context, ref string) (marker string, err error)

	// Fetch retrieves the full resource.
	Fetch(ctx context.Context, ref string, opts FetchOptions) (*Payload, error)
}

// Resolver picks a Source for a given identifier.
type Resolver struct {
	http *HTTPSource
	file *FileSource
}

// NewResolver builds a Resolver backed by the given sources.
func NewResolver(httpSrc *HTTPSource, fileSrc *FileSource) *Resolver {
	return &Resolver{http: httpSrc, file: fileSrc}
}

// For returns the Source responsible for ref. Anything that is not an
// http(s) URL is treated as a local file path.
func (r *Resolver) For(ref string) Source {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return r.http
	}
	return r.file
}

// Probe dispatches to the source responsible for ref.
func (r *Resolver) Probe(ctx context.Context, ref string) (string, error) {
	return r.For(ref).Probe(ctx, ref)
}

// Fetch dispatches to the source responsible for ref.
func (r *Resolver) Fetch(ctx context.Context, ref string, opts FetchOptions) (*Payload, error) {
	return r.For(ref).Fetch(ctx, ref, opts)
}
