// SPDX-License-Identifier: MIT

// Package metadata turns a display resource into a key-value metadata map,
// with at most one in-flight extraction per identifier.
package metadata

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gjbm2/screen-machine-sub000/internal/cache"
	"github.com/gjbm2/screen-machine-sub000/internal/metrics"
	"github.com/gjbm2/screen-machine-sub000/internal/resource"
)

// FallbackStatusKey is present in the map returned for a failed extraction,
// so the caption engine always has a well-formed map to render.
const FallbackStatusKey = "status"

const fallbackStatusValue = "no metadata found"

// Fetcher retrieves the full resource for metadata extraction.
type Fetcher interface {
	Fetch(ctx context.Context, ref string, opts resource.FetchOptions) (*resource.Payload, error)
}

// Options configures an Extractor.
type Options struct {
	// WaitTimeout bounds how long a caller piggy-backing on an in-flight
	// extraction waits before settling for an empty map.
	WaitTimeout time.Duration
	// CacheTTL is how long a successful result stays cached.
	CacheTTL time.Duration
}

// Extractor fetches and caches metadata maps. Concurrent calls for one
// identifier share a single underlying fetch; the most recent successful
// result is cached and returned for non-forced repeat calls.
type Extractor struct {
	fetcher     Fetcher
	cache       cache.MetadataCache
	sf          singleflight.Group
	waitTimeout time.Duration
	cacheTTL    time.Duration
	logger      zerolog.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(fetcher Fetcher, metaCache cache.MetadataCache, opts Options, logger zerolog.Logger) *Extractor {
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 10 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	return &Extractor{
		fetcher:     fetcher,
		cache:       metaCache,
		waitTimeout: opts.WaitTimeout,
		cacheTTL:    opts.CacheTTL,
		logger:      logger,
	}
}

// Extract returns the metadata map for ref. force bypasses the result cache
// and instructs the fetch to defeat intermediary HTTP caches; it is used
// after a confirmed staleness detection or a manual check.
//
// Extract never fails: a failed fetch yields a minimal fallback map, and a
// wait on someone else's in-flight extraction that exceeds the bounded
// timeout yields an empty map.
func (e *Extractor) Extract(ctx context.Context, ref, hint string, force bool) map[string]string {
	if !force {
		if meta, ok := e.cache.Get(ref); ok {
			metrics.ExtractionTotal.WithLabelValues("ok", "hit").Inc()
			return meta
		}
	}

	cacheLabel := "miss"
	if force {
		cacheLabel = "bypass"
	}

	ch := e.sf.DoChan(ref, func() (any, error) {
		return e.fetchAndParse(ref, hint, force)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			e.logger.Warn().Err(res.Err).
				Str("event", "extract.failed").
				Str("resource", ref).
				Msg("extraction failed, substituting fallback metadata")
			metrics.ExtractionTotal.WithLabelValues("fallback", cacheLabel).Inc()
			return map[string]string{FallbackStatusKey: fallbackStatusValue}
		}
		meta := res.Val.(map[string]string)
		e.cache.Set(ref, meta, e.cacheTTL)
		metrics.ExtractionTotal.WithLabelValues("ok", cacheLabel).Inc()
		return meta

	case <-time.After(e.waitTimeout):
		e.logger.Warn().
			Str("event", "extract.wait_timeout").
			Str("resource", ref).
			Dur("timeout", e.waitTimeout).
			Msg("gave up waiting on in-flight extraction")
		metrics.ExtractionTotal.WithLabelValues("timeout", cacheLabel).Inc()
		return map[string]string{}

	case <-ctx.Done():
		e.logger.Debug().
			Str("event", "extract.canceled").
			Str("resource", ref).
			Msg("caller went away while waiting on extraction")
		metrics.ExtractionTotal.WithLabelValues("canceled", cacheLabel).Inc()
		return map[string]string{}
	}
}

// Cached returns the cached metadata for ref without fetching.
func (e *Extractor) Cached(ref string) (map[string]string, bool) {
	return e.cache.Get(ref)
}

// Invalidate drops the cached result for ref.
func (e *Extractor) Invalidate(ref string) {
	e.cache.Delete(ref)
}

// fetchAndParse runs detached from any single caller's context so piggy-backed
// waiters are not cancelled when the initiating caller goes away.
func (e *Extractor) fetchAndParse(ref, hint string, force bool) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.waitTimeout)
	defer cancel()

	payload, err := e.fetcher.Fetch(ctx, ref, resource.FetchOptions{NoCache: force, Hint: hint})
	if err != nil {
		return nil, err
	}

	meta := resource.EmbeddedMetadata(payload.Body)
	// Transport attributes supplement embedded pairs but never shadow them.
	for k, v := range payload.Attrs {
		if _, ok := meta[k]; !ok {
			meta[k] = v
		}
	}
	return meta, nil
}
