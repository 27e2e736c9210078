// SPDX-License-Identifier: MIT

package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxFetchBytes caps a single image fetch. Larger bodies are truncated for
// metadata extraction; the display itself loads the URL directly.
const maxFetchBytes = 64 << 20

// HTTPSource probes and fetches resources over HTTP(S).
type HTTPSource struct {
	http *http.Client
}

// NewHTTPSource creates an HTTP source with an instrumented transport.
func NewHTTPSource() *HTTPSource {
	return &HTTPSource{
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Probe issues a cache-busting HEAD request and derives a change marker from
// the response headers. Servers that reject HEAD make Probe fall back to a
// one-byte ranged GET before giving up with ErrProbeUnsupported.
func (s *HTTPSource) Probe(ctx context.Context, ref string) (string, error) {
	res, err := s.do(ctx, http.MethodHead, ref, true)
	if err != nil {
		return "", err
	}
	drain(res)

	if res.StatusCode == http.StatusMethodNotAllowed || res.StatusCode == http.StatusNotImplemented {
		res, err = s.doRanged(ctx, ref)
		if err != nil {
			return "", err
		}
		drain(res)
	}

	if res.StatusCode >= 400 {
		return "", fmt.Errorf("%w: status %d", ErrProbeUnsupported, res.StatusCode)
	}
	return markerFromHeaders(res.Header), nil
}

// Fetch retrieves the resource body and transport attributes, merging in a
// sidecar JSON document when a hint names one.
func (s *HTTPSource) Fetch(ctx context.Context, ref string, opts FetchOptions) (*Payload, error) {
	res, err := s.do(ctx, http.MethodGet, ref, opts.NoCache)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", ref, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	payload := &Payload{Body: body, Attrs: attrsFromHeaders(res.Header, len(body))}

	if opts.Hint != "" {
		if sidecar, err := s.fetchSidecar(ctx, ref, opts.Hint); err == nil {
			for k, v := range sidecar {
				payload.Attrs[k] = v
			}
		}
		// Sidecar absence is not an error; the hint is best-effort.
	}
	return payload, nil
}

func (s *HTTPSource) do(ctx context.Context, method, ref string, noCache bool) (*http.Response, error) {
	target := ref
	if noCache {
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", ref, err)
		}
		q := u.Query()
		q.Set("nocache", uuid.New().String())
		u.RawQuery = q.Encode()
		target = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	return s.http.Do(req)
}

func (s *HTTPSource) doRanged(ctx context.Context, ref string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("Range", "bytes=0-0")
	return s.http.Do(req)
}

func (s *HTTPSource) fetchSidecar(ctx context.Context, ref, hint string) (map[string]string, error) {
	base, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	rel, err := url.Parse(hint)
	if err != nil {
		return nil, err
	}
	target := base.ResolveReference(rel).String()

	res, err := s.do(ctx, http.MethodGet, target, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("sidecar %s: status %d", target, res.StatusCode)
	}

	var out map[string]string
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sidecar: %w", err)
	}
	return out, nil
}

// markerFromHeaders prefers the strongest validator available.
func markerFromHeaders(h http.Header) string {
	if v := h.Get("ETag"); v != "" {
		return v
	}
	if v := h.Get("Last-Modified"); v != "" {
		return v
	}
	return h.Get("Content-Length")
}

func attrsFromHeaders(h http.Header, bodyLen int) map[string]string {
	attrs := map[string]string{
		"size": strconv.Itoa(bodyLen),
	}
	if v := h.Get("Content-Type"); v != "" {
		attrs["content-type"] = v
	}
	if v := h.Get("Last-Modified"); v != "" {
		attrs["modified"] = v
	}
	return attrs
}

func drain(res *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1024))
	_ = res.Body.Close()
}
