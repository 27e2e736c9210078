// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gjbm2/screen-machine-sub000/internal/cache"
	"github.com/gjbm2/screen-machine-sub000/internal/engine"
	"github.com/gjbm2/screen-machine-sub000/internal/history"
	"github.com/gjbm2/screen-machine-sub000/internal/metadata"
	"github.com/gjbm2/screen-machine-sub000/internal/mode"
	"github.com/gjbm2/screen-machine-sub000/internal/params"
	"github.com/gjbm2/screen-machine-sub000/internal/resource"
	"github.com/gjbm2/screen-machine-sub000/internal/staleness"
	"github.com/gjbm2/screen-machine-sub000/internal/transition"
)

type stubProber struct {
	mu     sync.Mutex
	marker string
	gate   chan struct{}
}

func (p *stubProber) Probe(ctx context.Context, ref string) (string, error) {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marker, nil
}

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, ref string, opts resource.FetchOptions) (*resource.Payload, error) {
	return &resource.Payload{Body: []byte("x"), Attrs: map[string]string{"name": ref}}, nil
}

type stubPreloader struct{}

func (stubPreloader) Preload(ctx context.Context, ref string) error { return nil }

type stubHistory struct {
	entries []history.Entry
	err     error
}

func (h *stubHistory) Recent(ctx context.Context, limit int) ([]history.Entry, error) {
	if h.err != nil {
		return nil, h.err
	}
	if limit < len(h.entries) {
		return h.entries[:limit], nil
	}
	return h.entries, nil
}

func paramsFromQuery(q string) params.DisplayParams {
	return params.Decode(q)
}

func newTestEngine(t *testing.T, prober *stubProber) *engine.Engine {
	t.Helper()
	logger := zerolog.Nop()

	eng := engine.New(
		staleness.NewDetector(prober, logger),
		metadata.NewExtractor(stubFetcher{}, cache.NewMemoryCache(0), metadata.Options{WaitTimeout: time.Second}, logger),
		transition.NewController(stubPreloader{}, transition.Config{}, logger),
		mode.NewReconciler(mode.NewMemStore(), logger),
		nil,
		engine.Config{},
		engine.Callbacks{},
		logger,
	)
	t.Cleanup(eng.Close)
	return eng
}

func newTestServer(t *testing.T, prober *stubProber, opts ...Option) (*Server, *engine.Engine) {
	t.Helper()
	eng := newTestEngine(t, prober)
	return NewServer(eng, zerolog.Nop(), opts...), eng
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{marker: "T1"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	s, eng := newTestServer(t, &stubProber{marker: "T1"})
	eng.ApplyParams(paramsFromQuery("output=a.jpg&refresh=30"))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var st map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "?output=a.jpg&refresh=30", st["query"])
	assert.Equal(t, false, st["busy"])
}

func TestCheck_ReportsUpdate(t *testing.T) {
	s, eng := newTestServer(t, &stubProber{marker: "T1"})
	eng.ApplyParams(paramsFromQuery("output=a.jpg"))
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/check", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":true}`, rec.Body.String())

	// Unchanged marker, already displayed.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/check", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"updated":false}`, rec.Body.String())
}

func TestCheck_ConflictWhileBusy(t *testing.T) {
	gate := make(chan struct{})
	s, eng := newTestServer(t, &stubProber{marker: "T1", gate: gate})
	eng.ApplyParams(paramsFromQuery("output=a.jpg"))
	h := s.Handler()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/check", nil))
	}()

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/check", nil))
		return rec.Code == http.StatusConflict
	}, time.Second, 5*time.Millisecond)

	close(gate)
	<-firstDone
}

func TestCheck_RateLimited(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{marker: "T1"}, WithCheckRateLimit(1, time.Minute))
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/check", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/check", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestPutParams_AppliesAndRedirects(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{marker: "T1"})
	h := s.Handler()

	body := strings.NewReader(`{"query":"?output=a.jpg&show=fill"}`)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/params", body))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp paramsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "?output=a.jpg&show=fill", resp.Query)
	assert.True(t, resp.Mode.ShouldRedirectToDebug, "bare visit redirects into debug mode")

	// Same query again: the redirect has been attempted.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/params",
		strings.NewReader(`{"query":"?output=a.jpg&show=fill"}`)))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Mode.ShouldRedirectToDebug)
}

func TestPutParams_RejectsInvalidJSON(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{marker: "T1"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/params",
		strings.NewReader("not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExitDebug(t *testing.T) {
	s, eng := newTestServer(t, &stubProber{marker: "T1"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/mode/exit-debug", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// The committed flag suppresses redirects on the next clean-view visit.
	eng.ApplyParams(paramsFromQuery("output=a.jpg"))
	assert.False(t, eng.State().Mode.ShouldRedirectToDebug)
}

func TestHistory(t *testing.T) {
	hist := &stubHistory{entries: []history.Entry{
		{ID: 2, Identifier: "a.jpg", Changed: true, Source: "manual"},
		{ID: 1, Identifier: "a.jpg", Changed: false, Source: "timer"},
	}}
	s, _ := newTestServer(t, &stubProber{marker: "T1"}, WithHistory(hist))
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var entries []history.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].ID)
}

func TestHistory_LimitValidation(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{marker: "T1"}, WithHistory(&stubHistory{}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=0", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_StoreErrorIs500(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{marker: "T1"},
		WithHistory(&stubHistory{err: errors.New("database locked")}))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t, &stubProber{marker: "T1"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
