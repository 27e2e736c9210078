// SPDX-License-Identifier: MIT

// Package api exposes the engine's control surface over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gjbm2/screen-machine-sub000/internal/engine"
	"github.com/gjbm2/screen-machine-sub000/internal/history"
)

// HistoryReader serves the recent-checks endpoint; nil disables it.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Server wires the engine into an HTTP handler.
type Server struct {
	engine  *engine.Engine
	history HistoryReader
	logger  zerolog.Logger

	// checkLimit bounds manual checks per client IP; the engine refuses
	// overlapping checks anyway, this just keeps abusive pollers off it.
	checkLimit       int
	checkLimitWindow time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithHistory enables the GET /api/history endpoint.
func WithHistory(h HistoryReader) Option {
	return func(s *Server) { s.history = h }
}

// WithCheckRateLimit overrides the manual-check rate limit.
func WithCheckRateLimit(limit int, window time.Duration) Option {
	return func(s *Server) {
		s.checkLimit = limit
		s.checkLimitWindow = window
	}
}

// NewServer creates a Server over the given engine.
func NewServer(eng *engine.Engine, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{
		engine:           eng,
		logger:           logger,
		checkLimit:       10,
		checkLimitWindow: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/params", s.handleGetParams)
		r.Put("/params", s.handlePutParams)
		r.Post("/mode/exit-debug", s.handleExitDebug)
		if s.history != nil {
			r.Get("/history", s.handleHistory)
		}

		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(
				s.checkLimit,
				s.checkLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
					writeJSON(w, http.StatusTooManyRequests,
						map[string]string{"error": "rate_limit_exceeded"})
				}),
			))
			r.Post("/check", s.handleCheck)
		})
	})

	return r
}
