// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gjbm2/screen-machine-sub000/internal/log"
)

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		ctx := log.ContextWithRequestID(r.Context(), chimw.GetReqID(r.Context()))
		next.ServeHTTP(ww, r.WithContext(ctx))

		s.logger.Info().
			Str("event", "http.request").
			Str(log.FieldRequestID, log.RequestIDFromContext(ctx)).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request handled")
	})
}

// recoverer turns handler panics into 500s instead of taking the daemon down.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Str("event", "http.panic").
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Msg("handler panicked")
				writeJSON(w, http.StatusInternalServerError,
					map[string]string{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
