// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gjbm2/screen-machine-sub000/internal/engine"
	"github.com/gjbm2/screen-machine-sub000/internal/history"
	"github.com/gjbm2/screen-machine-sub000/internal/log"
	"github.com/gjbm2/screen-machine-sub000/internal/params"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus returns the engine's combined observable state.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.State())
}

type checkResponse struct {
	Updated bool `json:"updated"`
}

// handleCheck triggers a manual check. A check already in progress yields
// 409 so the client can show "busy" instead of silently queueing.
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	updated, err := s.engine.ManualCheck(r.Context())
	logger.Debug().
		Str("event", "check.requested").
		Bool("updated", updated).
		Err(err).
		Msg("manual check handled")

	switch {
	case errors.Is(err, engine.ErrCheckInProgress):
		writeError(w, http.StatusConflict, "check already in progress")
	case errors.Is(err, engine.ErrTornDown):
		writeError(w, http.StatusServiceUnavailable, "shutting down")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, checkResponse{Updated: updated})
	}
}

type paramsResponse struct {
	Query string           `json:"query"`
	Mode  engine.ModeState `json:"mode"`
}

func (s *Server) handleGetParams(w http.ResponseWriter, _ *http.Request) {
	st := s.engine.State()
	writeJSON(w, http.StatusOK, paramsResponse{Query: st.Query, Mode: st.Mode})
}

type putParamsRequest struct {
	Query string `json:"query"`
}

// handlePutParams replaces the parameter snapshot from a query string.
// Decoding never fails: malformed values degrade to their defaults.
func (s *Server) handlePutParams(w http.ResponseWriter, r *http.Request) {
	var req putParamsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.engine.ApplyParams(params.Decode(strings.TrimPrefix(req.Query, "?")))

	st := s.engine.State()
	writeJSON(w, http.StatusOK, paramsResponse{Query: st.Query, Mode: st.Mode})
}

// handleExitDebug persists the explicit exit out of debug mode before the
// client navigates to the clean view.
func (s *Server) handleExitDebug(w http.ResponseWriter, _ *http.Request) {
	if err := s.engine.CommitExitDebug(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "committed"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be an integer in [1, 1000]")
			return
		}
		limit = n
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
