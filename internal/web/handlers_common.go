package web

// This file contains shared utilities and the operational endpoints.

import (
	"net/http"
	"strconv"

	"github.com/raulbatres90/challenge-estudiantes/internal/logging"
)

// parseIntParam parses an integer query parameter. Missing, malformed or
// below-minimum values fall back to defaultVal.
func parseIntParam(r *http.Request, name string, defaultVal, minVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < minVal {
		return defaultVal
	}
	return i
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status   string      `json:"status"`
	Database string      `json:"database,omitempty"`
	Imports  QueueStatus `json:"imports"`
}

// QueueStatus describes the import limiter.
type QueueStatus struct {
	Active    int `json:"active"`
	Max       int `json:"max"`
	Available int `json:"available"`
}

// handleHealth reports whether the database is reachable, along with the
// current import load.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	lim := s.service.Limiter()
	resp := HealthResponse{
		Status: "ok",
		Imports: QueueStatus{
			Active:    lim.ActiveCount(),
			Max:       lim.MaxConcurrent(),
			Available: lim.Available(),
		},
	}

	if s.health != nil {
		resp.Database = "ok"
		if err := s.health.Ping(r.Context()); err != nil {
			logging.FromContext(r.Context()).Error("health check failed", "error", err)
			resp.Status = "unavailable"
			resp.Database = "unreachable"
			writeJSONStatus(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	writeJSON(w, resp)
}
