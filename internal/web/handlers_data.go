package web

import (
	"net/http"

	"github.com/raulbatres90/challenge-estudiantes/internal/core"
)

// StudentsResponse is a page of persisted students.
type StudentsResponse struct {
	Students []core.Student `json:"students"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
}

// ImportsResponse lists recent import runs.
type ImportsResponse struct {
	Imports []core.ImportRun `json:"imports"`
}

// handleListStudents returns persisted students, newest first.
func (s *Server) handleListStudents(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultListLimit, 1)
	offset := parseIntParam(r, "offset", 0, 0)

	students, err := s.service.ListStudents(r.Context(), limit, offset)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if students == nil {
		students = []core.Student{}
	}

	writeJSON(w, StudentsResponse{
		Students: students,
		Limit:    min(limit, core.MaxListLimit),
		Offset:   offset,
	})
}

// handleListImports returns the most recent import runs.
func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", core.DefaultListLimit, 1)

	runs, err := s.service.ListImports(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []core.ImportRun{}
	}

	writeJSON(w, ImportsResponse{Imports: runs})
}
