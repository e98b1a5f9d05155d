package adapthttp

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sugar/internal/app"
	"sugar/internal/domain"
)

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	items, err := s.readings.List(r.Context(), callerFromContext(r), r.URL.Query().Get("unit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleSpanReadings(w http.ResponseWriter, r *http.Request) {
	daysAgo, err := strconv.Atoi(chi.URLParam(r, "daysAgo"))
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: daysAgo must be an integer", domain.ErrValidation))
		return
	}
	items, err := s.readings.Span(r.Context(), callerFromContext(r), daysAgo, r.URL.Query().Get("unit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"daysAgo": daysAgo, "items": items})
}

func (s *Server) handleCreateReading(w http.ResponseWriter, r *http.Request) {
	var in app.ReadingInput
	if err := parseJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	reading, err := s.readings.Create(r.Context(), callerFromContext(r), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reading)
}

func (s *Server) handleGetReading(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	reading, err := s.readings.Get(r.Context(), callerFromContext(r), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleUpdateReading(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var in app.ReadingInput
	if err := parseJSON(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	reading, err := s.readings.Update(r.Context(), callerFromContext(r), id, in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleDeleteReading(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.readings.Delete(r.Context(), callerFromContext(r), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
