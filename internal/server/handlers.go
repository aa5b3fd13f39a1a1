package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, userInfoFromContext(r))
}

func (s *Server) handleExercises(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := models.Category(q.Get("category"))
	if category == "" && q.Get("equipment") == "" && q.Get("avoid") == "" {
		writeJSON(w, http.StatusOK, s.Catalog.All())
		return
	}
	entries := s.Catalog.Lookup(category,
		models.ParseEquipment(q.Get("equipment")),
		models.ParseConstraints(q.Get("avoid")))
	if entries == nil {
		entries = []models.ExerciseEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	difficulty := models.Experience(q.Get("difficulty"))
	if difficulty != "" && !difficulty.Valid() {
		s.writeError(w, r, &models.ValidationError{Field: "difficulty", Reason: "want beginner, intermediate or advanced"})
		return
	}
	writeJSON(w, http.StatusOK, s.Templates.List(q.Get("focus"), difficulty))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind to its status code.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, models.ErrPersistenceUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// decodeJSON reads a JSON body into v. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &models.ValidationError{Field: "body", Reason: err.Error()}
	}
	return nil
}

func urlUUID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, &models.ValidationError{Field: param, Reason: "not a UUID"}
	}
	return id, nil
}

// parseTimeRange reads start and end as RFC 3339 or YYYY-MM-DD. The default
// range is the last 30 days.
func parseTimeRange(r *http.Request) (start, end time.Time, err error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")

	end = time.Now()
	if endStr != "" {
		if end, err = parseFlexTime(endStr); err != nil {
			return time.Time{}, time.Time{}, &models.ValidationError{Field: "end", Reason: err.Error()}
		}
	}
	if startStr == "" {
		return end.AddDate(0, 0, -30), end, nil
	}
	if start, err = parseFlexTime(startStr); err != nil {
		return time.Time{}, time.Time{}, &models.ValidationError{Field: "start", Reason: err.Error()}
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, &models.ValidationError{Field: "start", Reason: "must be before end"}
	}
	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want RFC 3339 or YYYY-MM-DD, got %q", s)
	}
	return t, nil
}
