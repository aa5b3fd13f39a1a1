package server

import (
	"net/http"

	"github.com/claude/liftlog/internal/models"
)

// planRequest is a profile plus an optional generator seed.
type planRequest struct {
	models.ProfileInput
	Seed *uint64 `json:"seed,omitempty"`
}

func (s *Server) handlePreviewPlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Plans.Preview(UserIDFromContext(r.Context()), req.ProfileInput, req.Seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.Plans.Create(r.Context(), UserIDFromContext(r.Context()), req.ProfileInput, req.Seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleActivePlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.Plans.Active(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAdvancePlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.Plans.Advance(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRestartPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.Plans.Restart(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCancelPlan(w http.ResponseWriter, r *http.Request) {
	if err := s.Plans.Cancel(r.Context(), UserIDFromContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
