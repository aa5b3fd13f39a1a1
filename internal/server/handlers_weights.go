package server

import (
	"net/http"

	"github.com/claude/liftlog/internal/models"
)

type addWeightRequest struct {
	Weight float64 `json:"weight"`
	// Date is YYYY-MM-DD; empty means today.
	Date string `json:"date"`
	Note string `json:"note"`
}

func (s *Server) handleListWeights(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.Weights.List(r.Context(), UserIDFromContext(r.Context()), start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.WeightEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAddWeight(w http.ResponseWriter, r *http.Request) {
	var req addWeightRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	e, err := s.Weights.Add(r.Context(), UserIDFromContext(r.Context()), req.Weight, req.Date, req.Note)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteWeight(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Weights.Delete(r.Context(), UserIDFromContext(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWeightSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Weights.Summary(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
