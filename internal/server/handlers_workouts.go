package server

import (
	"net/http"

	"github.com/claude/liftlog/internal/models"
)

type renameRequest struct {
	Label string `json:"label"`
}

type monthlyGoalRequest struct {
	Month  string `json:"month"`
	Target int    `json:"target"`
}

func (s *Server) handleQueryWorkouts(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseTimeRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	workouts, err := s.Workouts.Workouts(r.Context(), UserIDFromContext(r.Context()), start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if workouts == nil {
		workouts = []models.CompletedWorkout{}
	}
	writeJSON(w, http.StatusOK, workouts)
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	workout, err := s.Workouts.Workout(r.Context(), UserIDFromContext(r.Context()), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (s *Server) handleRenameWorkout(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req renameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	workout, err := s.Workouts.RenameWorkout(r.Context(), UserIDFromContext(r.Context()), id, req.Label)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.Workouts.Delete(r.Context(), UserIDFromContext(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditSet(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setID, err := urlUUID(r, "setID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var u models.SetUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		s.writeError(w, r, err)
		return
	}
	workout, err := s.Workouts.EditSet(r.Context(), UserIDFromContext(r.Context()), id, setID, u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, workout)
}

func (s *Server) handleGamification(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Workouts.Gamification(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleResetGamification(w http.ResponseWriter, r *http.Request) {
	if err := s.Workouts.ResetGamification(r.Context(), UserIDFromContext(r.Context())); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMonthlyGoal(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		month = s.Workouts.CurrentMonth()
	}
	goal, err := s.Workouts.MonthlyGoal(r.Context(), UserIDFromContext(r.Context()), month)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

func (s *Server) handleSetMonthlyGoal(w http.ResponseWriter, r *http.Request) {
	var req monthlyGoalRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Month == "" {
		req.Month = s.Workouts.CurrentMonth()
	}
	goal, err := s.Workouts.SetMonthlyGoal(r.Context(), UserIDFromContext(r.Context()), req.Month, req.Target)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}
