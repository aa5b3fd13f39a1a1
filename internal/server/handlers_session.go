package server

import (
	"errors"
	"net/http"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
)

type sessionResponse struct {
	State   string                `json:"state"`
	Session *models.ActiveSession `json:"session"`
}

type startSessionRequest struct {
	Label string `json:"label"`
	// PlanDay starts the session from a day of the active plan.
	PlanDay *int `json:"plan_day"`
	// Template starts the session from a predefined workout.
	Template string `json:"template"`
}

type addExerciseRequest struct {
	Name     string          `json:"name"`
	Category models.Category `json:"category"`
}

// machine resolves the caller's session machine, writing the error response
// when it cannot.
func (s *Server) machine(w http.ResponseWriter, r *http.Request) (*session.Machine, bool) {
	m, err := s.Sessions.For(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return m, true
}

func (s *Server) writeSession(w http.ResponseWriter, status int, m *session.Machine, as *models.ActiveSession) {
	writeJSON(w, status, sessionResponse{State: m.State().String(), Session: as})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	m, ok := s.machine(w, r)
	if !ok {
		return
	}
	as, state, err := m.Snapshot()
	if err != nil && !errors.Is(err, models.ErrNoActiveSession) {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{State: state.String(), Session: as})
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	m, ok := s.machine(w, r)
	if !ok {
		return
	}

	var (
		as  *models.ActiveSession
		err error
	)
	switch {
	case req.PlanDay != nil && req.Template != "":
		err = &models.ValidationError{Field: "template", Reason: "cannot be combined with plan_day"}
	case req.Template != "":
		tmpl, found := s.Templates.Get(req.Template)
		if !found {
			err = models.ErrTemplateNotFound
			break
		}
		as, err = m.StartFromTemplate(r.Context(), tmpl)
	case req.PlanDay != nil:
		var plan *models.GeneratedPlan
		plan, err = s.Plans.Active(r.Context(), UserIDFromContext(r.Context()))
		if err == nil {
			as, err = m.StartFromPlan(r.Context(), plan, *req.PlanDay)
		}
	default:
		as, err = m.Start(r.Context(), req.Label)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusCreated, m, as)
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	m, ok := s.machine(w, r)
	if !ok {
		return
	}
	if err := m.Cancel(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request) {
	m, ok := s.machine(w, r)
	if !ok {
		return
	}
	res, err := m.Finish(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleAddExercise(w http.ResponseWriter, r *http.Request) {
	var req addExerciseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Category == "" {
		if entry, ok := s.Catalog.Find(req.Name); ok {
			req.Category = entry.Category
		}
	}
	m, ok := s.machine(w, r)
	if !ok {
		return
	}
	as, err := m.AddExercise(r.Context(), req.Name, req.Category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, m, as)
}

func (s *Server) handleRemoveExercise(w http.ResponseWriter, r *http.Request) {
	exID, err := urlUUID(r, "exerciseID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, ok := s.machine(w, r)
	if !ok {
		return
	}
	as, err := m.RemoveExercise(r.Context(), exID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, m, as)
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	exID, err := urlUUID(r, "exerciseID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, ok := s.machine(w, r)
	if !ok {
		return
	}
	as, err := m.AddSet(r.Context(), exID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, m, as)
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	exID, err := urlUUID(r, "exerciseID")
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
	m, ok := s.machine(w, r)
	if !ok {
		return
	}
	as, err := m.UpdateSet(r.Context(), exID, setID, u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, m, as)
}

func (s *Server) handleToggleSet(w http.ResponseWriter, r *http.Request) {
	exID, err := urlUUID(r, "exerciseID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setID, err := urlUUID(r, "setID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	m, ok := s.machine(w, r)
	if !ok {
		return
	}
	as, err := m.ToggleSet(r.Context(), exID, setID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeSession(w, http.StatusOK, m, as)
}
