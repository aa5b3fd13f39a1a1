package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// State is the lifecycle state of a user's session.
type State int

const (
	Idle State = iota
	Active
	Finishing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Finishing:
		return "finishing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Cache persists the in-progress session locally so it survives a restart.
type Cache interface {
	SaveSession(ctx context.Context, s *models.ActiveSession) error
	// LoadSession returns nil, nil when the user has no cached session.
	LoadSession(ctx context.Context, userID int) (*models.ActiveSession, error)
	DeleteSession(ctx context.Context, userID int) error
}

// Finisher commits a completed workout to durable storage.
type Finisher interface {
	Finish(ctx context.Context, w models.CompletedWorkout) (*models.FinishResult, error)
}

// Machine is the session state machine of one user. All methods are safe
// for concurrent use; mutations are serialized by mu.
type Machine struct {
	userID   int
	cache    Cache
	finisher Finisher
	log      *slog.Logger

	now   func() time.Time
	newID func() uuid.UUID

	mu      sync.Mutex
	state   State
	session *models.ActiveSession
}

func newMachine(userID int, cache Cache, finisher Finisher, log *slog.Logger) *Machine {
	return &Machine{
		userID:   userID,
		cache:    cache,
		finisher: finisher,
		log:      log.With("user_id", userID),
		now:      time.Now,
		newID:    uuid.New,
	}
}

// restore puts a cached session back into the Active state.
func (m *Machine) restore(s *models.ActiveSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	m.state = Active
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns a copy of the current session, or ErrNoActiveSession.
func (m *Machine) Snapshot() (*models.ActiveSession, State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, m.state, models.ErrNoActiveSession
	}
	return m.session.Clone(), m.state, nil
}

// Start opens a new empty session.
func (m *Machine) Start(ctx context.Context, label string) (*models.ActiveSession, error) {
	return m.start(ctx, label, nil, nil)
}

// StartFromPlan opens a session for one day of plan, pre-populated with a
// zeroed set per planned set.
func (m *Machine) StartFromPlan(ctx context.Context, plan *models.GeneratedPlan, dayIndex int) (*models.ActiveSession, error) {
	if plan == nil {
		return nil, models.ErrNoActivePlan
	}
	if dayIndex < 0 || dayIndex >= len(plan.Schedule) {
		return nil, &models.ValidationError{
			Field:  "plan_day",
			Reason: fmt.Sprintf("must be in [0, %d), got %d", len(plan.Schedule), dayIndex),
		}
	}
	day := plan.Schedule[dayIndex]
	ref := &models.PlanDayRef{PlanID: plan.ID, DayIndex: dayIndex, Week: plan.CurrentWeek}

	exercises := make([]models.SessionExercise, 0, len(day.Exercises))
	for _, pe := range day.Exercises {
		ex := models.SessionExercise{ID: m.newID(), Name: pe.Name, Category: pe.Category}
		for i := 0; i < max(pe.Sets, 1); i++ {
			ex.Sets = append(ex.Sets, models.SetEntry{ID: m.newID()})
		}
		exercises = append(exercises, ex)
	}
	return m.start(ctx, day.Label, ref, exercises)
}

// StartFromTemplate opens a session named after tmpl with one set per
// template set, carrying the template's reps or duration as targets.
func (m *Machine) StartFromTemplate(ctx context.Context, tmpl models.WorkoutTemplate) (*models.ActiveSession, error) {
	exercises := make([]models.SessionExercise, 0, len(tmpl.Exercises))
	for _, te := range tmpl.Exercises {
		ex := models.SessionExercise{ID: m.newID(), Name: te.Name, Category: te.Category}
		for i := 0; i < max(te.Sets, 1); i++ {
			ex.Sets = append(ex.Sets, models.SetEntry{ID: m.newID(), Reps: te.Reps, DurationMin: te.DurationMin})
		}
		exercises = append(exercises, ex)
	}
	return m.start(ctx, tmpl.Name, nil, exercises)
}

func (m *Machine) start(ctx context.Context, label string, ref *models.PlanDayRef, exercises []models.SessionExercise) (*models.ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Active:
		return nil, models.ErrSessionActive
	case Finishing:
		return nil, models.ErrSessionFinishing
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = models.DefaultSessionLabel
	}
	if exercises == nil {
		exercises = []models.SessionExercise{}
	}
	m.session = &models.ActiveSession{
		ID:        m.newID(),
		UserID:    m.userID,
		Label:     label,
		PlanDay:   ref,
		StartTime: m.now(),
		Exercises: exercises,
	}
	m.state = Active
	m.persist(ctx)
	m.log.Info("session started", "session_id", m.session.ID, "label", label)
	return m.session.Clone(), nil
}

// AddExercise appends an exercise with one zeroed set.
func (m *Machine) AddExercise(ctx context.Context, name string, category models.Category) (*models.ActiveSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &models.ValidationError{Field: "name", Reason: "required"}
	}
	return m.mutate(ctx, func(s *models.ActiveSession) error {
		s.Exercises = append(s.Exercises, models.SessionExercise{
			ID:       m.newID(),
			Name:     name,
			Category: category,
			Sets:     []models.SetEntry{{ID: m.newID()}},
		})
		return nil
	})
}

// RemoveExercise removes an exercise by id. Unknown ids are ignored.
func (m *Machine) RemoveExercise(ctx context.Context, exerciseID uuid.UUID) (*models.ActiveSession, error) {
	return m.mutate(ctx, func(s *models.ActiveSession) error {
		for i, ex := range s.Exercises {
			if ex.ID == exerciseID {
				s.Exercises = append(s.Exercises[:i], s.Exercises[i+1:]...)
				break
			}
		}
		return nil
	})
}

// AddSet appends a set carrying the previous set's values, not completed.
func (m *Machine) AddSet(ctx context.Context, exerciseID uuid.UUID) (*models.ActiveSession, error) {
	return m.mutate(ctx, func(s *models.ActiveSession) error {
		ex := findExercise(s, exerciseID)
		if ex == nil {
			return models.ErrExerciseNotFound
		}
		next := models.SetEntry{}
		if n := len(ex.Sets); n > 0 {
			next = ex.Sets[n-1]
		}
		next.ID = m.newID()
		next.Completed = false
		ex.Sets = append(ex.Sets, next)
		return nil
	})
}

// UpdateSet merges the given fields into a set. Negative values are rejected
// and nothing is applied.
func (m *Machine) UpdateSet(ctx context.Context, exerciseID, setID uuid.UUID, u models.SetUpdate) (*models.ActiveSession, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return m.mutate(ctx, func(s *models.ActiveSession) error {
		set, err := findSet(s, exerciseID, setID)
		if err != nil {
			return err
		}
		u.Apply(set)
		return nil
	})
}

// ToggleSet flips the completed flag of a set.
func (m *Machine) ToggleSet(ctx context.Context, exerciseID, setID uuid.UUID) (*models.ActiveSession, error) {
	return m.mutate(ctx, func(s *models.ActiveSession) error {
		set, err := findSet(s, exerciseID, setID)
		if err != nil {
			return err
		}
		set.Completed = !set.Completed
		return nil
	})
}

// Finish snapshots the session and hands it to the finisher. The lock is
// released while the finisher runs; mutations arriving meanwhile fail with
// ErrSessionFinishing. On failure the session stays Active and intact.
func (m *Machine) Finish(ctx context.Context) (*models.FinishResult, error) {
	m.mu.Lock()
	if err := m.requireActive(); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.state = Finishing
	snapshot := models.Complete(m.session, m.now())
	m.mu.Unlock()

	res, err := m.finisher.Finish(ctx, snapshot)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = Active
		m.log.Warn("finishing session failed, session kept", "session_id", snapshot.ID, "error", err)
		return nil, err
	}
	m.state = Idle
	m.session = nil
	if err := m.cache.DeleteSession(ctx, m.userID); err != nil {
		m.log.Warn("clearing cached session", "error", err)
	}
	m.log.Info("session finished",
		"session_id", snapshot.ID,
		"total_volume", snapshot.TotalVolume,
		"aggregates_pending", res.AggregatesPending,
	)
	return res, nil
}

// Cancel discards the session. Cancelling while Idle is a no-op.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Finishing {
		return models.ErrSessionFinishing
	}
	if m.state == Idle {
		return nil
	}
	m.log.Info("session cancelled", "session_id", m.session.ID)
	m.state = Idle
	m.session = nil
	if err := m.cache.DeleteSession(ctx, m.userID); err != nil {
		m.log.Warn("clearing cached session", "error", err)
	}
	return nil
}

// mutate applies fn to the live session if Active and writes it through to
// the cache. fn must leave the session unchanged when it returns an error.
func (m *Machine) mutate(ctx context.Context, fn func(s *models.ActiveSession) error) (*models.ActiveSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireActive(); err != nil {
		return nil, err
	}
	if err := fn(m.session); err != nil {
		return nil, err
	}
	m.persist(ctx)
	return m.session.Clone(), nil
}

func (m *Machine) requireActive() error {
	switch m.state {
	case Idle:
		return models.ErrNoActiveSession
	case Finishing:
		return models.ErrSessionFinishing
	}
	return nil
}

// persist writes the session to the cache. A cache failure does not fail
// the mutation; the in-memory session stays authoritative.
func (m *Machine) persist(ctx context.Context) {
	if err := m.cache.SaveSession(ctx, m.session.Clone()); err != nil {
		m.log.Warn("caching session", "session_id", m.session.ID, "error", err)
	}
}

func findExercise(s *models.ActiveSession, id uuid.UUID) *models.SessionExercise {
	for i := range s.Exercises {
		if s.Exercises[i].ID == id {
			return &s.Exercises[i]
		}
	}
	return nil
}

func findSet(s *models.ActiveSession, exerciseID, setID uuid.UUID) (*models.SetEntry, error) {
	ex := findExercise(s, exerciseID)
	if ex == nil {
		return nil, models.ErrExerciseNotFound
	}
	for i := range ex.Sets {
		if ex.Sets[i].ID == setID {
			return &ex.Sets[i], nil
		}
	}
	return nil, models.ErrSetNotFound
}
