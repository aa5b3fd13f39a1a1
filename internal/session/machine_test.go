package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

type memCache struct {
	mu       sync.Mutex
	sessions map[int]*models.ActiveSession
	saveErr  error
}

func newMemCache() *memCache {
	return &memCache{sessions: map[int]*models.ActiveSession{}}
}

func (c *memCache) SaveSession(_ context.Context, s *models.ActiveSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.saveErr != nil {
		return c.saveErr
	}
	c.sessions[s.UserID] = s.Clone()
	return nil
}

func (c *memCache) LoadSession(_ context.Context, userID int) (*models.ActiveSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[userID].Clone(), nil
}

func (c *memCache) DeleteSession(_ context.Context, userID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, userID)
	return nil
}

// stubFinisher records the snapshots it receives. When gate is non-nil it
// signals entered and blocks until gate is closed.
type stubFinisher struct {
	err     error
	got     []models.CompletedWorkout
	entered chan struct{}
	gate    chan struct{}
}

func (f *stubFinisher) Finish(_ context.Context, w models.CompletedWorkout) (*models.FinishResult, error) {
	if f.gate != nil {
		close(f.entered)
		<-f.gate
	}
	f.got = append(f.got, w)
	if f.err != nil {
		return nil, f.err
	}
	return &models.FinishResult{Workout: w}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMachine(t *testing.T, f Finisher) (*Machine, *memCache) {
	t.Helper()
	cache := newMemCache()
	m := newMachine(1, cache, f, discardLogger())
	m.now = func() time.Time { return time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC) }
	return m, cache
}

func ptr[T any](v T) *T { return &v }

// TestStartDefaultsLabelAndRejectsSecondStart verifies the default label and
// the conflict on a second start.
func TestStartDefaultsLabelAndRejectsSecondStart(t *testing.T) {
	m, cache := newTestMachine(t, &stubFinisher{})
	ctx := context.Background()

	s, err := m.Start(ctx, "  ")
	if err != nil {
		t.Fatal(err)
	}
	if s.Label != models.DefaultSessionLabel {
		t.Errorf("label = %q, want %q", s.Label, models.DefaultSessionLabel)
	}
	if m.State() != Active {
		t.Errorf("state = %s, want active", m.State())
	}
	if cache.sessions[1] == nil {
		t.Error("session not written to cache")
	}

	_, err = m.Start(ctx, "Again")
	if !errors.Is(err, models.ErrSessionActive) || !errors.Is(err, models.ErrConflict) {
		t.Errorf("second start err = %v, want conflict", err)
	}
}

// TestMutationsRequireActiveSession verifies every mutation fails while Idle.
func TestMutationsRequireActiveSession(t *testing.T) {
	m, _ := newTestMachine(t, &stubFinisher{})
	ctx := context.Background()

	if _, err := m.AddExercise(ctx, "Bench Press", models.CategoryPush); !errors.Is(err, models.ErrNoActiveSession) {
		t.Errorf("AddExercise err = %v", err)
	}
	if _, err := m.AddSet(ctx, uuid.New()); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("AddSet err = %v", err)
	}
	if _, err := m.Finish(ctx); !errors.Is(err, models.ErrNoActiveSession) {
		t.Errorf("Finish err = %v", err)
	}
	if err := m.Cancel(ctx); err != nil {
		t.Errorf("Cancel while idle = %v, want nil", err)
	}
}

// TestAddSetCopiesPreviousValues verifies the new set carries the previous
// set's values but is not completed.
func TestAddSetCopiesPreviousValues(t *testing.T) {
	m, _ := newTestMachine(t, &stubFinisher{})
	ctx := context.Background()
	m.Start(ctx, "Push")

	s, _ := m.AddExercise(ctx, "Bench Press", models.CategoryPush)
	ex := s.Exercises[0]
	if len(ex.Sets) != 1 {
		t.Fatalf("new exercise sets = %d, want 1", len(ex.Sets))
	}
	if _, err := m.UpdateSet(ctx, ex.ID, ex.Sets[0].ID, models.SetUpdate{
		Weight: ptr(80.0), Reps: ptr(5), Completed: ptr(true),
	}); err != nil {
		t.Fatal(err)
	}

	s, err := m.AddSet(ctx, ex.ID)
	if err != nil {
		t.Fatal(err)
	}
	sets := s.Exercises[0].Sets
	if len(sets) != 2 {
		t.Fatalf("sets = %d, want 2", len(sets))
	}
	if sets[1].Weight != 80 || sets[1].Reps != 5 || sets[1].Completed {
		t.Errorf("copied set = %+v", sets[1])
	}
	if sets[1].ID == sets[0].ID {
		t.Error("copied set reused the previous id")
	}
}

// TestUpdateSetRejectsNegativeWithoutApplying verifies a rejected update leaves
// every field unchanged.
func TestUpdateSetRejectsNegativeWithoutApplying(t *testing.T) {
	m, _ := newTestMachine(t, &stubFinisher{})
	ctx := context.Background()
	m.Start(ctx, "")
	s, _ := m.AddExercise(ctx, "Rowing", models.CategoryCardio)
	ex := s.Exercises[0]

	_, err := m.UpdateSet(ctx, ex.ID, ex.Sets[0].ID, models.SetUpdate{
		DurationMin: ptr(15.0), Distance: ptr(-1.0),
	})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	snap, _, _ := m.Snapshot()
	if got := snap.Exercises[0].Sets[0]; got.DurationMin != 0 || got.Distance != 0 {
		t.Errorf("set partially updated: %+v", got)
	}
}

// TestUnknownIDs verifies not-found errors for sets and the no-op remove.
func TestUnknownIDs(t *testing.T) {
	m, _ := newTestMachine(t, &stubFinisher{})
	ctx := context.Background()
	m.Start(ctx, "")
	s, _ := m.AddExercise(ctx, "Plank", models.CategoryCore)

	if _, err := m.ToggleSet(ctx, s.Exercises[0].ID, uuid.New()); !errors.Is(err, models.ErrSetNotFound) {
		t.Errorf("ToggleSet err = %v, want set not found", err)
	}
	if _, err := m.ToggleSet(ctx, uuid.New(), uuid.New()); !errors.Is(err, models.ErrExerciseNotFound) {
		t.Errorf("ToggleSet err = %v, want exercise not found", err)
	}
	s, err := m.RemoveExercise(ctx, uuid.New())
	if err != nil || len(s.Exercises) != 1 {
		t.Errorf("RemoveExercise unknown = %v, %d exercises", err, len(s.Exercises))
	}
	s, _ = m.RemoveExercise(ctx, s.Exercises[0].ID)
	if len(s.Exercises) != 0 {
		t.Errorf("exercises after remove = %d", len(s.Exercises))
	}
}

// TestFinishVolumeCountsCompletedSetsOnly checks a finished session with one
// completed and one open set reports the completed set's volume.
func TestFinishVolumeCountsCompletedSetsOnly(t *testing.T) {
	f := &stubFinisher{}
	m, cache := newTestMachine(t, f)
	ctx := context.Background()
	m.Start(ctx, "Squat Day")
	s, _ := m.AddExercise(ctx, "Barbell Squats", models.CategoryLegs)
	ex := s.Exercises[0]
	m.UpdateSet(ctx, ex.ID, ex.Sets[0].ID, models.SetUpdate{Weight: ptr(100.0), Reps: ptr(10), Completed: ptr(true)})
	s, _ = m.AddSet(ctx, ex.ID)
	m.UpdateSet(ctx, ex.ID, s.Exercises[0].Sets[1].ID, models.SetUpdate{Reps: ptr(8)})

	res, err := m.Finish(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Workout.TotalVolume != 1000 {
		t.Errorf("total volume = %v, want 1000", res.Workout.TotalVolume)
	}
	if res.Workout.ID != s.ID {
		t.Error("workout id should equal session id")
	}
	if m.State() != Idle {
		t.Errorf("state = %s, want idle", m.State())
	}
	if len(cache.sessions) != 0 {
		t.Error("cache not cleared after finish")
	}
}

// TestFailedFinishKeepsSessionActive verifies data survives a persistence failure.
func TestFailedFinishKeepsSessionActive(t *testing.T) {
	f := &stubFinisher{err: models.Unavailable(errors.New("connection refused"))}
	m, cache := newTestMachine(t, f)
	ctx := context.Background()
	m.Start(ctx, "")
	m.AddExercise(ctx, "Pull-ups", models.CategoryPull)

	if _, err := m.Finish(ctx); !errors.Is(err, models.ErrPersistenceUnavailable) {
		t.Fatalf("err = %v, want persistence unavailable", err)
	}
	if m.State() != Active {
		t.Errorf("state = %s, want active", m.State())
	}
	snap, _, err := m.Snapshot()
	if err != nil || len(snap.Exercises) != 1 {
		t.Errorf("session lost after failed finish: %v", err)
	}
	if cache.sessions[1] == nil {
		t.Error("cache cleared after failed finish")
	}

	f.err = nil
	if _, err := m.Finish(ctx); err != nil {
		t.Errorf("retry finish: %v", err)
	}
	if f.got[0].ID != f.got[1].ID {
		t.Error("retried finish should reuse the session id")
	}
}

// TestMutationsRejectedWhileFinishing verifies calls made during an in-flight
// finish are rejected and not included in the snapshot.
func TestMutationsRejectedWhileFinishing(t *testing.T) {
	f := &stubFinisher{entered: make(chan struct{}), gate: make(chan struct{})}
	m, _ := newTestMachine(t, f)
	ctx := context.Background()
	m.Start(ctx, "")
	m.AddExercise(ctx, "Plank", models.CategoryCore)

	done := make(chan error, 1)
	go func() {
		_, err := m.Finish(ctx)
		done <- err
	}()
	<-f.entered

	if m.State() != Finishing {
		t.Errorf("state = %s, want finishing", m.State())
	}
	if _, err := m.AddExercise(ctx, "Dead Bug", models.CategoryCore); !errors.Is(err, models.ErrSessionFinishing) {
		t.Errorf("AddExercise err = %v, want finishing", err)
	}
	if err := m.Cancel(ctx); !errors.Is(err, models.ErrSessionFinishing) {
		t.Errorf("Cancel err = %v, want finishing", err)
	}
	if _, err := m.Start(ctx, ""); !errors.Is(err, models.ErrConflict) {
		t.Errorf("Start err = %v, want conflict", err)
	}

	close(f.gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if n := len(f.got[0].Exercises); n != 1 {
		t.Errorf("snapshot exercises = %d, want 1", n)
	}
}

// TestStartFromPlanPrepopulatesSets verifies a plan day becomes a session with
// one empty set per planned set.
func TestStartFromPlanPrepopulatesSets(t *testing.T) {
	m, _ := newTestMachine(t, &stubFinisher{})
	plan := &models.GeneratedPlan{
		ID:          uuid.New(),
		CurrentWeek: 2,
		Schedule: []models.WorkoutDay{{
			Label: "Day 1: Push",
			Exercises: []models.PlannedExercise{
				{Name: "Bench Press", Category: models.CategoryPush, Sets: 4, Reps: "5-8", Rest: 120},
				{Name: "Rowing", Category: models.CategoryCardio, Sets: 1, Duration: 15, Rest: 60},
			},
		}},
	}

	s, err := m.StartFromPlan(context.Background(), plan, 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Label != "Day 1: Push" || s.PlanDay == nil || s.PlanDay.Week != 2 {
		t.Errorf("session header = %q %+v", s.Label, s.PlanDay)
	}
	if len(s.Exercises) != 2 || len(s.Exercises[0].Sets) != 4 || len(s.Exercises[1].Sets) != 1 {
		t.Errorf("exercises = %+v", s.Exercises)
	}

	m2, _ := newTestMachine(t, &stubFinisher{})
	if _, err := m2.StartFromPlan(context.Background(), plan, 3); !errors.Is(err, models.ErrValidation) {
		t.Errorf("out of range day err = %v", err)
	}
}

// TestStartFromTemplateCarriesTargets verifies template sets arrive open with
// their reps or duration filled in, and count toward volume once completed.
func TestStartFromTemplateCarriesTargets(t *testing.T) {
	f := &stubFinisher{}
	m, cache := newTestMachine(t, f)
	ctx := context.Background()
	tmpl := models.WorkoutTemplate{
		ID:   "mini",
		Name: "Mini Full Body",
		Exercises: []models.TemplateExercise{
			{Name: "Squats", Category: models.CategoryLegs, Sets: 3, Reps: 10},
			{Name: "Plank", Category: models.CategoryCore, Sets: 2, DurationMin: 0.5},
		},
	}

	s, err := m.StartFromTemplate(ctx, tmpl)
	if err != nil {
		t.Fatal(err)
	}
	if s.Label != "Mini Full Body" || s.PlanDay != nil {
		t.Errorf("session header = %q %+v", s.Label, s.PlanDay)
	}
	if len(s.Exercises) != 2 || len(s.Exercises[0].Sets) != 3 || len(s.Exercises[1].Sets) != 2 {
		t.Fatalf("exercises = %+v", s.Exercises)
	}
	squat := s.Exercises[0].Sets[0]
	if squat.Reps != 10 || squat.Completed {
		t.Errorf("squat set = %+v", squat)
	}
	if s.Exercises[1].Sets[1].DurationMin != 0.5 {
		t.Errorf("plank set = %+v", s.Exercises[1].Sets[1])
	}
	if cache.sessions[1] == nil {
		t.Error("template session not cached")
	}

	if _, err := m.StartFromTemplate(ctx, tmpl); !errors.Is(err, models.ErrSessionActive) {
		t.Errorf("second start err = %v", err)
	}
}

// TestCacheFailureDoesNotFailMutation verifies the in-memory session stays
// authoritative when the local cache cannot be written.
func TestCacheFailureDoesNotFailMutation(t *testing.T) {
	m, cache := newTestMachine(t, &stubFinisher{})
	cache.saveErr = errors.New("disk full")
	ctx := context.Background()

	if _, err := m.Start(ctx, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddExercise(ctx, "Lunges", models.CategoryLegs); err != nil {
		t.Errorf("AddExercise err = %v", err)
	}
}

// TestManagerResumesCachedSession verifies a restarted process picks up the
// session a previous process left in the cache.
func TestManagerResumesCachedSession(t *testing.T) {
	cache := newMemCache()
	ctx := context.Background()

	first := NewManager(cache, &stubFinisher{}, discardLogger())
	m, err := first.For(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	s, _ := m.Start(ctx, "Leg Day")
	m.AddExercise(ctx, "Leg Press", models.CategoryLegs)

	restarted := NewManager(cache, &stubFinisher{}, discardLogger())
	m2, err := restarted.For(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	snap, state, err := m2.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	if state != Active || snap.ID != s.ID || len(snap.Exercises) != 1 {
		t.Errorf("resumed %s session %v with %d exercises", state, snap.ID, len(snap.Exercises))
	}

	same, _ := restarted.For(ctx, 5)
	if same != m2 {
		t.Error("For should return the same machine for a user")
	}
	other, _ := restarted.For(ctx, 6)
	if other.State() != Idle {
		t.Error("a user without a cached session should start idle")
	}
}
