package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with the same commit-marker semantics as
// the Postgres implementation.
type fakeStore struct {
	workouts map[uuid.UUID]models.CompletedWorkout
	sets     map[uuid.UUID][]models.SetEntry
	commits  map[uuid.UUID]bool
	gam      map[int]*models.GamificationRecord
	goals    map[string]*models.MonthlyGoal

	failSave   bool
	failSets   bool
	failCommit bool
	failCount  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		workouts: map[uuid.UUID]models.CompletedWorkout{},
		sets:     map[uuid.UUID][]models.SetEntry{},
		commits:  map[uuid.UUID]bool{},
		gam:      map[int]*models.GamificationRecord{},
		goals:    map[string]*models.MonthlyGoal{},
	}
}

var errDown = errors.New("connection refused")

func goalKey(userID int, month string) string {
	return fmt.Sprintf("%d/%s", userID, month)
}

// SaveWorkout stages the write and applies it only if nothing fails, like the
// transaction in the Postgres implementation.
func (s *fakeStore) SaveWorkout(_ context.Context, w models.CompletedWorkout) (bool, error) {
	if s.failSave {
		return false, errDown
	}
	if s.commits[w.ID] {
		return false, nil
	}
	old, exists := s.workouts[w.ID]
	if exists && old.UserID != w.UserID {
		return false, models.ErrConflict
	}

	header := w
	header.Exercises = nil
	staged := map[uuid.UUID][]models.SetEntry{}
	for _, ex := range w.Exercises {
		if s.failSets {
			return false, errDown
		}
		staged[ex.ID] = ex.CompletedSets()
		ex.Sets = nil
		header.Exercises = append(header.Exercises, ex)
	}

	for _, ex := range old.Exercises {
		delete(s.sets, ex.ID)
	}
	for id, sets := range staged {
		s.sets[id] = sets
	}
	s.workouts[w.ID] = header
	return !exists, nil
}

func (s *fakeStore) UpdateWorkoutLabel(_ context.Context, userID int, id uuid.UUID, label string) error {
	w, ok := s.workouts[id]
	if !ok || w.UserID != userID {
		return models.ErrWorkoutNotFound
	}
	w.Label = label
	s.workouts[id] = w
	return nil
}

func (s *fakeStore) UpdateSet(_ context.Context, userID int, workoutID, setID uuid.UUID, u models.SetUpdate) error {
	w, ok := s.workouts[workoutID]
	if !ok || w.UserID != userID {
		return models.ErrWorkoutNotFound
	}
	for _, ex := range w.Exercises {
		for i := range s.sets[ex.ID] {
			if s.sets[ex.ID][i].ID == setID {
				u.Apply(&s.sets[ex.ID][i])
				return nil
			}
		}
	}
	return models.ErrSetNotFound
}

func (s *fakeStore) GetWorkout(_ context.Context, userID int, id uuid.UUID) (*models.CompletedWorkout, error) {
	w, ok := s.workouts[id]
	if !ok || w.UserID != userID {
		return nil, models.ErrWorkoutNotFound
	}
	out := w
	out.Exercises = nil
	for _, ex := range w.Exercises {
		ex.Sets = s.sets[ex.ID]
		out.Exercises = append(out.Exercises, ex)
	}
	return &out, nil
}

func (s *fakeStore) QueryWorkouts(_ context.Context, userID int, from, to time.Time) ([]models.CompletedWorkout, error) {
	var out []models.CompletedWorkout
	for _, w := range s.workouts {
		if w.UserID == userID && !w.StartTime.Before(from) && w.StartTime.Before(to) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out, nil
}

func (s *fakeStore) CountWorkouts(_ context.Context, userID int, from, to time.Time) (int, error) {
	if s.failCount {
		return 0, errDown
	}
	n := 0
	for _, w := range s.workouts {
		if w.UserID == userID && !w.EndTime.Before(from) && w.EndTime.Before(to) {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) DeleteWorkout(_ context.Context, userID int, id uuid.UUID) (bool, error) {
	w, ok := s.workouts[id]
	if !ok || w.UserID != userID {
		return false, models.ErrWorkoutNotFound
	}
	delete(s.workouts, id)
	if !s.commits[id] {
		return false, nil
	}
	delete(s.commits, id)
	s.record(userID).Revert()
	return true, nil
}

func (s *fakeStore) record(userID int) *models.GamificationRecord {
	g, ok := s.gam[userID]
	if !ok {
		g = &models.GamificationRecord{UserID: userID}
		s.gam[userID] = g
	}
	return g
}

func (s *fakeStore) GetGamification(_ context.Context, userID int) (*models.GamificationRecord, error) {
	g := *s.record(userID)
	return &g, nil
}

func (s *fakeStore) ApplyWorkoutCommit(_ context.Context, userID int, workoutID uuid.UUID) (bool, error) {
	if s.failCommit {
		return false, errDown
	}
	if _, ok := s.workouts[workoutID]; !ok || s.commits[workoutID] {
		return false, nil
	}
	s.commits[workoutID] = true
	s.record(userID).Commit()
	return true, nil
}

func (s *fakeStore) ResetGamification(_ context.Context, userID int) error {
	s.gam[userID] = &models.GamificationRecord{UserID: userID}
	for id, w := range s.workouts {
		if w.UserID == userID {
			delete(s.commits, id)
		}
	}
	return nil
}

func (s *fakeStore) GetMonthlyGoal(_ context.Context, userID int, month string) (*models.MonthlyGoal, error) {
	g, ok := s.goals[goalKey(userID, month)]
	if !ok {
		return nil, models.ErrGoalNotFound
	}
	c := *g
	return &c, nil
}

func (s *fakeStore) UpsertMonthlyGoal(_ context.Context, g models.MonthlyGoal) error {
	s.goals[goalKey(g.UserID, g.MonthKey)] = &g
	return nil
}

func (s *fakeStore) SetMonthlyCompleted(_ context.Context, userID int, month string, completed int) (bool, error) {
	g, ok := s.goals[goalKey(userID, month)]
	if !ok {
		return false, nil
	}
	g.Completed = completed
	return true, nil
}

func (s *fakeStore) GoalUsers(_ context.Context, month string) ([]int, error) {
	var out []int
	for _, g := range s.goals {
		if g.MonthKey == month {
			out = append(out, g.UserID)
		}
	}
	return out, nil
}

type memQueue struct {
	items []models.PendingSync
}

func (q *memQueue) EnqueuePending(_ context.Context, p models.PendingSync) error {
	for i, it := range q.items {
		if it.WorkoutID == p.WorkoutID && it.Deleted == p.Deleted {
			q.items[i] = p
			return nil
		}
	}
	q.items = append(q.items, p)
	return nil
}

func (q *memQueue) ListPending(_ context.Context, limit int) ([]models.PendingSync, error) {
	return append([]models.PendingSync(nil), q.items[:min(limit, len(q.items))]...), nil
}

func (q *memQueue) UpdatePending(ctx context.Context, p models.PendingSync) error {
	return q.EnqueuePending(ctx, p)
}

func (q *memQueue) DeletePending(_ context.Context, workoutID uuid.UUID, deleted bool) error {
	for i, it := range q.items {
		if it.WorkoutID == workoutID && it.Deleted == deleted {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func newTestReconciler() (*Reconciler, *fakeStore, *memQueue) {
	store := newFakeStore()
	queue := &memQueue{}
	r := New(store, queue, time.UTC, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC) }
	return r, store, queue
}

func sampleWorkout(userID int, end time.Time) models.CompletedWorkout {
	return models.Complete(sampleSession(userID, end.Add(-time.Hour)), end)
}

// sampleSession has one bench press exercise with a completed 100x10 set and
// an open 100x8 set.
func sampleSession(userID int, start time.Time) *models.ActiveSession {
	return &models.ActiveSession{
		ID:        uuid.New(),
		UserID:    userID,
		Label:     "Push",
		StartTime: start,
		Exercises: []models.SessionExercise{{
			ID:   uuid.New(),
			Name: "Bench Press",
			Sets: []models.SetEntry{
				{ID: uuid.New(), Weight: 100, Reps: 10, Completed: true},
				{ID: uuid.New(), Weight: 100, Reps: 8},
			},
		}},
	}
}

// storedVolume sums weight x reps over the stored sets of a workout.
func storedVolume(t *testing.T, s *fakeStore, userID int, id uuid.UUID) (*models.CompletedWorkout, float64) {
	t.Helper()
	w, err := s.GetWorkout(context.Background(), userID, id)
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, ex := range w.Exercises {
		for _, set := range ex.Sets {
			sum += set.Weight * float64(set.Reps)
		}
	}
	return w, sum
}

// TestFinishPersistsCompletedSetsOnly verifies incomplete sets are dropped from
// the durable record and the aggregates are updated.
func TestFinishPersistsCompletedSetsOnly(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()
	w := sampleWorkout(1, time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC))

	res, err := r.Finish(ctx, w)
	if err != nil {
		t.Fatal(err)
	}
	if res.AggregatesPending {
		t.Error("aggregates should not be pending")
	}
	if res.Workout.TotalVolume != 1000 {
		t.Errorf("total volume = %v, want 1000", res.Workout.TotalVolume)
	}
	if n := len(store.sets[w.Exercises[0].ID]); n != 1 {
		t.Errorf("stored sets = %d, want 1", n)
	}
	g := store.gam[1]
	if g.TotalWorkouts != 1 || g.CurrentStreak != 1 || g.LongestStreak != 1 || g.TotalPoints != 100 {
		t.Errorf("gamification = %+v", g)
	}
}

// TestFinishTwiceCountsOnce verifies a retried finish does not double-count.
func TestFinishTwiceCountsOnce(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()
	w := sampleWorkout(1, time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC))

	for i := 0; i < 2; i++ {
		res, err := r.Finish(ctx, w)
		if err != nil {
			t.Fatalf("finish %d: %v", i+1, err)
		}
		if res.Duplicate != (i == 1) {
			t.Errorf("finish %d: duplicate = %v", i+1, res.Duplicate)
		}
	}
	if got := store.gam[1].TotalWorkouts; got != 1 {
		t.Errorf("total workouts = %d, want 1", got)
	}
	if got := store.gam[1].TotalPoints; got != 100 {
		t.Errorf("total points = %d, want 100", got)
	}
	if len(store.workouts) != 1 {
		t.Errorf("stored workouts = %d, want 1", len(store.workouts))
	}
}

// TestFinishStoreFailureIsUnavailable verifies a failed parent write surfaces
// as a retryable persistence error and touches no aggregate.
func TestFinishStoreFailureIsUnavailable(t *testing.T) {
	r, store, queue := newTestReconciler()
	store.failSave = true

	_, err := r.Finish(context.Background(), sampleWorkout(1, time.Now()))
	if !errors.Is(err, models.ErrPersistenceUnavailable) {
		t.Fatalf("err = %v, want persistence unavailable", err)
	}
	if len(store.gam) != 0 || len(queue.items) != 0 {
		t.Error("aggregates touched after failed workout write")
	}
}

// TestAggregateFailureQueuesAndRetries verifies a failed aggregate step still
// reports success, queues a retry and converges once the store recovers.
func TestAggregateFailureQueuesAndRetries(t *testing.T) {
	r, store, queue := newTestReconciler()
	ctx := context.Background()
	store.goals[goalKey(1, "2026-03")] = &models.MonthlyGoal{UserID: 1, MonthKey: "2026-03", Target: 12}
	store.failCommit = true

	w := sampleWorkout(1, time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC))
	res, err := r.Finish(ctx, w)
	if err != nil {
		t.Fatalf("Finish err = %v, want nil", err)
	}
	if !res.AggregatesPending {
		t.Error("AggregatesPending = false, want true")
	}
	if len(queue.items) != 1 || queue.items[0].MonthKey != "2026-03" {
		t.Fatalf("queue = %+v", queue.items)
	}

	if n, _ := r.RetryPending(ctx); n != 0 {
		t.Errorf("resolved while store down = %d", n)
	}
	if queue.items[0].Attempts != 2 {
		t.Errorf("attempts = %d, want 2", queue.items[0].Attempts)
	}

	store.failCommit = false
	if n, err := r.RetryPending(ctx); err != nil || n != 1 {
		t.Fatalf("RetryPending = %d, %v", n, err)
	}
	if len(queue.items) != 0 {
		t.Error("queue not drained")
	}
	if store.gam[1].TotalWorkouts != 1 {
		t.Errorf("total workouts = %d, want 1", store.gam[1].TotalWorkouts)
	}
	if store.goals[goalKey(1, "2026-03")].Completed != 1 {
		t.Errorf("goal completed = %d, want 1", store.goals[goalKey(1, "2026-03")].Completed)
	}
}

// TestDeleteOnlyWorkoutResetsMonthAndStreak checks that deleting the user's only
// workout of the month zeroes the month count and the streak.
func TestDeleteOnlyWorkoutResetsMonthAndStreak(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()
	if _, err := r.SetMonthlyGoal(ctx, 1, "2026-03", 10); err != nil {
		t.Fatal(err)
	}
	w := sampleWorkout(1, time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC))
	if _, err := r.Finish(ctx, w); err != nil {
		t.Fatal(err)
	}
	if store.goals[goalKey(1, "2026-03")].Completed != 1 {
		t.Fatal("goal not recounted after finish")
	}

	if err := r.Delete(ctx, 1, w.ID); err != nil {
		t.Fatal(err)
	}
	if got := store.goals[goalKey(1, "2026-03")].Completed; got != 0 {
		t.Errorf("goal completed = %d, want 0", got)
	}
	g := store.gam[1]
	if g.TotalWorkouts != 0 || g.CurrentStreak != 0 || g.TotalPoints != 0 {
		t.Errorf("gamification after delete = %+v", g)
	}
	if g.LongestStreak != 1 {
		t.Errorf("longest streak = %d, want 1", g.LongestStreak)
	}

	if err := r.Delete(ctx, 1, w.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete err = %v, want not found", err)
	}
}

// TestDeleteFloorsStreakAtZero verifies the streak never goes negative after a reset.
func TestDeleteFloorsStreakAtZero(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()
	a := sampleWorkout(1, time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC))
	b := sampleWorkout(1, time.Date(2026, 3, 6, 8, 0, 0, 0, time.UTC))
	r.Finish(ctx, a)
	r.Finish(ctx, b)
	store.gam[1].CurrentStreak = 0

	if err := r.Delete(ctx, 1, a.ID); err != nil {
		t.Fatal(err)
	}
	g := store.gam[1]
	if g.CurrentStreak != 0 || g.TotalWorkouts != 1 || g.TotalPoints != 100 {
		t.Errorf("gamification = %+v", g)
	}
}

// TestMonthlyRecountUsesEndTimeAndZone verifies the month window in the
// configured zone, with the end time deciding membership.
func TestMonthlyRecountUsesEndTimeAndZone(t *testing.T) {
	r, _, _ := newTestReconciler()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata not available")
	}
	r.loc = loc
	ctx := context.Background()

	// 23:30 UTC on March 31 is April 1 in Berlin.
	late := sampleWorkout(1, time.Date(2026, 3, 31, 23, 30, 0, 0, time.UTC))
	inMarch := sampleWorkout(1, time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC))
	r.Finish(ctx, late)
	r.Finish(ctx, inMarch)

	march, err := r.SetMonthlyGoal(ctx, 1, "2026-03", 8)
	if err != nil {
		t.Fatal(err)
	}
	april, err := r.SetMonthlyGoal(ctx, 1, "2026-04", 8)
	if err != nil {
		t.Fatal(err)
	}
	if march.Completed != 1 || april.Completed != 1 {
		t.Errorf("march = %d, april = %d, want 1 and 1", march.Completed, april.Completed)
	}
}

// TestMonthlyGoalSelfHeals verifies a drifted count is corrected on read.
func TestMonthlyGoalSelfHeals(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()
	r.Finish(ctx, sampleWorkout(1, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
	store.goals[goalKey(1, "2026-03")] = &models.MonthlyGoal{UserID: 1, MonthKey: "2026-03", Target: 4, Completed: 7}

	g, err := r.MonthlyGoal(ctx, 1, "2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if g.Completed != 1 {
		t.Errorf("completed = %d, want 1", g.Completed)
	}

	store.failCount = true
	g, err = r.MonthlyGoal(ctx, 1, "2026-03")
	if err != nil || g.Completed != 1 {
		t.Errorf("stale read = %+v, %v", g, err)
	}

	if _, err := r.MonthlyGoal(ctx, 1, "2026-02"); !errors.Is(err, models.ErrGoalNotFound) {
		t.Errorf("missing goal err = %v", err)
	}
	if _, err := r.MonthlyGoal(ctx, 1, "March"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("bad month err = %v", err)
	}
}

// TestSetMonthlyGoalRejectsZeroTarget verifies target validation.
func TestSetMonthlyGoalRejectsZeroTarget(t *testing.T) {
	r, _, _ := newTestReconciler()
	if _, err := r.SetMonthlyGoal(context.Background(), 1, "2026-03", 0); !errors.Is(err, models.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}

// TestResetGamificationAllowsRecommit verifies reset clears markers so the
// record can be rebuilt.
func TestResetGamificationAllowsRecommit(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()
	w := sampleWorkout(1, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	r.Finish(ctx, w)

	if err := r.ResetGamification(ctx, 1); err != nil {
		t.Fatal(err)
	}
	g, _ := r.Gamification(ctx, 1)
	if g.TotalWorkouts != 0 || g.TotalPoints != 0 {
		t.Errorf("after reset = %+v", g)
	}
	if store.commits[w.ID] {
		t.Error("commit marker survived reset")
	}
}

// TestDeleteQueuesMonthlyResyncOnFailure verifies a failed recount after delete
// is retried as a deletion entry that does not re-apply the commit.
func TestDeleteQueuesMonthlyResyncOnFailure(t *testing.T) {
	r, store, queue := newTestReconciler()
	ctx := context.Background()
	store.goals[goalKey(1, "2026-03")] = &models.MonthlyGoal{UserID: 1, MonthKey: "2026-03", Target: 4}
	w := sampleWorkout(1, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	r.Finish(ctx, w)

	store.failCount = true
	if err := r.Delete(ctx, 1, w.ID); err != nil {
		t.Fatal(err)
	}
	if len(queue.items) != 1 || !queue.items[0].Deleted {
		t.Fatalf("queue = %+v", queue.items)
	}

	store.failCount = false
	if n, _ := r.RetryPending(ctx); n != 1 {
		t.Fatalf("resolved = %d, want 1", n)
	}
	if store.gam[1].TotalWorkouts != 0 {
		t.Errorf("total workouts = %d, want 0", store.gam[1].TotalWorkouts)
	}
	if store.goals[goalKey(1, "2026-03")].Completed != 0 {
		t.Error("goal not recounted")
	}
}

// TestEditSetValidates verifies stored set corrections reject bad input.
func TestEditSetValidates(t *testing.T) {
	r, _, _ := newTestReconciler()
	ctx := context.Background()
	w := sampleWorkout(1, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	r.Finish(ctx, w)
	setID := w.Exercises[0].Sets[0].ID

	neg := -5.0
	if _, err := r.EditSet(ctx, 1, w.ID, setID, models.SetUpdate{Weight: &neg}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("negative weight err = %v", err)
	}
	no := false
	if _, err := r.EditSet(ctx, 1, w.ID, setID, models.SetUpdate{Completed: &no}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("uncomplete err = %v", err)
	}
	heavier := 105.0
	got, err := r.EditSet(ctx, 1, w.ID, setID, models.SetUpdate{Weight: &heavier})
	if err != nil {
		t.Fatal(err)
	}
	if got.Exercises[0].Sets[0].Weight != 105 {
		t.Errorf("weight = %v, want 105", got.Exercises[0].Sets[0].Weight)
	}
}

// TestFinishRetryAfterFailedSetWrite verifies a failed child write leaves
// nothing stored and the retry stores the session as it is at retry time.
func TestFinishRetryAfterFailedSetWrite(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	sess := sampleSession(1, start)

	store.failSets = true
	if _, err := r.Finish(ctx, models.Complete(sess, start.Add(time.Hour))); !errors.Is(err, models.ErrPersistenceUnavailable) {
		t.Fatalf("err = %v, want persistence unavailable", err)
	}
	if len(store.workouts) != 0 || len(store.sets) != 0 {
		t.Fatal("partial workout left behind")
	}

	store.failSets = false
	sess.Exercises[0].Sets[1].Completed = true
	end := start.Add(2 * time.Hour)
	res, err := r.Finish(ctx, models.Complete(sess, end))
	if err != nil {
		t.Fatal(err)
	}
	if res.Duplicate {
		t.Error("retry reported as duplicate")
	}

	w, sum := storedVolume(t, store, 1, sess.ID)
	if w.TotalVolume != 1800 || sum != 1800 {
		t.Errorf("header volume = %v, stored sets = %v, want 1800", w.TotalVolume, sum)
	}
	if !w.EndTime.Equal(end) {
		t.Errorf("end time = %v, want %v", w.EndTime, end)
	}
}

// TestCancelAfterFailedFinishCountsNothing verifies a session abandoned after a
// failed finish leaves no workout toward the monthly goal.
func TestCancelAfterFailedFinishCountsNothing(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()
	if _, err := r.SetMonthlyGoal(ctx, 1, "2026-03", 10); err != nil {
		t.Fatal(err)
	}

	store.failSets = true
	if _, err := r.Finish(ctx, sampleWorkout(1, time.Date(2026, 3, 10, 19, 0, 0, 0, time.UTC))); err == nil {
		t.Fatal("expected error")
	}
	store.failSets = false

	g, err := r.MonthlyGoal(ctx, 1, "2026-03")
	if err != nil {
		t.Fatal(err)
	}
	if g.Completed != 0 {
		t.Errorf("completed = %d, want 0", g.Completed)
	}
	if rec := store.gam[1]; rec != nil && rec.TotalWorkouts != 0 {
		t.Errorf("gamification = %+v", rec)
	}
}

// TestFinishRewritesUntilCommitted verifies a stored but uncommitted workout
// is replaced by a later finish, including removed exercises, and frozen once
// committed.
func TestFinishRewritesUntilCommitted(t *testing.T) {
	r, store, _ := newTestReconciler()
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	sess := sampleSession(1, start)
	sess.Exercises = append(sess.Exercises, models.SessionExercise{
		ID:   uuid.New(),
		Name: "Row",
		Sets: []models.SetEntry{{ID: uuid.New(), Weight: 60, Reps: 10, Completed: true}},
	})
	rowID := sess.Exercises[1].ID

	store.failCommit = true
	if _, err := r.Finish(ctx, models.Complete(sess, start.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}
	if _, sum := storedVolume(t, store, 1, sess.ID); sum != 1600 {
		t.Fatalf("stored volume = %v, want 1600", sum)
	}

	sess.Exercises = sess.Exercises[:1]
	res, err := r.Finish(ctx, models.Complete(sess, start.Add(90*time.Minute)))
	if err != nil {
		t.Fatal(err)
	}
	if !res.Duplicate {
		t.Error("second save of the same id should report an existing workout")
	}
	w, sum := storedVolume(t, store, 1, sess.ID)
	if len(w.Exercises) != 1 || w.TotalVolume != 1000 || sum != 1000 {
		t.Errorf("after rewrite: exercises = %d, header = %v, sets = %v", len(w.Exercises), w.TotalVolume, sum)
	}
	if _, ok := store.sets[rowID]; ok {
		t.Error("sets of the removed exercise survived")
	}

	store.failCommit = false
	if n, err := r.RetryPending(ctx); err != nil || n != 1 {
		t.Fatalf("RetryPending = %d, %v", n, err)
	}
	sess.Exercises[0].Sets[1].Completed = true
	if _, err := r.Finish(ctx, models.Complete(sess, start.Add(2*time.Hour))); err != nil {
		t.Fatal(err)
	}
	if w, _ := storedVolume(t, store, 1, sess.ID); w.TotalVolume != 1000 {
		t.Errorf("committed workout rewritten: volume = %v", w.TotalVolume)
	}
	if store.gam[1].TotalWorkouts != 1 {
		t.Errorf("total workouts = %d, want 1", store.gam[1].TotalWorkouts)
	}
}
