package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// retryBatch bounds how many queued syncs one RetryPending call processes.
const retryBatch = 100

// Store is the durable persistence the reconciler writes through.
type Store interface {
	// SaveWorkout atomically writes the workout with its exercises and
	// completed sets. Until the workout is committed a repeated save
	// replaces the stored copy; afterwards it is a no-op. Reports whether
	// the workout was new.
	SaveWorkout(ctx context.Context, w models.CompletedWorkout) (bool, error)
	UpdateWorkoutLabel(ctx context.Context, userID int, id uuid.UUID, label string) error
	UpdateSet(ctx context.Context, userID int, workoutID, setID uuid.UUID, u models.SetUpdate) error
	GetWorkout(ctx context.Context, userID int, id uuid.UUID) (*models.CompletedWorkout, error)
	QueryWorkouts(ctx context.Context, userID int, from, to time.Time) ([]models.CompletedWorkout, error)
	CountWorkouts(ctx context.Context, userID int, from, to time.Time) (int, error)
	// DeleteWorkout removes the workout and its commit marker in one
	// transaction, reverting the gamification record if a marker existed.
	DeleteWorkout(ctx context.Context, userID int, id uuid.UUID) (bool, error)

	GetGamification(ctx context.Context, userID int) (*models.GamificationRecord, error)
	// ApplyWorkoutCommit records a commit marker for the workout and, only
	// when the marker is new, applies one workout to the record.
	ApplyWorkoutCommit(ctx context.Context, userID int, workoutID uuid.UUID) (bool, error)
	ResetGamification(ctx context.Context, userID int) error

	GetMonthlyGoal(ctx context.Context, userID int, month string) (*models.MonthlyGoal, error)
	UpsertMonthlyGoal(ctx context.Context, g models.MonthlyGoal) error
	// SetMonthlyCompleted overwrites the completed count. It reports false
	// when the user has no goal for the month.
	SetMonthlyCompleted(ctx context.Context, userID int, month string, completed int) (bool, error)
	// GoalUsers lists the users that have a goal for the month.
	GoalUsers(ctx context.Context, month string) ([]int, error)
}

// Queue holds aggregate syncs that failed and must be retried.
type Queue interface {
	EnqueuePending(ctx context.Context, p models.PendingSync) error
	ListPending(ctx context.Context, limit int) ([]models.PendingSync, error)
	UpdatePending(ctx context.Context, p models.PendingSync) error
	DeletePending(ctx context.Context, workoutID uuid.UUID, deleted bool) error
}

// Reconciler commits finished sessions and keeps the derived aggregates in
// step with the stored workouts.
type Reconciler struct {
	store   Store
	queue   Queue
	loc     *time.Location
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// New creates a Reconciler. Month boundaries are computed in loc.
func New(store Store, queue Queue, loc *time.Location, m *metrics.Metrics, log *slog.Logger) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{
		store:   store,
		queue:   queue,
		loc:     loc,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Finish stores the workout with its exercises and completed sets, then
// updates the aggregates. A storage failure is returned as
// ErrPersistenceUnavailable. An aggregate failure is queued for retry and
// reported through AggregatesPending instead of an error. Finish is safe to
// call again with the same workout.
func (r *Reconciler) Finish(ctx context.Context, w models.CompletedWorkout) (*models.FinishResult, error) {
	created, err := r.writeWorkout(ctx, w)
	if err != nil {
		r.metrics.WorkoutFinished("failed")
		return nil, models.Unavailable(err)
	}

	res := &models.FinishResult{Workout: w, Duplicate: !created}
	month := r.monthOf(w.EndTime)
	if err := r.syncAggregates(ctx, w.UserID, w.ID, month, false); err != nil {
		r.log.Warn("aggregate sync failed, queued for retry",
			"user_id", w.UserID, "workout_id", w.ID, "month", month, "error", err)
		r.enqueue(ctx, models.PendingSync{
			WorkoutID: w.ID,
			UserID:    w.UserID,
			MonthKey:  month,
			Attempts:  1,
			LastError: err.Error(),
			CreatedAt: r.now(),
		})
		res.AggregatesPending = true
		r.metrics.WorkoutFinished("pending")
		return res, nil
	}
	r.metrics.WorkoutFinished("committed")
	return res, nil
}

// writeWorkout stores the workout in one transaction, so a failure leaves
// nothing behind and a retry writes the session as it is now. Reports
// whether the workout was new.
func (r *Reconciler) writeWorkout(ctx context.Context, w models.CompletedWorkout) (bool, error) {
	created, err := r.store.SaveWorkout(ctx, w)
	if err != nil {
		return false, fmt.Errorf("saving workout: %w", err)
	}
	return created, nil
}

// syncAggregates applies the commit (unless the workout was deleted) and
// recounts the month.
func (r *Reconciler) syncAggregates(ctx context.Context, userID int, workoutID uuid.UUID, month string, deleted bool) error {
	if !deleted {
		applied, err := r.store.ApplyWorkoutCommit(ctx, userID, workoutID)
		if err != nil {
			r.metrics.AggregateFailed("gamification")
			return fmt.Errorf("applying workout commit: %w", err)
		}
		if !applied {
			r.log.Debug("workout already committed", "user_id", userID, "workout_id", workoutID)
		}
	}
	if _, err := r.resyncMonth(ctx, userID, month); err != nil {
		r.metrics.AggregateFailed("monthly_goal")
		return err
	}
	return nil
}

// resyncMonth recounts the user's workouts that ended within the month and
// stores the count on the goal, if one exists.
func (r *Reconciler) resyncMonth(ctx context.Context, userID int, month string) (int, error) {
	from, to, err := models.MonthBounds(month, r.loc)
	if err != nil {
		return 0, err
	}
	n, err := r.store.CountWorkouts(ctx, userID, from, to)
	if err != nil {
		return 0, fmt.Errorf("counting workouts for %s: %w", month, err)
	}
	if _, err := r.store.SetMonthlyCompleted(ctx, userID, month, n); err != nil {
		return 0, fmt.Errorf("updating monthly goal %s: %w", month, err)
	}
	return n, nil
}

func (r *Reconciler) enqueue(ctx context.Context, p models.PendingSync) {
	if err := r.queue.EnqueuePending(ctx, p); err != nil {
		r.log.Error("queueing aggregate sync", "user_id", p.UserID, "workout_id", p.WorkoutID, "error", err)
	}
}

// RetryPending replays queued aggregate syncs and returns how many
// converged. Entries that fail again stay queued with their attempt count
// raised.
func (r *Reconciler) RetryPending(ctx context.Context) (int, error) {
	items, err := r.queue.ListPending(ctx, retryBatch)
	if err != nil {
		return 0, fmt.Errorf("listing pending syncs: %w", err)
	}

	resolved := 0
	for _, p := range items {
		if err := ctx.Err(); err != nil {
			return resolved, err
		}
		if err := r.syncAggregates(ctx, p.UserID, p.WorkoutID, p.MonthKey, p.Deleted); err != nil {
			p.Attempts++
			p.LastError = err.Error()
			if uerr := r.queue.UpdatePending(ctx, p); uerr != nil {
				r.log.Error("updating pending sync", "workout_id", p.WorkoutID, "error", uerr)
			}
			r.log.Warn("pending sync failed", "workout_id", p.WorkoutID, "attempts", p.Attempts, "error", err)
			continue
		}
		if err := r.queue.DeletePending(ctx, p.WorkoutID, p.Deleted); err != nil {
			r.log.Error("removing pending sync", "workout_id", p.WorkoutID, "error", err)
			continue
		}
		resolved++
	}
	r.metrics.SetPending(len(items) - resolved)
	if len(items) > 0 {
		r.log.Info("retried pending syncs", "total", len(items), "resolved", resolved)
	}
	return resolved, nil
}

// Delete removes a stored workout, reverting its gamification contribution
// and recounting its month.
func (r *Reconciler) Delete(ctx context.Context, userID int, id uuid.UUID) error {
	w, err := r.store.GetWorkout(ctx, userID, id)
	if err != nil {
		return classify(err)
	}
	reverted, err := r.store.DeleteWorkout(ctx, userID, id)
	if err != nil {
		return classify(fmt.Errorf("deleting workout: %w", err))
	}

	month := r.monthOf(w.EndTime)
	if _, err := r.resyncMonth(ctx, userID, month); err != nil {
		r.metrics.AggregateFailed("monthly_goal")
		r.log.Warn("monthly resync after delete failed, queued for retry",
			"user_id", userID, "workout_id", id, "error", err)
		r.enqueue(ctx, models.PendingSync{
			WorkoutID: id,
			UserID:    userID,
			MonthKey:  month,
			Deleted:   true,
			Attempts:  1,
			LastError: err.Error(),
			CreatedAt: r.now(),
		})
	}
	r.log.Info("workout deleted", "user_id", userID, "workout_id", id, "reverted", reverted)
	return nil
}

// Workouts returns the user's stored workouts that started in [from, to).
func (r *Reconciler) Workouts(ctx context.Context, userID int, from, to time.Time) ([]models.CompletedWorkout, error) {
	ws, err := r.store.QueryWorkouts(ctx, userID, from, to)
	if err != nil {
		return nil, classify(err)
	}
	return ws, nil
}

// Workout returns one stored workout with its exercises and sets.
func (r *Reconciler) Workout(ctx context.Context, userID int, id uuid.UUID) (*models.CompletedWorkout, error) {
	w, err := r.store.GetWorkout(ctx, userID, id)
	if err != nil {
		return nil, classify(err)
	}
	return w, nil
}

// RenameWorkout changes the label of a stored workout.
func (r *Reconciler) RenameWorkout(ctx context.Context, userID int, id uuid.UUID, label string) (*models.CompletedWorkout, error) {
	if label == "" {
		return nil, &models.ValidationError{Field: "label", Reason: "required"}
	}
	if err := r.store.UpdateWorkoutLabel(ctx, userID, id, label); err != nil {
		return nil, classify(err)
	}
	return r.Workout(ctx, userID, id)
}

// EditSet corrects the values of a stored set. The workout totals are
// recomputed by the store.
func (r *Reconciler) EditSet(ctx context.Context, userID int, workoutID, setID uuid.UUID, u models.SetUpdate) (*models.CompletedWorkout, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if u.Completed != nil && !*u.Completed {
		return nil, &models.ValidationError{Field: "completed", Reason: "stored sets are always completed"}
	}
	if err := r.store.UpdateSet(ctx, userID, workoutID, setID, u); err != nil {
		return nil, classify(err)
	}
	return r.Workout(ctx, userID, workoutID)
}

// Gamification returns the user's record; a user without one gets zeros.
func (r *Reconciler) Gamification(ctx context.Context, userID int) (*models.GamificationRecord, error) {
	g, err := r.store.GetGamification(ctx, userID)
	if err != nil {
		return nil, classify(err)
	}
	return g, nil
}

// ResetGamification zeroes the user's record and forgets every commit marker.
func (r *Reconciler) ResetGamification(ctx context.Context, userID int) error {
	if err := r.store.ResetGamification(ctx, userID); err != nil {
		return classify(err)
	}
	r.log.Info("gamification reset", "user_id", userID)
	return nil
}

// SetMonthlyGoal sets the target for a month and recounts its completed
// workouts.
func (r *Reconciler) SetMonthlyGoal(ctx context.Context, userID int, month string, target int) (*models.MonthlyGoal, error) {
	if target < 1 {
		return nil, &models.ValidationError{Field: "target", Reason: fmt.Sprintf("must be >= 1, got %d", target)}
	}
	from, to, err := models.MonthBounds(month, r.loc)
	if err != nil {
		return nil, err
	}
	n, err := r.store.CountWorkouts(ctx, userID, from, to)
	if err != nil {
		return nil, classify(fmt.Errorf("counting workouts for %s: %w", month, err))
	}
	g := models.MonthlyGoal{
		UserID:    userID,
		MonthKey:  month,
		Target:    target,
		Completed: n,
		UpdatedAt: r.now(),
	}
	if err := r.store.UpsertMonthlyGoal(ctx, g); err != nil {
		return nil, classify(err)
	}
	return &g, nil
}

// MonthlyGoal loads the goal for a month and recounts it. If the recount
// fails the stored count is returned.
func (r *Reconciler) MonthlyGoal(ctx context.Context, userID int, month string) (*models.MonthlyGoal, error) {
	if _, _, err := models.MonthBounds(month, r.loc); err != nil {
		return nil, err
	}
	g, err := r.store.GetMonthlyGoal(ctx, userID, month)
	if err != nil {
		return nil, classify(err)
	}
	n, err := r.resyncMonth(ctx, userID, month)
	if err != nil {
		r.log.Warn("monthly goal recount failed", "user_id", userID, "month", month, "error", err)
		return g, nil
	}
	g.Completed = n
	return g, nil
}

// ResyncAllGoals recounts every goal of the month and returns how many were
// updated. Failures are logged and skipped.
func (r *Reconciler) ResyncAllGoals(ctx context.Context, month string) (int, error) {
	users, err := r.store.GoalUsers(ctx, month)
	if err != nil {
		return 0, fmt.Errorf("listing goal users for %s: %w", month, err)
	}
	updated := 0
	for _, id := range users {
		if _, err := r.resyncMonth(ctx, id, month); err != nil {
			r.metrics.AggregateFailed("monthly_goal")
			r.log.Warn("monthly goal recount failed", "user_id", id, "month", month, "error", err)
			continue
		}
		updated++
	}
	return updated, nil
}

// CurrentMonth returns the month key for now in the reconciler's zone.
func (r *Reconciler) CurrentMonth() string {
	return r.monthOf(r.now())
}

func (r *Reconciler) monthOf(t time.Time) string {
	return models.MonthKey(t.In(r.loc))
}

// classify passes typed errors through and marks everything else as a
// persistence failure.
func classify(err error) error {
	if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrValidation) ||
		errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrPersistenceUnavailable) {
		return err
	}
	return models.Unavailable(err)
}
