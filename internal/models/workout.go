package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultSessionLabel is used when a session is started without a label.
const DefaultSessionLabel = "Custom Workout"

// PointsPerWorkout is awarded for each committed workout.
const PointsPerWorkout = 100

// SetEntry is one logged set. Only the fields relevant to the exercise's
// modality are meaningful; the rest stay zero.
type SetEntry struct {
	ID          uuid.UUID `json:"id"`
	Weight      float64   `json:"weight"`
	Reps        int       `json:"reps"`
	DurationMin float64   `json:"duration_min"`
	Distance    float64   `json:"distance"`
	Calories    float64   `json:"calories"`
	Completed   bool      `json:"completed"`
}

// Volume is weight×reps for a completed set and 0 otherwise.
func (s SetEntry) Volume() float64 {
	if !s.Completed {
		return 0
	}
	return s.Weight * float64(s.Reps)
}

// SetUpdate carries the fields of a partial set update. Nil fields are left alone.
type SetUpdate struct {
	Weight      *float64 `json:"weight,omitempty"`
	Reps        *int     `json:"reps,omitempty"`
	DurationMin *float64 `json:"duration_min,omitempty"`
	Distance    *float64 `json:"distance,omitempty"`
	Calories    *float64 `json:"calories,omitempty"`
	Completed   *bool    `json:"completed,omitempty"`
}

// Validate rejects negative values.
func (u SetUpdate) Validate() error {
	check := func(field string, v *float64) error {
		if v != nil && *v < 0 {
			return &ValidationError{Field: field, Reason: fmt.Sprintf("must be >= 0, got %g", *v)}
		}
		return nil
	}
	if err := check("weight", u.Weight); err != nil {
		return err
	}
	if u.Reps != nil && *u.Reps < 0 {
		return &ValidationError{Field: "reps", Reason: fmt.Sprintf("must be >= 0, got %d", *u.Reps)}
	}
	if err := check("duration_min", u.DurationMin); err != nil {
		return err
	}
	if err := check("distance", u.Distance); err != nil {
		return err
	}
	return check("calories", u.Calories)
}

// Apply merges the update into s. Call Validate first.
func (u SetUpdate) Apply(s *SetEntry) {
	if u.Weight != nil {
		s.Weight = *u.Weight
	}
	if u.Reps != nil {
		s.Reps = *u.Reps
	}
	if u.DurationMin != nil {
		s.DurationMin = *u.DurationMin
	}
	if u.Distance != nil {
		s.Distance = *u.Distance
	}
	if u.Calories != nil {
		s.Calories = *u.Calories
	}
	if u.Completed != nil {
		s.Completed = *u.Completed
	}
}

// SessionExercise is an exercise inside a session or a completed workout.
type SessionExercise struct {
	ID       uuid.UUID  `json:"id"`
	Name     string     `json:"name"`
	Category Category   `json:"category,omitempty"`
	Sets     []SetEntry `json:"sets"`
}

// PlanDayRef points at the plan day a session was started from.
type PlanDayRef struct {
	PlanID   uuid.UUID `json:"plan_id"`
	DayIndex int       `json:"day_index"`
	Week     int       `json:"week"`
}

// ActiveSession is the one in-progress workout of a user.
type ActiveSession struct {
	ID        uuid.UUID         `json:"id"`
	UserID    int               `json:"user_id"`
	Label     string            `json:"label"`
	PlanDay   *PlanDayRef       `json:"plan_day,omitempty"`
	StartTime time.Time         `json:"start_time"`
	Exercises []SessionExercise `json:"exercises"`
}

// Clone returns a deep copy, so snapshots never alias live session data.
func (a *ActiveSession) Clone() *ActiveSession {
	if a == nil {
		return nil
	}
	c := *a
	if a.PlanDay != nil {
		ref := *a.PlanDay
		c.PlanDay = &ref
	}
	c.Exercises = make([]SessionExercise, len(a.Exercises))
	for i, ex := range a.Exercises {
		ex.Sets = append([]SetEntry(nil), ex.Sets...)
		c.Exercises[i] = ex
	}
	return &c
}

// CompletedWorkout is an immutable snapshot of a finished session.
type CompletedWorkout struct {
	ID               uuid.UUID         `json:"id"`
	UserID           int               `json:"user_id"`
	Label            string            `json:"label"`
	StartTime        time.Time         `json:"start_time"`
	EndTime          time.Time         `json:"end_time"`
	DurationSec      float64           `json:"duration_sec"`
	TotalVolume      float64           `json:"total_volume"`
	TotalDurationMin float64           `json:"total_duration_min"`
	TotalDistance    float64           `json:"total_distance"`
	TotalCalories    float64           `json:"total_calories"`
	Exercises        []SessionExercise `json:"exercises,omitempty"`
}

// Complete snapshots the session at end and computes its totals over
// completed sets only.
func Complete(s *ActiveSession, end time.Time) CompletedWorkout {
	snap := s.Clone()
	w := CompletedWorkout{
		ID:        snap.ID,
		UserID:    snap.UserID,
		Label:     snap.Label,
		StartTime: snap.StartTime,
		EndTime:   end,
		Exercises: snap.Exercises,
	}
	if d := end.Sub(snap.StartTime); d > 0 {
		w.DurationSec = d.Seconds()
	}
	for _, ex := range snap.Exercises {
		for _, set := range ex.Sets {
			if !set.Completed {
				continue
			}
			w.TotalVolume += set.Volume()
			w.TotalDurationMin += set.DurationMin
			w.TotalDistance += set.Distance
			w.TotalCalories += set.Calories
		}
	}
	return w
}

// CompletedSets returns only the sets that count towards the durable record.
func (e SessionExercise) CompletedSets() []SetEntry {
	var out []SetEntry
	for _, s := range e.Sets {
		if s.Completed {
			out = append(out, s)
		}
	}
	return out
}

// GamificationRecord holds a user's motivational counters.
type GamificationRecord struct {
	UserID        int `json:"user_id"`
	TotalWorkouts int `json:"total_workouts"`
	CurrentStreak int `json:"current_streak"`
	LongestStreak int `json:"longest_streak"`
	TotalPoints   int `json:"total_points"`
}

// Commit applies the counters of one newly committed workout.
func (g *GamificationRecord) Commit() {
	g.TotalWorkouts++
	g.CurrentStreak++
	if g.CurrentStreak > g.LongestStreak {
		g.LongestStreak = g.CurrentStreak
	}
	g.TotalPoints += PointsPerWorkout
}

// Revert undoes one committed workout. No counter goes below zero and the
// streak resets when no workouts remain.
func (g *GamificationRecord) Revert() {
	g.TotalWorkouts = max(g.TotalWorkouts-1, 0)
	g.TotalPoints = max(g.TotalPoints-PointsPerWorkout, 0)
	g.CurrentStreak = max(g.CurrentStreak-1, 0)
	if g.TotalWorkouts == 0 {
		g.CurrentStreak = 0
	}
}

// MonthlyGoal tracks completed workouts against a target for one month.
type MonthlyGoal struct {
	UserID    int       `json:"user_id"`
	MonthKey  string    `json:"month_key"`
	Target    int       `json:"target"`
	Completed int       `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MonthKey formats t as "YYYY-MM" in t's location.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}

// MonthBounds returns [first day 00:00, first day of next month) for the
// month key in loc.
func MonthBounds(key string, loc *time.Location) (time.Time, time.Time, error) {
	t, err := time.ParseInLocation("2006-01", key, loc)
	if err != nil {
		return time.Time{}, time.Time{}, &ValidationError{Field: "month", Reason: fmt.Sprintf("want YYYY-MM, got %q", key)}
	}
	return t, t.AddDate(0, 1, 0), nil
}

// PendingSync is a queued aggregate resync for a committed workout.
type PendingSync struct {
	WorkoutID uuid.UUID `json:"workout_id"`
	UserID    int       `json:"user_id"`
	MonthKey  string    `json:"month_key"`
	// Deleted marks a resync owed after a workout deletion, where only the
	// month recount remains.
	Deleted   bool      `json:"deleted"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FinishResult reports the outcome of committing a finished session.
type FinishResult struct {
	Workout CompletedWorkout `json:"workout"`
	// AggregatesPending is set when the workout is stored but the
	// gamification or monthly goal update was queued for retry.
	AggregatesPending bool `json:"aggregates_pending"`
	// Duplicate is set when the workout had already been stored.
	Duplicate bool `json:"duplicate,omitempty"`
}
