package mcp

import (
	"context"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Local (in-process
// services) and HTTPClient (remote via REST API) both satisfy it.
type DataSource interface {
	Workouts(ctx context.Context, userID int, from, to time.Time) ([]models.CompletedWorkout, error)
	Workout(ctx context.Context, userID int, id uuid.UUID) (*models.CompletedWorkout, error)
	Gamification(ctx context.Context, userID int) (*models.GamificationRecord, error)
	// MonthlyGoal returns the goal for month, or the current month when empty.
	MonthlyGoal(ctx context.Context, userID int, month string) (*models.MonthlyGoal, error)
	ActivePlan(ctx context.Context, userID int) (*models.GeneratedPlan, error)
	PreviewPlan(ctx context.Context, userID int, in models.ProfileInput, seed *uint64) (*models.GeneratedPlan, error)
	Exercises(ctx context.Context, category models.Category, equipment []models.Equipment, avoid []models.Constraint) ([]models.ExerciseEntry, error)
	TrainingSummary(ctx context.Context, userID int, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error)
	ExerciseStats(ctx context.Context, userID int, start, end time.Time, exercise string) (*storage.ExerciseReport, error)
}

// WorkoutReader reads stored workouts and their aggregates.
type WorkoutReader interface {
	Workouts(ctx context.Context, userID int, from, to time.Time) ([]models.CompletedWorkout, error)
	Workout(ctx context.Context, userID int, id uuid.UUID) (*models.CompletedWorkout, error)
	Gamification(ctx context.Context, userID int) (*models.GamificationRecord, error)
	MonthlyGoal(ctx context.Context, userID int, month string) (*models.MonthlyGoal, error)
	CurrentMonth() string
}

// PlanReader reads and previews generated plans.
type PlanReader interface {
	Preview(userID int, in models.ProfileInput, seed *uint64) (*models.GeneratedPlan, error)
	Active(ctx context.Context, userID int) (*models.GeneratedPlan, error)
}

// Catalog is the exercise library.
type Catalog interface {
	Lookup(category models.Category, equipment []models.Equipment, avoid []models.Constraint) []models.ExerciseEntry
	All() []models.ExerciseEntry
}

// StatsReader serves history statistics.
type StatsReader interface {
	TrainingSummary(ctx context.Context, userID int, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error)
	ExerciseStats(ctx context.Context, userID int, start, end time.Time, exerciseFilter string) (*storage.ExerciseReport, error)
}

// Local serves MCP tools from the in-process services.
type Local struct {
	History WorkoutReader
	Plans   PlanReader
	Catalog Catalog
	Stats   StatsReader
}

var (
	_ DataSource  = (*Local)(nil)
	_ StatsReader = (*storage.DB)(nil)
)

func (l *Local) Workouts(ctx context.Context, userID int, from, to time.Time) ([]models.CompletedWorkout, error) {
	return l.History.Workouts(ctx, userID, from, to)
}

func (l *Local) Workout(ctx context.Context, userID int, id uuid.UUID) (*models.CompletedWorkout, error) {
	return l.History.Workout(ctx, userID, id)
}

func (l *Local) Gamification(ctx context.Context, userID int) (*models.GamificationRecord, error) {
	return l.History.Gamification(ctx, userID)
}

func (l *Local) MonthlyGoal(ctx context.Context, userID int, month string) (*models.MonthlyGoal, error) {
	if month == "" {
		month = l.History.CurrentMonth()
	}
	return l.History.MonthlyGoal(ctx, userID, month)
}

func (l *Local) ActivePlan(ctx context.Context, userID int) (*models.GeneratedPlan, error) {
	return l.Plans.Active(ctx, userID)
}

func (l *Local) PreviewPlan(_ context.Context, userID int, in models.ProfileInput, seed *uint64) (*models.GeneratedPlan, error) {
	return l.Plans.Preview(userID, in, seed)
}

func (l *Local) Exercises(_ context.Context, category models.Category, equipment []models.Equipment, avoid []models.Constraint) ([]models.ExerciseEntry, error) {
	if category == "" && len(equipment) == 0 && len(avoid) == 0 {
		return l.Catalog.All(), nil
	}
	return l.Catalog.Lookup(category, equipment, avoid), nil
}

func (l *Local) TrainingSummary(ctx context.Context, userID int, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error) {
	return l.Stats.TrainingSummary(ctx, userID, start, end, bucket)
}

func (l *Local) ExerciseStats(ctx context.Context, userID int, start, end time.Time, exercise string) (*storage.ExerciseReport, error) {
	return l.Stats.ExerciseStats(ctx, userID, start, end, exercise)
}
