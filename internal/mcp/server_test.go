package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// fakeSource records the user ID and preview input it was called with.
type fakeSource struct {
	userID  int
	preview models.ProfileInput
	seed    *uint64
	goalErr error
	plan    *models.GeneratedPlan
}

func (f *fakeSource) Workouts(_ context.Context, userID int, _, _ time.Time) ([]models.CompletedWorkout, error) {
	f.userID = userID
	return []models.CompletedWorkout{{Label: "Pull"}}, nil
}

func (f *fakeSource) Workout(context.Context, int, uuid.UUID) (*models.CompletedWorkout, error) {
	return nil, models.ErrWorkoutNotFound
}

func (f *fakeSource) Gamification(_ context.Context, userID int) (*models.GamificationRecord, error) {
	return &models.GamificationRecord{UserID: userID, TotalWorkouts: 7, TotalPoints: 70}, nil
}

func (f *fakeSource) MonthlyGoal(context.Context, int, string) (*models.MonthlyGoal, error) {
	if f.goalErr != nil {
		return nil, f.goalErr
	}
	return &models.MonthlyGoal{MonthKey: "2026-02", Target: 10}, nil
}

func (f *fakeSource) ActivePlan(context.Context, int) (*models.GeneratedPlan, error) {
	if f.plan == nil {
		return nil, models.ErrNoActivePlan
	}
	return f.plan, nil
}

func (f *fakeSource) PreviewPlan(_ context.Context, _ int, in models.ProfileInput, seed *uint64) (*models.GeneratedPlan, error) {
	f.preview, f.seed = in, seed
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return &models.GeneratedPlan{Input: in, CurrentWeek: 1}, nil
}

func (f *fakeSource) Exercises(context.Context, models.Category, []models.Equipment, []models.Constraint) ([]models.ExerciseEntry, error) {
	return nil, nil
}

func (f *fakeSource) TrainingSummary(context.Context, int, time.Time, time.Time, string) ([]storage.TrainingSummaryPeriod, error) {
	return nil, nil
}

func (f *fakeSource) ExerciseStats(context.Context, int, time.Time, time.Time, string) (*storage.ExerciseReport, error) {
	return &storage.ExerciseReport{}, nil
}

func newTestHandlers(ds DataSource) *handlers {
	return &handlers{ds: ds, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, r *mcp.CallToolResult) string {
	t.Helper()
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no text content in result")
	return ""
}

// TestUserIDFromContextDefault verifies the zero user ID when no value is
// set in the context.
func TestUserIDFromContextDefault(t *testing.T) {
	if id := UserIDFromContext(context.Background()); id != 0 {
		t.Errorf("UserIDFromContext(empty) = %d, want 0", id)
	}
}

// TestUserIDFromContextSet verifies the user ID is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

// TestDefaultTimeRange verifies time range defaults and parsing.
func TestDefaultTimeRange(t *testing.T) {
	start, end, err := defaultTimeRange("", "", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	diff := end.Sub(start)
	if diff.Hours() < 167 || diff.Hours() > 169 {
		t.Errorf("default range = %.0f hours, want ~168", diff.Hours())
	}

	start, end, err = defaultTimeRange("2024-01-01", "2024-01-31", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Day() != 1 || end.Day() != 31 {
		t.Errorf("range = %v..%v", start, end)
	}

	start, _, err = defaultTimeRange("2024-06-15T10:30:00Z", "", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Hour() != 10 || start.Minute() != 30 {
		t.Errorf("start = %v, want 10:30", start)
	}

	if _, _, err = defaultTimeRange("not-a-date", "", 7); err == nil {
		t.Error("expected error for invalid date")
	}
}

// TestGetWorkoutsUsesContextUser verifies tools query as the transport's user.
func TestGetWorkoutsUsesContextUser(t *testing.T) {
	ds := &fakeSource{}
	h := newTestHandlers(ds)

	res, err := h.getWorkouts(WithUserID(context.Background(), 5), callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if ds.userID != 5 {
		t.Errorf("user id = %d, want 5", ds.userID)
	}
}

// TestGetWorkoutErrors verifies bad ids and unknown workouts are tool errors.
func TestGetWorkoutErrors(t *testing.T) {
	h := newTestHandlers(&fakeSource{})
	ctx := context.Background()

	res, _ := h.getWorkout(ctx, callRequest(map[string]any{"id": "nope"}))
	if !res.IsError {
		t.Error("invalid id accepted")
	}
	res, _ = h.getWorkout(ctx, callRequest(map[string]any{"id": uuid.NewString()}))
	if !res.IsError || resultText(t, res) != "workout not found" {
		t.Errorf("unknown workout result = %+v", res)
	}
	res, _ = h.getWorkout(ctx, callRequest(nil))
	if !res.IsError {
		t.Error("missing id accepted")
	}
}

// TestPreviewPlanArguments verifies list and numeric arguments reach the
// profile, and that an invalid profile is a tool error.
func TestPreviewPlanArguments(t *testing.T) {
	ds := &fakeSource{}
	h := newTestHandlers(ds)

	res, err := h.previewPlan(context.Background(), callRequest(map[string]any{
		"goal":           "lose_fat",
		"experience":     "beginner",
		"frequency":      "3-4",
		"session_length": float64(30),
		"equipment":      "dumbbells, bands",
		"constraints":    "knee_issues",
		"seed":           float64(3),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if ds.preview.SessionLength != 30 || len(ds.preview.Equipment) != 2 || len(ds.preview.Constraints) != 1 {
		t.Errorf("profile = %+v", ds.preview)
	}
	if ds.seed == nil || *ds.seed != 3 {
		t.Errorf("seed = %v, want 3", ds.seed)
	}

	res, _ = h.previewPlan(context.Background(), callRequest(map[string]any{"goal": "fly"}))
	if !res.IsError {
		t.Error("invalid profile accepted")
	}
	if ds.seed != nil {
		t.Error("seed set although none was given")
	}
}

// TestGetProgressWithoutGoal verifies a missing goal is reported as null.
func TestGetProgressWithoutGoal(t *testing.T) {
	h := newTestHandlers(&fakeSource{goalErr: models.ErrGoalNotFound})

	res, err := h.getProgress(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	var p progressView
	if err := json.Unmarshal([]byte(resultText(t, res)), &p); err != nil {
		t.Fatal(err)
	}
	if p.Gamification.TotalPoints != 70 || p.MonthlyGoal != nil {
		t.Errorf("progress = %+v", p)
	}
}

// TestActivePlanResource verifies the resource reads null without a plan.
func TestActivePlanResource(t *testing.T) {
	h := newTestHandlers(&fakeSource{})
	var req mcp.ReadResourceRequest
	req.Params.URI = "liftlog://active_plan"

	contents, err := h.activePlan(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	if text != "null" {
		t.Errorf("text = %q, want null", text)
	}
}
