package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
)

// defaultTimeRange returns start/end, defaulting end to now and start to
// days before end.
func defaultTimeRange(startStr, endStr string, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = time.Now()
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetWorkouts = mcp.NewTool("get_workouts",
	mcp.WithDescription("List completed workouts with label, duration and totals (volume, cardio minutes, distance, calories), newest first."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 30 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Retrieve one completed workout with every exercise and set."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Workout ID (UUID)")),
)

var toolGetProgress = mcp.NewTool("get_progress",
	mcp.WithDescription("Total workouts, current and longest streak, points, and the monthly workout goal with its completed count."),
	mcp.WithString("month", mcp.Description("Month as YYYY-MM. Defaults to the current month.")),
)

var toolGetActivePlan = mcp.NewTool("get_active_plan",
	mcp.WithDescription("The user's active generated training plan: weekly schedule, progression rule and current week."),
)

var toolPreviewPlan = mcp.NewTool("preview_plan",
	mcp.WithDescription("Generate a training plan for a profile without saving it."),
	mcp.WithString("goal", mcp.Required(), mcp.Description("Primary goal"),
		mcp.Enum("build_muscle", "lose_fat", "recomp", "get_stronger", "rehab", "maintain")),
	mcp.WithString("experience", mcp.Required(), mcp.Description("Training experience"),
		mcp.Enum("beginner", "intermediate", "advanced")),
	mcp.WithString("frequency", mcp.Required(), mcp.Description("Sessions per week"),
		mcp.Enum("2-3", "3-4", "5+")),
	mcp.WithNumber("session_length", mcp.Required(), mcp.Description("Minutes per session: 30, 45 or 60")),
	mcp.WithString("equipment", mcp.Required(), mcp.Description("Comma-separated equipment (dumbbells, barbells, machines, bands, bodyweight, cardio_machines)")),
	mcp.WithString("objectives", mcp.Description("Comma-separated secondary objectives, at most two")),
	mcp.WithString("constraints", mcp.Description("Comma-separated constraints (knee_issues, back_issues, shoulder_issues, cardio_first, home_workouts)")),
	mcp.WithNumber("seed", mcp.Description("Seed for a reproducible plan")),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List exercises from the library, optionally filtered by category, available equipment and constraints to avoid."),
	mcp.WithString("category", mcp.Description("Movement category"), mcp.Enum("push", "pull", "legs", "core", "cardio")),
	mcp.WithString("equipment", mcp.Description("Comma-separated available equipment")),
	mcp.WithString("avoid", mcp.Description("Comma-separated constraints to avoid")),
)

var toolGetTrainingSummary = mcp.NewTool("get_training_summary",
	mcp.WithDescription("Weekly or monthly training totals: workouts, average duration, working sets, reps, volume, cardio minutes, distance and calories."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 180 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to month."), mcp.Enum("week", "month")),
)

var toolGetExerciseStats = mcp.NewTool("get_exercise_stats",
	mcp.WithDescription("Per-exercise sets, reps, volume and max weight. With an exercise filter, includes session-by-session progression with estimated one-rep max."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise name (partial match, e.g. 'bench press')")),
)

// --- Tool handlers ---

func (h *handlers) getWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 30)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	workouts, err := h.ds.Workouts(ctx, UserIDFromContext(ctx), start, end)
	if err != nil {
		h.log.Error("mcp get_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(workouts)
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idStr, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return mcp.NewToolResultError("invalid workout id: " + err.Error()), nil
	}

	workout, err := h.ds.Workout(ctx, UserIDFromContext(ctx), id)
	if errors.Is(err, models.ErrNotFound) {
		return mcp.NewToolResultError("workout not found"), nil
	}
	if err != nil {
		h.log.Error("mcp get_workout", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(workout)
}

func (h *handlers) getProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := h.loadProgress(ctx, req.GetString("month", ""))
	if err != nil {
		h.log.Error("mcp get_progress", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(p)
}

func (h *handlers) getActivePlan(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	plan, err := h.ds.ActivePlan(ctx, UserIDFromContext(ctx))
	if errors.Is(err, models.ErrNotFound) {
		return mcp.NewToolResultText("no active plan"), nil
	}
	if err != nil {
		h.log.Error("mcp get_active_plan", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(plan)
}

func (h *handlers) previewPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in := models.ProfileInput{
		Goal:          models.Goal(req.GetString("goal", "")),
		Experience:    models.Experience(req.GetString("experience", "")),
		Frequency:     models.Frequency(req.GetString("frequency", "")),
		SessionLength: req.GetInt("session_length", 0),
		Equipment:     models.ParseEquipment(req.GetString("equipment", "")),
		Objectives:    models.ParseObjectives(req.GetString("objectives", "")),
		Constraints:   models.ParseConstraints(req.GetString("constraints", "")),
	}
	var seed *uint64
	if _, ok := req.GetArguments()["seed"]; ok {
		v := uint64(req.GetInt("seed", 0))
		seed = &v
	}

	plan, err := h.ds.PreviewPlan(ctx, UserIDFromContext(ctx), in, seed)
	if errors.Is(err, models.ErrValidation) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		h.log.Error("mcp preview_plan", "error", err)
		return mcp.NewToolResultError("generation failed: " + err.Error()), nil
	}
	return jsonResult(plan)
}

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries, err := h.ds.Exercises(ctx,
		models.Category(req.GetString("category", "")),
		models.ParseEquipment(req.GetString("equipment", "")),
		models.ParseConstraints(req.GetString("avoid", "")))
	if err != nil {
		h.log.Error("mcp list_exercises", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(entries)
}

func (h *handlers) getTrainingSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 180)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	summary, err := h.ds.TrainingSummary(ctx, UserIDFromContext(ctx), start, end, req.GetString("bucket", "month"))
	if err != nil {
		h.log.Error("mcp get_training_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(summary)
}

func (h *handlers) getExerciseStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := defaultTimeRange(req.GetString("start", ""), req.GetString("end", ""), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	report, err := h.ds.ExerciseStats(ctx, UserIDFromContext(ctx), start, end, req.GetString("exercise", ""))
	if err != nil {
		h.log.Error("mcp get_exercise_stats", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(report)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
