package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

type contextKey int

const userIDKey contextKey = iota

// UserIDFromContext extracts the user ID injected by the transport layer,
// or 0 when none was set.
func UserIDFromContext(ctx context.Context) int {
	if id, ok := ctx.Value(userIDKey).(int); ok {
		return id
	}
	return 0
}

// WithUserID returns a context with the given user ID.
func WithUserID(ctx context.Context, userID int) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// New creates an MCP server with all tools and resources registered.
func New(ds DataSource, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("LiftLog", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("LiftLog strength training server. Query completed workouts, streaks and points, monthly goals, the active training plan and the exercise library, or preview a plan for a profile. All data is scoped to the authenticated user."),
	)

	h := &handlers{ds: ds, log: log}

	s.AddTools(
		server.ServerTool{Tool: toolGetWorkouts, Handler: h.getWorkouts},
		server.ServerTool{Tool: toolGetWorkout, Handler: h.getWorkout},
		server.ServerTool{Tool: toolGetProgress, Handler: h.getProgress},
		server.ServerTool{Tool: toolGetActivePlan, Handler: h.getActivePlan},
		server.ServerTool{Tool: toolPreviewPlan, Handler: h.previewPlan},
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolGetTrainingSummary, Handler: h.getTrainingSummary},
		server.ServerTool{Tool: toolGetExerciseStats, Handler: h.getExerciseStats},
	)

	s.AddResources(
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
		server.ServerResource{Resource: resProgress, Handler: h.progress},
		server.ServerResource{Resource: resActivePlan, Handler: h.activePlan},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds  DataSource
	log *slog.Logger
}

var resRecentWorkouts = mcp.NewResource(
	"liftlog://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("Completed workouts from the last 14 days"),
	mcp.WithMIMEType("application/json"),
)

var resProgress = mcp.NewResource(
	"liftlog://progress",
	"Progress",
	mcp.WithResourceDescription("Workout count, streaks, points and this month's goal"),
	mcp.WithMIMEType("application/json"),
)

var resActivePlan = mcp.NewResource(
	"liftlog://active_plan",
	"Active Plan",
	mcp.WithResourceDescription("The active generated training plan and its current week"),
	mcp.WithMIMEType("application/json"),
)
