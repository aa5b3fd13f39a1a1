package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/liftlog/internal/ingest/alpha"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/session"
	"github.com/claude/liftlog/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// SessionManager hands out the per-user session state machine.
type SessionManager interface {
	For(ctx context.Context, userID int) (*session.Machine, error)
}

// PlanService manages generated plans.
type PlanService interface {
	Preview(userID int, in models.ProfileInput, seed *uint64) (*models.GeneratedPlan, error)
	Create(ctx context.Context, userID int, in models.ProfileInput, seed *uint64) (*models.GeneratedPlan, error)
	Active(ctx context.Context, userID int) (*models.GeneratedPlan, error)
	Advance(ctx context.Context, userID int) (*models.GeneratedPlan, error)
	Restart(ctx context.Context, userID int) (*models.GeneratedPlan, error)
	Cancel(ctx context.Context, userID int) error
}

// WorkoutService reads and edits stored workouts and their aggregates.
type WorkoutService interface {
	Workouts(ctx context.Context, userID int, from, to time.Time) ([]models.CompletedWorkout, error)
	Workout(ctx context.Context, userID int, id uuid.UUID) (*models.CompletedWorkout, error)
	Delete(ctx context.Context, userID int, id uuid.UUID) error
	RenameWorkout(ctx context.Context, userID int, id uuid.UUID, label string) (*models.CompletedWorkout, error)
	EditSet(ctx context.Context, userID int, workoutID, setID uuid.UUID, u models.SetUpdate) (*models.CompletedWorkout, error)
	Gamification(ctx context.Context, userID int) (*models.GamificationRecord, error)
	ResetGamification(ctx context.Context, userID int) error
	SetMonthlyGoal(ctx context.Context, userID int, month string, target int) (*models.MonthlyGoal, error)
	MonthlyGoal(ctx context.Context, userID int, month string) (*models.MonthlyGoal, error)
	CurrentMonth() string
}

// Catalog is the exercise library.
type Catalog interface {
	Lookup(category models.Category, equipment []models.Equipment, avoid []models.Constraint) []models.ExerciseEntry
	All() []models.ExerciseEntry
	Find(name string) (models.ExerciseEntry, bool)
}

// TemplateLibrary holds the predefined workouts.
type TemplateLibrary interface {
	List(focus string, difficulty models.Experience) []models.WorkoutTemplate
	Get(id string) (models.WorkoutTemplate, bool)
}

// WeightService manages the body-weight log.
type WeightService interface {
	Add(ctx context.Context, userID int, weight float64, day, note string) (*models.WeightEntry, error)
	Delete(ctx context.Context, userID int, id uuid.UUID) error
	List(ctx context.Context, userID int, from, to time.Time) ([]models.WeightEntry, error)
	Summary(ctx context.Context, userID int) (*models.WeightSummary, error)
}

// UserStore maps logins to user ids.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
}

// StatsStore serves history statistics and the import log.
type StatsStore interface {
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	TrainingSummary(ctx context.Context, userID int, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error)
	ExerciseStats(ctx context.Context, userID int, start, end time.Time, exerciseFilter string) (*storage.ExerciseReport, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
}

// Importer imports workout history files.
type Importer interface {
	Import(ctx context.Context, userID int, r io.Reader, dryRun bool) (*alpha.Result, error)
}

// Deps are the collaborators a Server routes requests to.
type Deps struct {
	Sessions  SessionManager
	Plans     PlanService
	Workouts  WorkoutService
	Catalog   Catalog
	Templates TemplateLibrary
	Weights   WeightService
	Users     UserStore
	Stats     StatsStore
	Importer  Importer
	Metrics   *metrics.Metrics

	APIKey string
	// DevUser is the identity of every request when Tailscale is off.
	DevUser UserInfo
	// RateLimit and Burst bound requests per user. Zero disables limiting.
	RateLimit rate.Limit
	Burst     int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	Deps
	log      *slog.Logger
	router   chi.Router
	whois    WhoIser
	ids      *identityCache
	limiters *limiterSet
}

// New creates a new Server with all routes configured.
func New(deps Deps, log *slog.Logger) *Server {
	s := &Server{
		Deps:     deps,
		log:      log,
		router:   chi.NewRouter(),
		ids:      newIdentityCache(),
		limiters: newLimiterSet(deps.RateLimit, deps.Burst),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale resolves request identities through the tailnet.
func (s *Server) SetTailscale(w WhoIser) {
	s.whois = w
}

// MountMCP serves an MCP handler at /mcp behind the identity middleware.
func (s *Server) MountMCP(h http.Handler) {
	s.router.Group(func(r chi.Router) {
		r.Use(s.Identity)
		r.Handle("/mcp", h)
		r.Handle("/mcp/*", h)
	})
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log, s.Metrics))
	s.router.Use(CORS)

	if s.Metrics != nil {
		s.router.Handle("/metrics", s.Metrics.Handler())
	}
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(s.Identity)
		r.Use(s.RateLimit)

		r.Get("/me", s.handleMe)
		r.Get("/exercises", s.handleExercises)
		r.Get("/templates", s.handleTemplates)

		r.Route("/plans", func(r chi.Router) {
			r.Post("/", s.handleCreatePlan)
			r.Post("/preview", s.handlePreviewPlan)
			r.Get("/active", s.handleActivePlan)
			r.Delete("/active", s.handleCancelPlan)
			r.Post("/active/advance", s.handleAdvancePlan)
			r.Post("/active/restart", s.handleRestartPlan)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Post("/", s.handleStartSession)
			r.Delete("/", s.handleCancelSession)
			r.Post("/finish", s.handleFinishSession)
			r.Post("/exercises", s.handleAddExercise)
			r.Delete("/exercises/{exerciseID}", s.handleRemoveExercise)
			r.Post("/exercises/{exerciseID}/sets", s.handleAddSet)
			r.Patch("/exercises/{exerciseID}/sets/{setID}", s.handleUpdateSet)
			r.Post("/exercises/{exerciseID}/sets/{setID}/toggle", s.handleToggleSet)
		})

		r.Route("/workouts", func(r chi.Router) {
			r.Get("/", s.handleQueryWorkouts)
			r.Get("/{id}", s.handleGetWorkout)
			r.Patch("/{id}", s.handleRenameWorkout)
			r.Delete("/{id}", s.handleDeleteWorkout)
			r.Patch("/{id}/sets/{setID}", s.handleEditSet)
		})

		r.Route("/weights", func(r chi.Router) {
			r.Get("/", s.handleListWeights)
			r.Post("/", s.handleAddWeight)
			r.Get("/summary", s.handleWeightSummary)
			r.Delete("/{id}", s.handleDeleteWeight)
		})

		r.Get("/gamification", s.handleGamification)
		r.Delete("/gamification", s.handleResetGamification)
		r.Get("/goals/monthly", s.handleMonthlyGoal)
		r.Put("/goals/monthly", s.handleSetMonthlyGoal)

		r.Get("/stats", s.handleStats)
		r.Get("/stats/training", s.handleTrainingSummary)
		r.Get("/stats/exercises", s.handleExerciseStats)
		r.Get("/imports", s.handleImportLogs)

		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.APIKey))
			r.Post("/import/alpha", s.handleAlphaImport)
		})
	})
}
