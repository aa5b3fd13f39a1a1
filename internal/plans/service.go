package plans

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/liftlog/internal/generator"
	"github.com/claude/liftlog/internal/metrics"
	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// Store persists plans durably.
type Store interface {
	// SavePlan stores p as the user's only active plan.
	SavePlan(ctx context.Context, p *models.GeneratedPlan) error
	// ActivePlan returns models.ErrNoActivePlan when the user has none.
	ActivePlan(ctx context.Context, userID int) (*models.GeneratedPlan, error)
	UpdatePlanWeek(ctx context.Context, userID int, planID uuid.UUID, week int) error
	RestartPlan(ctx context.Context, userID int, planID uuid.UUID, startedAt time.Time) error
	DeactivatePlan(ctx context.Context, userID int, planID uuid.UUID) error
}

// Cache keeps the active plan locally. A pending plan was created while the
// database was unreachable and has not been written there yet.
type Cache interface {
	SavePlan(ctx context.Context, p *models.GeneratedPlan, pending bool) error
	// LoadPlan returns nil when nothing is cached.
	LoadPlan(ctx context.Context, userID int) (*models.GeneratedPlan, bool, error)
	DeletePlan(ctx context.Context, userID int) error
}

// Service manages the lifecycle of a user's generated plan.
type Service struct {
	gen     *generator.Generator
	catalog generator.Catalog
	store   Store
	cache   Cache
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time
}

// NewService creates a plan Service. gen serves unseeded requests; seeded
// requests get a fresh generator over catalog.
func NewService(gen *generator.Generator, catalog generator.Catalog, store Store, cache Cache, m *metrics.Metrics, log *slog.Logger) *Service {
	return &Service{
		gen:     gen,
		catalog: catalog,
		store:   store,
		cache:   cache,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

// Preview generates a plan without saving it. A non-nil seed makes the
// result reproducible.
func (s *Service) Preview(userID int, in models.ProfileInput, seed *uint64) (*models.GeneratedPlan, error) {
	g := s.gen
	if seed != nil {
		g = generator.NewSeeded(s.catalog, *seed)
	}
	p, err := g.Generate(userID, in)
	if err != nil {
		return nil, err
	}
	s.metrics.PlanGenerated(string(in.Frequency))
	return p, nil
}

// Create generates a plan and makes it the user's active plan. If the
// database write fails the plan is kept in the local cache as pending and
// written to the database on a later read.
func (s *Service) Create(ctx context.Context, userID int, in models.ProfileInput, seed *uint64) (*models.GeneratedPlan, error) {
	p, err := s.Preview(userID, in, seed)
	if err != nil {
		return nil, err
	}

	if err := s.store.SavePlan(ctx, p); err != nil {
		if cerr := s.cache.SavePlan(ctx, p, true); cerr != nil {
			s.log.Warn("caching plan", "user_id", userID, "plan_id", p.ID, "error", cerr)
			return nil, models.Unavailable(fmt.Errorf("saving plan: %w", err))
		}
		s.log.Warn("saving plan failed, kept locally", "user_id", userID, "plan_id", p.ID, "error", err)
		return p, nil
	}
	s.refreshCache(ctx, p)
	s.log.Info("plan created", "user_id", userID, "plan_id", p.ID, "days", len(p.Schedule))
	return p, nil
}

// Active returns the user's active plan. The database is authoritative;
// the cache answers when it is unreachable, and a pending plan is written
// to the database once it is back. A cached plan the database already
// had is never written back, so a cancelled plan stays cancelled.
func (s *Service) Active(ctx context.Context, userID int) (*models.GeneratedPlan, error) {
	p, err := s.store.ActivePlan(ctx, userID)
	switch {
	case err == nil:
		s.refreshCache(ctx, p)
		return p, nil
	case errors.Is(err, models.ErrNoActivePlan):
		cached, pending, cerr := s.cache.LoadPlan(ctx, userID)
		if cerr != nil || cached == nil || !cached.Active {
			return nil, models.ErrNoActivePlan
		}
		if !pending {
			if derr := s.cache.DeletePlan(ctx, userID); derr != nil {
				s.log.Warn("clearing stale cached plan", "user_id", userID, "error", derr)
			}
			return nil, models.ErrNoActivePlan
		}
		if serr := s.store.SavePlan(ctx, cached); serr != nil {
			s.log.Warn("syncing cached plan", "user_id", userID, "plan_id", cached.ID, "error", serr)
		} else {
			s.refreshCache(ctx, cached)
		}
		return cached, nil
	default:
		cached, _, cerr := s.cache.LoadPlan(ctx, userID)
		if cerr != nil || cached == nil {
			return nil, models.Unavailable(fmt.Errorf("loading plan: %w", err))
		}
		s.log.Warn("serving cached plan", "user_id", userID, "error", err)
		return cached, nil
	}
}

// Advance moves the active plan to the next week.
func (s *Service) Advance(ctx context.Context, userID int) (*models.GeneratedPlan, error) {
	p, err := s.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdatePlanWeek(ctx, userID, p.ID, p.CurrentWeek+1); err != nil {
		return nil, models.Unavailable(fmt.Errorf("advancing plan: %w", err))
	}
	p.CurrentWeek++
	s.refreshCache(ctx, p)
	return p, nil
}

// Restart puts the active plan back to week one, starting now.
func (s *Service) Restart(ctx context.Context, userID int) (*models.GeneratedPlan, error) {
	p, err := s.Active(ctx, userID)
	if err != nil {
		return nil, err
	}
	started := s.now()
	if err := s.store.RestartPlan(ctx, userID, p.ID, started); err != nil {
		return nil, models.Unavailable(fmt.Errorf("restarting plan: %w", err))
	}
	p.CurrentWeek = 1
	p.StartedAt = started
	s.refreshCache(ctx, p)
	return p, nil
}

// Cancel deactivates the active plan.
func (s *Service) Cancel(ctx context.Context, userID int) error {
	p, err := s.Active(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeactivatePlan(ctx, userID, p.ID); err != nil {
		return models.Unavailable(fmt.Errorf("cancelling plan: %w", err))
	}
	if err := s.cache.DeletePlan(ctx, userID); err != nil {
		s.log.Warn("clearing cached plan", "user_id", userID, "error", err)
	}
	s.log.Info("plan cancelled", "user_id", userID, "plan_id", p.ID)
	return nil
}

// refreshCache caches a plan the database holds.
func (s *Service) refreshCache(ctx context.Context, p *models.GeneratedPlan) {
	if err := s.cache.SavePlan(ctx, p, false); err != nil {
		s.log.Warn("caching plan", "user_id", p.UserID, "plan_id", p.ID, "error", err)
	}
}
