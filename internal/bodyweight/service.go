package bodyweight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// Store persists body-weight entries.
type Store interface {
	InsertWeight(ctx context.Context, e models.WeightEntry) error
	// DeleteWeight returns models.ErrWeightNotFound for unknown ids.
	DeleteWeight(ctx context.Context, userID int, id uuid.UUID) error
	QueryWeights(ctx context.Context, userID int, from, to time.Time) ([]models.WeightEntry, error)
	// LatestWeight returns models.ErrWeightNotFound when nothing is logged.
	LatestWeight(ctx context.Context, userID int) (*models.WeightEntry, error)
}

// Service manages a user's body-weight log. Days are calendar days in loc.
type Service struct {
	store Store
	loc   *time.Location
	log   *slog.Logger
	now   func() time.Time
	newID func() uuid.UUID
}

// NewService creates a body-weight Service.
func NewService(store Store, loc *time.Location, log *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, loc: loc, log: log, now: time.Now, newID: uuid.New}
}

// Add logs a weight for day ("YYYY-MM-DD", today when empty). Future days
// are rejected.
func (s *Service) Add(ctx context.Context, userID int, weight float64, day, note string) (*models.WeightEntry, error) {
	if weight <= 0 || weight > models.MaxBodyWeight {
		return nil, &models.ValidationError{Field: "weight", Reason: fmt.Sprintf("must be in (0, %d]", models.MaxBodyWeight)}
	}
	today := s.today()
	date := today
	if day = strings.TrimSpace(day); day != "" {
		d, err := time.ParseInLocation(time.DateOnly, day, s.loc)
		if err != nil {
			return nil, &models.ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
		}
		if d.After(today) {
			return nil, &models.ValidationError{Field: "date", Reason: "must not be in the future"}
		}
		date = d
	}

	e := models.WeightEntry{
		ID:        s.newID(),
		UserID:    userID,
		Weight:    weight,
		Date:      date,
		Note:      strings.TrimSpace(note),
		CreatedAt: s.now(),
	}
	if err := s.store.InsertWeight(ctx, e); err != nil {
		return nil, models.Unavailable(err)
	}
	s.log.Info("weight logged", "user_id", userID, "date", date.Format(time.DateOnly))
	return &e, nil
}

// Delete removes an entry.
func (s *Service) Delete(ctx context.Context, userID int, id uuid.UUID) error {
	if err := s.store.DeleteWeight(ctx, userID, id); err != nil {
		return classify(err)
	}
	return nil
}

// List returns the entries logged in [from, to], newest first.
func (s *Service) List(ctx context.Context, userID int, from, to time.Time) ([]models.WeightEntry, error) {
	entries, err := s.store.QueryWeights(ctx, userID, s.day(from), s.day(to))
	if err != nil {
		return nil, models.Unavailable(err)
	}
	return entries, nil
}

// Summary returns the latest weight and the seven-day average.
func (s *Service) Summary(ctx context.Context, userID int) (*models.WeightSummary, error) {
	latest, err := s.store.LatestWeight(ctx, userID)
	if errors.Is(err, models.ErrWeightNotFound) {
		sum := models.SummarizeWeights(nil, nil)
		return &sum, nil
	}
	if err != nil {
		return nil, models.Unavailable(err)
	}
	today := s.today()
	recent, err := s.store.QueryWeights(ctx, userID, today.AddDate(0, 0, -7), today)
	if err != nil {
		return nil, models.Unavailable(err)
	}
	sum := models.SummarizeWeights(latest, recent)
	return &sum, nil
}

func (s *Service) today() time.Time {
	return s.day(s.now())
}

// day truncates t to midnight of its calendar day in the service zone.
func (s *Service) day(t time.Time) time.Time {
	y, m, d := t.In(s.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func classify(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return err
	}
	return models.Unavailable(err)
}
