package bodyweight

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

type memStore struct {
	entries []models.WeightEntry
	down    bool
}

var errDown = errors.New("connection refused")

func (m *memStore) InsertWeight(_ context.Context, e models.WeightEntry) error {
	if m.down {
		return errDown
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memStore) DeleteWeight(_ context.Context, userID int, id uuid.UUID) error {
	for i, e := range m.entries {
		if e.ID == id && e.UserID == userID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return models.ErrWeightNotFound
}

func (m *memStore) QueryWeights(_ context.Context, userID int, from, to time.Time) ([]models.WeightEntry, error) {
	if m.down {
		return nil, errDown
	}
	out := []models.WeightEntry{}
	for _, e := range m.entries {
		if e.UserID == userID && !e.Date.Before(from) && !e.Date.After(to) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (m *memStore) LatestWeight(ctx context.Context, userID int) (*models.WeightEntry, error) {
	all, err := m.QueryWeights(ctx, userID, time.Time{}, time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, models.ErrWeightNotFound
	}
	return &all[0], nil
}

func newTestService() (*Service, *memStore) {
	store := &memStore{}
	svc := NewService(store, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return time.Date(2026, 3, 20, 9, 30, 0, 0, time.UTC) }
	return svc, store
}

// TestAddDefaultsToToday verifies an empty date logs for the current day.
func TestAddDefaultsToToday(t *testing.T) {
	svc, store := newTestService()
	e, err := svc.Add(context.Background(), 1, 82.4, "", " after run ")
	if err != nil {
		t.Fatal(err)
	}
	if !e.Date.Equal(time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)) || e.Note != "after run" {
		t.Errorf("entry = %+v", e)
	}
	if len(store.entries) != 1 {
		t.Errorf("stored = %d, want 1", len(store.entries))
	}
}

// TestAddValidates verifies weight bounds and date parsing.
func TestAddValidates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	cases := []struct {
		weight float64
		day    string
	}{
		{0, ""},
		{-3, ""},
		{1200, ""},
		{80, "20.03.2026"},
		{80, "2026-03-21"},
	}
	for _, c := range cases {
		if _, err := svc.Add(ctx, 1, c.weight, c.day, ""); !errors.Is(err, models.ErrValidation) {
			t.Errorf("Add(%v, %q) err = %v, want validation", c.weight, c.day, err)
		}
	}
}

// TestSummaryWeeklyAverage verifies the average covers the last seven days only.
func TestSummaryWeeklyAverage(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.Add(ctx, 1, 90, "2026-03-01", "")
	svc.Add(ctx, 1, 82, "2026-03-15", "")
	svc.Add(ctx, 1, 80, "2026-03-19", "")

	sum, err := svc.Summary(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Latest == nil || sum.Latest.Weight != 80 {
		t.Errorf("latest = %+v", sum.Latest)
	}
	if sum.WeeklyAverage == nil || *sum.WeeklyAverage != 81 || sum.WeeklyCount != 2 {
		t.Errorf("average = %v over %d", sum.WeeklyAverage, sum.WeeklyCount)
	}
}

// TestSummaryFallsBackToLatest verifies a stale log averages to its latest entry.
func TestSummaryFallsBackToLatest(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	svc.Add(ctx, 1, 77.5, "2026-02-01", "")

	sum, err := svc.Summary(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if sum.WeeklyAverage == nil || *sum.WeeklyAverage != 77.5 || sum.WeeklyCount != 0 {
		t.Errorf("summary = %+v", sum)
	}

	empty, err := svc.Summary(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if empty.Latest != nil || empty.WeeklyAverage != nil {
		t.Errorf("empty summary = %+v", empty)
	}
}

// TestDeleteAndStoreErrors verifies not-found and unavailable mapping.
func TestDeleteAndStoreErrors(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()
	e, _ := svc.Add(ctx, 1, 80, "", "")

	if err := svc.Delete(ctx, 2, e.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("other user's delete err = %v", err)
	}
	if err := svc.Delete(ctx, 1, e.ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, 1, e.ID); !errors.Is(err, models.ErrWeightNotFound) {
		t.Errorf("second delete err = %v", err)
	}

	store.down = true
	if _, err := svc.Add(ctx, 1, 80, "", ""); !errors.Is(err, models.ErrPersistenceUnavailable) {
		t.Errorf("add while down err = %v", err)
	}
	if _, err := svc.Summary(ctx, 1); !errors.Is(err, models.ErrPersistenceUnavailable) {
		t.Errorf("summary while down err = %v", err)
	}
}
