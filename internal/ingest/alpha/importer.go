package alpha

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// importNamespace seeds the name-based ids of imported rows, so importing
// the same export twice yields the same workout, exercise and set ids.
var importNamespace = uuid.MustParse("6f1b7c52-3f0e-4c1a-9d8e-2a7f5b1c9e44")

// Finisher commits a completed workout.
type Finisher interface {
	Finish(ctx context.Context, w models.CompletedWorkout) (*models.FinishResult, error)
}

// Result summarises one import.
type Result struct {
	SessionsReceived  int  `json:"sessions_received"`
	WorkoutsImported  int  `json:"workouts_imported"`
	WorkoutsSkipped   int  `json:"workouts_skipped"`
	SetsImported      int  `json:"sets_imported"`
	WarmupsSkipped    int  `json:"warmups_skipped"`
	AggregatesPending int  `json:"aggregates_pending"`
	DryRun            bool `json:"dry_run,omitempty"`
}

// Importer turns Alpha Progression exports into committed workouts.
type Importer struct {
	finisher Finisher
	loc      *time.Location
	log      *slog.Logger
}

// NewImporter creates an Importer. Export timestamps are read in loc.
func NewImporter(finisher Finisher, loc *time.Location, log *slog.Logger) *Importer {
	if loc == nil {
		loc = time.UTC
	}
	return &Importer{finisher: finisher, loc: loc, log: log}
}

// Import parses r and commits every session as a workout of userID. Each
// session is committed through the same path as a finished live session,
// so aggregates stay consistent and re-importing an export is a no-op.
// With dryRun set nothing is written.
func (im *Importer) Import(ctx context.Context, userID int, r io.Reader, dryRun bool) (*Result, error) {
	sessions, err := Parse(r, im.loc)
	if err != nil {
		return nil, &models.ValidationError{Field: "csv", Reason: err.Error()}
	}

	res := &Result{SessionsReceived: len(sessions), DryRun: dryRun}
	for _, s := range sessions {
		w := ToWorkout(userID, s)
		for _, ex := range s.Exercises {
			res.WarmupsSkipped += len(ex.Sets) - len(ex.WorkingSets())
		}
		if dryRun {
			res.WorkoutsImported++
			res.SetsImported += countSets(w)
			continue
		}

		fr, err := im.finisher.Finish(ctx, w)
		if err != nil {
			return res, fmt.Errorf("importing session %q of %s: %w", s.Name, s.Start.Format(time.DateOnly), err)
		}
		if fr.Duplicate {
			res.WorkoutsSkipped++
			continue
		}
		res.WorkoutsImported++
		res.SetsImported += countSets(w)
		if fr.AggregatesPending {
			res.AggregatesPending++
		}
	}

	im.log.Info("alpha import",
		"user_id", userID,
		"sessions", res.SessionsReceived,
		"imported", res.WorkoutsImported,
		"skipped", res.WorkoutsSkipped,
		"dry_run", dryRun,
	)
	return res, nil
}

// ToWorkout converts an exported session into a completed workout. Warmups
// are dropped and every working set counts as completed. The workout ends
// at start plus the exported duration.
func ToWorkout(userID int, s Session) models.CompletedWorkout {
	id := uuid.NewSHA1(importNamespace,
		[]byte(strconv.Itoa(userID)+"|"+s.Start.UTC().Format(time.RFC3339)+"|"+s.Name))

	as := &models.ActiveSession{
		ID:        id,
		UserID:    userID,
		Label:     s.Name,
		StartTime: s.Start,
	}
	for i, ex := range s.Exercises {
		se := models.SessionExercise{
			ID:   uuid.NewSHA1(id, []byte("exercise|"+strconv.Itoa(i))),
			Name: ex.Name,
			Sets: []models.SetEntry{},
		}
		for j, set := range ex.WorkingSets() {
			se.Sets = append(se.Sets, models.SetEntry{
				ID:        uuid.NewSHA1(id, []byte("set|"+strconv.Itoa(i)+"|"+strconv.Itoa(j))),
				Weight:    set.Weight,
				Reps:      set.Reps,
				Completed: true,
			})
		}
		as.Exercises = append(as.Exercises, se)
	}
	return models.Complete(as, s.Start.Add(s.Duration))
}

func countSets(w models.CompletedWorkout) int {
	n := 0
	for _, ex := range w.Exercises {
		n += len(ex.Sets)
	}
	return n
}
