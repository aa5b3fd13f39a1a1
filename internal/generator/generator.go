package generator

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
)

// ProgressionTrigger is the condition under which the user should progress.
const ProgressionTrigger = "Completed all sets with correct form for 2 consecutive sessions of that workout day"

// Rest in seconds for slots that do not take their rest from the volume table.
const accessoryRest = 60

// Catalog is the read-only exercise lookup the generator draws from.
type Catalog interface {
	Lookup(category models.Category, equipment []models.Equipment, avoid []models.Constraint) []models.ExerciseEntry
}

// Generator turns a profile into a weekly schedule. Output depends only on
// the profile, the catalog and the state of the injected random source.
type Generator struct {
	catalog Catalog

	mu  sync.Mutex // guards rng
	rng *rand.Rand

	now   func() time.Time
	newID func() uuid.UUID
}

// New creates a Generator drawing samples from rng.
func New(c Catalog, rng *rand.Rand) *Generator {
	return &Generator{
		catalog: c,
		rng:     rng,
		now:     time.Now,
		newID:   uuid.New,
	}
}

// NewSeeded creates a Generator with a PCG source seeded from seed. Equal
// seeds give equal schedules for equal profiles.
func NewSeeded(c Catalog, seed uint64) *Generator {
	return New(c, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

// Generate validates the profile and builds a plan for userID.
func (g *Generator) Generate(userID int, in models.ProfileInput) (*models.GeneratedPlan, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	g.mu.Lock()
	schedule := g.buildSchedule(in)
	g.mu.Unlock()
	if len(schedule) == 0 {
		return nil, &models.ValidationError{Field: "equipment", Reason: "no eligible exercises for this equipment and constraints"}
	}

	return &models.GeneratedPlan{
		ID:          g.newID(),
		UserID:      userID,
		Name:        planName(in.Goal),
		Description: fmt.Sprintf("Personalized %s day/week %s program", in.Frequency, in.Experience),
		Schedule:    schedule,
		CurrentWeek: 1,
		StartedAt:   g.now(),
		Active:      true,
		Progression: progressionFor(in.Experience),
		Input:       in,
	}, nil
}

func (g *Generator) buildSchedule(in models.ProfileInput) []models.WorkoutDay {
	templates := splitFor(in.Frequency)
	vol := volumeFor(in.Goal, in.Experience)

	days := make([]models.WorkoutDay, 0, len(templates)+2)
	for i, tmpl := range templates {
		day := models.WorkoutDay{
			Label:    fmt.Sprintf("Day %d: %s", i+1, tmpl.name),
			Focus:    tmpl.focus,
			Duration: in.SessionLength,
		}
		for _, s := range withCardio(tmpl.slots, in) {
			day.Exercises = append(day.Exercises, g.fillSlot(s, in, vol)...)
		}
		days = append(days, day)
	}

	if in.Frequency == models.FrequencyHigh && len(days) == 3 {
		// P/P/L/P/P: days 4 and 5 repeat the push and pull sessions.
		for _, src := range days[:2] {
			rep := src
			rep.Label = fmt.Sprintf("Day %d: %s", len(days)+1, dayName(src.Label))
			rep.Exercises = append([]models.PlannedExercise(nil), src.Exercises...)
			days = append(days, rep)
		}
	}

	schedule := days[:0]
	for _, d := range days {
		if len(d.Exercises) > 0 {
			schedule = append(schedule, d)
		}
	}
	if len(schedule) == 0 {
		cond := models.WorkoutDay{
			Label:    "Day 1: Conditioning",
			Focus:    "Cardio",
			Duration: in.SessionLength,
		}
		cond.Exercises = g.fillSlot(slot{category: models.CategoryCardio, count: 2}, in, vol)
		if len(cond.Exercises) > 0 {
			schedule = append(schedule, cond)
		}
	}
	return schedule
}

// fillSlot draws up to s.count distinct eligible entries and prescribes them.
func (g *Generator) fillSlot(s slot, in models.ProfileInput, vol volume) []models.PlannedExercise {
	picked := g.sample(g.catalog.Lookup(s.category, in.Equipment, in.Constraints), s.count)

	out := make([]models.PlannedExercise, 0, len(picked))
	for _, e := range picked {
		pe := models.PlannedExercise{Name: e.Name, Category: e.Category}
		switch {
		case s.category.IsStrength():
			pe.Sets, pe.Reps, pe.Rest = vol.sets, vol.reps, vol.rest
		case e.Duration > 0:
			pe.Sets, pe.Duration, pe.Rest = e.Sets, e.Duration, accessoryRest
		default:
			pe.Sets, pe.Reps, pe.Rest = e.Sets, e.Reps, accessoryRest
		}
		out = append(out, pe)
	}
	return out
}

// sample draws k entries without replacement with a partial Fisher-Yates
// shuffle. With k >= len(pool) every entry is returned.
func (g *Generator) sample(pool []models.ExerciseEntry, k int) []models.ExerciseEntry {
	if k > len(pool) {
		k = len(pool)
	}
	for i := 0; i < k; i++ {
		j := i + g.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// withCardio adds the cardio slot implied by the profile, if any.
func withCardio(slots []slot, in models.ProfileInput) []slot {
	cardio := slot{category: models.CategoryCardio, count: 1}
	switch {
	case in.HasConstraint(models.ConstraintCardioFirst):
		return append([]slot{cardio}, slots...)
	case in.HasObjective(models.ObjectiveImproveEndurance):
		return append(append([]slot(nil), slots...), cardio)
	default:
		return slots
	}
}

func progressionFor(exp models.Experience) models.ProgressionRule {
	inc := 5.0
	if exp == models.ExperienceBeginner {
		inc = 2.5
	}
	return models.ProgressionRule{
		WeightIncrement: inc,
		RepIncrement:    1,
		Trigger:         ProgressionTrigger,
	}
}

func planName(goal models.Goal) string {
	return strings.ToUpper(strings.ReplaceAll(string(goal), "_", " ")) + " Plan"
}

// dayName strips the "Day N: " prefix from a label.
func dayName(label string) string {
	if _, name, ok := strings.Cut(label, ": "); ok {
		return name
	}
	return label
}
