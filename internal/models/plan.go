package models

import (
	"time"

	"github.com/google/uuid"
)

// Category is the movement category of a catalog exercise.
type Category string

const (
	CategoryPush   Category = "push"
	CategoryPull   Category = "pull"
	CategoryLegs   Category = "legs"
	CategoryCore   Category = "core"
	CategoryCardio Category = "cardio"
)

// IsStrength reports whether slots of this category take their volume from
// the (goal, experience) table rather than the entry's own template.
func (c Category) IsStrength() bool {
	return c == CategoryPush || c == CategoryPull || c == CategoryLegs
}

// ExerciseEntry is one row of the read-only exercise catalog.
type ExerciseEntry struct {
	Name      string       `json:"name" yaml:"name"`
	Category  Category     `json:"category" yaml:"category"`
	Equipment []Equipment  `json:"equipment" yaml:"equipment"`
	Avoid     []Constraint `json:"avoid" yaml:"avoid"`
	Sets      int          `json:"sets" yaml:"sets"`
	Reps      string       `json:"reps,omitempty" yaml:"reps"`
	Duration  int          `json:"duration,omitempty" yaml:"duration"`
}

// EligibleFor reports whether the entry needs at least one piece of the
// given equipment and is not tagged unsafe for any of the constraints.
func (e ExerciseEntry) EligibleFor(equipment []Equipment, constraints []Constraint) bool {
	hasEquipment := false
	for _, need := range e.Equipment {
		for _, have := range equipment {
			if need == have {
				hasEquipment = true
				break
			}
		}
		if hasEquipment {
			break
		}
	}
	if !hasEquipment {
		return false
	}
	for _, tag := range e.Avoid {
		for _, c := range constraints {
			if tag == c {
				return false
			}
		}
	}
	return true
}

// PlannedExercise is one prescribed exercise within a workout day. Exactly
// one of Reps or Duration is set.
type PlannedExercise struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Sets     int      `json:"sets"`
	Reps     string   `json:"reps,omitempty"`
	Duration int      `json:"duration,omitempty"`
	Rest     int      `json:"rest"`
}

// WorkoutDay is one day of the weekly schedule.
type WorkoutDay struct {
	Label     string            `json:"label"`
	Focus     string            `json:"focus"`
	Duration  int               `json:"duration"`
	Exercises []PlannedExercise `json:"exercises"`
}

// ProgressionRule tells the user when and by how much to progress.
type ProgressionRule struct {
	WeightIncrement float64 `json:"weight_increment"`
	RepIncrement    int     `json:"rep_increment"`
	Trigger         string  `json:"trigger"`
}

// GeneratedPlan is a weekly schedule generated from a profile.
type GeneratedPlan struct {
	ID          uuid.UUID       `json:"id"`
	UserID      int             `json:"user_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schedule    []WorkoutDay    `json:"schedule"`
	CurrentWeek int             `json:"current_week"`
	StartedAt   time.Time       `json:"started_at"`
	Active      bool            `json:"active"`
	Progression ProgressionRule `json:"progression"`
	Input       ProfileInput    `json:"input"`
}
