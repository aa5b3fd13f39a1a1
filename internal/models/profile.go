package models

import (
	"fmt"
	"strings"
)

// Goal is the primary fitness goal of a training profile.
type Goal string

const (
	GoalBuildMuscle Goal = "build_muscle"
	GoalLoseFat     Goal = "lose_fat"
	GoalRecomp      Goal = "recomp"
	GoalGetStronger Goal = "get_stronger"
	GoalRehab       Goal = "rehab"
	GoalMaintain    Goal = "maintain"
)

// Objective is a secondary objective. A profile carries at most two.
type Objective string

const (
	ObjectiveIncreaseStrength    Objective = "increase_strength"
	ObjectiveImproveEndurance    Objective = "improve_endurance"
	ObjectiveImproveMobility     Objective = "improve_mobility"
	ObjectiveLookLeaner          Objective = "look_leaner"
	ObjectiveAthleticPerformance Objective = "athletic_performance"
	ObjectiveImproveConsistency  Objective = "improve_consistency"
)

// Experience is the training experience tier.
type Experience string

const (
	ExperienceBeginner     Experience = "beginner"     // 0-6 months
	ExperienceIntermediate Experience = "intermediate" // 6-24 months
	ExperienceAdvanced     Experience = "advanced"     // 2+ years
)

// Frequency is the weekly training frequency band.
type Frequency string

const (
	FrequencyLow  Frequency = "2-3"
	FrequencyMid  Frequency = "3-4"
	FrequencyHigh Frequency = "5+"
)

// Equipment is a piece of equipment available to the user.
type Equipment string

const (
	EquipmentDumbbells      Equipment = "dumbbells"
	EquipmentBarbells       Equipment = "barbells"
	EquipmentMachines       Equipment = "machines"
	EquipmentBands          Equipment = "bands"
	EquipmentBodyweight     Equipment = "bodyweight"
	EquipmentCardioMachines Equipment = "cardio_machines"
)

// Constraint is a physical constraint or preference. Exercises list the
// constraints they are unsafe for as avoid tags.
type Constraint string

const (
	ConstraintKneeIssues     Constraint = "knee_issues"
	ConstraintBackIssues     Constraint = "back_issues"
	ConstraintShoulderIssues Constraint = "shoulder_issues"
	ConstraintCardioFirst    Constraint = "cardio_first"
	ConstraintHomeWorkouts   Constraint = "home_workouts"
)

var (
	validGoals = map[Goal]bool{
		GoalBuildMuscle: true, GoalLoseFat: true, GoalRecomp: true,
		GoalGetStronger: true, GoalRehab: true, GoalMaintain: true,
	}
	validObjectives = map[Objective]bool{
		ObjectiveIncreaseStrength: true, ObjectiveImproveEndurance: true, ObjectiveImproveMobility: true,
		ObjectiveLookLeaner: true, ObjectiveAthleticPerformance: true, ObjectiveImproveConsistency: true,
	}
	validExperience = map[Experience]bool{
		ExperienceBeginner: true, ExperienceIntermediate: true, ExperienceAdvanced: true,
	}
	validFrequencies = map[Frequency]bool{
		FrequencyLow: true, FrequencyMid: true, FrequencyHigh: true,
	}
	validSessionLengths = map[int]bool{30: true, 45: true, 60: true}
	validEquipment      = map[Equipment]bool{
		EquipmentDumbbells: true, EquipmentBarbells: true, EquipmentMachines: true,
		EquipmentBands: true, EquipmentBodyweight: true, EquipmentCardioMachines: true,
	}
	validConstraints = map[Constraint]bool{
		ConstraintKneeIssues: true, ConstraintBackIssues: true, ConstraintShoulderIssues: true,
		ConstraintCardioFirst: true, ConstraintHomeWorkouts: true,
	}
)

// MaxObjectives is the largest number of secondary objectives a profile may carry.
const MaxObjectives = 2

// ProfileInput is the structured user profile a plan is generated from.
type ProfileInput struct {
	Goal          Goal         `json:"goal"`
	Objectives    []Objective  `json:"objectives"`
	Experience    Experience   `json:"experience"`
	Frequency     Frequency    `json:"frequency"`
	SessionLength int          `json:"session_length"`
	Equipment     []Equipment  `json:"equipment"`
	Constraints   []Constraint `json:"constraints"`
}

// Validate checks every enum value and the set-size invariants.
func (p ProfileInput) Validate() error {
	if !validGoals[p.Goal] {
		return &ValidationError{Field: "goal", Reason: fmt.Sprintf("unknown goal %q", p.Goal)}
	}
	if len(dedupe(p.Objectives)) > MaxObjectives {
		return &ValidationError{Field: "objectives", Reason: fmt.Sprintf("at most %d allowed", MaxObjectives)}
	}
	for _, o := range p.Objectives {
		if !validObjectives[o] {
			return &ValidationError{Field: "objectives", Reason: fmt.Sprintf("unknown objective %q", o)}
		}
	}
	if !validExperience[p.Experience] {
		return &ValidationError{Field: "experience", Reason: fmt.Sprintf("unknown experience %q", p.Experience)}
	}
	if !validFrequencies[p.Frequency] {
		return &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", p.Frequency)}
	}
	if !validSessionLengths[p.SessionLength] {
		return &ValidationError{Field: "session_length", Reason: fmt.Sprintf("must be 30, 45 or 60, got %d", p.SessionLength)}
	}
	if len(p.Equipment) == 0 {
		return &ValidationError{Field: "equipment", Reason: "at least one item required"}
	}
	for _, e := range p.Equipment {
		if !validEquipment[e] {
			return &ValidationError{Field: "equipment", Reason: fmt.Sprintf("unknown equipment %q", e)}
		}
	}
	for _, c := range p.Constraints {
		if !validConstraints[c] {
			return &ValidationError{Field: "constraints", Reason: fmt.Sprintf("unknown constraint %q", c)}
		}
	}
	return nil
}

// Valid reports whether e is a known experience tier.
func (e Experience) Valid() bool {
	return validExperience[e]
}

// HasConstraint reports whether c is among the profile's constraints.
func (p ProfileInput) HasConstraint(c Constraint) bool {
	for _, pc := range p.Constraints {
		if pc == c {
			return true
		}
	}
	return false
}

// HasObjective reports whether o is among the profile's secondary objectives.
func (p ProfileInput) HasObjective(o Objective) bool {
	for _, po := range p.Objectives {
		if po == o {
			return true
		}
	}
	return false
}

// ParseEquipment splits a comma-separated list like "barbells,dumbbells".
func ParseEquipment(s string) []Equipment {
	var out []Equipment
	for _, part := range splitList(s) {
		out = append(out, Equipment(part))
	}
	return out
}

// ParseConstraints splits a comma-separated list like "knee_issues,back_issues".
func ParseConstraints(s string) []Constraint {
	var out []Constraint
	for _, part := range splitList(s) {
		out = append(out, Constraint(part))
	}
	return out
}

// ParseObjectives splits a comma-separated list of objectives.
func ParseObjectives(s string) []Objective {
	var out []Objective
	for _, part := range splitList(s) {
		out = append(out, Objective(part))
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func dedupe[T comparable](in []T) []T {
	seen := make(map[T]bool, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
