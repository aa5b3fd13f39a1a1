package generator

import "github.com/claude/liftlog/internal/models"

type slot struct {
	category models.Category
	count    int
}

type dayTemplate struct {
	name  string
	focus string
	slots []slot
}

var (
	fullBodySplit = []dayTemplate{
		{name: "Full Body A", focus: "Compound Movements", slots: []slot{
			{models.CategoryPush, 2}, {models.CategoryPull, 2}, {models.CategoryLegs, 1}, {models.CategoryCore, 1},
		}},
		{name: "Full Body B", focus: "Accessory Work", slots: []slot{
			{models.CategoryLegs, 2}, {models.CategoryPush, 1}, {models.CategoryPull, 1}, {models.CategoryCore, 1},
		}},
	}

	upperLowerSplit = []dayTemplate{
		{name: "Upper Body A", focus: "Push Emphasis", slots: []slot{
			{models.CategoryPush, 3}, {models.CategoryPull, 2},
		}},
		{name: "Lower Body A", focus: "Squat Emphasis", slots: []slot{
			{models.CategoryLegs, 4}, {models.CategoryCore, 2},
		}},
		{name: "Upper Body B", focus: "Pull Emphasis", slots: []slot{
			{models.CategoryPull, 3}, {models.CategoryPush, 2},
		}},
		{name: "Lower Body B", focus: "Hinge Emphasis", slots: []slot{
			{models.CategoryLegs, 4}, {models.CategoryCore, 2},
		}},
	}

	// Days 4 and 5 are filled by repeating push and pull.
	pushPullLegsSplit = []dayTemplate{
		{name: "Push", focus: "Chest, Shoulders, Triceps", slots: []slot{{models.CategoryPush, 6}}},
		{name: "Pull", focus: "Back, Biceps", slots: []slot{{models.CategoryPull, 6}}},
		{name: "Legs", focus: "Quads, Hamstrings, Glutes", slots: []slot{
			{models.CategoryLegs, 5}, {models.CategoryCore, 2},
		}},
	}
)

func splitFor(f models.Frequency) []dayTemplate {
	switch f {
	case models.FrequencyLow:
		return fullBodySplit
	case models.FrequencyMid:
		return upperLowerSplit
	default:
		return pushPullLegsSplit
	}
}

// volume is the sets/reps/rest prescription for strength slots.
type volume struct {
	sets int
	reps string
	rest int
}

func volumeFor(goal models.Goal, exp models.Experience) volume {
	switch goal {
	case models.GoalGetStronger:
		if exp == models.ExperienceAdvanced {
			return volume{sets: 5, reps: "3-5", rest: 180}
		}
		return volume{sets: 4, reps: "5-8", rest: 120}
	case models.GoalBuildMuscle:
		if exp == models.ExperienceBeginner {
			return volume{sets: 3, reps: "10-12", rest: 90}
		}
		return volume{sets: 4, reps: "8-12", rest: 90}
	case models.GoalLoseFat, models.GoalRecomp:
		return volume{sets: 3, reps: "12-15", rest: 60}
	default:
		return volume{sets: 3, reps: "10-12", rest: 75}
	}
}
