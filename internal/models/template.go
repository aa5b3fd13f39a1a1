package models

// TemplateExercise is one exercise of a workout template. Reps and
// DurationMin are per set; exactly one is set.
type TemplateExercise struct {
	Name        string   `json:"name" yaml:"name"`
	Category    Category `json:"category" yaml:"category"`
	Sets        int      `json:"sets" yaml:"sets"`
	Reps        int      `json:"reps,omitempty" yaml:"reps"`
	DurationMin float64  `json:"duration_min,omitempty" yaml:"duration_min"`
}

// WorkoutTemplate is a predefined workout a session can be started from.
type WorkoutTemplate struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	Duration    string             `json:"duration" yaml:"duration"`
	Difficulty  Experience         `json:"difficulty" yaml:"difficulty"`
	Focus       string             `json:"focus" yaml:"focus"`
	Exercises   []TemplateExercise `json:"exercises" yaml:"exercises"`
}
