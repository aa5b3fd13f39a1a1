package alpha

import "time"

// Session is one workout from an Alpha Progression export.
type Session struct {
	Name      string
	Start     time.Time
	Duration  time.Duration
	Exercises []Exercise
}

// Exercise is one exercise within a session, in export order.
type Exercise struct {
	Number     int
	Name       string
	Equipment  string
	TargetReps int
	Sets       []Set
}

// Set is a logged set. Warmups come from the exercise header line.
type Set struct {
	Number int
	// Weight is the external load in kg. For bodyweight-plus sets it is the
	// added load only.
	Weight        float64
	BodyweightAdd bool
	Reps          int
	RIR           float64
	Warmup        bool
}

// WorkingSets returns the sets that are not warmups.
func (e Exercise) WorkingSets() []Set {
	var out []Set
	for _, s := range e.Sets {
		if !s.Warmup {
			out = append(out, s)
		}
	}
	return out
}
