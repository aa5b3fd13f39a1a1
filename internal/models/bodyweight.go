package models

import (
	"time"

	"github.com/google/uuid"
)

// MaxBodyWeight bounds a logged body weight.
const MaxBodyWeight = 1000

// WeightEntry is one body-weight log entry. Date is a calendar day.
type WeightEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    int       `json:"user_id"`
	Weight    float64   `json:"weight"`
	Date      time.Time `json:"date"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WeightSummary reports the latest weight and the average over the last
// seven days.
type WeightSummary struct {
	Latest        *WeightEntry `json:"latest"`
	WeeklyAverage *float64     `json:"weekly_average"`
	WeeklyCount   int          `json:"weekly_count"`
}

// SummarizeWeights builds a summary from the latest entry and the entries of
// the last seven days. With no recent entries the average falls back to the
// latest weight.
func SummarizeWeights(latest *WeightEntry, recent []WeightEntry) WeightSummary {
	sum := WeightSummary{Latest: latest, WeeklyCount: len(recent)}
	switch {
	case len(recent) > 0:
		var total float64
		for _, e := range recent {
			total += e.Weight
		}
		avg := total / float64(len(recent))
		sum.WeeklyAverage = &avg
	case latest != nil:
		avg := latest.Weight
		sum.WeeklyAverage = &avg
	}
	return sum
}
