package storage

import (
	"context"
	"fmt"
	"time"
)

// TrainingSummaryPeriod holds aggregated training volume for one period.
type TrainingSummaryPeriod struct {
	Period            string  `json:"period"`
	Workouts          int     `json:"workouts"`
	AvgDurationMin    float64 `json:"avg_duration_min"`
	WorkingSets       int     `json:"working_sets"`
	TotalReps         int     `json:"total_reps"`
	Volume            float64 `json:"volume"`
	CardioMinutes     float64 `json:"cardio_minutes"`
	Distance          float64 `json:"distance"`
	Calories          float64 `json:"calories"`
	AvgSetsPerWorkout float64 `json:"avg_sets_per_workout"`
}

// ExerciseSummary holds aggregated stats for a single exercise.
type ExerciseSummary struct {
	Name      string  `json:"name"`
	Workouts  int     `json:"workouts"`
	TotalSets int     `json:"total_sets"`
	TotalReps int     `json:"total_reps"`
	Volume    float64 `json:"volume"`
	MaxWeight float64 `json:"max_weight"`
}

// ExerciseProgression holds one workout's data for a specific exercise.
type ExerciseProgression struct {
	Date         string  `json:"date"`
	MaxWeight    float64 `json:"max_weight"`
	Volume       float64 `json:"volume"`
	Sets         int     `json:"sets"`
	EstimatedMax float64 `json:"estimated_1rm"`
}

// ExerciseReport is the per-exercise breakdown of a time range.
type ExerciseReport struct {
	TotalSets   int                   `json:"total_sets"`
	Exercises   []ExerciseSummary     `json:"exercises"`
	Progression []ExerciseProgression `json:"progression,omitempty"`
}

// TrainingSummary returns workout counts and volume per week or month.
// Periods are ordered newest first.
func (db *DB) TrainingSummary(ctx context.Context, userID int, start, end time.Time, bucket string) ([]TrainingSummaryPeriod, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, start_time)::date AS period,
		        COUNT(*)::int,
		        COALESCE(AVG(duration_sec), 0) / 60,
		        COALESCE(SUM(total_volume), 0),
		        COALESCE(SUM(total_duration_min), 0),
		        COALESCE(SUM(total_distance), 0),
		        COALESCE(SUM(total_calories), 0)
		 FROM workouts
		 WHERE start_time >= $2 AND start_time < $3 AND user_id = $4
		 GROUP BY period
		 ORDER BY period DESC`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying training summary: %w", err)
	}
	defer rows.Close()

	periodMap := make(map[string]*TrainingSummaryPeriod)
	var periodOrder []string
	for rows.Next() {
		var (
			periodTime time.Time
			p          TrainingSummaryPeriod
		)
		if err := rows.Scan(&periodTime, &p.Workouts, &p.AvgDurationMin, &p.Volume,
			&p.CardioMinutes, &p.Distance, &p.Calories); err != nil {
			return nil, fmt.Errorf("scanning training summary: %w", err)
		}
		p.Period = periodTime.Format(time.DateOnly)
		periodMap[p.Period] = &p
		periodOrder = append(periodOrder, p.Period)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	setRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, w.start_time)::date AS period,
		        COUNT(s.id)::int,
		        COALESCE(SUM(s.reps), 0)::int
		 FROM workouts w
		 JOIN workout_exercises e ON e.workout_id = w.id
		 JOIN workout_sets s ON s.exercise_id = e.id
		 WHERE w.start_time >= $2 AND w.start_time < $3 AND w.user_id = $4
		   AND e.category IS DISTINCT FROM 'cardio'
		 GROUP BY period`,
		truncInterval(bucket), start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying set summary: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var (
			periodTime time.Time
			sets, reps int
		)
		if err := setRows.Scan(&periodTime, &sets, &reps); err != nil {
			return nil, fmt.Errorf("scanning set summary: %w", err)
		}
		p, ok := periodMap[periodTime.Format(time.DateOnly)]
		if !ok {
			continue
		}
		p.WorkingSets = sets
		p.TotalReps = reps
		if p.Workouts > 0 {
			p.AvgSetsPerWorkout = float64(sets) / float64(p.Workouts)
		}
	}
	if err := setRows.Err(); err != nil {
		return nil, err
	}

	result := make([]TrainingSummaryPeriod, 0, len(periodOrder))
	for _, key := range periodOrder {
		result = append(result, *periodMap[key])
	}
	return result, nil
}

// ExerciseStats returns per-exercise totals for workouts that started in
// [start, end). With a name filter (case-insensitive substring) the
// workout-by-workout progression of the matching exercises is included,
// with an Epley one-rep-max estimate.
func (db *DB) ExerciseStats(ctx context.Context, userID int, start, end time.Time, exerciseFilter string) (*ExerciseReport, error) {
	report := &ExerciseReport{Exercises: []ExerciseSummary{}}

	rows, err := db.Pool.Query(ctx,
		`SELECT e.name,
		        COUNT(DISTINCT w.id)::int,
		        COUNT(s.id)::int,
		        COALESCE(SUM(s.reps), 0)::int,
		        COALESCE(SUM(s.weight * s.reps), 0),
		        COALESCE(MAX(s.weight), 0)
		 FROM workouts w
		 JOIN workout_exercises e ON e.workout_id = w.id
		 JOIN workout_sets s ON s.exercise_id = e.id
		 WHERE w.start_time >= $1 AND w.start_time < $2 AND w.user_id = $3
		 GROUP BY e.name
		 ORDER BY SUM(s.weight * s.reps) DESC, e.name ASC`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying exercise summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e ExerciseSummary
		if err := rows.Scan(&e.Name, &e.Workouts, &e.TotalSets, &e.TotalReps, &e.Volume, &e.MaxWeight); err != nil {
			return nil, fmt.Errorf("scanning exercise summary: %w", err)
		}
		report.TotalSets += e.TotalSets
		report.Exercises = append(report.Exercises, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if exerciseFilter == "" {
		return report, nil
	}

	progRows, err := db.Pool.Query(ctx,
		`SELECT w.start_time::date,
		        COALESCE(MAX(s.weight), 0),
		        COALESCE(SUM(s.weight * s.reps), 0),
		        COUNT(s.id)::int,
		        COALESCE(MAX(s.weight * (1 + s.reps / 30.0)), 0)
		 FROM workouts w
		 JOIN workout_exercises e ON e.workout_id = w.id
		 JOIN workout_sets s ON s.exercise_id = e.id
		 WHERE w.start_time >= $1 AND w.start_time < $2 AND w.user_id = $3
		   AND e.name ILIKE '%' || $4 || '%'
		 GROUP BY w.start_time::date
		 ORDER BY w.start_time::date ASC`,
		start, end, userID, exerciseFilter)
	if err != nil {
		return nil, fmt.Errorf("querying exercise progression: %w", err)
	}
	defer progRows.Close()

	for progRows.Next() {
		var (
			p ExerciseProgression
			d time.Time
		)
		if err := progRows.Scan(&d, &p.MaxWeight, &p.Volume, &p.Sets, &p.EstimatedMax); err != nil {
			return nil, fmt.Errorf("scanning exercise progression: %w", err)
		}
		p.Date = d.Format(time.DateOnly)
		report.Progression = append(report.Progression, p)
	}
	return report, progRows.Err()
}

// truncInterval maps a bucket name to the date_trunc field.
func truncInterval(bucket string) string {
	if bucket == "week" {
		return "week"
	}
	return "month"
}
