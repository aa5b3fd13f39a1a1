package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about a user's stored history.
type DataStats struct {
	TotalWorkouts  int64             `json:"total_workouts"`
	TotalExercises int64             `json:"total_exercises"`
	TotalSets      int64             `json:"total_sets"`
	TotalVolume    float64           `json:"total_volume"`
	EarliestData   *time.Time        `json:"earliest_data"`
	LatestData     *time.Time        `json:"latest_data"`
	WorkoutsByName []WorkoutNameStat `json:"workouts_by_label"`
}

// WorkoutNameStat holds summary stats for workouts sharing a label.
type WorkoutNameStat struct {
	Label         string  `json:"label"`
	Count         int64   `json:"count"`
	TotalDuration float64 `json:"total_duration_sec"`
	TotalVolume   float64 `json:"total_volume"`
}

// GetDataStats returns aggregate statistics for a user's stored workouts.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*DataStats, error) {
	stats := &DataStats{WorkoutsByName: []WorkoutNameStat{}}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_volume), 0), MIN(start_time), MAX(start_time)
		 FROM workouts WHERE user_id = $1`, userID,
	).Scan(&stats.TotalWorkouts, &stats.TotalVolume, &stats.EarliestData, &stats.LatestData)
	if err != nil {
		return nil, fmt.Errorf("counting workouts: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT e.id), COUNT(s.id)
		 FROM workout_exercises e
		 JOIN workouts w ON w.id = e.workout_id
		 LEFT JOIN workout_sets s ON s.exercise_id = e.id
		 WHERE w.user_id = $1`, userID,
	).Scan(&stats.TotalExercises, &stats.TotalSets)
	if err != nil {
		return nil, fmt.Errorf("counting sets: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT label, COUNT(*), COALESCE(SUM(duration_sec), 0), COALESCE(SUM(total_volume), 0)
		 FROM workouts
		 WHERE user_id = $1
		 GROUP BY label
		 ORDER BY COUNT(*) DESC, label ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying workouts by label: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s WorkoutNameStat
		if err := rows.Scan(&s.Label, &s.Count, &s.TotalDuration, &s.TotalVolume); err != nil {
			return nil, fmt.Errorf("scanning workout label stat: %w", err)
		}
		stats.WorkoutsByName = append(stats.WorkoutsByName, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
