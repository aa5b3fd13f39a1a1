package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const workoutColumns = `id, user_id, label, start_time, end_time, duration_sec,
	total_volume, total_duration_min, total_distance, total_calories`

// SaveWorkout writes the workout header, its exercises and their sets in one
// transaction. A workout that already has a commit marker is final and is
// left untouched. Otherwise an existing header is overwritten and its
// exercises are replaced, so a retried write always matches w. Returns true
// if the header was new.
func (db *DB) SaveWorkout(ctx context.Context, w models.CompletedWorkout) (bool, error) {
	var created bool
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		var committed, exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM workout_commits WHERE workout_id = $1),
			        EXISTS (SELECT 1 FROM workouts WHERE id = $1)`, w.ID).Scan(&committed, &exists)
		if err != nil {
			return fmt.Errorf("checking workout %s: %w", w.ID, err)
		}
		if committed {
			return nil
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO workouts (`+workoutColumns+`)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			 ON CONFLICT (id) DO UPDATE SET
				label              = EXCLUDED.label,
				start_time         = EXCLUDED.start_time,
				end_time           = EXCLUDED.end_time,
				duration_sec       = EXCLUDED.duration_sec,
				total_volume       = EXCLUDED.total_volume,
				total_duration_min = EXCLUDED.total_duration_min,
				total_distance     = EXCLUDED.total_distance,
				total_calories     = EXCLUDED.total_calories
			 WHERE workouts.user_id = EXCLUDED.user_id`,
			w.ID, w.UserID, w.Label, w.StartTime, w.EndTime, w.DurationSec,
			w.TotalVolume, w.TotalDurationMin, w.TotalDistance, w.TotalCalories)
		if err != nil {
			return fmt.Errorf("writing workout: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("workout %s belongs to another user: %w", w.ID, models.ErrConflict)
		}

		if exists {
			// Sets cascade with their exercises.
			if _, err := tx.Exec(ctx, `DELETE FROM workout_exercises WHERE workout_id = $1`, w.ID); err != nil {
				return fmt.Errorf("clearing workout exercises: %w", err)
			}
		}
		for i, ex := range w.Exercises {
			if _, err := tx.Exec(ctx,
				`INSERT INTO workout_exercises (id, workout_id, position, name, category)
				 VALUES ($1,$2,$3,$4,$5)`,
				ex.ID, w.ID, i, ex.Name, string(ex.Category)); err != nil {
				return fmt.Errorf("inserting workout exercise %q: %w", ex.Name, err)
			}
			sets := ex.CompletedSets()
			if len(sets) == 0 {
				continue
			}
			query, args := buildSetInsert(ex.ID, sets)
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("inserting workout sets for %q: %w", ex.Name, err)
			}
		}
		created = !exists
		return nil
	})
	return created, err
}

// UpdateWorkoutLabel renames a workout.
func (db *DB) UpdateWorkoutLabel(ctx context.Context, userID int, id uuid.UUID, label string) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE workouts SET label = $3 WHERE id = $1 AND user_id = $2`,
		id, userID, label)
	if err != nil {
		return fmt.Errorf("updating workout label: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrWorkoutNotFound
	}
	return nil
}

// UpdateSet merges u into a stored set and recomputes the workout totals in
// the same transaction.
func (db *DB) UpdateSet(ctx context.Context, userID int, workoutID, setID uuid.UUID, u models.SetUpdate) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE workout_sets s SET
				weight       = COALESCE($4, s.weight),
				reps         = COALESCE($5, s.reps),
				duration_min = COALESCE($6, s.duration_min),
				distance     = COALESCE($7, s.distance),
				calories     = COALESCE($8, s.calories)
			 FROM workout_exercises e, workouts w
			 WHERE s.id = $1 AND e.id = s.exercise_id AND w.id = e.workout_id
			   AND w.id = $2 AND w.user_id = $3`,
			setID, workoutID, userID, u.Weight, u.Reps, u.DurationMin, u.Distance, u.Calories)
		if err != nil {
			return fmt.Errorf("updating workout set: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrSetNotFound
		}

		_, err = tx.Exec(ctx,
			`UPDATE workouts w SET
				total_volume       = t.volume,
				total_duration_min = t.duration,
				total_distance     = t.distance,
				total_calories     = t.calories
			 FROM (
				SELECT COALESCE(SUM(s.weight * s.reps), 0) AS volume,
				       COALESCE(SUM(s.duration_min), 0)    AS duration,
				       COALESCE(SUM(s.distance), 0)        AS distance,
				       COALESCE(SUM(s.calories), 0)        AS calories
				FROM workout_sets s
				JOIN workout_exercises e ON e.id = s.exercise_id
				WHERE e.workout_id = $1
			 ) t
			 WHERE w.id = $1`,
			workoutID)
		if err != nil {
			return fmt.Errorf("recomputing workout totals: %w", err)
		}
		return nil
	})
}

// QueryWorkouts retrieves workout headers that started in [start, end),
// newest first.
func (db *DB) QueryWorkouts(ctx context.Context, userID int, start, end time.Time) ([]models.CompletedWorkout, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+workoutColumns+`
		 FROM workouts
		 WHERE start_time >= $1 AND start_time < $2 AND user_id = $3
		 ORDER BY start_time DESC`,
		start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying workouts: %w", err)
	}
	defer rows.Close()

	var result []models.CompletedWorkout
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// CountWorkouts counts the user's workouts that ended in [start, end).
func (db *DB) CountWorkouts(ctx context.Context, userID int, start, end time.Time) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM workouts WHERE user_id = $1 AND end_time >= $2 AND end_time < $3`,
		userID, start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting workouts: %w", err)
	}
	return n, nil
}

// GetWorkout retrieves a single workout with its exercises and sets.
func (db *DB) GetWorkout(ctx context.Context, userID int, id uuid.UUID) (*models.CompletedWorkout, error) {
	w, err := scanWorkout(db.Pool.QueryRow(ctx,
		`SELECT `+workoutColumns+` FROM workouts WHERE id = $1 AND user_id = $2`,
		id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrWorkoutNotFound
	}
	if err != nil {
		return nil, err
	}

	exRows, err := db.Pool.Query(ctx,
		`SELECT id, name, category FROM workout_exercises
		 WHERE workout_id = $1 ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("querying workout exercises: %w", err)
	}
	defer exRows.Close()

	index := map[uuid.UUID]int{}
	for exRows.Next() {
		var (
			ex       models.SessionExercise
			category string
		)
		if err := exRows.Scan(&ex.ID, &ex.Name, &category); err != nil {
			return nil, fmt.Errorf("scanning workout exercise: %w", err)
		}
		ex.Category = models.Category(category)
		ex.Sets = []models.SetEntry{}
		index[ex.ID] = len(w.Exercises)
		w.Exercises = append(w.Exercises, ex)
	}
	if err := exRows.Err(); err != nil {
		return nil, err
	}

	setRows, err := db.Pool.Query(ctx,
		`SELECT s.id, s.exercise_id, s.weight, s.reps, s.duration_min, s.distance, s.calories
		 FROM workout_sets s
		 JOIN workout_exercises e ON e.id = s.exercise_id
		 WHERE e.workout_id = $1
		 ORDER BY e.position ASC, s.position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("querying workout sets: %w", err)
	}
	defer setRows.Close()

	for setRows.Next() {
		var (
			s    models.SetEntry
			exID uuid.UUID
		)
		if err := setRows.Scan(&s.ID, &exID, &s.Weight, &s.Reps, &s.DurationMin, &s.Distance, &s.Calories); err != nil {
			return nil, fmt.Errorf("scanning workout set: %w", err)
		}
		s.Completed = true
		if i, ok := index[exID]; ok {
			w.Exercises[i].Sets = append(w.Exercises[i].Sets, s)
		}
	}
	return &w, setRows.Err()
}

// DeleteWorkout deletes the workout (exercises and sets cascade) and its
// commit marker in one transaction. If the workout had been counted, the
// gamification record is reverted. Returns whether a revert happened.
func (db *DB) DeleteWorkout(ctx context.Context, userID int, id uuid.UUID) (bool, error) {
	var reverted bool
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM workouts WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return fmt.Errorf("deleting workout: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrWorkoutNotFound
		}

		tag, err = tx.Exec(ctx, `DELETE FROM workout_commits WHERE workout_id = $1`, id)
		if err != nil {
			return fmt.Errorf("deleting commit marker: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		rec, err := lockGamification(ctx, tx, userID)
		if err != nil {
			return err
		}
		rec.Revert()
		reverted = true
		return saveGamification(ctx, tx, rec)
	})
	return reverted, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkout(row rowScanner) (models.CompletedWorkout, error) {
	var w models.CompletedWorkout
	err := row.Scan(&w.ID, &w.UserID, &w.Label, &w.StartTime, &w.EndTime, &w.DurationSec,
		&w.TotalVolume, &w.TotalDurationMin, &w.TotalDistance, &w.TotalCalories)
	if errors.Is(err, pgx.ErrNoRows) {
		return w, err
	}
	if err != nil {
		return w, fmt.Errorf("scanning workout: %w", err)
	}
	return w, nil
}
