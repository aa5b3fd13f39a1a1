package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetGamification returns the user's record. A user without a row gets a
// zero record.
func (db *DB) GetGamification(ctx context.Context, userID int) (*models.GamificationRecord, error) {
	rec := &models.GamificationRecord{UserID: userID}
	err := db.Pool.QueryRow(ctx,
		`SELECT total_workouts, current_streak, longest_streak, total_points
		 FROM gamification WHERE user_id = $1`, userID,
	).Scan(&rec.TotalWorkouts, &rec.CurrentStreak, &rec.LongestStreak, &rec.TotalPoints)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying gamification: %w", err)
	}
	return rec, nil
}

// ApplyWorkoutCommit inserts the commit marker for a stored workout and, if
// the marker is new, adds the workout to the user's record in the same
// transaction. Returns false when the workout was already counted or no
// longer exists.
func (db *DB) ApplyWorkoutCommit(ctx context.Context, userID int, workoutID uuid.UUID) (bool, error) {
	var applied bool
	err := db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO workout_commits (workout_id, user_id)
			 SELECT $1, $2
			 WHERE EXISTS (SELECT 1 FROM workouts WHERE id = $1 AND user_id = $2)
			 ON CONFLICT (workout_id) DO NOTHING`,
			workoutID, userID)
		if err != nil {
			return fmt.Errorf("inserting commit marker: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		rec, err := lockGamification(ctx, tx, userID)
		if err != nil {
			return err
		}
		rec.Commit()
		applied = true
		return saveGamification(ctx, tx, rec)
	})
	return applied, err
}

// ResetGamification zeroes the record and drops the user's commit markers.
func (db *DB) ResetGamification(ctx context.Context, userID int) error {
	return db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM workout_commits WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("deleting commit markers: %w", err)
		}
		return saveGamification(ctx, tx, &models.GamificationRecord{UserID: userID})
	})
}

// lockGamification loads the user's record FOR UPDATE, creating it first if needed.
func lockGamification(ctx context.Context, tx pgx.Tx, userID int) (*models.GamificationRecord, error) {
	if _, err := tx.Exec(ctx,
		`INSERT INTO gamification (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, fmt.Errorf("creating gamification row: %w", err)
	}
	rec := &models.GamificationRecord{UserID: userID}
	err := tx.QueryRow(ctx,
		`SELECT total_workouts, current_streak, longest_streak, total_points
		 FROM gamification WHERE user_id = $1 FOR UPDATE`, userID,
	).Scan(&rec.TotalWorkouts, &rec.CurrentStreak, &rec.LongestStreak, &rec.TotalPoints)
	if err != nil {
		return nil, fmt.Errorf("locking gamification: %w", err)
	}
	return rec, nil
}

func saveGamification(ctx context.Context, tx pgx.Tx, rec *models.GamificationRecord) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO gamification (user_id, total_workouts, current_streak, longest_streak, total_points, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET
			total_workouts = EXCLUDED.total_workouts,
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			total_points   = EXCLUDED.total_points,
			updated_at     = NOW()`,
		rec.UserID, rec.TotalWorkouts, rec.CurrentStreak, rec.LongestStreak, rec.TotalPoints)
	if err != nil {
		return fmt.Errorf("saving gamification: %w", err)
	}
	return nil
}
