package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/claude/liftlog/internal/models"
	"github.com/jackc/pgx/v5"
)

// GetMonthlyGoal returns the user's goal for a "YYYY-MM" month.
func (db *DB) GetMonthlyGoal(ctx context.Context, userID int, month string) (*models.MonthlyGoal, error) {
	g := &models.MonthlyGoal{UserID: userID, MonthKey: month}
	err := db.Pool.QueryRow(ctx,
		`SELECT target, completed, updated_at FROM monthly_goals
		 WHERE user_id = $1 AND month_key = $2`, userID, month,
	).Scan(&g.Target, &g.Completed, &g.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying monthly goal: %w", err)
	}
	return g, nil
}

// UpsertMonthlyGoal creates or replaces the goal for a month.
func (db *DB) UpsertMonthlyGoal(ctx context.Context, g models.MonthlyGoal) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO monthly_goals (user_id, month_key, target, completed, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (user_id, month_key) DO UPDATE SET
			target = EXCLUDED.target, completed = EXCLUDED.completed, updated_at = NOW()`,
		g.UserID, g.MonthKey, g.Target, g.Completed)
	if err != nil {
		return fmt.Errorf("upserting monthly goal: %w", err)
	}
	return nil
}

// SetMonthlyCompleted overwrites the completed count of an existing goal.
// Returns false when the user has no goal for the month.
func (db *DB) SetMonthlyCompleted(ctx context.Context, userID int, month string, completed int) (bool, error) {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE monthly_goals SET completed = $3, updated_at = NOW()
		 WHERE user_id = $1 AND month_key = $2`,
		userID, month, completed)
	if err != nil {
		return false, fmt.Errorf("updating monthly goal: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GoalUsers lists the users with a goal for the month.
func (db *DB) GoalUsers(ctx context.Context, month string) ([]int, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT user_id FROM monthly_goals WHERE month_key = $1 ORDER BY user_id`, month)
	if err != nil {
		return nil, fmt.Errorf("querying goal users: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning goal user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
