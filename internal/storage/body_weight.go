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

const weightColumns = `id, user_id, weight, log_date, note, created_at`

// InsertWeight stores a body-weight entry.
func (db *DB) InsertWeight(ctx context.Context, e models.WeightEntry) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO body_weight_logs (id, user_id, weight, log_date, note) VALUES ($1,$2,$3,$4,$5)`,
		e.ID, e.UserID, e.Weight, e.Date, e.Note)
	if err != nil {
		return fmt.Errorf("inserting weight entry: %w", err)
	}
	return nil
}

// DeleteWeight removes one of the user's entries.
func (db *DB) DeleteWeight(ctx context.Context, userID int, id uuid.UUID) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM body_weight_logs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting weight entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrWeightNotFound
	}
	return nil
}

// QueryWeights returns entries logged on days in [from, to], newest first.
func (db *DB) QueryWeights(ctx context.Context, userID int, from, to time.Time) ([]models.WeightEntry, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+weightColumns+` FROM body_weight_logs
		 WHERE user_id = $1 AND log_date >= $2 AND log_date <= $3
		 ORDER BY log_date DESC, created_at DESC`,
		userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying weight entries: %w", err)
	}
	defer rows.Close()

	result := []models.WeightEntry{}
	for rows.Next() {
		e, err := scanWeight(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// LatestWeight returns the user's most recent entry.
func (db *DB) LatestWeight(ctx context.Context, userID int) (*models.WeightEntry, error) {
	e, err := scanWeight(db.Pool.QueryRow(ctx,
		`SELECT `+weightColumns+` FROM body_weight_logs
		 WHERE user_id = $1 ORDER BY log_date DESC, created_at DESC LIMIT 1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrWeightNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func scanWeight(row rowScanner) (models.WeightEntry, error) {
	var e models.WeightEntry
	err := row.Scan(&e.ID, &e.UserID, &e.Weight, &e.Date, &e.Note, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, err
	}
	if err != nil {
		return e, fmt.Errorf("scanning weight entry: %w", err)
	}
	return e, nil
}
