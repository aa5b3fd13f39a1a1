package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// planData is the JSONB payload of a guided_plans row.
type planData struct {
	Schedule    []models.WorkoutDay    `json:"schedule"`
	Progression models.ProgressionRule `json:"progression"`
	Input       models.ProfileInput    `json:"input"`
}

func encodePlan(p *models.GeneratedPlan) ([]byte, error) {
	return json.Marshal(planData{Schedule: p.Schedule, Progression: p.Progression, Input: p.Input})
}

func decodePlan(raw []byte, p *models.GeneratedPlan) error {
	var d planData
	if err := json.Unmarshal(raw, &d); err != nil {
		return err
	}
	p.Schedule, p.Progression, p.Input = d.Schedule, d.Progression, d.Input
	return nil
}

// SavePlan stores p as the user's active plan, deactivating any other.
func (db *DB) SavePlan(ctx context.Context, p *models.GeneratedPlan) error {
	data, err := encodePlan(p)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	return db.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`UPDATE guided_plans SET is_active = FALSE
			 WHERE user_id = $1 AND is_active AND id <> $2`,
			p.UserID, p.ID); err != nil {
			return fmt.Errorf("deactivating previous plans: %w", err)
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO guided_plans (id, user_id, name, description, plan_data, current_week, started_at, is_active)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
			 ON CONFLICT (id) DO UPDATE SET
				plan_data = EXCLUDED.plan_data,
				current_week = EXCLUDED.current_week,
				started_at = EXCLUDED.started_at,
				is_active = TRUE`,
			p.ID, p.UserID, p.Name, p.Description, data, p.CurrentWeek, p.StartedAt)
		if err != nil {
			return fmt.Errorf("inserting plan: %w", err)
		}
		return nil
	})
}

// ActivePlan returns the user's active plan.
func (db *DB) ActivePlan(ctx context.Context, userID int) (*models.GeneratedPlan, error) {
	p := &models.GeneratedPlan{UserID: userID, Active: true}
	var raw []byte
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, description, plan_data, current_week, started_at
		 FROM guided_plans WHERE user_id = $1 AND is_active`, userID,
	).Scan(&p.ID, &p.Name, &p.Description, &raw, &p.CurrentWeek, &p.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNoActivePlan
	}
	if err != nil {
		return nil, fmt.Errorf("querying active plan: %w", err)
	}
	if err := decodePlan(raw, p); err != nil {
		return nil, fmt.Errorf("decoding plan %s: %w", p.ID, err)
	}
	return p, nil
}

// UpdatePlanWeek sets the current week of an active plan.
func (db *DB) UpdatePlanWeek(ctx context.Context, userID int, planID uuid.UUID, week int) error {
	return db.execPlan(ctx,
		`UPDATE guided_plans SET current_week = $3 WHERE id = $1 AND user_id = $2 AND is_active`,
		planID, userID, week)
}

// RestartPlan resets an active plan to week one from startedAt.
func (db *DB) RestartPlan(ctx context.Context, userID int, planID uuid.UUID, startedAt time.Time) error {
	return db.execPlan(ctx,
		`UPDATE guided_plans SET current_week = 1, started_at = $3 WHERE id = $1 AND user_id = $2 AND is_active`,
		planID, userID, startedAt)
}

// DeactivatePlan marks a plan inactive.
func (db *DB) DeactivatePlan(ctx context.Context, userID int, planID uuid.UUID) error {
	return db.execPlan(ctx,
		`UPDATE guided_plans SET is_active = FALSE WHERE id = $1 AND user_id = $2 AND is_active`,
		planID, userID)
}

func (db *DB) execPlan(ctx context.Context, sql string, args ...any) error {
	tag, err := db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("updating plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNoActivePlan
	}
	return nil
}
