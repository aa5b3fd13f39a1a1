package localstate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/plans"
	"github.com/claude/liftlog/internal/reconcile"
	"github.com/claude/liftlog/internal/session"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS active_sessions (
	user_id    INTEGER PRIMARY KEY,
	session_id TEXT NOT NULL,
	data       TEXT NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS plans (
	user_id    INTEGER PRIMARY KEY,
	plan_id    TEXT NOT NULL,
	data       TEXT NOT NULL,
	pending    INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
CREATE TABLE IF NOT EXISTS pending_syncs (
	workout_id TEXT NOT NULL,
	deleted    INTEGER NOT NULL DEFAULT 0,
	user_id    INTEGER NOT NULL,
	month_key  TEXT NOT NULL,
	attempts   INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	PRIMARY KEY (workout_id, deleted)
);`

var (
	_ session.Cache   = (*StateDB)(nil)
	_ plans.Cache     = (*StateDB)(nil)
	_ reconcile.Queue = (*StateDB)(nil)
)

// StateDB is the local SQLite store for state that must survive a restart
// independently of Postgres: in-progress sessions, the cached active plan
// and the queue of aggregate syncs still owed.
type StateDB struct {
	db *sql.DB
}

// Open opens (or creates) the state database at dir/state.db.
func Open(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state tables: %w", err)
	}
	return &StateDB{db: db}, nil
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// SaveSession replaces the user's cached session.
func (s *StateDB) SaveSession(ctx context.Context, as *models.ActiveSession) error {
	data, err := json.Marshal(as)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO active_sessions (user_id, session_id, data, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		as.UserID, as.ID.String(), string(data),
	)
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

// LoadSession returns the user's cached session, or nil if there is none.
func (s *StateDB) LoadSession(ctx context.Context, userID int) (*models.ActiveSession, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM active_sessions WHERE user_id = ?`, userID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	var as models.ActiveSession
	if err := json.Unmarshal([]byte(data), &as); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &as, nil
}

// DeleteSession removes the user's cached session.
func (s *StateDB) DeleteSession(ctx context.Context, userID int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM active_sessions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// SavePlan replaces the user's cached plan. pending marks a plan the
// database has not received yet.
func (s *StateDB) SavePlan(ctx context.Context, p *models.GeneratedPlan, pending bool) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO plans (user_id, plan_id, data, pending, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		p.UserID, p.ID.String(), string(data), pending,
	)
	if err != nil {
		return fmt.Errorf("saving plan: %w", err)
	}
	return nil
}

// LoadPlan returns the user's cached plan and its pending flag, or nil if
// there is none.
func (s *StateDB) LoadPlan(ctx context.Context, userID int) (*models.GeneratedPlan, bool, error) {
	var (
		data    string
		pending bool
	)
	err := s.db.QueryRowContext(ctx, `SELECT data, pending FROM plans WHERE user_id = ?`, userID).Scan(&data, &pending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("loading plan: %w", err)
	}
	var p models.GeneratedPlan
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, false, fmt.Errorf("decoding plan: %w", err)
	}
	return &p, pending, nil
}

// DeletePlan removes the user's cached plan.
func (s *StateDB) DeletePlan(ctx context.Context, userID int) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting plan: %w", err)
	}
	return nil
}

// EnqueuePending queues an aggregate sync. A second entry for the same
// workout and kind replaces the first.
func (s *StateDB) EnqueuePending(ctx context.Context, p models.PendingSync) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO pending_syncs (workout_id, deleted, user_id, month_key, attempts, last_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.WorkoutID.String(), p.Deleted, p.UserID, p.MonthKey, p.Attempts, p.LastError, p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("queueing pending sync: %w", err)
	}
	return nil
}

// UpdatePending records a failed retry.
func (s *StateDB) UpdatePending(ctx context.Context, p models.PendingSync) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_syncs SET attempts = ?, last_error = ? WHERE workout_id = ? AND deleted = ?`,
		p.Attempts, p.LastError, p.WorkoutID.String(), p.Deleted,
	)
	if err != nil {
		return fmt.Errorf("updating pending sync: %w", err)
	}
	return nil
}

// ListPending returns up to limit queued syncs, oldest first.
func (s *StateDB) ListPending(ctx context.Context, limit int) ([]models.PendingSync, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT workout_id, deleted, user_id, month_key, attempts, last_error, created_at
		 FROM pending_syncs ORDER BY created_at ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending syncs: %w", err)
	}
	defer rows.Close()

	var out []models.PendingSync
	for rows.Next() {
		var (
			p  models.PendingSync
			id string
		)
		if err := rows.Scan(&id, &p.Deleted, &p.UserID, &p.MonthKey, &p.Attempts, &p.LastError, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning pending sync: %w", err)
		}
		if p.WorkoutID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parsing pending workout id %q: %w", id, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePending removes a converged sync.
func (s *StateDB) DeletePending(ctx context.Context, workoutID uuid.UUID, deleted bool) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_syncs WHERE workout_id = ? AND deleted = ?`, workoutID.String(), deleted)
	if err != nil {
		return fmt.Errorf("deleting pending sync: %w", err)
	}
	return nil
}

// CountPending returns the queue length.
func (s *StateDB) CountPending(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_syncs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting pending syncs: %w", err)
	}
	return n, nil
}
