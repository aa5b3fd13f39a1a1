package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/claude/liftlog/internal/models"
)

// Manager owns one Machine per user.
type Manager struct {
	cache    Cache
	finisher Finisher
	log      *slog.Logger

	mu       sync.Mutex
	machines map[int]*Machine
}

// NewManager creates a Manager.
func NewManager(cache Cache, finisher Finisher, log *slog.Logger) *Manager {
	return &Manager{
		cache:    cache,
		finisher: finisher,
		log:      log,
		machines: make(map[int]*Machine),
	}
}

// For returns the user's machine, creating it on first use. A session left
// in the cache by a previous process is resumed as Active.
func (mgr *Manager) For(ctx context.Context, userID int) (*Machine, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if m, ok := mgr.machines[userID]; ok {
		return m, nil
	}

	cached, err := mgr.cache.LoadSession(ctx, userID)
	if err != nil {
		return nil, models.Unavailable(fmt.Errorf("loading cached session: %w", err))
	}
	m := newMachine(userID, mgr.cache, mgr.finisher, mgr.log)
	if cached != nil {
		m.restore(cached)
		mgr.log.Info("resumed cached session", "user_id", userID, "session_id", cached.ID)
	}
	mgr.machines[userID] = m
	return m, nil
}
