package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
)

func (h *handlers) recentWorkouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	end := time.Now()
	workouts, err := h.ds.Workouts(ctx, UserIDFromContext(ctx), end.AddDate(0, 0, -14), end)
	if err != nil {
		return nil, err
	}
	return jsonResource(req, workouts)
}

func (h *handlers) progress(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	p, err := h.loadProgress(ctx, "")
	if err != nil {
		return nil, err
	}
	return jsonResource(req, p)
}

func (h *handlers) activePlan(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	plan, err := h.ds.ActivePlan(ctx, UserIDFromContext(ctx))
	if errors.Is(err, models.ErrNotFound) {
		return jsonResource(req, nil)
	}
	if err != nil {
		return nil, err
	}
	return jsonResource(req, plan)
}

// progressView combines the gamification record with a monthly goal. Goal
// is nil when none was set for the month.
type progressView struct {
	Gamification *models.GamificationRecord `json:"gamification"`
	MonthlyGoal  *models.MonthlyGoal        `json:"monthly_goal"`
}

func (h *handlers) loadProgress(ctx context.Context, month string) (*progressView, error) {
	uid := UserIDFromContext(ctx)
	rec, err := h.ds.Gamification(ctx, uid)
	if err != nil {
		return nil, err
	}
	goal, err := h.ds.MonthlyGoal(ctx, uid, month)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		h.log.Warn("mcp progress: monthly goal failed", "error", err)
	}
	return &progressView{Gamification: rec, MonthlyGoal: goal}, nil
}

func jsonResource(req mcp.ReadResourceRequest, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
