package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/liftlog/internal/models"
	"github.com/claude/liftlog/internal/storage"
	"github.com/google/uuid"
)

// HTTPClient implements DataSource by calling the LiftLog REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale). The server
// resolves the caller's identity, so user IDs passed in are ignored.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpclient: %s returned %d: %s: %w", path, resp.StatusCode, bytes.TrimSpace(data), statusKind(resp.StatusCode))
	}
	return data, nil
}

// statusKind maps an API status back to the error kind the server mapped
// it from.
func statusKind(status int) error {
	switch status {
	case http.StatusBadRequest:
		return models.ErrValidation
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusConflict:
		return models.ErrConflict
	case http.StatusServiceUnavailable:
		return models.ErrPersistenceUnavailable
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}

func decodeBody[T any](body []byte, what string) (T, error) {
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		return v, fmt.Errorf("httpclient: decode %s: %w", what, err)
	}
	return v, nil
}

func timeParams(start, end time.Time) url.Values {
	v := url.Values{}
	v.Set("start", start.Format(time.RFC3339))
	v.Set("end", end.Format(time.RFC3339))
	return v
}

func (c *HTTPClient) Workouts(ctx context.Context, _ int, from, to time.Time) ([]models.CompletedWorkout, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/workouts", timeParams(from, to), nil)
	if err != nil {
		return nil, err
	}
	return decodeBody[[]models.CompletedWorkout](body, "workouts")
}

func (c *HTTPClient) Workout(ctx context.Context, _ int, id uuid.UUID) (*models.CompletedWorkout, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/workouts/"+id.String(), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeBody[*models.CompletedWorkout](body, "workout")
}

func (c *HTTPClient) Gamification(ctx context.Context, _ int) (*models.GamificationRecord, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/gamification", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeBody[*models.GamificationRecord](body, "gamification")
}

func (c *HTTPClient) MonthlyGoal(ctx context.Context, _ int, month string) (*models.MonthlyGoal, error) {
	params := url.Values{}
	if month != "" {
		params.Set("month", month)
	}
	body, err := c.do(ctx, http.MethodGet, "/api/v1/goals/monthly", params, nil)
	if err != nil {
		return nil, err
	}
	return decodeBody[*models.MonthlyGoal](body, "monthly goal")
}

func (c *HTTPClient) ActivePlan(ctx context.Context, _ int) (*models.GeneratedPlan, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/plans/active", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeBody[*models.GeneratedPlan](body, "plan")
}

func (c *HTTPClient) PreviewPlan(ctx context.Context, _ int, in models.ProfileInput, seed *uint64) (*models.GeneratedPlan, error) {
	req := struct {
		models.ProfileInput
		Seed *uint64 `json:"seed,omitempty"`
	}{in, seed}
	body, err := c.do(ctx, http.MethodPost, "/api/v1/plans/preview", nil, req)
	if err != nil {
		return nil, err
	}
	return decodeBody[*models.GeneratedPlan](body, "plan")
}

func (c *HTTPClient) Exercises(ctx context.Context, category models.Category, equipment []models.Equipment, avoid []models.Constraint) ([]models.ExerciseEntry, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", string(category))
	}
	if len(equipment) > 0 {
		params.Set("equipment", joinList(equipment))
	}
	if len(avoid) > 0 {
		params.Set("avoid", joinList(avoid))
	}
	body, err := c.do(ctx, http.MethodGet, "/api/v1/exercises", params, nil)
	if err != nil {
		return nil, err
	}
	return decodeBody[[]models.ExerciseEntry](body, "exercises")
}

func (c *HTTPClient) TrainingSummary(ctx context.Context, _ int, start, end time.Time, bucket string) ([]storage.TrainingSummaryPeriod, error) {
	params := timeParams(start, end)
	params.Set("bucket", bucket)
	body, err := c.do(ctx, http.MethodGet, "/api/v1/stats/training", params, nil)
	if err != nil {
		return nil, err
	}
	return decodeBody[[]storage.TrainingSummaryPeriod](body, "training summary")
}

func (c *HTTPClient) ExerciseStats(ctx context.Context, _ int, start, end time.Time, exercise string) (*storage.ExerciseReport, error) {
	params := timeParams(start, end)
	if exercise != "" {
		params.Set("exercise", exercise)
	}
	body, err := c.do(ctx, http.MethodGet, "/api/v1/stats/exercises", params, nil)
	if err != nil {
		return nil, err
	}
	return decodeBody[*storage.ExerciseReport](body, "exercise stats")
}

func joinList[T ~string](items []T) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = string(it)
	}
	return strings.Join(parts, ",")
}
