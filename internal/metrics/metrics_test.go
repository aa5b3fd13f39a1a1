package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// TestHandlerExposesRecordedSeries verifies recorded values appear on the scrape endpoint.
func TestHandlerExposesRecordedSeries(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/v1/workouts/{id}", "GET", 200, 15*time.Millisecond)
	m.WorkoutFinished("pending")
	m.AggregateFailed("monthly_goal")
	m.SetPending(3)
	m.PlanGenerated("5+")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	for _, want := range []string{
		`liftlog_http_requests_total{method="GET",route="/api/v1/workouts/{id}",status="200"} 1`,
		`liftlog_workouts_finished_total{outcome="pending"} 1`,
		`liftlog_aggregate_sync_failures_total{step="monthly_goal"} 1`,
		`liftlog_pending_syncs 3`,
		`liftlog_plans_generated_total{frequency="5+"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("scrape output missing %q", want)
		}
	}
}

// TestNilMetricsIsNoop verifies a nil *Metrics can be used by components
// that run without observability.
func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("/", "GET", 200, time.Second)
	m.RateLimited()
	m.WorkoutFinished("committed")
	m.AggregateFailed("gamification")
	m.SetPending(1)
	m.PlanGenerated("2-3")
}
