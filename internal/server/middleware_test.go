package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/claude/liftlog/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"tailscale.com/client/tailscale/apitype"
	"tailscale.com/tailcfg"
)

type fakeWhoIs struct {
	login, name string
	err         error
}

func (f fakeWhoIs) WhoIs(_ context.Context, _ string) (*apitype.WhoIsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &apitype.WhoIsResponse{UserProfile: &tailcfg.UserProfile{LoginName: f.login, DisplayName: f.name}}, nil
}

// identityServer returns a Server with only the identity dependencies set.
func identityServer(users *fakeUsers) *Server {
	return New(Deps{
		Users:   users,
		DevUser: UserInfo{Login: "local", DisplayName: "Local Dev User"},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func echoIdentity(got *UserInfo) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = userInfoFromContext(r)
		w.WriteHeader(http.StatusOK)
	})
}

// TestDevIdentity verifies that without Tailscale every request is resolved
// to the dev user.
func TestDevIdentity(t *testing.T) {
	users := newFakeUsers()
	s := identityServer(users)

	var got UserInfo
	rec := httptest.NewRecorder()
	s.Identity(echoIdentity(&got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got.Login != "local" || got.ID != users.ids["local"] {
		t.Errorf("identity = %+v, want local user %d", got, users.ids["local"])
	}
}

// TestTailscaleIdentity verifies WhoIs results become the request identity.
func TestTailscaleIdentity(t *testing.T) {
	users := newFakeUsers()
	s := identityServer(users)
	s.SetTailscale(fakeWhoIs{login: "alice@example.com", name: "Alice"})

	var got UserInfo
	rec := httptest.NewRecorder()
	s.Identity(echoIdentity(&got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got.Login != "alice@example.com" || got.DisplayName != "Alice" {
		t.Errorf("identity = %+v", got)
	}
	if _, ok := users.ids["alice@example.com"]; !ok {
		t.Error("tailnet user was not created")
	}
}

// TestTailscaleUnknownPeer verifies failed WhoIs lookups are rejected.
func TestTailscaleUnknownPeer(t *testing.T) {
	s := identityServer(newFakeUsers())
	s.SetTailscale(fakeWhoIs{err: errors.New("no match")})

	rec := httptest.NewRecorder()
	s.Identity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

// TestIdentityCachedWhileDatabaseDown verifies a known user keeps resolving
// when the user store fails, and an unknown one gets 503.
func TestIdentityCachedWhileDatabaseDown(t *testing.T) {
	users := newFakeUsers()
	s := identityServer(users)
	var got UserInfo
	h := s.Identity(echoIdentity(&got))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	users.down = true

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || got.ID == 0 {
		t.Errorf("cached user: status = %d, id = %d", rec.Code, got.ID)
	}

	s.SetTailscale(fakeWhoIs{login: "bob@example.com", name: "Bob"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unknown user: status = %d, want 503", rec.Code)
	}
}

// TestUserIDFromContextDefault verifies that UserIDFromContext returns 0
// when no identity middleware has run.
func TestUserIDFromContextDefault(t *testing.T) {
	if id := UserIDFromContext(context.Background()); id != 0 {
		t.Errorf("UserIDFromContext without context value = %d, want 0", id)
	}
}

// TestUserIDFromContextSet verifies that UserIDFromContext returns the
// value stored by identity middleware.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := context.WithValue(context.Background(), userIDKey, 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

// TestAPIKeyAuth verifies missing and wrong keys are rejected.
func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	tests := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"wrong", http.StatusForbidden},
		{"secret", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("key %q: status = %d, want %d", tt.key, rec.Code, tt.want)
		}
	}
}

// TestRequestLogging verifies that the logging middleware calls the next
// handler, keeps its status and counts the request.
func TestRequestLogging(t *testing.T) {
	m := metrics.New()
	var buf strings.Builder
	log := slog.New(slog.NewTextHandler(&buf, nil))
	handler := RequestLogging(log, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if !strings.Contains(buf.String(), "status=201") {
		t.Errorf("log line missing status: %s", buf.String())
	}
	n, err := testutil.GatherAndCount(m.Registry(), "liftlog_http_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("request series = %d, want 1", n)
	}
}

// TestCORSHeaders verifies that CORS headers are set on responses.
func TestCORSHeaders(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PATCH") {
		t.Errorf("CORS methods = %q, want PATCH included", got)
	}
}

// TestCORSPreflight verifies that OPTIONS requests get 204 with CORS headers.
func TestCORSPreflight(t *testing.T) {
	handler := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called for OPTIONS")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

// TestRateLimitPerUser verifies the burst is enforced per user.
func TestRateLimitPerUser(t *testing.T) {
	s := New(Deps{RateLimit: 0.001, Burst: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := s.RateLimit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	call := func(uid int) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(context.WithValue(req.Context(), userIDKey, uid))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := range 2 {
		if code := call(1); code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, code)
		}
	}
	if code := call(1); code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", code)
	}
	if code := call(2); code != http.StatusOK {
		t.Errorf("other user: status = %d, want 200", code)
	}
}
