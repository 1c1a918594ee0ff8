package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/storyglot/authz/internal/adapter/outbound/memory"
	"github.com/storyglot/authz/internal/domain/access"
	"github.com/storyglot/authz/internal/domain/auth"
	"github.com/storyglot/authz/internal/service"
)

const testAPIKey = "sk-test-key"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires a full handler: a seeded auth store, the builtin
// role catalog, and the authorization service.
func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	store := memory.NewAuthStore()
	store.Seed(
		[]auth.Identity{
			{ID: "user-1", Name: "Student One", TenantID: "tenant-1", Roles: []string{"student"}},
		},
		[]auth.APIKey{
			{ID: "key-1", Name: "test", Key: auth.HashKey(testAPIKey), IdentityID: "user-1"},
		},
	)

	logger := discardLogger()
	abilities := service.NewAbilityService(access.DefaultCatalog(), "public", logger)
	authorizer := service.NewAuthorizationService(abilities, "public", logger)
	keys := auth.NewAPIKeyService(store)

	srv := NewServer(authorizer, keys, WithLogger(logger))
	return srv.Handler()
}

func postAuthorize(t *testing.T, handler http.Handler, apiKey, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/authorize", strings.NewReader(body))
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAuthorizeAllowed(t *testing.T) {
	handler := newTestServer(t)

	body := `{"rules":[{"action":"read","subject":"Lesson","conditions":{"tenantId":"tenant-1"}}]}`
	rec := postAuthorize(t, handler, testAPIKey, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	var decision access.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if !decision.Allowed {
		t.Errorf("expected allowed, got %+v", decision)
	}
}

func TestAuthorizeDeniedIsStill200(t *testing.T) {
	handler := newTestServer(t)

	// Students cannot delete tenants.
	body := `{"rules":[{"action":"delete","subject":"Tenant"}]}`
	rec := postAuthorize(t, handler, testAPIKey, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var decision access.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if decision.Allowed {
		t.Error("expected denied decision")
	}
	if len(decision.FailedRules) != 1 {
		t.Errorf("expected 1 failed rule, got %d", len(decision.FailedRules))
	}
}

func TestAuthorizeRequiresAPIKey(t *testing.T) {
	handler := newTestServer(t)

	tests := []struct {
		name string
		key  string
	}{
		{"missing key", ""},
		{"unknown key", "sk-wrong"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postAuthorize(t, handler, tc.key, `{"rules":[]}`)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuthorizeRejectsBadBody(t *testing.T) {
	handler := newTestServer(t)

	rec := postAuthorize(t, handler, testAPIKey, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAuthorizeRejectsGet(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/authorize", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestAuthorizeEmptyRules(t *testing.T) {
	handler := newTestServer(t)

	rec := postAuthorize(t, handler, testAPIKey, `{"rules":[]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var decision access.Decision
	if err := json.Unmarshal(rec.Body.Bytes(), &decision); err != nil {
		t.Fatalf("decode decision: %v", err)
	}
	if decision.Allowed || decision.Error != access.ErrMsgNoRules {
		t.Errorf("expected no-rules denial, got %+v", decision)
	}
}

func TestRequestIDEcho(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/authorize", strings.NewReader(`{"rules":[]}`))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "req-abc" {
		t.Errorf("X-Request-ID = %q, want %q", got, "req-abc")
	}
}

func TestRequestIDGenerated(t *testing.T) {
	handler := newTestServer(t)

	rec := postAuthorize(t, handler, testAPIKey, `{"rules":[]}`)
	if got := rec.Header().Get("X-Request-ID"); got == "" {
		t.Error("expected a generated X-Request-ID header")
	}
}

func TestHealthz(t *testing.T) {
	handler := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestServer(t)

	// Generate one request so the counters exist.
	postAuthorize(t, handler, testAPIKey, `{"rules":[{"action":"read","subject":"Lesson","conditions":{"tenantId":"tenant-1"}}]}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "storyglot_authz_requests_total") {
		t.Error("expected requests_total metric in output")
	}
	if !strings.Contains(body, "storyglot_authz_checks_total") {
		t.Error("expected checks_total metric in output")
	}
	if !strings.Contains(body, "storyglot_authz_rbac_denials_total") {
		t.Error("expected rbac_denials_total metric in output")
	}
}
