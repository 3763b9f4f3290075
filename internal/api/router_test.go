package api_test

import (
	"net/http"
	"testing"

	"github.com/charlesng35/jobboard/internal/api"
	"github.com/charlesng35/jobboard/internal/handlers/testutil"
	"github.com/charlesng35/jobboard/internal/models"
)

func TestNewRouterRequiresDependencies(t *testing.T) {
	if _, err := api.NewRouter(api.Dependencies{}); err == nil {
		t.Fatalf("expected error for missing dependencies")
	}

	env := testutil.NewEnv(t)
	if _, err := api.NewRouter(api.Dependencies{DB: env.DB, JWT: env.JWT, Config: env.Config}); err == nil {
		t.Fatalf("expected error for missing services")
	}
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	env := testutil.NewEnv(t)

	rec := env.Request(http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for /health, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected security headers, got %q", got)
	}

	rec = env.Request(http.MethodGet, "/api/jobs", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for public job listing, got %d", rec.Code)
	}

	for _, path := range []string{"/api/me/profile", "/api/notifications", "/api/admin/jobs", "/api/auth/me"} {
		rec = env.Request(http.MethodGet, path, nil, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for %s without token, got %d", path, rec.Code)
		}
	}

	env.CreateUser("Fay", "fay@example.com", "user-password")
	tokens := env.Login(models.PrincipalUser, "fay@example.com", "user-password")

	rec = env.Request(http.MethodGet, "/api/me/profile", nil, tokens.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for profile with token, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.Request(http.MethodGet, "/api/admin/jobs", nil, tokens.AccessToken)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin route with user token, got %d", rec.Code)
	}

	rec = env.Request(http.MethodGet, "/api/notifications/stream", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for stream without token, got %d", rec.Code)
	}
}
