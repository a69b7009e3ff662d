package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/clientportal/client-service/internal/api/handler"
	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/core/ports"
	"github.com/clientportal/client-service/internal/infrastructure/session"
)

type routerAuth struct {
	ports.AuthService
}

func (routerAuth) Login(context.Context, string, string) (*domain.Session, error) {
	return nil, domain.ErrInvalidCredentials
}

type routerClients struct {
	ports.ClientService
}

func (routerClients) Get(_ context.Context, id string) (*domain.PublicProfile, error) {
	if id == "gone" {
		return nil, domain.ErrClientNotFound
	}
	return &domain.PublicProfile{ID: id, Email: id + "@example.com"}, nil
}

func (routerClients) Update(context.Context, string, ports.UpdateClientInput) (*domain.PublicProfile, error) {
	return nil, domain.ErrStorageUnavailable
}

func newTestRouter(t *testing.T, googleLogin bool) (http.Handler, *session.JWTIssuer) {
	t.Helper()
	issuer, err := session.NewJWTIssuer("router-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTIssuer: %v", err)
	}

	uploads := t.TempDir()
	if err := os.WriteFile(filepath.Join(uploads, "logo.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("write upload: %v", err)
	}

	e := NewRouter(Dependencies{
		Log:              zerolog.Nop(),
		Auth:             routerAuth{},
		Clients:          routerClients{},
		Sessions:         issuer,
		Health:           handler.NewHealthHandlerWithChecks(nil),
		GoogleTokenLogin: googleLogin,
		UploadsDir:       uploads,
		MaxAssetBytes:    1024,
		Registerer:       prometheus.NewRegistry(),
	})
	return e, issuer
}

func bearer(t *testing.T, issuer *session.JWTIssuer, id string) string {
	t.Helper()
	tok, _, err := issuer.Issue(&domain.Client{ID: id, Email: id + "@example.com"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return "Bearer " + tok
}

func TestRouter_Routes(t *testing.T) {
	router, issuer := newTestRouter(t, false)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		auth     string
		wantCode int
	}{
		{name: "liveness", method: http.MethodGet, path: "/health", wantCode: http.StatusOK},
		{name: "readiness", method: http.MethodGet, path: "/health/ready", wantCode: http.StatusOK},
		{name: "stored asset", method: http.MethodGet, path: "/uploads/logo.png", wantCode: http.StatusOK},
		{name: "login rejected", method: http.MethodPost, path: "/api/auth/login",
			body: `{"email":"a@example.com","password":"nope"}`, wantCode: http.StatusUnauthorized},
		{name: "login invalid payload", method: http.MethodPost, path: "/api/auth/login",
			body: `{"email":"a@example.com"}`, wantCode: http.StatusBadRequest},
		{name: "google verify disabled", method: http.MethodPost, path: "/api/auth/google/verify",
			body: `{"token":"x"}`, wantCode: http.StatusNotFound},
		{name: "google redirect unconfigured", method: http.MethodGet, path: "/api/auth/google", wantCode: http.StatusNotFound},
		{name: "me without session", method: http.MethodGet, path: "/api/auth/me", wantCode: http.StatusUnauthorized},
		{name: "me with session", method: http.MethodGet, path: "/api/auth/me", auth: "c1", wantCode: http.StatusOK},
		{name: "profile without session", method: http.MethodGet, path: "/api/clients/c1", wantCode: http.StatusUnauthorized},
		{name: "own profile", method: http.MethodGet, path: "/api/clients/c1", auth: "c1", wantCode: http.StatusOK},
		{name: "other profile", method: http.MethodGet, path: "/api/clients/c2", auth: "c1", wantCode: http.StatusForbidden},
		{name: "deleted profile", method: http.MethodGet, path: "/api/clients/gone", auth: "gone", wantCode: http.StatusNotFound},
		{name: "other delete", method: http.MethodDelete, path: "/api/clients/c2", auth: "c1", wantCode: http.StatusForbidden},
		{name: "storage outage", method: http.MethodPatch, path: "/api/clients/c1", auth: "c1",
			body: `{"first_name":"Ada"}`, wantCode: http.StatusServiceUnavailable},
		{name: "list without session", method: http.MethodGet, path: "/api/clients", wantCode: http.StatusUnauthorized},
		{name: "register invalid", method: http.MethodPost, path: "/api/clients", body: `{}`, wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			if tt.auth != "" {
				req.Header.Set("Authorization", bearer(t, issuer, tt.auth))
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_GoogleVerifyEnabled(t *testing.T) {
	router, _ := newTestRouter(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/google/verify", strings.NewReader(`{"token":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an empty token once enabled, got %d", rec.Code)
	}
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, false)

	for _, path := range []string{"/metrics", "/swagger/doc.json"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestRouter_ErrorsDoNotLeakInternals(t *testing.T) {
	router, _ := newTestRouter(t, false)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"a@example.com","password":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), domain.ErrInvalidCredentials.Error()) {
		t.Fatalf("expected generic credential error, got %s", rec.Body.String())
	}
}
