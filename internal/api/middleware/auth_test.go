package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/infrastructure/session"
)

func newIssuer(t *testing.T, now func() time.Time) *session.JWTIssuer {
	t.Helper()
	opts := []session.Option{}
	if now != nil {
		opts = append(opts, session.WithClock(now))
	}
	iss, err := session.NewJWTIssuer("secret", time.Hour, opts...)
	if err != nil {
		t.Fatalf("NewJWTIssuer: %v", err)
	}
	return iss
}

func runAuth(t *testing.T, sessions SessionVerifier, header string) (*httptest.ResponseRecorder, *domain.SessionClaims, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got *domain.SessionClaims
	err := Auth(sessions)(func(c echo.Context) error {
		got, _ = Claims(c)
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, got, err
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	iss := newIssuer(t, nil)
	token, _, err := iss.Issue(&domain.Client{ID: "c1", Email: "ada@example.com", FirstName: "Ada"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec, claims, err := runAuth(t, iss, "Bearer "+token)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if claims == nil || claims.Subject != "c1" || claims.Email != "ada@example.com" {
		t.Fatalf("claims not set: %+v", claims)
	}
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	iss := newIssuer(t, nil)
	past := newIssuer(t, func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, _, _ := past.Issue(&domain.Client{ID: "c1"})

	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"empty token":    "Bearer ",
		"garbage":        "Bearer not-a-token",
		"expired":        "Bearer " + expired,
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := runAuth(t, iss, header)
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %v", err)
			}
		})
	}
}

func TestSelfOnly(t *testing.T) {
	tests := []struct {
		name    string
		claims  *domain.SessionClaims
		id      string
		wantErr error
		want401 bool
	}{
		{name: "own profile", claims: &domain.SessionClaims{Subject: "c1"}, id: "c1"},
		{name: "other profile", claims: &domain.SessionClaims{Subject: "c1"}, id: "c2", wantErr: domain.ErrForbidden},
		{name: "no claims", id: "c1", want401: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
			c.SetParamNames("id")
			c.SetParamValues(tt.id)
			if tt.claims != nil {
				SetClaims(c, tt.claims)
			}

			called := false
			err := SelfOnly("id")(func(echo.Context) error {
				called = true
				return nil
			})(c)

			switch {
			case tt.want401:
				var he *echo.HTTPError
				if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
					t.Fatalf("expected 401, got %v", err)
				}
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			default:
				if err != nil || !called {
					t.Fatalf("expected next to run, err=%v", err)
				}
			}
			if (tt.wantErr != nil || tt.want401) && called {
				t.Fatalf("next must not run")
			}
		})
	}
}
