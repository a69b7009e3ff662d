package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"golang.org/x/oauth2"

	"github.com/clientportal/client-service/internal/core/domain"
)

func tokenServer(t *testing.T, body map[string]any, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
}

func newTestExchanger(srv *httptest.Server) *CodeExchanger {
	return newCodeExchanger("cid", "secret", "http://localhost/callback", oauth2.Endpoint{
		AuthURL:  srv.URL + "/auth",
		TokenURL: srv.URL + "/token",
	}, srv.Client())
}

func TestCodeExchanger_AuthCodeURL(t *testing.T) {
	e := NewCodeExchanger("cid", "secret", "http://localhost/callback")
	u, err := url.Parse(e.AuthCodeURL("state-123"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if q.Get("state") != "state-123" || q.Get("client_id") != "cid" {
		t.Fatalf("unexpected query: %v", q)
	}
	if q.Get("scope") != "openid email profile" {
		t.Fatalf("unexpected scope %q", q.Get("scope"))
	}
	if q.Get("redirect_uri") != "http://localhost/callback" {
		t.Fatalf("unexpected redirect_uri %q", q.Get("redirect_uri"))
	}
}

func TestCodeExchanger_ExchangeReturnsIDToken(t *testing.T) {
	srv := tokenServer(t, map[string]any{
		"access_token": "at",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     "header.payload.sig",
	}, http.StatusOK)
	defer srv.Close()

	raw, err := newTestExchanger(srv).Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if raw != "header.payload.sig" {
		t.Fatalf("unexpected id token %q", raw)
	}
}

func TestCodeExchanger_Failures(t *testing.T) {
	srv := tokenServer(t, map[string]any{"access_token": "at", "token_type": "Bearer"}, http.StatusOK)
	defer srv.Close()
	e := newTestExchanger(srv)

	for name, code := range map[string]string{
		"empty code":  "",
		"bad code":    "stolen",
		"no id token": "good-code",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := e.Exchange(context.Background(), code); !errors.Is(err, domain.ErrVerificationFailed) {
				t.Fatalf("expected ErrVerificationFailed, got %v", err)
			}
		})
	}
}
