package google

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/clientportal/client-service/internal/core/domain"
)

const exchangeTimeout = 10 * time.Second

// CodeExchanger runs the server side of Google's authorization code flow and
// yields the raw ID token, which is then checked by Verifier like any other.
type CodeExchanger struct {
	cfg    *oauth2.Config
	client *http.Client
}

// NewCodeExchanger configures the flow for the openid, email and profile scopes.
func NewCodeExchanger(clientID, clientSecret, redirectURL string) *CodeExchanger {
	return newCodeExchanger(clientID, clientSecret, redirectURL, endpoints.Google, nil)
}

func newCodeExchanger(clientID, clientSecret, redirectURL string, endpoint oauth2.Endpoint, client *http.Client) *CodeExchanger {
	if client == nil {
		client = &http.Client{Timeout: exchangeTimeout}
	}
	return &CodeExchanger{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		client: client,
	}
}

// AuthCodeURL returns the consent page URL carrying state.
func (e *CodeExchanger) AuthCodeURL(state string) string {
	return e.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the ID token issued with it.
// Any failure is reported as domain.ErrVerificationFailed.
func (e *CodeExchanger) Exchange(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", domain.ErrVerificationFailed
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client)
	tok, err := e.cfg.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: code exchange: %v", domain.ErrVerificationFailed, err)
	}

	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return "", fmt.Errorf("%w: no id_token in token response", domain.ErrVerificationFailed)
	}
	return raw, nil
}
