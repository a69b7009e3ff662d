package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clientportal/client-service/internal/core/domain"
	"github.com/clientportal/client-service/internal/core/ports"
)

const (
	stateCookie   = "oauth_state"
	stateLifetime = 10 * time.Minute
)

type AuthHandler struct {
	authService ports.AuthService
	// codes is nil when the browser redirect flow is not configured.
	codes        ports.AuthCodeExchanger
	secureCookie bool
}

func NewAuthHandler(authService ports.AuthService, codes ports.AuthCodeExchanger, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, codes: codes, secureCookie: secureCookie}
}

// Login authenticates a client with email and password.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	sess, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSessionResponse(sess))
}

// GoogleVerify logs in with a Google ID token obtained by the client,
// registering the account on first use.
//
// @Summary      Login with a Google ID token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      googleVerifyRequest  true  "Google ID token"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  errorBody
// @Failure      401   {object}  errorBody
// @Router       /auth/google/verify [post]
func (h *AuthHandler) GoogleVerify(c echo.Context) error {
	var req googleVerifyRequest
	if err := c.Bind(&req); err != nil {
		return fmt.Errorf("%w: invalid payload", domain.ErrInvalidInput)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	sess, err := h.authService.LoginWithExternalToken(c.Request().Context(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSessionResponse(sess))
}

// GoogleRedirect starts the authorization code flow.
//
// @Summary      Start Google sign-in
// @Tags         auth
// @Success      302
// @Failure      404  {object}  errorBody
// @Router       /auth/google [get]
func (h *AuthHandler) GoogleRedirect(c echo.Context) error {
	if h.codes == nil {
		return echo.NewHTTPError(http.StatusNotFound, "google sign-in is not configured")
	}

	state, err := newState()
	if err != nil {
		return fmt.Errorf("generate oauth state: %w", err)
	}
	c.SetCookie(&http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   int(stateLifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	return c.Redirect(http.StatusFound, h.codes.AuthCodeURL(state))
}

// GoogleCallback completes the authorization code flow.
//
// @Summary      Google sign-in callback
// @Tags         auth
// @Produce      json
// @Param        state  query     string  true  "Opaque state issued by /auth/google"
// @Param        code   query     string  true  "Authorization code"
// @Success      200    {object}  sessionResponse
// @Failure      401    {object}  errorBody
// @Router       /auth/google/callback [get]
func (h *AuthHandler) GoogleCallback(c echo.Context) error {
	if h.codes == nil {
		return echo.NewHTTPError(http.StatusNotFound, "google sign-in is not configured")
	}

	cookie, err := c.Cookie(stateCookie)
	c.SetCookie(&http.Cookie{Name: stateCookie, Path: "/api/auth/google", MaxAge: -1, HttpOnly: true, Secure: h.secureCookie})
	if err != nil || cookie.Value == "" ||
		subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(c.QueryParam("state"))) != 1 {
		return domain.ErrInvalidCredentials
	}

	rawToken, err := h.codes.Exchange(c.Request().Context(), c.QueryParam("code"))
	if err != nil {
		return domain.ErrInvalidCredentials
	}

	sess, err := h.authService.LoginWithExternalToken(c.Request().Context(), rawToken)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSessionResponse(sess))
}

// Me returns the identity asserted by the caller's session.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  errorBody
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, meResponse{
		ID:        claims.Subject,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		IssuedAt:  claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
	})
}

func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
