package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clientportal/client-service/internal/core/domain"
)

// claimsKey is the echo context key holding *domain.SessionClaims.
const claimsKey = "session_claims"

// SessionVerifier validates a session credential. ports.SessionIssuer
// satisfies it.
type SessionVerifier interface {
	Verify(token string) (*domain.SessionClaims, error)
}

// Auth validates the bearer session credential and injects its claims into
// the context. Expired and tampered credentials are rejected alike.
func Auth(sessions SessionVerifier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := sessions.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// Claims returns the session claims set by Auth.
func Claims(c echo.Context) (*domain.SessionClaims, bool) {
	claims, ok := c.Get(claimsKey).(*domain.SessionClaims)
	return claims, ok && claims != nil && claims.Subject != ""
}

// SetClaims stores claims the way Auth does. Used by handler tests.
func SetClaims(c echo.Context, claims *domain.SessionClaims) {
	c.Set(claimsKey, claims)
}
