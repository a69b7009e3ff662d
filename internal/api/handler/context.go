package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clientportal/client-service/internal/api/middleware"
	"github.com/clientportal/client-service/internal/core/domain"
)

// ctxClaims extracts the session claims injected by the Auth middleware.
// A missing subject means the route was wired without Auth.
func ctxClaims(c echo.Context) (*domain.SessionClaims, error) {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}
