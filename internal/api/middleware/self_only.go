package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clientportal/client-service/internal/core/domain"
)

// SelfOnly restricts a route to the client whose id appears in the named
// path parameter. It must run after Auth.
func SelfOnly(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := Claims(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			if c.Param(param) != claims.Subject {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
