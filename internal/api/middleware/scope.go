package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thibou/auth-api/internal/core/domain"
)

// RequireScope lets the request through when the token grants any of the
// required scopes. It must run after Auth.
func RequireScope(required ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			if !domain.HasScope(claims.Scopes, required...) {
				return echo.NewHTTPError(http.StatusForbidden, "insufficient scope")
			}
			return next(c)
		}
	}
}
