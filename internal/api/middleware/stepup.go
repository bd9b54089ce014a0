package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/thibou/auth-api/internal/api/metrics"
	"github.com/thibou/auth-api/internal/core/domain"
)

// FreshnessChecker decides whether claims are recent enough for a sensitive action.
type FreshnessChecker interface {
	Check(claims *domain.Claims) error
}

// StepUp rejects sensitive requests whose token is older than the gate allows.
// It must run after Auth.
func StepUp(gate FreshnessChecker, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := ClaimsFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
			}
			if err := gate.Check(claims); err != nil {
				metrics.StepUpRejectionsTotal.Inc()
				log.Warn().
					Str("user_id", claims.Subject).
					Str("path", c.Path()).
					Msg("step-up required")
				return err
			}
			return next(c)
		}
	}
}
