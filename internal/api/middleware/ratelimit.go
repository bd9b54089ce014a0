package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/thibou/auth-api/internal/api/metrics"
	"github.com/thibou/auth-api/internal/core/ports"
)

// RateLimit caps requests per client IP on a named route. A limiter failure
// is logged and the request passes.
func RateLimit(limiter ports.RateLimiter, route string, limit int, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if limiter == nil || limit <= 0 {
			return next
		}
		return func(c echo.Context) error {
			res, err := limiter.Allow(c.Request().Context(), route, c.RealIP(), limit)
			if err != nil {
				log.Error().Err(err).Str("route", route).Msg("rate limiter unavailable, allowing request")
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

			if !res.Allowed {
				metrics.RateLimitRejectionsTotal.WithLabelValues(route).Inc()
				h.Set("Retry-After", strconv.Itoa(int(res.ResetIn.Seconds())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, try again later")
			}
			return next(c)
		}
	}
}
