package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thibou/auth-api/internal/api/middleware"
	"github.com/thibou/auth-api/internal/core/domain"
)

// ctxClaims extracts the claims injected by the Auth middleware. Missing
// claims mean the route was wired without Auth; the caller gets a 401.
func ctxClaims(c echo.Context) (*domain.Claims, error) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}

// ctxUserClaims is ctxClaims restricted to end-user tokens.
func ctxUserClaims(c echo.Context) (*domain.Claims, error) {
	claims, err := ctxClaims(c)
	if err != nil {
		return nil, err
	}
	if claims.IsSystem() {
		return nil, echo.NewHTTPError(http.StatusForbidden, "system tokens cannot perform this action")
	}
	return claims, nil
}

// bindAndValidate decodes the request body into req and runs the validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	return c.Validate(req)
}

func parseProvider(c echo.Context) (domain.Provider, error) {
	p := domain.Provider(c.Param("provider"))
	if !p.IsSupported() {
		return "", domain.ErrUnsupportedProvider
	}
	return p, nil
}
