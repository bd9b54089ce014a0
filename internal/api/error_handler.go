package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/thibou/auth-api/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`

	// Step-up rejections only.
	RequiresRecentAuth bool  `json:"requiresRecentAuth,omitempty"`
	MaxAgeSeconds      int64 `json:"maxAgeSeconds,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain error kinds to their HTTP status codes.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "code": "<code>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message), Code: httpCode(he.Code)}
	}

	var stepUp *domain.StepUpRequiredError
	if errors.As(err, &stepUp) {
		return http.StatusForbidden, errorResponse{
			Error:              stepUp.Error(),
			Code:               "recent_auth_required",
			Field:              "recentAuth",
			RequiresRecentAuth: true,
			MaxAgeSeconds:      int64(stepUp.MaxAge.Seconds()),
		}
	}

	var tokenErr *domain.TokenError
	if errors.As(err, &tokenErr) {
		return http.StatusUnauthorized, errorResponse{Error: tokenErr.Error(), Code: "token_" + string(tokenErr.Reason)}
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, errorResponse{Error: ve.Message, Code: "validation_error", Field: ve.Field}
	}

	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "validation_error"}
	case errors.Is(err, domain.ErrAuthentication):
		return http.StatusUnauthorized, errorResponse{Error: authMessage(err), Code: "authentication_failed"}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "conflict"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"}
	case errors.Is(err, domain.ErrInvariantViolation):
		return http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Code: "invariant_violation"}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "internal_error"}
}

// authMessage keeps credential failures indistinguishable. Only the SSO and
// system-key messages are allowed through since they name no account.
func authMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidSSOToken):
		return domain.ErrInvalidSSOToken.Error()
	case errors.Is(err, domain.ErrInvalidSystemKey):
		return domain.ErrInvalidSystemKey.Error()
	default:
		return domain.ErrInvalidCredentials.Error()
	}
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= 500 {
			return "internal_error"
		}
		return "http_error"
	}
}
