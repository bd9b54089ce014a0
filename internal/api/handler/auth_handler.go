package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/thibou/auth-api/internal/api/metrics"
	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
}

func NewAuthHandler(authService ports.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates a new password account.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "User registration details"
// @Success      201   {object}  sessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sess, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	metrics.RegistrationsTotal.WithLabelValues("password").Inc()
	metrics.TokensIssuedTotal.WithLabelValues(string(domain.TokenTypeUser)).Inc()
	return c.JSON(http.StatusCreated, sessionResponse{
		Message:   "User registered successfully",
		User:      privilegedView(sess.User),
		Token:     sess.Token,
		TokenType: tokenType(sess),
	})
}

// Login authenticates a user with email and password and returns a token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      429   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sess, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	metrics.LoginsTotal.WithLabelValues("password", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.WithLabelValues(string(domain.TokenTypeUser)).Inc()
	return c.JSON(http.StatusOK, sessionResponse{
		Message:   "Login successful",
		User:      privilegedView(sess.User),
		Token:     sess.Token,
		TokenType: tokenType(sess),
	})
}

// SystemToken exchanges the shared system key for a machine token.
//
// @Summary      Issue a system token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      systemTokenRequest  true  "System key"
// @Success      200   {object}  sessionResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/system [post]
func (h *AuthHandler) SystemToken(c echo.Context) error {
	var req systemTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sess, err := h.authService.IssueSystemToken(c.Request().Context(), req.Key)
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.WithLabelValues(string(domain.TokenTypeSystem)).Inc()
	return c.JSON(http.StatusOK, sessionResponse{
		Message:   "System token generated",
		Token:     sess.Token,
		TokenType: tokenType(sess),
	})
}

// Me returns the caller's account and the metadata of the presented token.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  meResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	claims, err := ctxClaims(c)
	if err != nil {
		return err
	}

	user, err := h.authService.Me(c.Request().Context(), claims)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, meResponse{
		User: user.View(domain.ViewPrivileged),
		TokenInfo: tokenInfo{
			Type:      claims.Type,
			IssuedAt:  claims.IssuedAt,
			ExpiresAt: claims.ExpiresAt,
			Issuer:    claims.Issuer,
		},
	})
}

// Reauthenticate proves the caller's identity again and returns a fresh token
// that satisfies the recent-authentication requirement.
//
// @Summary      Re-authenticate
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      reauthRequest  true  "Password or SSO token"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/reauthenticate [post]
func (h *AuthHandler) Reauthenticate(c echo.Context) error {
	claims, err := ctxUserClaims(c)
	if err != nil {
		return err
	}
	var req reauthRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sess, err := h.authService.Reauthenticate(c.Request().Context(), claims, ports.ReauthInput{
		Password: req.Password,
		Provider: domain.Provider(req.Provider),
		Token:    req.Token,
	})
	metrics.LoginsTotal.WithLabelValues("reauth", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.WithLabelValues(string(domain.TokenTypeUser)).Inc()
	return c.JSON(http.StatusOK, sessionResponse{
		Message:   "Re-authentication successful",
		User:      privilegedView(sess.User),
		Token:     sess.Token,
		TokenType: tokenType(sess),
	})
}
