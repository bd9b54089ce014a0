package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/thibou/auth-api/internal/api/metrics"
	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

const defaultPlatform = "principal"

// SSOHandler serves the single-sign-on routes.
type SSOHandler struct {
	authService ports.AuthService
	links       ports.LinkService
}

func NewSSOHandler(authService ports.AuthService, links ports.LinkService) *SSOHandler {
	return &SSOHandler{authService: authService, links: links}
}

// LoginURL builds the provider authorize URL the client should open.
//
// @Summary      SSO authorize URL
// @Tags         sso
// @Produce      json
// @Param        provider      path   string  true   "SSO provider"  Enums(apple)
// @Param        redirect_uri  query  string  true   "Redirect URI registered with the provider"
// @Param        state         query  string  false  "Opaque state, generated when absent"
// @Param        platform      query  string  false  "Client platform (ios selects the iOS client id)"
// @Success      200  {object}  loginURLResponse
// @Failure      400  {object}  errorResponse
// @Router       /sso/{provider} [get]
func (h *SSOHandler) LoginURL(c echo.Context) error {
	provider, err := parseProvider(c)
	if err != nil {
		return err
	}
	redirectURI := c.QueryParam("redirect_uri")
	if redirectURI == "" {
		return domain.NewValidationError("redirect_uri", "query parameter is required")
	}
	platform := c.QueryParam("platform")
	if platform == "" {
		platform = defaultPlatform
	}

	url, err := h.links.LoginURL(ports.LoginURLRequest{
		Provider:    provider,
		RedirectURI: redirectURI,
		State:       c.QueryParam("state"),
		Platform:    platform,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginURLResponse{
		Provider:    provider,
		Platform:    platform,
		LoginURL:    url.URL,
		State:       url.State,
		ClientID:    url.ClientID,
		RedirectURI: redirectURI,
	})
}

// Login signs in with a provider identity token, registering the account on
// first use.
//
// @Summary      SSO login
// @Tags         sso
// @Accept       json
// @Produce      json
// @Param        provider  path  string           true  "SSO provider"  Enums(apple)
// @Param        body      body  ssoLoginRequest  true  "Provider identity token"
// @Success      200  {object}  sessionResponse
// @Success      201  {object}  sessionResponse
// @Failure      401  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /sso/{provider} [post]
func (h *SSOHandler) Login(c echo.Context) error {
	provider, err := parseProvider(c)
	if err != nil {
		return err
	}
	var req ssoLoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	sess, err := h.authService.LoginSSO(c.Request().Context(), ports.SSOLoginInput{
		Provider: provider,
		Token:    req.Token,
		Name:     req.displayName(),
	})
	metrics.LoginsTotal.WithLabelValues("sso", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}

	metrics.TokensIssuedTotal.WithLabelValues(string(domain.TokenTypeUser)).Inc()
	status := http.StatusOK
	if sess.Created {
		metrics.RegistrationsTotal.WithLabelValues("sso").Inc()
		status = http.StatusCreated
	}
	return c.JSON(status, sessionResponse{
		Message:   "SSO authentication successful",
		User:      privilegedView(sess.User),
		Token:     sess.Token,
		TokenType: tokenType(sess),
		IsNewUser: sess.Created,
	})
}

// Link attaches a provider identity to the caller's account.
//
// @Summary      Link SSO provider
// @Tags         sso
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path  string          true  "SSO provider"  Enums(apple)
// @Param        body      body  ssoLinkRequest  true  "Provider identity token"
// @Success      200  {object}  userResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /sso/{provider}/link [post]
func (h *SSOHandler) Link(c echo.Context) error {
	claims, err := ctxUserClaims(c)
	if err != nil {
		return err
	}
	provider, err := parseProvider(c)
	if err != nil {
		return err
	}
	var req ssoLinkRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.links.LinkWithToken(c.Request().Context(), claims.Subject, provider, req.Token)
	metrics.IdentityLinksTotal.WithLabelValues(string(provider), "link", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, userResponse{
		Message: "SSO provider linked successfully",
		User:    user.View(domain.ViewPrivileged),
	})
}

// Unlink detaches a provider identity from the caller's account.
//
// @Summary      Unlink SSO provider
// @Tags         sso
// @Produce      json
// @Security     BearerAuth
// @Param        provider  path  string  true  "SSO provider"  Enums(apple)
// @Success      200  {object}  userResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /sso/{provider}/unlink [delete]
func (h *SSOHandler) Unlink(c echo.Context) error {
	claims, err := ctxUserClaims(c)
	if err != nil {
		return err
	}
	provider, err := parseProvider(c)
	if err != nil {
		return err
	}

	user, err := h.links.Unlink(c.Request().Context(), claims.Subject, provider)
	metrics.IdentityLinksTotal.WithLabelValues(string(provider), "unlink", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, userResponse{
		Message: "SSO provider unlinked successfully",
		User:    user.View(domain.ViewPrivileged),
	})
}

// displayName prefers the full name, then first and last name joined.
func (r ssoLoginRequest) displayName() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}
