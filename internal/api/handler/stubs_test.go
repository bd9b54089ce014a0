package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/thibou/auth-api/internal/api/middleware"
	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, in ports.RegisterInput) (*ports.Session, error)
	loginFn    func(ctx context.Context, email, password string) (*ports.Session, error)
	ssoFn      func(ctx context.Context, in ports.SSOLoginInput) (*ports.Session, error)
	reauthFn   func(ctx context.Context, claims *domain.Claims, in ports.ReauthInput) (*ports.Session, error)
	systemFn   func(ctx context.Context, key string) (*ports.Session, error)
	meFn       func(ctx context.Context, claims *domain.Claims) (*domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.Session, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAuthService) Login(ctx context.Context, email, password string) (*ports.Session, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubAuthService) LoginSSO(ctx context.Context, in ports.SSOLoginInput) (*ports.Session, error) {
	return s.ssoFn(ctx, in)
}

func (s *stubAuthService) Reauthenticate(ctx context.Context, claims *domain.Claims, in ports.ReauthInput) (*ports.Session, error) {
	return s.reauthFn(ctx, claims, in)
}

func (s *stubAuthService) IssueSystemToken(ctx context.Context, key string) (*ports.Session, error) {
	return s.systemFn(ctx, key)
}

func (s *stubAuthService) Me(ctx context.Context, claims *domain.Claims) (*domain.User, error) {
	return s.meFn(ctx, claims)
}

type stubLinkService struct {
	linkFn     func(ctx context.Context, userID string, provider domain.Provider, token string) (*domain.User, error)
	unlinkFn   func(ctx context.Context, userID string, provider domain.Provider) (*domain.User, error)
	loginURLFn func(req ports.LoginURLRequest) (*ports.LoginURL, error)
}

func (s *stubLinkService) LinkWithToken(ctx context.Context, userID string, provider domain.Provider, token string) (*domain.User, error) {
	return s.linkFn(ctx, userID, provider, token)
}

func (s *stubLinkService) Unlink(ctx context.Context, userID string, provider domain.Provider) (*domain.User, error) {
	return s.unlinkFn(ctx, userID, provider)
}

func (s *stubLinkService) LoginURL(req ports.LoginURLRequest) (*ports.LoginURL, error) {
	return s.loginURLFn(req)
}

type stubUserService struct {
	getFn    func(ctx context.Context, id string) (*domain.User, error)
	listFn   func(ctx context.Context) ([]*domain.User, error)
	updateFn func(ctx context.Context, id string, in ports.ProfileUpdate) (*domain.User, error)
	deleteFn func(ctx context.Context, id string) error
}

func (s *stubUserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.getFn(ctx, id)
}

func (s *stubUserService) List(ctx context.Context) ([]*domain.User, error) {
	return s.listFn(ctx)
}

func (s *stubUserService) UpdateProfile(ctx context.Context, id string, in ports.ProfileUpdate) (*domain.User, error) {
	return s.updateFn(ctx, id, in)
}

func (s *stubUserService) Delete(ctx context.Context, id string) error {
	return s.deleteFn(ctx, id)
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

// newRequest builds a context for method and path with an optional JSON body.
func newRequest(e *echo.Echo, method, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func userClaims(id string, role domain.Role) *domain.Claims {
	return &domain.Claims{
		Subject:  id,
		Role:     role,
		Scopes:   domain.DefaultScopes(role),
		Type:     domain.TokenTypeUser,
		Issuer:   "auth-api",
		IssuedAt: time.Now(),
	}
}

func withClaims(c echo.Context, claims *domain.Claims) echo.Context {
	middleware.SetClaims(c, claims)
	return c
}

func sampleUser() *domain.User {
	return &domain.User{
		ID:           "u1",
		Name:         "Alice",
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$secret",
		Role:         domain.RoleUser,
		Scopes:       domain.DefaultScopes(domain.RoleUser),
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
