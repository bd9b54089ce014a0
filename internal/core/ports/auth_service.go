package ports

import (
	"context"

	"github.com/thibou/auth-api/internal/core/domain"
)

// RegisterInput carries a password registration. Password is optional.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// SSOLoginInput carries an SSO sign-in attempt.
type SSOLoginInput struct {
	Provider domain.Provider
	Token    string
	// Name is the display name the client collected; it wins over the provider's.
	Name string
}

// ReauthInput re-proves the identity behind an existing session with either
// a password or an SSO token.
type ReauthInput struct {
	Password string
	Provider domain.Provider
	Token    string
}

// Session is the result of a successful authentication.
type Session struct {
	User    *domain.User
	Token   string
	Claims  *domain.Claims
	Created bool
}

// AuthService exposes the authentication flows.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	LoginSSO(ctx context.Context, in SSOLoginInput) (*Session, error)
	Reauthenticate(ctx context.Context, claims *domain.Claims, in ReauthInput) (*Session, error)
	IssueSystemToken(ctx context.Context, key string) (*Session, error)
	Me(ctx context.Context, claims *domain.Claims) (*domain.User, error)
}
