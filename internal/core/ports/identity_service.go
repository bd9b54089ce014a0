package ports

import (
	"context"

	"github.com/thibou/auth-api/internal/core/domain"
)

// IdentityService enforces the rules for attaching and detaching
// authentication methods.
type IdentityService interface {
	Link(ctx context.Context, userID string, provider domain.Provider, ext *domain.ExternalIdentity) (*domain.User, error)
	Unlink(ctx context.Context, userID string, provider domain.Provider) (*domain.User, error)
	SetPassword(ctx context.Context, userID, newPassword string) (*domain.User, error)
	// ResolveSSO finds the owner of ext or registers a new user around it.
	ResolveSSO(ctx context.Context, ext *domain.ExternalIdentity, displayName string) (user *domain.User, created bool, err error)
}

// LinkService is the transport-facing link flow: it verifies the provider token
// before delegating to IdentityService.
type LinkService interface {
	LinkWithToken(ctx context.Context, userID string, provider domain.Provider, rawToken string) (*domain.User, error)
	Unlink(ctx context.Context, userID string, provider domain.Provider) (*domain.User, error)
	LoginURL(req LoginURLRequest) (*LoginURL, error)
}
