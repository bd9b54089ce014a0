package ports

import (
	"context"

	"github.com/thibou/auth-api/internal/core/domain"
)

// UserRepository is the persistence boundary for users. Implementations enforce
// email and (provider, providerId) uniqueness atomically; the core never relies
// on its own pre-checks for correctness.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// FindByEmail expects a normalized email.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByProviderIdentity(ctx context.Context, provider domain.Provider, providerID string) (*domain.User, error)
	// Insert assigns ID and Version on the passed user.
	// Returns domain.ErrEmailTaken or domain.ErrIdentityLinkedElsewhere on uniqueness violations.
	Insert(ctx context.Context, user *domain.User) error
	// ConditionalUpdate persists user only if the stored version equals expectedVersion,
	// and bumps user.Version on success. Returns domain.ErrVersionMismatch when the
	// record changed underneath the caller.
	ConditionalUpdate(ctx context.Context, user *domain.User, expectedVersion int64) error
	List(ctx context.Context) ([]*domain.User, error)
	Delete(ctx context.Context, id string) error
}
