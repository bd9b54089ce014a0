package ports

import (
	"context"

	"github.com/thibou/auth-api/internal/core/domain"
)

// ProfileUpdate carries optional profile changes. Nil fields are left untouched.
type ProfileUpdate struct {
	Name        *string
	Email       *string
	NewPassword *string
}

// UserService covers account reads and profile mutations.
type UserService interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*domain.User, error)
	Delete(ctx context.Context, id string) error
}
