package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

// maxUpdateAttempts bounds the re-read loop on a lost compare-and-swap.
const maxUpdateAttempts = 3

// updateUser loads the user, applies fn to the fresh copy and commits it with a
// version-conditional write. When another request committed first, the user is
// re-read and fn runs again against the new state, so invariant checks inside fn
// always see the method set that is actually being replaced.
func updateUser(
	ctx context.Context,
	repo ports.UserRepository,
	log zerolog.Logger,
	now func() time.Time,
	userID string,
	fn func(u *domain.User) error,
) (*domain.User, error) {
	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		u, err := repo.FindByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		expected := u.Version
		if err := fn(u); err != nil {
			return nil, err
		}
		u.UpdatedAt = now().UTC()

		err = repo.ConditionalUpdate(ctx, u, expected)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, domain.ErrVersionMismatch) {
			return nil, err
		}
		log.Debug().Str("user_id", userID).Int("attempt", attempt).Msg("user changed concurrently, re-reading")
	}
	return nil, domain.ErrConcurrentModification
}
