package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

type userService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	audit  ports.AuditRecorder
	log    zerolog.Logger
	now    func() time.Time
}

// NewUserService returns a UserService implementation.
func NewUserService(repo ports.UserRepository, hasher ports.PasswordHasher, audit ports.AuditRecorder, log zerolog.Logger) ports.UserService {
	if audit == nil {
		audit = ports.NopAuditRecorder{}
	}
	return &userService{repo: repo, hasher: hasher, audit: audit, log: log, now: time.Now}
}

func (s *userService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *userService) List(ctx context.Context) ([]*domain.User, error) {
	return s.repo.List(ctx)
}

// UpdateProfile applies name, email and password changes in one conditional write.
func (s *userService) UpdateProfile(ctx context.Context, userID string, in ports.ProfileUpdate) (*domain.User, error) {
	var name, email, hash string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.NewValidationError("name", "must not be empty")
		}
	}
	if in.Email != nil {
		email = domain.NormalizeEmail(*in.Email)
		if email == "" {
			return nil, domain.NewValidationError("email", "must not be empty")
		}
		other, err := s.repo.FindByEmail(ctx, email)
		switch {
		case err == nil && other.ID != userID:
			return nil, domain.ErrEmailTaken
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			return nil, err
		}
	}
	if in.NewPassword != nil {
		if *in.NewPassword == "" {
			return nil, domain.NewValidationError("newPassword", "must not be empty")
		}
		h, err := s.hasher.Hash(*in.NewPassword)
		if err != nil {
			return nil, err
		}
		hash = h
	}

	var emailChanged bool
	u, err := updateUser(ctx, s.repo, s.log, s.now, userID, func(u *domain.User) error {
		emailChanged = false
		if name != "" {
			u.Name = name
		}
		if email != "" && email != u.Email {
			u.Email = email
			emailChanged = true
		}
		if hash != "" {
			u.SetPasswordHash(hash)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if emailChanged {
		s.log.Info().Str("user_id", userID).Msg("email changed")
		s.audit.Record(domain.AuthEvent{Type: domain.EventEmailChanged, UserID: userID, At: now})
	}
	if hash != "" {
		s.log.Info().Str("user_id", userID).Msg("password set")
		s.audit.Record(domain.AuthEvent{Type: domain.EventPasswordSet, UserID: userID, Method: "password", At: now})
	}
	return u, nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("user_id", id).Msg("user deleted")
	s.audit.Record(domain.AuthEvent{Type: domain.EventUserDeleted, UserID: id, At: s.now().UTC()})
	return nil
}
