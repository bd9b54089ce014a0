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

const defaultDisplayName = "User"

type identityService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	audit  ports.AuditRecorder
	log    zerolog.Logger
	now    func() time.Time
}

// NewIdentityService returns the linking engine.
func NewIdentityService(
	repo ports.UserRepository,
	hasher ports.PasswordHasher,
	audit ports.AuditRecorder,
	log zerolog.Logger,
) ports.IdentityService {
	return newIdentityService(repo, hasher, audit, log)
}

func newIdentityService(repo ports.UserRepository, hasher ports.PasswordHasher, audit ports.AuditRecorder, log zerolog.Logger) *identityService {
	if audit == nil {
		audit = ports.NopAuditRecorder{}
	}
	return &identityService{repo: repo, hasher: hasher, audit: audit, log: log, now: time.Now}
}

// Link attaches a verified external identity to userID.
func (s *identityService) Link(ctx context.Context, userID string, provider domain.Provider, ext *domain.ExternalIdentity) (*domain.User, error) {
	if !provider.IsSupported() {
		return nil, domain.ErrUnsupportedProvider
	}
	if ext == nil || ext.ProviderID == "" || ext.Provider != provider {
		return nil, domain.ErrInvalidSSOToken
	}

	u, err := updateUser(ctx, s.repo, s.log, s.now, userID, func(u *domain.User) error {
		if _, linked := u.Identity(provider); linked {
			return domain.ErrProviderAlreadyLinked
		}
		owner, err := s.repo.FindByProviderIdentity(ctx, provider, ext.ProviderID)
		switch {
		case err == nil && owner.ID != u.ID:
			return domain.ErrIdentityLinkedElsewhere
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			return err
		}
		return u.LinkIdentity(provider, ext.ProviderID, s.now().UTC())
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("provider", string(provider)).Msg("link identity rejected")
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Str("provider", string(provider)).Msg("identity linked")
	s.audit.Record(domain.AuthEvent{Type: domain.EventLinked, UserID: userID, Method: "sso", Provider: provider, At: s.now().UTC()})
	return u, nil
}

// Unlink detaches the identity for provider unless it is the last way to sign in.
func (s *identityService) Unlink(ctx context.Context, userID string, provider domain.Provider) (*domain.User, error) {
	if !provider.IsSupported() {
		return nil, domain.ErrUnsupportedProvider
	}

	u, err := updateUser(ctx, s.repo, s.log, s.now, userID, func(u *domain.User) error {
		return u.UnlinkIdentity(provider)
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("provider", string(provider)).Msg("unlink identity rejected")
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Str("provider", string(provider)).Msg("identity unlinked")
	s.audit.Record(domain.AuthEvent{Type: domain.EventUnlinked, UserID: userID, Method: "sso", Provider: provider, At: s.now().UTC()})
	return u, nil
}

// SetPassword hashes and stores a new password. Always legal.
func (s *identityService) SetPassword(ctx context.Context, userID, newPassword string) (*domain.User, error) {
	if newPassword == "" {
		return nil, domain.NewValidationError("newPassword", "must not be empty")
	}
	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, err
	}

	u, err := updateUser(ctx, s.repo, s.log, s.now, userID, func(u *domain.User) error {
		u.SetPasswordHash(hash)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", userID).Msg("password set")
	s.audit.Record(domain.AuthEvent{Type: domain.EventPasswordSet, UserID: userID, Method: "password", At: s.now().UTC()})
	return u, nil
}

// ResolveSSO returns the owner of ext, or registers a new passwordless user
// around it. An email-only match is refused instead of merged.
func (s *identityService) ResolveSSO(ctx context.Context, ext *domain.ExternalIdentity, displayName string) (*domain.User, bool, error) {
	if ext == nil || ext.ProviderID == "" {
		return nil, false, domain.ErrInvalidSSOToken
	}

	owner, err := s.repo.FindByProviderIdentity(ctx, ext.Provider, ext.ProviderID)
	if err == nil {
		u, err := s.touchLogin(ctx, owner.ID, ext)
		return u, false, err
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	email := domain.NormalizeEmail(ext.Email)
	if email != "" {
		_, err := s.repo.FindByEmail(ctx, email)
		if err == nil {
			s.log.Warn().Str("provider", string(ext.Provider)).Msg("sso sign-in matches an account by email only")
			return nil, false, domain.ErrAccountExistsOtherMethod
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return nil, false, err
		}
	}

	now := s.now().UTC()
	u := &domain.User{
		Name:      pickDisplayName(displayName, ext.DisplayName),
		Email:     email,
		Role:      domain.RoleUser,
		Scopes:    domain.DefaultScopes(domain.RoleUser),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.LinkIdentity(ext.Provider, ext.ProviderID, now); err != nil {
		return nil, false, err
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		if !errors.Is(err, domain.ErrEmailTaken) && !errors.Is(err, domain.ErrIdentityLinkedElsewhere) {
			return nil, false, err
		}
		// A concurrent first sign-in with the same identity won the insert.
		if winner, ferr := s.repo.FindByProviderIdentity(ctx, ext.Provider, ext.ProviderID); ferr == nil {
			u, err := s.touchLogin(ctx, winner.ID, ext)
			return u, false, err
		}
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, false, domain.ErrAccountExistsOtherMethod
		}
		return nil, false, err
	}

	s.log.Info().Str("user_id", u.ID).Str("provider", string(ext.Provider)).Msg("user registered via sso")
	s.audit.Record(domain.AuthEvent{Type: domain.EventRegistered, UserID: u.ID, Method: "sso", Provider: ext.Provider, At: now})
	return u, true, nil
}

// touchLogin stamps the last sign-in on the identity userID already owns.
func (s *identityService) touchLogin(ctx context.Context, userID string, ext *domain.ExternalIdentity) (*domain.User, error) {
	return updateUser(ctx, s.repo, s.log, s.now, userID, func(u *domain.User) error {
		if !u.Owns(ext.Provider, ext.ProviderID) {
			return domain.ErrConcurrentModification
		}
		u.TouchLogin(ext.Provider, s.now().UTC())
		return nil
	})
}

func pickDisplayName(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return defaultDisplayName
}
