package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

// dummyHash is verified against when the account is missing or has no password
// so both paths cost the same.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHRzb21lc2FsdA$RdescudvJCsgt3ub+b+dWRWJTmaaJObG"

// AuthDeps groups the collaborators of AuthService.
type AuthDeps struct {
	Users      ports.UserRepository
	Identities ports.IdentityService
	Hasher     ports.PasswordHasher
	Verifier   ports.IdentityVerifier
	Tokens     *TokenService
	Audit      ports.AuditRecorder
	SystemKey  string
}

// AuthService implements password, SSO and system authentication.
type AuthService struct {
	users      ports.UserRepository
	identities ports.IdentityService
	hasher     ports.PasswordHasher
	verifier   ports.IdentityVerifier
	tokens     *TokenService
	audit      ports.AuditRecorder
	systemKey  string
	log        zerolog.Logger
	now        func() time.Time
}

func NewAuthService(deps AuthDeps, log zerolog.Logger) *AuthService {
	if deps.Audit == nil {
		deps.Audit = ports.NopAuditRecorder{}
	}
	return &AuthService{
		users:      deps.Users,
		identities: deps.Identities,
		hasher:     deps.Hasher,
		verifier:   deps.Verifier,
		tokens:     deps.Tokens,
		audit:      deps.Audit,
		systemKey:  deps.SystemKey,
		log:        log,
		now:        time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*ports.Session, error) {
	email := domain.NormalizeEmail(in.Email)
	name := strings.TrimSpace(in.Name)
	if email == "" {
		return nil, domain.NewValidationError("email", "is required")
	}
	if name == "" {
		return nil, domain.NewValidationError("name", "is required")
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	// No password leaves the account waiting for its first SSO link.
	var hash string
	if in.Password != "" {
		var err error
		if hash, err = s.hasher.Hash(in.Password); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Scopes:       domain.DefaultScopes(domain.RoleUser),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Str("method", "password").Msg("user registered")
	s.audit.Record(domain.AuthEvent{Type: domain.EventRegistered, UserID: user.ID, Method: "password", At: now})

	sess, err := s.session(user)
	if err != nil {
		return nil, err
	}
	sess.Created = true
	return sess, nil
}

// Login authenticates by email and password. Unknown accounts, SSO-only
// accounts and wrong passwords all yield domain.ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (*ports.Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if user == nil || !user.HasPassword() {
		_, _ = s.hasher.Verify(password, dummyHash)
		s.loginFailed("", "password")
		return nil, domain.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", user.ID).Msg("stored password hash is unreadable")
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.loginFailed(user.ID, "password")
		return nil, domain.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		user = s.upgradeHash(ctx, user, password)
	}

	s.log.Info().Str("user_id", user.ID).Str("method", "password").Msg("login succeeded")
	s.audit.Record(domain.AuthEvent{Type: domain.EventLogin, UserID: user.ID, Method: "password", At: s.now().UTC()})
	return s.session(user)
}

// upgradeHash replaces a legacy or weaker password hash after a successful
// verify. Failures are logged and the login proceeds with the old hash.
func (s *AuthService) upgradeHash(ctx context.Context, user *domain.User, password string) *domain.User {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash failed")
		return user
	}
	stale := user.PasswordHash
	updated, err := updateUser(ctx, s.users, s.log, s.now, user.ID, func(u *domain.User) error {
		// A password changed since the read is newer than the one just verified.
		if u.PasswordHash == stale {
			u.SetPasswordHash(hash)
		}
		return nil
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("password rehash not stored")
		return user
	}
	s.log.Info().Str("user_id", user.ID).Msg("password hash upgraded")
	return updated
}

// LoginSSO signs in through an external provider and registers first-time identities.
func (s *AuthService) LoginSSO(ctx context.Context, in ports.SSOLoginInput) (*ports.Session, error) {
	if !in.Provider.IsSupported() {
		return nil, domain.ErrUnsupportedProvider
	}
	ext, err := s.verifyExternal(ctx, in.Token, in.Provider)
	if err != nil {
		s.loginFailed("", "sso")
		return nil, err
	}

	user, created, err := s.identities.ResolveSSO(ctx, ext, in.Name)
	if err != nil {
		return nil, err
	}

	if !created {
		s.log.Info().Str("user_id", user.ID).Str("method", "sso").Str("provider", string(in.Provider)).Msg("login succeeded")
		s.audit.Record(domain.AuthEvent{Type: domain.EventLogin, UserID: user.ID, Method: "sso", Provider: in.Provider, At: s.now().UTC()})
	}
	sess, err := s.session(user)
	if err != nil {
		return nil, err
	}
	sess.Created = created
	return sess, nil
}

// Reauthenticate proves again the identity behind claims and returns a token
// with a fresh issuance time. It never creates users.
func (s *AuthService) Reauthenticate(ctx context.Context, claims *domain.Claims, in ports.ReauthInput) (*ports.Session, error) {
	if claims == nil || claims.IsSystem() {
		return nil, domain.ErrInvalidCredentials
	}
	user, err := s.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	var method string
	switch {
	case in.Password != "":
		method = "password"
		if !user.HasPassword() {
			_, _ = s.hasher.Verify(in.Password, dummyHash)
			return nil, domain.ErrInvalidCredentials
		}
		ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
		if err != nil {
			return nil, fmt.Errorf("verify password: %w", err)
		}
		if !ok {
			s.loginFailed(user.ID, method)
			return nil, domain.ErrInvalidCredentials
		}
	case in.Token != "":
		method = "sso"
		if !in.Provider.IsSupported() {
			return nil, domain.ErrUnsupportedProvider
		}
		ext, err := s.verifyExternal(ctx, in.Token, in.Provider)
		if err != nil {
			s.loginFailed(user.ID, method)
			return nil, err
		}
		// The external identity must be one this account already holds.
		if !user.Owns(ext.Provider, ext.ProviderID) {
			s.loginFailed(user.ID, method)
			return nil, domain.ErrInvalidCredentials
		}
	default:
		return nil, domain.NewValidationError("", "password or sso token is required")
	}

	s.log.Info().Str("user_id", user.ID).Str("method", method).Msg("re-authenticated")
	s.audit.Record(domain.AuthEvent{Type: domain.EventReauth, UserID: user.ID, Method: method, Provider: in.Provider, At: s.now().UTC()})
	return s.session(user)
}

// IssueSystemToken trades the shared system key for a system token.
func (s *AuthService) IssueSystemToken(_ context.Context, key string) (*ports.Session, error) {
	if s.systemKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.systemKey)) != 1 {
		s.log.Warn().Msg("system token request with invalid key")
		return nil, domain.ErrInvalidSystemKey
	}
	token, claims, err := s.tokens.Issue(nil, domain.TokenTypeSystem)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("jti", claims.TokenID).Msg("system token issued")
	s.audit.Record(domain.AuthEvent{Type: domain.EventSystemToken, UserID: domain.SystemSubjectID, At: s.now().UTC()})
	return &ports.Session{Token: token, Claims: claims}, nil
}

// Me returns the account behind claims. System tokens resolve to a synthetic user.
func (s *AuthService) Me(ctx context.Context, claims *domain.Claims) (*domain.User, error) {
	if claims.IsSystem() {
		return &domain.User{
			ID:     domain.SystemSubjectID,
			Name:   domain.SystemSubjectName,
			Email:  domain.SystemSubjectEmail,
			Role:   domain.RoleSystem,
			Scopes: claims.Scopes,
		}, nil
	}
	return s.users.FindByID(ctx, claims.Subject)
}

func (s *AuthService) verifyExternal(ctx context.Context, token string, provider domain.Provider) (*domain.ExternalIdentity, error) {
	if token == "" {
		return nil, domain.ErrInvalidSSOToken
	}
	ext, err := s.verifier.Verify(ctx, token, provider)
	if err != nil {
		s.log.Warn().Err(err).Str("provider", string(provider)).Msg("sso token rejected")
		return nil, domain.ErrInvalidSSOToken
	}
	if ext.Provider != provider || ext.ProviderID == "" {
		return nil, domain.ErrInvalidSSOToken
	}
	return ext, nil
}

func (s *AuthService) session(user *domain.User) (*ports.Session, error) {
	token, claims, err := s.tokens.Issue(user, domain.TokenTypeUser)
	if err != nil {
		return nil, err
	}
	return &ports.Session{User: user, Token: token, Claims: claims}, nil
}

func (s *AuthService) loginFailed(userID, method string) {
	s.log.Warn().Str("user_id", userID).Str("method", method).Msg("authentication failed")
	s.audit.Record(domain.AuthEvent{Type: domain.EventLoginFailed, UserID: userID, Method: method, At: s.now().UTC()})
}
