package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

type linkService struct {
	identities ports.IdentityService
	verifier   ports.IdentityVerifier
	urls       ports.LoginURLBuilder
	log        zerolog.Logger
}

// NewLinkService verifies provider tokens before handing them to the linking engine.
func NewLinkService(
	identities ports.IdentityService,
	verifier ports.IdentityVerifier,
	urls ports.LoginURLBuilder,
	log zerolog.Logger,
) ports.LinkService {
	return &linkService{identities: identities, verifier: verifier, urls: urls, log: log}
}

func (s *linkService) LinkWithToken(ctx context.Context, userID string, provider domain.Provider, rawToken string) (*domain.User, error) {
	if !provider.IsSupported() {
		return nil, domain.ErrUnsupportedProvider
	}
	ext, err := s.verifier.Verify(ctx, rawToken, provider)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("provider", string(provider)).Msg("sso token rejected")
		return nil, domain.ErrInvalidSSOToken
	}
	return s.identities.Link(ctx, userID, provider, ext)
}

func (s *linkService) Unlink(ctx context.Context, userID string, provider domain.Provider) (*domain.User, error) {
	return s.identities.Unlink(ctx, userID, provider)
}

func (s *linkService) LoginURL(req ports.LoginURLRequest) (*ports.LoginURL, error) {
	if !req.Provider.IsSupported() {
		return nil, domain.ErrUnsupportedProvider
	}
	return s.urls.LoginURL(req)
}
