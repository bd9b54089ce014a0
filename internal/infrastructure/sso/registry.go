// Package sso routes identity verification and login URLs to the adapter of
// each supported provider.
package sso

import (
	"context"

	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

// Provider is what each SSO adapter implements.
type Provider interface {
	ports.IdentityVerifier
	ports.LoginURLBuilder
}

// Registry implements ports.IdentityVerifier and ports.LoginURLBuilder over a
// set of providers.
type Registry struct {
	providers map[domain.Provider]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[domain.Provider]Provider)}
}

// Register installs p for name. Call during startup only.
func (r *Registry) Register(name domain.Provider, p Provider) {
	r.providers[name] = p
}

func (r *Registry) Verify(ctx context.Context, rawToken string, provider domain.Provider) (*domain.ExternalIdentity, error) {
	p, ok := r.providers[provider]
	if !ok {
		return nil, domain.ErrUnsupportedProvider
	}
	return p.Verify(ctx, rawToken, provider)
}

func (r *Registry) LoginURL(req ports.LoginURLRequest) (*ports.LoginURL, error) {
	p, ok := r.providers[req.Provider]
	if !ok {
		return nil, domain.ErrUnsupportedProvider
	}
	return p.LoginURL(req)
}
