package ports

import (
	"context"

	"github.com/thibou/auth-api/internal/core/domain"
)

// PasswordHasher is a one-way, salted, deliberately slow hash.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	// Verify returns false for a wrong password. It only errors when the stored
	// hash is malformed, which is a server-side fault.
	Verify(plaintext, hash string) (bool, error)
	// NeedsRehash reports whether hash was written with weaker or legacy
	// parameters and should be replaced on the next successful verify.
	NeedsRehash(hash string) bool
}

// IdentityVerifier validates a third-party SSO token and returns normalized claims.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string, provider domain.Provider) (*domain.ExternalIdentity, error)
}

// LoginURLRequest carries the parameters of an SSO authorize redirect.
type LoginURLRequest struct {
	Provider    domain.Provider
	RedirectURI string
	State       string
	Platform    string
}

// LoginURL is the authorize redirect handed to the client.
type LoginURL struct {
	URL      string
	State    string
	ClientID string
}

// LoginURLBuilder produces provider authorize URLs.
type LoginURLBuilder interface {
	LoginURL(req LoginURLRequest) (*LoginURL, error)
}

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*domain.Claims, error)
}
