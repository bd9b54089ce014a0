package domain

import (
	"strings"
	"time"
)

// Role is the coarse privilege level of an account.
type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

// Provider identifies an external single-sign-on provider.
type Provider string

const (
	ProviderApple Provider = "apple"
)

// SupportedProviders lists the providers the service can verify.
var SupportedProviders = []Provider{ProviderApple}

// IsSupported reports whether p is a provider the service knows how to verify.
func (p Provider) IsSupported() bool {
	for _, s := range SupportedProviders {
		if s == p {
			return true
		}
	}
	return false
}

// SSOIdentity links a user to an external identity. The pair (Provider, ProviderID)
// is unique across all users.
type SSOIdentity struct {
	Provider    Provider  `json:"provider"`
	ProviderID  string    `json:"providerId"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastLogin   time.Time `json:"lastLogin"`
}

// User is the identity root. Every user keeps at least one authentication method:
// a password hash or a linked SSO identity.
type User struct {
	ID            string
	Name          string
	Email         string
	PasswordHash  string
	Role          Role
	Scopes        []string
	SSOIdentities []SSOIdentity
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NormalizeEmail lower-cases and trims an email before comparison or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HasPassword reports whether the user holds a password credential.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// AuthMethodCount returns how many independent ways the user can authenticate.
func (u *User) AuthMethodCount() int {
	n := len(u.SSOIdentities)
	if u.HasPassword() {
		n++
	}
	return n
}

// Identity returns the linked identity for provider, if any.
func (u *User) Identity(provider Provider) (*SSOIdentity, bool) {
	for i := range u.SSOIdentities {
		if u.SSOIdentities[i].Provider == provider {
			return &u.SSOIdentities[i], true
		}
	}
	return nil, false
}

// Owns reports whether the user holds exactly the external identity (provider, providerID).
func (u *User) Owns(provider Provider, providerID string) bool {
	id, ok := u.Identity(provider)
	return ok && id.ProviderID == providerID
}

// LinkIdentity attaches an external identity. At most one identity per provider.
func (u *User) LinkIdentity(provider Provider, providerID string, now time.Time) error {
	if _, ok := u.Identity(provider); ok {
		return ErrProviderAlreadyLinked
	}
	u.SSOIdentities = append(u.SSOIdentities, SSOIdentity{
		Provider:    provider,
		ProviderID:  providerID,
		ConnectedAt: now,
		LastLogin:   now,
	})
	return nil
}

// UnlinkIdentity removes the identity for provider unless it is the last
// remaining authentication method.
func (u *User) UnlinkIdentity(provider Provider) error {
	idx := -1
	for i := range u.SSOIdentities {
		if u.SSOIdentities[i].Provider == provider {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrProviderNotLinked
	}
	if u.AuthMethodCount() <= 1 {
		return ErrLastAuthMethod
	}
	u.SSOIdentities = append(u.SSOIdentities[:idx:idx], u.SSOIdentities[idx+1:]...)
	return nil
}

// SetPasswordHash stores a password credential. Adding a method is always legal.
func (u *User) SetPasswordHash(hash string) {
	u.PasswordHash = hash
}

// TouchLogin records a successful sign-in through provider.
func (u *User) TouchLogin(provider Provider, now time.Time) {
	if id, ok := u.Identity(provider); ok {
		id.LastLogin = now
	}
}

// EffectiveScopes returns the stored scopes, falling back to the role defaults.
func (u *User) EffectiveScopes() []string {
	if len(u.Scopes) > 0 {
		return u.Scopes
	}
	return DefaultScopes(u.Role)
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Scopes = append([]string(nil), u.Scopes...)
	c.SSOIdentities = append([]SSOIdentity(nil), u.SSOIdentities...)
	return &c
}
