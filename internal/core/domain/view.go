package domain

import "time"

// ViewIntent selects which user projection a caller receives.
type ViewIntent int

const (
	// ViewPublic exposes only id, name and email.
	ViewPublic ViewIntent = iota
	// ViewPrivileged adds role, scopes, password presence and linked providers.
	ViewPrivileged
)

// LinkedProviderView is the outbound shape of a linked identity.
type LinkedProviderView struct {
	Provider    Provider  `json:"provider"`
	ConnectedAt time.Time `json:"connectedAt"`
	LastLogin   time.Time `json:"lastLogin"`
}

// UserView is the only user representation that leaves the service.
// The password hash is never part of it.
type UserView struct {
	ID           string                `json:"_id"`
	Name         string                `json:"name"`
	Email        string                `json:"email,omitempty"`
	Role         Role                  `json:"role,omitempty"`
	Scopes       []string              `json:"scopes,omitempty"`
	HasPassword  *bool                 `json:"hasPassword,omitempty"`
	SSOProviders *[]LinkedProviderView `json:"ssoProviders,omitempty"`
	CreatedAt    *time.Time            `json:"createdAt,omitempty"`
}

// View projects the user for the declared intent.
func (u *User) View(intent ViewIntent) UserView {
	v := UserView{ID: u.ID, Name: u.Name, Email: u.Email}
	if intent != ViewPrivileged {
		return v
	}
	hasPassword := u.HasPassword()
	created := u.CreatedAt
	v.Role = u.Role
	v.Scopes = u.EffectiveScopes()
	v.HasPassword = &hasPassword
	v.CreatedAt = &created

	// Privileged views always list providers, even when there are none.
	providers := make([]LinkedProviderView, 0, len(u.SSOIdentities))
	for _, id := range u.SSOIdentities {
		providers = append(providers, LinkedProviderView{
			Provider:    id.Provider,
			ConnectedAt: id.ConnectedAt,
			LastLogin:   id.LastLogin,
		})
	}
	v.SSOProviders = &providers
	return v
}
