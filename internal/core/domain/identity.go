package domain

// ExternalIdentity is the normalized claim set returned by an external identity
// verifier after it has validated a provider token.
type ExternalIdentity struct {
	Provider      Provider
	ProviderID    string
	Email         string
	EmailVerified bool
	DisplayName   string
}
