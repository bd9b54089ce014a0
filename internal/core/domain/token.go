package domain

import "time"

// TokenType separates end-user sessions from machine callers.
type TokenType string

const (
	TokenTypeUser   TokenType = "user"
	TokenTypeSystem TokenType = "system"
)

// System token subject. System tokens carry no real user.
const (
	SystemSubjectID    = "system-token"
	SystemSubjectEmail = "system@local.dev"
	SystemSubjectName  = "System Token"
)

// Claims are the verified contents of a bearer token. Role, scopes and email
// are a snapshot taken at issuance.
type Claims struct {
	TokenID   string
	Subject   string
	Email     string
	Name      string
	Role      Role
	Scopes    []string
	Type      TokenType
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IsSystem reports whether the token represents a machine caller.
func (c *Claims) IsSystem() bool {
	return c.Type == TokenTypeSystem
}
