package handler

import (
	"time"

	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

// errorResponse documents the error envelope rendered by the API error handler.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Auth ---

type registerRequest struct {
	Name     string `json:"name"     validate:"required,min=2,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"omitempty,min=6,max=50"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=50"`
}

type systemTokenRequest struct {
	Key string `json:"key" validate:"required"`
}

type reauthRequest struct {
	Password string `json:"password,omitempty" validate:"omitempty,max=50"`
	Provider string `json:"provider,omitempty" validate:"required_with=Token"`
	Token    string `json:"token,omitempty"`
}

type sessionResponse struct {
	Message   string           `json:"message"`
	User      *domain.UserView `json:"user,omitempty"`
	Token     string           `json:"token"`
	TokenType string           `json:"tokenType,omitempty"`
	IsNewUser bool             `json:"isNewUser,omitempty"`
}

type tokenInfo struct {
	Type      domain.TokenType `json:"type"`
	IssuedAt  time.Time        `json:"issuedAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Issuer    string           `json:"issuer"`
}

type meResponse struct {
	User      domain.UserView `json:"user"`
	TokenInfo tokenInfo       `json:"tokenInfo"`
}

// --- SSO ---

type ssoLoginRequest struct {
	Token     string `json:"token"               validate:"required"`
	Name      string `json:"name,omitempty"      validate:"omitempty,max=100"`
	FirstName string `json:"firstName,omitempty" validate:"omitempty,max=50"`
	LastName  string `json:"lastName,omitempty"  validate:"omitempty,max=50"`
}

type ssoLinkRequest struct {
	Token string `json:"token" validate:"required"`
}

type loginURLResponse struct {
	Provider    domain.Provider `json:"provider"`
	Platform    string          `json:"platform"`
	LoginURL    string          `json:"loginUrl"`
	State       string          `json:"state"`
	ClientID    string          `json:"clientId"`
	RedirectURI string          `json:"redirectUri"`
}

// --- Users ---

type updateProfileRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,min=1,max=100"`
	Email       *string `json:"email,omitempty"       validate:"omitempty,email"`
	NewPassword *string `json:"newPassword,omitempty" validate:"omitempty,min=6,max=50"`
}

type userResponse struct {
	Message string          `json:"message"`
	User    domain.UserView `json:"user"`
}

type userListResponse struct {
	Message string            `json:"message"`
	Users   []domain.UserView `json:"users"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// tokenType reports the kind of token in sess: "user" or "system".
func tokenType(sess *ports.Session) string {
	if sess.Claims == nil {
		return ""
	}
	return string(sess.Claims.Type)
}

func privilegedView(u *domain.User) *domain.UserView {
	v := u.View(domain.ViewPrivileged)
	return &v
}
