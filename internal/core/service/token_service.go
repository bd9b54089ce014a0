package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/thibou/auth-api/internal/core/domain"
)

// maxIssuedAtSkew bounds how far in the future a token's iat may sit before we
// treat the token as forged.
const maxIssuedAtSkew = time.Minute

// TokenConfig configures token signing.
type TokenConfig struct {
	Secret    string
	Issuer    string
	UserTTL   time.Duration
	SystemTTL time.Duration
}

type tokenUser struct {
	ID     string      `json:"id"`
	Email  string      `json:"email,omitempty"`
	Name   string      `json:"name"`
	Scopes []string    `json:"scopes"`
	Role   domain.Role `json:"role"`
}

type tokenClaims struct {
	User tokenUser        `json:"user"`
	Type domain.TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 bearer tokens.
type TokenService struct {
	secret    []byte
	issuer    string
	userTTL   time.Duration
	systemTTL time.Duration
	parser    *jwt.Parser
	now       func() time.Time
}

func NewTokenService(cfg TokenConfig) *TokenService {
	if cfg.UserTTL <= 0 {
		cfg.UserTTL = 24 * time.Hour
	}
	if cfg.SystemTTL <= 0 {
		cfg.SystemTTL = time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "auth-api"
	}
	s := &TokenService{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		userTTL:   cfg.UserTTL,
		systemTTL: cfg.SystemTTL,
		now:       time.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	return s
}

// Issue signs a token for user. System tokens ignore user and carry the fixed
// machine subject.
func (s *TokenService) Issue(user *domain.User, typ domain.TokenType) (string, *domain.Claims, error) {
	// iat is rounded up to the second so it never precedes the sign-in itself.
	now := s.now()
	iat := now.Truncate(time.Second)
	if iat.Before(now) {
		iat = iat.Add(time.Second)
	}

	var subject tokenUser
	ttl := s.userTTL
	switch typ {
	case domain.TokenTypeSystem:
		subject = tokenUser{
			ID:     domain.SystemSubjectID,
			Email:  domain.SystemSubjectEmail,
			Name:   domain.SystemSubjectName,
			Scopes: domain.DefaultScopes(domain.RoleSystem),
			Role:   domain.RoleSystem,
		}
		ttl = s.systemTTL
	case domain.TokenTypeUser:
		if user == nil || user.ID == "" {
			return "", nil, errors.New("issue token: user without id")
		}
		subject = tokenUser{
			ID:     user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Scopes: append([]string(nil), user.EffectiveScopes()...),
			Role:   user.Role,
		}
	default:
		return "", nil, fmt.Errorf("issue token: unknown type %q", typ)
	}

	claims := tokenClaims{
		User: subject,
		Type: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.toDomain(), nil
}

// Verify checks signature, issuer and expiry and returns the token's claims.
func (s *TokenService) Verify(token string) (*domain.Claims, error) {
	var claims tokenClaims
	_, err := s.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, &domain.TokenError{Reason: domain.TokenIssuerMismatch, Err: err}
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, &domain.TokenError{Reason: domain.TokenExpired, Err: err}
		default:
			return nil, &domain.TokenError{Reason: domain.TokenMalformed, Err: err}
		}
	}

	if claims.User.ID == "" || claims.IssuedAt == nil {
		return nil, &domain.TokenError{Reason: domain.TokenMalformed, Err: errors.New("missing subject or iat")}
	}
	if claims.Type != domain.TokenTypeUser && claims.Type != domain.TokenTypeSystem {
		return nil, &domain.TokenError{Reason: domain.TokenMalformed, Err: fmt.Errorf("unknown token type %q", claims.Type)}
	}
	if claims.IssuedAt.Time.After(s.now().Add(maxIssuedAtSkew)) {
		return nil, &domain.TokenError{Reason: domain.TokenMalformed, Err: errors.New("iat in the future")}
	}
	return claims.toDomain(), nil
}

func (c *tokenClaims) toDomain() *domain.Claims {
	out := &domain.Claims{
		TokenID: c.ID,
		Subject: c.User.ID,
		Email:   c.User.Email,
		Name:    c.User.Name,
		Role:    c.User.Role,
		Scopes:  c.User.Scopes,
		Type:    c.Type,
		Issuer:  c.Issuer,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}
