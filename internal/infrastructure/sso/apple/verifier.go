package apple

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/thibou/auth-api/internal/core/domain"
)

const (
	Issuer         = "https://appleid.apple.com"
	DefaultKeysURL = "https://appleid.apple.com/auth/keys"

	// maxTokenAge bounds how long after issuance an identity token is accepted.
	maxTokenAge = 10 * time.Minute
)

// Config configures Sign in with Apple.
type Config struct {
	ClientID    string
	ClientIDIOS string
	KeysURL     string
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Verifier validates Apple identity tokens.
type Verifier struct {
	cfg       Config
	audiences map[string]struct{}
	keys      *keySet
	parser    *jwt.Parser
	now       func() time.Time
}

func NewVerifier(cfg Config) *Verifier {
	if cfg.KeysURL == "" {
		cfg.KeysURL = DefaultKeysURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	v := &Verifier{
		cfg:       cfg,
		audiences: make(map[string]struct{}),
		keys:      newKeySet(cfg.KeysURL, cfg.HTTPClient),
		now:       time.Now,
	}
	for _, id := range []string{cfg.ClientID, cfg.ClientIDIOS} {
		if id != "" {
			v.audiences[id] = struct{}{}
		}
	}
	v.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return v.now() }),
	)
	return v
}

// flexBool decodes Apple's email_verified, which arrives as a bool or a string.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case bool:
		*b = flexBool(v)
	case string:
		*b = flexBool(v == "true")
	}
	return nil
}

type identityClaims struct {
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	jwt.RegisteredClaims
}

// Verify checks signature, issuer, audience, expiry and freshness of an Apple
// identity token.
func (v *Verifier) Verify(ctx context.Context, rawToken string, provider domain.Provider) (*domain.ExternalIdentity, error) {
	if provider != domain.ProviderApple {
		return nil, domain.ErrUnsupportedProvider
	}
	if len(v.audiences) == 0 {
		return nil, errors.New("apple: no client id configured")
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	var claims identityClaims
	_, err := v.parser.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("apple: token has no kid")
		}
		return v.keys.key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("apple: %w", err)
	}

	if !v.audienceAllowed(claims.Audience) {
		return nil, fmt.Errorf("apple: audience %v not allowed", []string(claims.Audience))
	}
	if claims.IssuedAt == nil || v.now().Sub(claims.IssuedAt.Time) > maxTokenAge {
		return nil, errors.New("apple: token too old")
	}
	if claims.Subject == "" {
		return nil, errors.New("apple: missing subject")
	}

	return &domain.ExternalIdentity{
		Provider:      domain.ProviderApple,
		ProviderID:    claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		DisplayName:   claims.Name,
	}, nil
}

func (v *Verifier) audienceAllowed(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if _, ok := v.audiences[a]; ok {
			return true
		}
	}
	return false
}
