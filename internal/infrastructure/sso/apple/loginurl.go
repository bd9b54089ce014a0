package apple

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/thibou/auth-api/internal/core/ports"
)

// Endpoint is Apple's OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:  "https://appleid.apple.com/auth/authorize",
	TokenURL: "https://appleid.apple.com/auth/token",
}

const platformIOS = "ios"

// LoginURL builds the Sign in with Apple authorize redirect. The iOS client id
// is used when the caller asks for the ios platform and one is configured.
func (v *Verifier) LoginURL(req ports.LoginURLRequest) (*ports.LoginURL, error) {
	if req.RedirectURI == "" {
		return nil, errors.New("apple: redirect uri is required")
	}
	clientID := v.cfg.ClientID
	if req.Platform == platformIOS && v.cfg.ClientIDIOS != "" {
		clientID = v.cfg.ClientIDIOS
	}
	if clientID == "" {
		return nil, errors.New("apple: no client id configured")
	}

	state := req.State
	if state == "" {
		var err error
		if state, err = randomState(); err != nil {
			return nil, err
		}
	}

	conf := &oauth2.Config{
		ClientID:    clientID,
		RedirectURL: req.RedirectURI,
		Scopes:      []string{"name", "email"},
		Endpoint:    Endpoint,
	}
	url := conf.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "code id_token"),
		oauth2.SetAuthURLParam("response_mode", "form_post"),
	)
	return &ports.LoginURL{URL: url, State: state, ClientID: clientID}, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return hex.EncodeToString(b), nil
}
