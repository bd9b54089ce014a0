package apple

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"

	"github.com/thibou/auth-api/internal/core/domain"
	"github.com/thibou/auth-api/internal/core/ports"
)

type appleFixture struct {
	key      *rsa.PrivateKey
	server   *httptest.Server
	fetches  atomic.Int32
	verifier *Verifier
	now      time.Time
}

func newAppleFixture(t *testing.T) *appleFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	f := &appleFixture{key: key, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key: &key.PublicKey, KeyID: "k1", Algorithm: "RS256", Use: "sig",
	}}}
	body, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(f.server.Close)

	f.verifier = NewVerifier(Config{
		ClientID:    "com.example.web",
		ClientIDIOS: "com.example.ios",
		KeysURL:     f.server.URL,
		Timeout:     2 * time.Second,
	})
	f.verifier.now = func() time.Time { return f.now }
	f.verifier.keys.now = func() time.Time { return f.now }
	return f
}

func (f *appleFixture) sign(t *testing.T, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(f.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func (f *appleFixture) validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            Issuer,
		"aud":            "com.example.ios",
		"sub":            "001234.abcdef",
		"email":          "user@privaterelay.appleid.com",
		"email_verified": "true",
		"iat":            f.now.Add(-time.Minute).Unix(),
		"exp":            f.now.Add(time.Hour).Unix(),
	}
}

func TestVerifier_Valid(t *testing.T) {
	f := newAppleFixture(t)

	ext, err := f.verifier.Verify(context.Background(), f.sign(t, "k1", f.validClaims()), domain.ProviderApple)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ext.Provider != domain.ProviderApple || ext.ProviderID != "001234.abcdef" {
		t.Fatalf("unexpected identity: %+v", ext)
	}
	if ext.Email != "user@privaterelay.appleid.com" || !ext.EmailVerified {
		t.Fatalf("unexpected email claims: %+v", ext)
	}

	// Second token reuses the cached key set.
	if _, err := f.verifier.Verify(context.Background(), f.sign(t, "k1", f.validClaims()), domain.ProviderApple); err != nil {
		t.Fatalf("second Verify returned error: %v", err)
	}
	if got := f.fetches.Load(); got != 1 {
		t.Fatalf("expected 1 key fetch, got %d", got)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	f := newAppleFixture(t)

	tests := []struct {
		name   string
		mutate func(c jwt.MapClaims)
		kid    string
	}{
		{"wrong issuer", func(c jwt.MapClaims) { c["iss"] = "https://evil.example" }, "k1"},
		{"wrong audience", func(c jwt.MapClaims) { c["aud"] = "com.other.app" }, "k1"},
		{"expired", func(c jwt.MapClaims) { c["exp"] = f.now.Add(-time.Second).Unix() }, "k1"},
		{"too old", func(c jwt.MapClaims) { c["iat"] = f.now.Add(-11 * time.Minute).Unix() }, "k1"},
		{"missing subject", func(c jwt.MapClaims) { delete(c, "sub") }, "k1"},
		{"unknown key", func(jwt.MapClaims) {}, "k2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := f.validClaims()
			tt.mutate(claims)
			if _, err := f.verifier.Verify(context.Background(), f.sign(t, tt.kid, claims), domain.ProviderApple); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}

	if _, err := f.verifier.Verify(context.Background(), "not.a.token", domain.ProviderApple); err == nil {
		t.Fatalf("expected rejection of garbage token")
	}
}

func TestVerifier_KeyServerDown(t *testing.T) {
	f := newAppleFixture(t)
	f.server.Close()

	if _, err := f.verifier.Verify(context.Background(), f.sign(t, "k1", f.validClaims()), domain.ProviderApple); err == nil {
		t.Fatalf("expected error when keys cannot be fetched")
	}
}

func TestVerifier_LoginURL(t *testing.T) {
	f := newAppleFixture(t)

	out, err := f.verifier.LoginURL(ports.LoginURLRequest{
		Provider:    domain.ProviderApple,
		RedirectURI: "https://app.example/callback",
		Platform:    "ios",
	})
	if err != nil {
		t.Fatalf("LoginURL returned error: %v", err)
	}
	if out.ClientID != "com.example.ios" || len(out.State) != 32 {
		t.Fatalf("unexpected result: %+v", out)
	}

	u, err := url.Parse(out.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	if !strings.HasPrefix(out.URL, Endpoint.AuthURL) {
		t.Fatalf("unexpected authorize endpoint: %s", out.URL)
	}
	q := u.Query()
	for k, want := range map[string]string{
		"response_type": "code id_token",
		"response_mode": "form_post",
		"scope":         "name email",
		"client_id":     "com.example.ios",
		"redirect_uri":  "https://app.example/callback",
		"state":         out.State,
	} {
		if got := q.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}

	web, _ := f.verifier.LoginURL(ports.LoginURLRequest{RedirectURI: "https://app.example/cb", State: "fixed"})
	if web.ClientID != "com.example.web" || web.State != "fixed" {
		t.Fatalf("unexpected web result: %+v", web)
	}
}
