package apple

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
)

const (
	keysCacheTTL       = 24 * time.Hour
	minRefreshInterval = time.Minute
)

var errUnknownKey = errors.New("apple: unknown signing key")

// keySet caches Apple's published JWKS and refetches when a token names a
// kid that is not cached yet.
type keySet struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu        sync.RWMutex
	keys      jose.JSONWebKeySet
	fetchedAt time.Time
}

func newKeySet(url string, client *http.Client) *keySet {
	return &keySet{url: url, client: client, now: time.Now}
}

func (k *keySet) key(ctx context.Context, kid string) (interface{}, error) {
	k.mu.RLock()
	found := k.keys.Key(kid)
	stale := k.now().Sub(k.fetchedAt) > keysCacheTTL
	recent := k.now().Sub(k.fetchedAt) < minRefreshInterval
	k.mu.RUnlock()

	if len(found) > 0 && !stale {
		return found[0].Key, nil
	}
	if len(found) == 0 && recent {
		return nil, errUnknownKey
	}

	if err := k.refresh(ctx); err != nil {
		return nil, err
	}

	k.mu.RLock()
	defer k.mu.RUnlock()
	if found = k.keys.Key(kid); len(found) == 0 {
		return nil, errUnknownKey
	}
	return found[0].Key, nil
}

func (k *keySet) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, k.url, nil)
	if err != nil {
		return fmt.Errorf("apple keys request: %w", err)
	}
	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch apple keys: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch apple keys: status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode apple keys: %w", err)
	}

	k.mu.Lock()
	k.keys = set
	k.fetchedAt = k.now()
	k.mu.Unlock()
	return nil
}
