package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/thibou/auth-api/internal/core/domain"
)

type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	seq   int

	// beforeUpdate runs ahead of every ConditionalUpdate, outside the lock,
	// so tests can interleave a competing write.
	beforeUpdate func(r *stubUserRepo)
	// beforeInsert does the same for Insert.
	beforeInsert func(r *stubUserRepo)
	updates      int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email != "" && u.Email == email {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByProviderIdentity(_ context.Context, provider domain.Provider, providerID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Owns(provider, providerID) {
			return u.Clone(), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) Insert(_ context.Context, user *domain.User) error {
	if hook := r.beforeInsert; hook != nil {
		r.beforeInsert = nil
		hook(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUnique(user, ""); err != nil {
		return err
	}
	r.seq++
	user.ID = fmt.Sprintf("u%d", r.seq)
	user.Version = 1
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *stubUserRepo) ConditionalUpdate(_ context.Context, user *domain.User, expectedVersion int64) error {
	if r.beforeUpdate != nil {
		r.beforeUpdate(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates++
	cur, ok := r.users[user.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if cur.Version != expectedVersion {
		return domain.ErrVersionMismatch
	}
	if err := r.checkUnique(user, user.ID); err != nil {
		return err
	}
	user.Version = expectedVersion + 1
	r.users[user.ID] = user.Clone()
	return nil
}

func (r *stubUserRepo) List(_ context.Context) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u.Clone())
	}
	return out, nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// mutateStored changes the stored record directly and bumps its version, the
// way a concurrent request would.
func (r *stubUserRepo) mutateStored(id string, fn func(u *domain.User)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	fn(u)
	u.Version++
}

// put stores u as-is and returns its assigned id.
func (r *stubUserRepo) put(u *domain.User) string {
	if err := r.Insert(context.Background(), u); err != nil {
		panic(err)
	}
	return u.ID
}

func (r *stubUserRepo) checkUnique(user *domain.User, selfID string) error {
	for id, other := range r.users {
		if id == selfID {
			continue
		}
		if user.Email != "" && other.Email == user.Email {
			return domain.ErrEmailTaken
		}
		for _, ident := range user.SSOIdentities {
			if other.Owns(ident.Provider, ident.ProviderID) {
				return domain.ErrIdentityLinkedElsewhere
			}
		}
	}
	return nil
}

// stubHasher stores passwords as "hashed:<plain>". Hashes written as
// "legacy:<plain>" still verify but need a rehash.
type stubHasher struct{}

func (stubHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (stubHasher) Verify(plain, hash string) (bool, error) {
	switch {
	case strings.HasPrefix(hash, "hashed:"):
		return hash == "hashed:"+plain, nil
	case strings.HasPrefix(hash, "legacy:"):
		return hash == "legacy:"+plain, nil
	default:
		return false, errors.New("malformed hash")
	}
}

func (stubHasher) NeedsRehash(hash string) bool { return strings.HasPrefix(hash, "legacy:") }

type stubVerifier struct {
	identities map[string]*domain.ExternalIdentity
}

func (v *stubVerifier) Verify(_ context.Context, rawToken string, provider domain.Provider) (*domain.ExternalIdentity, error) {
	ext, ok := v.identities[rawToken]
	if !ok || ext.Provider != provider {
		return nil, errors.New("signature check failed")
	}
	c := *ext
	return &c, nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *recordingAudit) Record(e domain.AuthEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) types() []domain.AuthEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuthEventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Type)
	}
	return out
}

func (a *recordingAudit) has(t domain.AuthEventType) bool {
	for _, got := range a.types() {
		if got == t {
			return true
		}
	}
	return false
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func appleIdentity(id, email string) *domain.ExternalIdentity {
	return &domain.ExternalIdentity{Provider: domain.ProviderApple, ProviderID: id, Email: email}
}
