// Package memory is an in-process UserRepository for development and tests.
// It enforces the same uniqueness and version rules as the Mongo store.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/thibou/auth-api/internal/core/domain"
)

type identityKey struct {
	provider   domain.Provider
	providerID string
}

type UserRepository struct {
	mu         sync.RWMutex
	users      map[string]*domain.User
	byEmail    map[string]string
	byIdentity map[identityKey]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:      make(map[string]*domain.User),
		byEmail:    make(map[string]string),
		byIdentity: make(map[identityKey]string),
	}
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.users[id].Clone(), nil
}

func (r *UserRepository) FindByProviderIdentity(_ context.Context, provider domain.Provider, providerID string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byIdentity[identityKey{provider, providerID}]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.users[id].Clone(), nil
}

func (r *UserRepository) Insert(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.NewString()
	if err := r.checkUnique(user, id); err != nil {
		return err
	}
	user.ID = id
	user.Version = 1
	r.store(user.Clone())
	return nil
}

func (r *UserRepository) ConditionalUpdate(_ context.Context, user *domain.User, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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
	r.unindex(cur)
	user.Version = expectedVersion + 1
	r.store(user.Clone())
	return nil
}

func (r *UserRepository) List(_ context.Context) ([]*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	r.unindex(u)
	delete(r.users, id)
	return nil
}

// checkUnique must be called with the write lock held.
func (r *UserRepository) checkUnique(u *domain.User, selfID string) error {
	if u.Email != "" {
		if owner, ok := r.byEmail[u.Email]; ok && owner != selfID {
			return domain.ErrEmailTaken
		}
	}
	for _, ident := range u.SSOIdentities {
		if owner, ok := r.byIdentity[identityKey{ident.Provider, ident.ProviderID}]; ok && owner != selfID {
			return domain.ErrIdentityLinkedElsewhere
		}
	}
	return nil
}

func (r *UserRepository) store(u *domain.User) {
	r.users[u.ID] = u
	if u.Email != "" {
		r.byEmail[u.Email] = u.ID
	}
	for _, ident := range u.SSOIdentities {
		r.byIdentity[identityKey{ident.Provider, ident.ProviderID}] = u.ID
	}
}

func (r *UserRepository) unindex(u *domain.User) {
	if u.Email != "" {
		delete(r.byEmail, u.Email)
	}
	for _, ident := range u.SSOIdentities {
		delete(r.byIdentity, identityKey{ident.Provider, ident.ProviderID})
	}
}
