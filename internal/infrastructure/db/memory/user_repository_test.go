package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/thibou/auth-api/internal/core/domain"
)

func TestUserRepository_InsertAndFind(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	u := &domain.User{Name: "A", Email: "a@x.com", PasswordHash: "h"}
	_ = u.LinkIdentity(domain.ProviderApple, "X", time.Now())
	if err := repo.Insert(ctx, u); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if u.ID == "" || u.Version != 1 {
		t.Fatalf("expected id and version assigned, got %q/%d", u.ID, u.Version)
	}

	byEmail, err := repo.FindByEmail(ctx, "a@x.com")
	if err != nil || byEmail.ID != u.ID {
		t.Fatalf("FindByEmail: %+v, %v", byEmail, err)
	}
	byIdent, err := repo.FindByProviderIdentity(ctx, domain.ProviderApple, "X")
	if err != nil || byIdent.ID != u.ID {
		t.Fatalf("FindByProviderIdentity: %+v, %v", byIdent, err)
	}
	if _, err := repo.FindByID(ctx, "missing"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	// Mutating a returned copy must not touch the stored record.
	byEmail.Name = "changed"
	again, _ := repo.FindByID(ctx, u.ID)
	if again.Name != "A" {
		t.Fatalf("store returned an aliased record")
	}
}

func TestUserRepository_Uniqueness(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	a := &domain.User{Email: "a@x.com"}
	_ = a.LinkIdentity(domain.ProviderApple, "X", time.Now())
	_ = repo.Insert(ctx, a)

	if err := repo.Insert(ctx, &domain.User{Email: "a@x.com"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	b := &domain.User{Email: "b@x.com"}
	_ = b.LinkIdentity(domain.ProviderApple, "X", time.Now())
	if err := repo.Insert(ctx, b); !errors.Is(err, domain.ErrIdentityLinkedElsewhere) {
		t.Fatalf("expected ErrIdentityLinkedElsewhere, got %v", err)
	}
	// Users without email never collide on it.
	if err := repo.Insert(ctx, &domain.User{Name: "no email 1", PasswordHash: "h"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if err := repo.Insert(ctx, &domain.User{Name: "no email 2", PasswordHash: "h"}); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
}

func TestUserRepository_ConditionalUpdate(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	u := &domain.User{Email: "a@x.com", PasswordHash: "h"}
	_ = repo.Insert(ctx, u)

	stale, _ := repo.FindByID(ctx, u.ID)
	fresh, _ := repo.FindByID(ctx, u.ID)

	fresh.Email = "new@x.com"
	if err := repo.ConditionalUpdate(ctx, fresh, 1); err != nil {
		t.Fatalf("ConditionalUpdate returned error: %v", err)
	}
	if fresh.Version != 2 {
		t.Fatalf("expected version 2, got %d", fresh.Version)
	}
	stale.Name = "lost update"
	if err := repo.ConditionalUpdate(ctx, stale, 1); !errors.Is(err, domain.ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}

	// The old email index entry is released.
	if _, err := repo.FindByEmail(ctx, "a@x.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("old email still indexed: %v", err)
	}
	if err := repo.Insert(ctx, &domain.User{Email: "a@x.com", PasswordHash: "h"}); err != nil {
		t.Fatalf("old email should be free, got %v", err)
	}
}

func TestUserRepository_ConcurrentLinkExactlyOneWins(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	for i := range ids {
		u := &domain.User{PasswordHash: "h"}
		_ = repo.Insert(ctx, u)
		ids[i] = u.ID
	}

	var wg sync.WaitGroup
	results := make([]error, n)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			u, _ := repo.FindByID(ctx, id)
			_ = u.LinkIdentity(domain.ProviderApple, "shared", time.Now())
			results[i] = repo.ConditionalUpdate(ctx, u, u.Version)
		}(i, id)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, domain.ErrIdentityLinkedElsewhere):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestUserRepository_ListAndDelete(t *testing.T) {
	repo := NewUserRepository()
	ctx := context.Background()
	a := &domain.User{Email: "a@x.com", CreatedAt: time.Unix(1, 0)}
	b := &domain.User{Email: "b@x.com", CreatedAt: time.Unix(2, 0)}
	_ = repo.Insert(ctx, b)
	_ = repo.Insert(ctx, a)

	users, _ := repo.List(ctx)
	if len(users) != 2 || users[0].Email != "a@x.com" {
		t.Fatalf("unexpected list order: %+v", users)
	}
	if err := repo.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := repo.FindByEmail(ctx, "a@x.com"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("deleted user still indexed")
	}
	if err := repo.Delete(ctx, a.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
