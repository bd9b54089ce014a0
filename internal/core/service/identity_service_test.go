package service

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/thibou/auth-api/internal/core/domain"
)

func newTestIdentityService(repo *stubUserRepo, audit *recordingAudit) *identityService {
	s := newIdentityService(repo, stubHasher{}, audit, zerolog.Nop())
	s.now = (&fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}).Now
	return s
}

func passwordUser(email string) *domain.User {
	return &domain.User{Name: "P", Email: email, PasswordHash: "hashed:secret1", Role: domain.RoleUser}
}

func ssoOnlyUser(providerID string) *domain.User {
	u := &domain.User{Name: "S", Role: domain.RoleUser}
	_ = u.LinkIdentity(domain.ProviderApple, providerID, time.Now())
	return u
}

func TestIdentityService_LinkConflictAcrossUsers(t *testing.T) {
	repo := newStubUserRepo()
	audit := &recordingAudit{}
	svc := newTestIdentityService(repo, audit)
	a := repo.put(passwordUser("a@x.com"))
	b := repo.put(passwordUser("b@x.com"))

	if _, err := svc.Link(context.Background(), a, domain.ProviderApple, appleIdentity("X", "")); err != nil {
		t.Fatalf("link to A failed: %v", err)
	}
	_, err := svc.Link(context.Background(), b, domain.ProviderApple, appleIdentity("X", ""))
	if !errors.Is(err, domain.ErrIdentityLinkedElsewhere) || !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected identity linked elsewhere conflict, got %v", err)
	}

	ua, _ := repo.FindByID(context.Background(), a)
	if !ua.Owns(domain.ProviderApple, "X") {
		t.Fatalf("A lost its link")
	}
	ub, _ := repo.FindByID(context.Background(), b)
	if len(ub.SSOIdentities) != 0 {
		t.Fatalf("B should have no identities, got %+v", ub.SSOIdentities)
	}
	if !audit.has(domain.EventLinked) {
		t.Fatalf("expected link audit event")
	}
}

func TestIdentityService_LinkAlreadyLinked(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})
	id := repo.put(ssoOnlyUser("X"))

	_, err := svc.Link(context.Background(), id, domain.ProviderApple, appleIdentity("Y", ""))
	if !errors.Is(err, domain.ErrProviderAlreadyLinked) {
		t.Fatalf("expected ErrProviderAlreadyLinked, got %v", err)
	}
}

func TestIdentityService_LinkLateRaceIsConflict(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})
	a := repo.put(passwordUser("a@x.com"))
	b := repo.put(passwordUser("b@x.com"))

	// B wins the identity between A's pre-check and A's commit.
	repo.beforeUpdate = func(r *stubUserRepo) {
		r.beforeUpdate = nil
		r.mutateStored(b, func(u *domain.User) {
			_ = u.LinkIdentity(domain.ProviderApple, "X", time.Now())
		})
	}
	_, err := svc.Link(context.Background(), a, domain.ProviderApple, appleIdentity("X", ""))
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	ua, _ := repo.FindByID(context.Background(), a)
	if len(ua.SSOIdentities) != 0 {
		t.Fatalf("A must not hold the identity")
	}
}

func TestIdentityService_LinkRejectsMismatchedProvider(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})
	a := repo.put(passwordUser("a@x.com"))

	if _, err := svc.Link(context.Background(), a, domain.Provider("google"), appleIdentity("X", "")); !errors.Is(err, domain.ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	if _, err := svc.Link(context.Background(), a, domain.ProviderApple, nil); !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("expected authentication error, got %v", err)
	}
}

func TestIdentityService_UnlinkLastMethod(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})
	id := repo.put(ssoOnlyUser("X"))

	_, err := svc.Unlink(context.Background(), id, domain.ProviderApple)
	if !errors.Is(err, domain.ErrLastAuthMethod) || !errors.Is(err, domain.ErrInvariantViolation) {
		t.Fatalf("expected last auth method violation, got %v", err)
	}
	u, _ := repo.FindByID(context.Background(), id)
	if !u.Owns(domain.ProviderApple, "X") {
		t.Fatalf("identity should remain linked")
	}
}

func TestIdentityService_UnlinkWithPassword(t *testing.T) {
	repo := newStubUserRepo()
	audit := &recordingAudit{}
	svc := newTestIdentityService(repo, audit)
	u := passwordUser("a@x.com")
	_ = u.LinkIdentity(domain.ProviderApple, "X", time.Now())
	id := repo.put(u)

	got, err := svc.Unlink(context.Background(), id, domain.ProviderApple)
	if err != nil {
		t.Fatalf("Unlink returned error: %v", err)
	}
	if len(got.SSOIdentities) != 0 || !got.HasPassword() {
		t.Fatalf("unexpected state after unlink: %+v", got)
	}
	if !audit.has(domain.EventUnlinked) {
		t.Fatalf("expected unlink audit event")
	}
}

func TestIdentityService_UnlinkNotLinked(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})
	id := repo.put(passwordUser("a@x.com"))

	_, err := svc.Unlink(context.Background(), id, domain.ProviderApple)
	if !errors.Is(err, domain.ErrProviderNotLinked) || !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIdentityService_UnlinkRechecksAfterConcurrentWrite(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})
	u := passwordUser("a@x.com")
	_ = u.LinkIdentity(domain.ProviderApple, "X", time.Now())
	id := repo.put(u)

	// The password disappears while unlink is in flight; the stale snapshot
	// would allow the unlink, the fresh one must not.
	repo.beforeUpdate = func(r *stubUserRepo) {
		r.beforeUpdate = nil
		r.mutateStored(id, func(u *domain.User) { u.PasswordHash = "" })
	}
	_, err := svc.Unlink(context.Background(), id, domain.ProviderApple)
	if !errors.Is(err, domain.ErrLastAuthMethod) {
		t.Fatalf("expected ErrLastAuthMethod after re-check, got %v", err)
	}
	stored, _ := repo.FindByID(context.Background(), id)
	if stored.AuthMethodCount() != 1 {
		t.Fatalf("expected one remaining method, got %d", stored.AuthMethodCount())
	}
}

func TestIdentityService_GivesUpAfterRepeatedContention(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})
	id := repo.put(passwordUser("a@x.com"))

	repo.beforeUpdate = func(r *stubUserRepo) {
		r.mutateStored(id, func(*domain.User) {})
	}
	_, err := svc.SetPassword(context.Background(), id, "another1")
	if !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected ErrConcurrentModification, got %v", err)
	}
	if repo.updates != maxUpdateAttempts {
		t.Fatalf("expected %d attempts, got %d", maxUpdateAttempts, repo.updates)
	}
}

func TestIdentityService_SetPasswordOnSSOOnlyUser(t *testing.T) {
	repo := newStubUserRepo()
	audit := &recordingAudit{}
	svc := newTestIdentityService(repo, audit)
	id := repo.put(ssoOnlyUser("X"))

	u, err := svc.SetPassword(context.Background(), id, "secret1")
	if err != nil {
		t.Fatalf("SetPassword returned error: %v", err)
	}
	if u.PasswordHash != "hashed:secret1" {
		t.Fatalf("unexpected hash %q", u.PasswordHash)
	}
	if _, err := svc.Unlink(context.Background(), id, domain.ProviderApple); err != nil {
		t.Fatalf("unlink should now be allowed: %v", err)
	}
	if !audit.has(domain.EventPasswordSet) {
		t.Fatalf("expected password_set audit event")
	}
}

func TestIdentityService_ResolveSSO(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})

	first, created, err := svc.ResolveSSO(context.Background(), appleIdentity("p1", "New@X.com"), "")
	if err != nil {
		t.Fatalf("ResolveSSO returned error: %v", err)
	}
	if !created || first.HasPassword() || !first.Owns(domain.ProviderApple, "p1") {
		t.Fatalf("expected new passwordless user, got %+v", first)
	}
	if first.Email != "new@x.com" {
		t.Fatalf("email not normalized: %q", first.Email)
	}
	if first.Name != defaultDisplayName {
		t.Fatalf("expected fallback name, got %q", first.Name)
	}

	second, created, err := svc.ResolveSSO(context.Background(), appleIdentity("p1", "new@x.com"), "Ignored")
	if err != nil {
		t.Fatalf("second ResolveSSO returned error: %v", err)
	}
	if created || second.ID != first.ID {
		t.Fatalf("expected same user %s, got %s (created=%v)", first.ID, second.ID, created)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected exactly one stored user, got %d", len(repo.users))
	}
}

func TestIdentityService_ResolveSSOEmailOnlyMatch(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})
	repo.put(passwordUser("a@x.com"))

	_, _, err := svc.ResolveSSO(context.Background(), appleIdentity("p9", "A@x.com"), "Mallory")
	if !errors.Is(err, domain.ErrAccountExistsOtherMethod) {
		t.Fatalf("expected ErrAccountExistsOtherMethod, got %v", err)
	}
	if len(repo.users) != 1 {
		t.Fatalf("no user may be created on email collision")
	}
}

func TestIdentityService_ResolveSSOLosesInsertRace(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})

	var winnerID string
	repo.beforeInsert = func(r *stubUserRepo) {
		w := ssoOnlyUser("p1")
		w.Email = "same@x.com"
		winnerID = r.put(w)
	}

	u, created, err := svc.ResolveSSO(context.Background(), appleIdentity("p1", "same@x.com"), "")
	if err != nil {
		t.Fatalf("ResolveSSO returned error: %v", err)
	}
	if created || u.ID != winnerID {
		t.Fatalf("expected winner %s, got %s (created=%v)", winnerID, u.ID, created)
	}
	if len(repo.users) != 1 {
		t.Fatalf("expected exactly one stored user, got %d", len(repo.users))
	}
}

func TestIdentityService_ResolveSSORaceWithOtherAccountByEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})
	repo.beforeInsert = func(r *stubUserRepo) {
		r.put(passwordUser("same@x.com"))
	}

	_, _, err := svc.ResolveSSO(context.Background(), appleIdentity("p1", "same@x.com"), "")
	if !errors.Is(err, domain.ErrAccountExistsOtherMethod) {
		t.Fatalf("expected ErrAccountExistsOtherMethod, got %v", err)
	}
}

func TestIdentityService_ResolveSSOPrefersClientName(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestIdentityService(repo, &recordingAudit{})
	ext := appleIdentity("p2", "")
	ext.DisplayName = "From Provider"

	u, _, err := svc.ResolveSSO(context.Background(), ext, "  Chosen  ")
	if err != nil {
		t.Fatalf("ResolveSSO returned error: %v", err)
	}
	if u.Name != "Chosen" {
		t.Fatalf("expected client name, got %q", u.Name)
	}
	if u.Email != "" {
		t.Fatalf("expected no email, got %q", u.Email)
	}
}

// Random link/unlink/setPassword sequences never leave a user without a way to sign in.
func TestIdentityService_AuthMethodInvariantHolds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()

	for run := 0; run < 50; run++ {
		repo := newStubUserRepo()
		svc := newTestIdentityService(repo, &recordingAudit{})
		var id string
		if rng.Intn(2) == 0 {
			id = repo.put(ssoOnlyUser("seed"))
		} else {
			id = repo.put(passwordUser("p@x.com"))
		}

		for step := 0; step < 30; step++ {
			before, _ := repo.FindByID(ctx, id)
			var err error
			switch rng.Intn(3) {
			case 0:
				_, err = svc.Link(ctx, id, domain.ProviderApple, appleIdentity(string(rune('a'+rng.Intn(5))), ""))
			case 1:
				_, err = svc.Unlink(ctx, id, domain.ProviderApple)
				if before.AuthMethodCount() == 1 && len(before.SSOIdentities) == 1 && !errors.Is(err, domain.ErrLastAuthMethod) {
					t.Fatalf("run %d step %d: illegal unlink not rejected: %v", run, step, err)
				}
			case 2:
				_, err = svc.SetPassword(ctx, id, "pw")
			}
			if err != nil && !errors.Is(err, domain.ErrConflict) && !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrInvariantViolation) {
				t.Fatalf("run %d step %d: unexpected error kind: %v", run, step, err)
			}

			after, _ := repo.FindByID(ctx, id)
			if after.AuthMethodCount() < 1 {
				t.Fatalf("run %d step %d: user has no authentication method", run, step)
			}
		}
	}
}
