package session_test

import (
	"testing"
	"time"

	"github.com/screencraft/api/pkg/iam/session"
)

func TestGenerateTokenRoundTripsHash(t *testing.T) {
	gen, err := session.GenerateToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.Plaintext == "" {
		t.Fatal("expected non-empty plaintext")
	}
	if gen.TokenHash != session.HashToken(gen.Plaintext) {
		t.Fatal("token hash does not match HashToken(plaintext)")
	}
}

func TestGenerateTokenUniqueness(t *testing.T) {
	a, _ := session.GenerateToken()
	b, _ := session.GenerateToken()
	if a.Plaintext == b.Plaintext {
		t.Fatal("expected distinct plaintexts across generations")
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := session.Session{ExpiresAt: now.Add(-time.Minute)}
	if !s.IsExpired(now) {
		t.Fatal("expected session past its expiry to report expired")
	}

	s2 := session.Session{ExpiresAt: now.Add(time.Minute)}
	if s2.IsExpired(now) {
		t.Fatal("did not expect a session before its expiry to report expired")
	}
}

func TestNeedsExtensionWithinWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	close := session.Session{ExpiresAt: now.Add(23 * time.Hour)}
	if !close.NeedsExtension(now) {
		t.Fatal("expected session expiring within 24h to need extension")
	}

	far := session.Session{ExpiresAt: now.Add(48 * time.Hour)}
	if far.NeedsExtension(now) {
		t.Fatal("did not expect session far from expiry to need extension")
	}
}

func TestExtendPushesExpiryToDefaultTTL(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := session.Session{ExpiresAt: now.Add(time.Hour)}

	s.Extend(now)

	want := now.Add(session.DefaultTTL)
	if !s.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, s.ExpiresAt)
	}
}

func TestErrNotFoundIsUnauthorized(t *testing.T) {
	err := session.ErrNotFound()
	if err.HTTPStatus != 401 {
		t.Fatalf("expected 401, got %d", err.HTTPStatus)
	}
}
