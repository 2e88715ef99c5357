package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer("test-secret", "kasirpos-test")
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}

	account := &Account{ID: 42, Username: "budi"}
	token, expiresAt, err := issuer.Issue(account, []RoleID{RoleKasir, RoleAdmin, RoleKasir})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if until := time.Until(expiresAt); until < 23*time.Hour {
		t.Fatalf("expected ~24h validity, got %v", until)
	}

	claims, err := issuer.ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.ID != 42 || claims.Username != "budi" {
		t.Fatalf("unexpected identity claims: %+v", claims)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != RoleKasir || claims.Roles[1] != RoleAdmin {
		t.Fatalf("roles not preserved deduplicated: %v", claims.Roles)
	}
	if claims.Subject != "42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.RegisteredClaims.ID == "" {
		t.Fatal("expected a jti")
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	a, _ := NewTokenIssuer("secret-a", "kasirpos-test")
	b, _ := NewTokenIssuer("secret-b", "kasirpos-test")

	token, _, err := a.Issue(&Account{ID: 1, Username: "x"}, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenRejectsWrongIssuer(t *testing.T) {
	a, _ := NewTokenIssuer("shared-secret", "issuer-a")
	b, _ := NewTokenIssuer("shared-secret", "issuer-b")

	token, _, err := a.Issue(&Account{ID: 1, Username: "x"}, nil)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := b.ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	past := time.Now().Add(-48 * time.Hour)
	issuer, _ := NewTokenIssuer("test-secret", "kasirpos-test",
		WithTokenClock(func() time.Time { return past }))

	token, expiresAt, err := issuer.Issue(&Account{ID: 7, Username: "lena"}, []RoleID{RoleOwner})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expiresAt.Before(time.Now()) {
		t.Fatalf("expected past expiry, got %v", expiresAt)
	}

	// Validation uses the real clock for the same issuer here, so the 24h
	// window has run out.
	fresh, _ := NewTokenIssuer("test-secret", "kasirpos-test")
	if _, err := fresh.ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenIssuerRequiresSecret(t *testing.T) {
	if _, err := NewTokenIssuer("   ", "kasirpos"); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	issuer, _ := NewTokenIssuer("test-secret", "kasirpos-test")
	for _, tok := range []string{"", "not.a.jwt", "a.b"} {
		if _, err := issuer.ParseAndValidate(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
}
