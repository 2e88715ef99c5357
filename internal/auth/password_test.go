package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("secret123", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "secret123" {
		t.Fatal("hash must not equal the plaintext")
	}
	if err := VerifyPassword(hash, "secret123"); err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if err := VerifyPassword(hash, "secret124"); err == nil {
		t.Fatal("expected mismatch error")
	}
	if err := VerifyPassword("", "secret123"); err == nil {
		t.Fatal("expected error for empty hash")
	}
	if _, err := HashPassword("", 0); err == nil {
		t.Fatal("expected error for empty password")
	}
}
