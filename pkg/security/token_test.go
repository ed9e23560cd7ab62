package security

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	signer, err := NewTokenSigner("test-secret")
	if err != nil {
		t.Fatalf("NewTokenSigner: %v", err)
	}

	token := signer.Sign("Ada@Example.com", time.Hour)
	email, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", email)
	}
}

func TestTokenRejectsTampering(t *testing.T) {
	signer, _ := NewTokenSigner("test-secret")
	token := signer.Sign("ada@example.com", time.Hour)

	tampered := strings.Replace(token, ".", "x.", 1)
	if _, err := signer.Verify(tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	signer, _ := NewTokenSigner("test-secret")
	other, _ := NewTokenSigner("other-secret")

	token := signer.Sign("ada@example.com", time.Hour)
	if _, err := other.Verify(token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestTokenExpires(t *testing.T) {
	signer, _ := NewTokenSigner("test-secret")
	signer.timeProvider = func() time.Time {
		return time.Date(2026, time.January, 1, 12, 0, 0, 0, time.UTC)
	}
	token := signer.Sign("ada@example.com", time.Minute)

	signer.timeProvider = func() time.Time {
		return time.Date(2026, time.January, 1, 12, 2, 0, 0, time.UTC)
	}
	if _, err := signer.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestNewTokenSignerRequiresSecret(t *testing.T) {
	if _, err := NewTokenSigner("  "); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
