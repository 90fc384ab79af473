package service

import (
	"testing"
	"time"
)

func TestTokensRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tokens, err := NewTokens("secret", func() time.Time { return now })
	if err != nil {
		t.Fatal(err)
	}
	tok, err := tokens.Generate("user-1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := tokens.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != "user-1" {
		t.Fatalf("expected user-1, got %q", got)
	}
}

func TestTokensRejectExpiredAndForeign(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer, _ := NewTokens("secret", func() time.Time { return now })
	tok, _ := issuer.Generate("user-1")

	later, _ := NewTokens("secret", func() time.Time { return now.Add(TokenTTL + time.Minute) })
	if _, err := later.Parse(tok); err == nil {
		t.Fatal("expected expired token to be rejected")
	}

	other, _ := NewTokens("other", func() time.Time { return now })
	if _, err := other.Parse(tok); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}

	if _, err := NewTokens("", nil); err != ErrNoSecret {
		t.Fatalf("expected ErrNoSecret, got %v", err)
	}
}
