package auth

import (
	"testing"
	"time"
)

func TestNewOneTimeToken(t *testing.T) {
	token, err := NewOneTimeToken(time.Hour)
	if err != nil {
		t.Fatalf("NewOneTimeToken() error = %v", err)
	}

	if len(token.Raw) != 64 {
		t.Fatalf("len(raw) = %d, want 64", len(token.Raw))
	}
	if token.Hash != HashOneTimeToken(token.Raw) {
		t.Fatal("hash does not match HashOneTimeToken(raw)")
	}
	if token.Hash == token.Raw {
		t.Fatal("hash equals raw token")
	}

	remaining := time.Until(token.ExpiresAt)
	if remaining < 59*time.Minute || remaining > time.Hour {
		t.Fatalf("expiry in %s, want about 1h", remaining)
	}
}

func TestNewOneTimeTokenIsUnique(t *testing.T) {
	a, err := NewOneTimeToken(time.Hour)
	if err != nil {
		t.Fatalf("NewOneTimeToken() error = %v", err)
	}
	b, err := NewOneTimeToken(time.Hour)
	if err != nil {
		t.Fatalf("NewOneTimeToken() error = %v", err)
	}

	if a.Raw == b.Raw {
		t.Fatal("two tokens share the same raw value")
	}
}

func TestHashOneTimeTokenIsDeterministic(t *testing.T) {
	if HashOneTimeToken("abc") != HashOneTimeToken("abc") {
		t.Fatal("same input produced different hashes")
	}
	if HashOneTimeToken("abc") == HashOneTimeToken("abd") {
		t.Fatal("different inputs produced the same hash")
	}
}
