package auth

import (
	"errors"
	"testing"
	"time"
)

const (
	testAccessSecret  = "test-access-secret-at-least-32-chars!"
	testRefreshSecret = "test-refresh-secret-at-least-32-chars"
)

func newTestCodec() *TokenCodec {
	return NewTokenCodec(testAccessSecret, testRefreshSecret)
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	codec := newTestCodec()

	token, jti, err := codec.Issue("usr_1", TokenAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if jti == "" {
		t.Fatal("jti is empty")
	}

	claims, err := codec.Verify(token, TokenAccess)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.UserID != "usr_1" {
		t.Fatalf("userID = %q, want %q", claims.UserID, "usr_1")
	}
	if claims.JTI() != jti {
		t.Fatalf("jti = %q, want %q", claims.JTI(), jti)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	codec := newTestCodec()

	token, _, err := codec.Issue("usr_1", TokenAccess, -time.Minute)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	_, err = codec.Verify(token, TokenAccess)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("Verify() error = %v, want ErrTokenExpired", err)
	}
}

func TestVerifyRejectsCrossKindTokens(t *testing.T) {
	codec := newTestCodec()

	accessToken, _, err := codec.Issue("usr_1", TokenAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	refreshToken, _, err := codec.Issue("usr_1", TokenRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := codec.Verify(accessToken, TokenRefresh); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify(access as refresh) error = %v, want ErrTokenInvalid", err)
	}
	if _, err := codec.Verify(refreshToken, TokenAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify(refresh as access) error = %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	codec := newTestCodec()

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := codec.Verify(token, TokenAccess); err == nil {
			t.Fatalf("Verify(%q) = nil error, want error", token)
		}
	}
}

func TestVerifyRejectsTokenSignedWithOtherSecret(t *testing.T) {
	codec := newTestCodec()
	other := NewTokenCodec("another-access-secret-32-chars-long!!", testRefreshSecret)

	token, _, err := other.Issue("usr_1", TokenAccess, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := codec.Verify(token, TokenAccess); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("Verify() error = %v, want ErrTokenInvalid", err)
	}
}
