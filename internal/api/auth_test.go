package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"abegfix/internal/auth"
	"abegfix/internal/db"
	"abegfix/internal/models"
)

type stubAccounts struct {
	user *models.User

	tokenKind   db.OneTimeTokenKind
	tokenHash   string
	tokenExpiry time.Time
}

func (s *stubAccounts) Create(_ context.Context, user *models.User) error {
	user.ID = primitive.NewObjectID()
	s.user = user
	return nil
}

func (s *stubAccounts) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user != nil && s.user.Email == email {
		return s.user, nil
	}
	return nil, db.ErrNotFound
}

func (s *stubAccounts) FindByID(_ context.Context, id string) (*models.User, error) {
	if s.user != nil && s.user.ID.Hex() == id {
		return s.user, nil
	}
	return nil, db.ErrNotFound
}

func (s *stubAccounts) UpdatePassword(_ context.Context, _ string, hash string) error {
	s.user.PasswordHash = hash
	return nil
}

func (s *stubAccounts) SetOneTimeToken(_ context.Context, _ string, kind db.OneTimeTokenKind, hash string, expiresAt time.Time) error {
	s.tokenKind = kind
	s.tokenHash = hash
	s.tokenExpiry = expiresAt
	return nil
}

func (s *stubAccounts) FindByOneTimeToken(_ context.Context, kind db.OneTimeTokenKind, hash string) (*models.User, error) {
	if s.tokenHash == "" || kind != s.tokenKind || hash != s.tokenHash || time.Now().After(s.tokenExpiry) {
		return nil, db.ErrNotFound
	}
	return s.user, nil
}

func (s *stubAccounts) ConsumeVerificationToken(_ context.Context, _ string) error {
	s.user.IsEmailVerified = true
	s.tokenHash = ""
	return nil
}

func (s *stubAccounts) ConsumeResetToken(_ context.Context, _ string, passwordHash string) error {
	s.user.PasswordHash = passwordHash
	s.tokenHash = ""
	return nil
}

type stubTokens struct {
	refresh   map[string]string
	blacklist map[string]bool
}

func newStubTokens() *stubTokens {
	return &stubTokens{refresh: make(map[string]string), blacklist: make(map[string]bool)}
}

func (s *stubTokens) SaveRefreshToken(_ context.Context, userID, token string, _ time.Duration) error {
	s.refresh[userID] = token
	return nil
}

func (s *stubTokens) GetRefreshToken(_ context.Context, userID string) (string, error) {
	return s.refresh[userID], nil
}

func (s *stubTokens) ReplaceRefreshToken(_ context.Context, userID, old, new string, _ time.Duration) (bool, error) {
	if s.refresh[userID] != old {
		return false, nil
	}
	s.refresh[userID] = new
	return true, nil
}

func (s *stubTokens) DeleteRefreshToken(_ context.Context, userID string) error {
	delete(s.refresh, userID)
	return nil
}

func (s *stubTokens) BlacklistAccessToken(_ context.Context, jti string, _ time.Duration) error {
	s.blacklist[jti] = true
	return nil
}

func (s *stubTokens) IsAccessTokenBlacklisted(_ context.Context, jti string) (bool, error) {
	return s.blacklist[jti], nil
}

func newTestAuthHandler(t *testing.T) (*AuthHandler, *auth.SessionService, *stubAccounts) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword() error = %v", err)
	}
	accounts := &stubAccounts{user: &models.User{
		ID:           primitive.NewObjectID(),
		Email:        "ada@example.com",
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}}

	codec := auth.NewTokenCodec(
		"test-access-secret-0123456789abcdef",
		"test-refresh-secret-0123456789abcdef",
	)
	sessions := auth.NewSessionService(codec, accounts, newStubTokens(), auth.TokenTTLs{
		Access:          time.Hour,
		Refresh:         24 * time.Hour,
		RememberAccess:  7 * 24 * time.Hour,
		RememberRefresh: 30 * 24 * time.Hour,
	})

	handler := NewAuthHandler(sessions, accounts, nil, nil, time.Hour, "")
	return handler, sessions, accounts
}

func refreshCookieValue(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return findCookie(t, rr, refreshTokenCookie).Value
}

func TestRefreshWithoutCookieClearsSession(t *testing.T) {
	handler, _, _ := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	rr := httptest.NewRecorder()
	handler.Refresh(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		if c := findCookie(t, rr, name); c.MaxAge != -1 {
			t.Fatalf("%s: MaxAge = %d, want -1", name, c.MaxAge)
		}
	}
}

func TestRefreshWithGarbageTokenClearsSession(t *testing.T) {
	handler, _, _ := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: "not-a-token"})
	rr := httptest.NewRecorder()
	handler.Refresh(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
	if c := findCookie(t, rr, refreshTokenCookie); c.MaxAge != -1 {
		t.Fatalf("refresh cookie MaxAge = %d, want -1", c.MaxAge)
	}
}

func TestRefreshRotatesCookies(t *testing.T) {
	handler, sessions, accounts := newTestAuthHandler(t)

	session, err := sessions.IssueSession(context.Background(), accounts.user, false)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: session.RefreshToken})
	rr := httptest.NewRecorder()
	handler.Refresh(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}

	rotated := refreshCookieValue(t, rr)
	if rotated == "" || rotated == session.RefreshToken {
		t.Fatal("refresh cookie was not rotated")
	}
	if access := findCookie(t, rr, accessTokenCookie); access.Value == "" {
		t.Fatal("access cookie not set")
	}

	// The consumed token fails on replay and clears the session.
	replay := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	replay.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: session.RefreshToken})
	rr = httptest.NewRecorder()
	handler.Refresh(rr, replay)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("replay status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestLogoutClearsCookies(t *testing.T) {
	handler, sessions, accounts := newTestAuthHandler(t)

	session, err := sessions.IssueSession(context.Background(), accounts.user, false)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: session.AccessToken})
	req.AddCookie(&http.Cookie{Name: refreshTokenCookie, Value: session.RefreshToken})
	rr := httptest.NewRecorder()
	handler.Logout(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		if c := findCookie(t, rr, name); c.MaxAge != -1 {
			t.Fatalf("%s: MaxAge = %d, want -1", name, c.MaxAge)
		}
	}

	// The revoked access token no longer authenticates.
	if _, err := sessions.Authenticate(context.Background(), session.AccessToken); err == nil {
		t.Fatal("Authenticate() after logout succeeded, want error")
	}
}

func tokenRequest(method, target, token string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("token", token)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()

	var resp ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, body=%q", err, rr.Body.String())
	}
	return resp.Error.Code
}

func TestVerifyEmailTokenSingleUse(t *testing.T) {
	handler, _, accounts := newTestAuthHandler(t)

	token, err := auth.NewOneTimeToken(time.Hour)
	if err != nil {
		t.Fatalf("NewOneTimeToken() error = %v", err)
	}
	err = accounts.SetOneTimeToken(context.Background(), accounts.user.ID.Hex(), db.TokenVerification, token.Hash, token.ExpiresAt)
	if err != nil {
		t.Fatalf("SetOneTimeToken() error = %v", err)
	}

	rr := httptest.NewRecorder()
	handler.VerifyEmail(rr, tokenRequest(http.MethodPost, "/api/v1/auth/verify-email/x", token.Raw, nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}
	if !accounts.user.IsEmailVerified {
		t.Fatal("email not marked verified after redemption")
	}

	// The token is consumed; redeeming it again must fail.
	rr = httptest.NewRecorder()
	handler.VerifyEmail(rr, tokenRequest(http.MethodPost, "/api/v1/auth/verify-email/x", token.Raw, nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("second redemption status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if code := errorCode(t, rr); code != ErrCodeTokenExpired {
		t.Fatalf("error.code = %q, want %q", code, ErrCodeTokenExpired)
	}
}

func TestResetPasswordTokenSingleUse(t *testing.T) {
	handler, sessions, accounts := newTestAuthHandler(t)

	session, err := sessions.IssueSession(context.Background(), accounts.user, false)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}

	token, err := auth.NewOneTimeToken(time.Hour)
	if err != nil {
		t.Fatalf("NewOneTimeToken() error = %v", err)
	}
	err = accounts.SetOneTimeToken(context.Background(), accounts.user.ID.Hex(), db.TokenPasswordReset, token.Hash, token.ExpiresAt)
	if err != nil {
		t.Fatalf("SetOneTimeToken() error = %v", err)
	}

	body := strings.NewReader(`{"password":"brand-new-password"}`)
	rr := httptest.NewRecorder()
	handler.ResetPassword(rr, tokenRequest(http.MethodPost, "/api/v1/auth/reset-password/x", token.Raw, body))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body=%q", rr.Code, http.StatusOK, rr.Body.String())
	}
	if err := bcrypt.CompareHashAndPassword([]byte(accounts.user.PasswordHash), []byte("brand-new-password")); err != nil {
		t.Fatal("password hash not updated after reset")
	}

	// Live sessions are revoked with the old password.
	if _, err := sessions.Refresh(context.Background(), session.RefreshToken); err == nil {
		t.Fatal("Refresh() after password reset succeeded, want error")
	}

	body = strings.NewReader(`{"password":"another-password"}`)
	rr = httptest.NewRecorder()
	handler.ResetPassword(rr, tokenRequest(http.MethodPost, "/api/v1/auth/reset-password/x", token.Raw, body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("second redemption status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if code := errorCode(t, rr); code != ErrCodeTokenExpired {
		t.Fatalf("error.code = %q, want %q", code, ErrCodeTokenExpired)
	}
}

func TestVerifyEmailRejectsWrongKindToken(t *testing.T) {
	handler, _, accounts := newTestAuthHandler(t)

	token, err := auth.NewOneTimeToken(time.Hour)
	if err != nil {
		t.Fatalf("NewOneTimeToken() error = %v", err)
	}
	err = accounts.SetOneTimeToken(context.Background(), accounts.user.ID.Hex(), db.TokenPasswordReset, token.Hash, token.ExpiresAt)
	if err != nil {
		t.Fatalf("SetOneTimeToken() error = %v", err)
	}

	rr := httptest.NewRecorder()
	handler.VerifyEmail(rr, tokenRequest(http.MethodPost, "/api/v1/auth/verify-email/x", token.Raw, nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if accounts.user.IsEmailVerified {
		t.Fatal("reset token must not verify an email")
	}
}
