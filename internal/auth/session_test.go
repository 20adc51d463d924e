package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"abegfix/internal/db"
	"abegfix/internal/models"
)

type fakeAccounts struct {
	users []*models.User
}

func (f *fakeAccounts) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeAccounts) FindByID(_ context.Context, id string) (*models.User, error) {
	for _, u := range f.users {
		if u.ID.Hex() == id {
			return u, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeAccounts) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	for _, u := range f.users {
		if u.ID.Hex() == id {
			u.PasswordHash = passwordHash
			return nil
		}
	}
	return db.ErrNotFound
}

type fakeTokens struct {
	refresh   map[string]string
	blacklist map[string]bool
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{
		refresh:   make(map[string]string),
		blacklist: make(map[string]bool),
	}
}

func (f *fakeTokens) SaveRefreshToken(_ context.Context, userID, token string, _ time.Duration) error {
	f.refresh[userID] = token
	return nil
}

func (f *fakeTokens) GetRefreshToken(_ context.Context, userID string) (string, error) {
	return f.refresh[userID], nil
}

func (f *fakeTokens) ReplaceRefreshToken(_ context.Context, userID, old, new string, _ time.Duration) (bool, error) {
	if f.refresh[userID] != old {
		return false, nil
	}
	f.refresh[userID] = new
	return true, nil
}

func (f *fakeTokens) DeleteRefreshToken(_ context.Context, userID string) error {
	delete(f.refresh, userID)
	return nil
}

func (f *fakeTokens) BlacklistAccessToken(_ context.Context, jti string, _ time.Duration) error {
	f.blacklist[jti] = true
	return nil
}

func (f *fakeTokens) IsAccessTokenBlacklisted(_ context.Context, jti string) (bool, error) {
	return f.blacklist[jti], nil
}

func testUser(t *testing.T, email, password string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt.GenerateFromPassword() error = %v", err)
	}
	return &models.User{
		ID:           primitive.NewObjectID(),
		Email:        email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	}
}

func newTestService(users ...*models.User) (*SessionService, *fakeTokens) {
	tokens := newFakeTokens()
	service := NewSessionService(newTestCodec(), &fakeAccounts{users: users}, tokens, TokenTTLs{
		Access:          time.Hour,
		Refresh:         24 * time.Hour,
		RememberAccess:  7 * 24 * time.Hour,
		RememberRefresh: 30 * 24 * time.Hour,
	})
	return service, tokens
}

func TestLoginStoresRefreshToken(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, tokens := newTestService(user)

	session, err := service.Login(context.Background(), "a@example.com", "hunter22", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if session.UserID != user.ID.Hex() {
		t.Fatalf("userID = %q, want %q", session.UserID, user.ID.Hex())
	}
	if tokens.refresh[user.ID.Hex()] != session.RefreshToken {
		t.Fatal("refresh registry does not hold the issued token")
	}
	if session.AccessTokenTTL != time.Hour || session.RefreshTokenTTL != 24*time.Hour {
		t.Fatalf("ttls = %s/%s, want 1h/24h", session.AccessTokenTTL, session.RefreshTokenTTL)
	}
}

func TestLoginRememberMeExtendsTTLs(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, _ := newTestService(user)

	session, err := service.Login(context.Background(), "a@example.com", "hunter22", true)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if session.AccessTokenTTL != 7*24*time.Hour {
		t.Fatalf("access ttl = %s, want 168h", session.AccessTokenTTL)
	}
	if session.RefreshTokenTTL != 30*24*time.Hour {
		t.Fatalf("refresh ttl = %s, want 720h", session.RefreshTokenTTL)
	}
}

func TestLoginOverwritesPreviousRefreshToken(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, _ := newTestService(user)

	first, err := service.Login(context.Background(), "a@example.com", "hunter22", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if _, err := service.Login(context.Background(), "a@example.com", "hunter22", false); err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	// The first session's refresh token is no longer the registered one.
	if _, err := service.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("Refresh(stale) error = %v, want ErrTokenMismatch", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, _ := newTestService(user)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "unknown_email", email: "nobody@example.com", password: "hunter22"},
		{name: "wrong_password", email: "a@example.com", password: "wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Login(context.Background(), tt.email, tt.password, false)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestLoginBannedAccountWithCorrectPassword(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	user.IsBanned = true
	service, _ := newTestService(user)

	_, err := service.Login(context.Background(), "a@example.com", "hunter22", false)
	if !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("Login() error = %v, want ErrAccountBanned", err)
	}
}

func TestLoginDeletedAccountLooksUnknown(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	user.IsDeleted = true
	service, _ := newTestService(user)

	_, err := service.Login(context.Background(), "a@example.com", "hunter22", false)
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestRefreshRotatesTokenOnce(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, tokens := newTestService(user)

	session, err := service.Login(context.Background(), "a@example.com", "hunter22", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	renewed, err := service.Refresh(context.Background(), session.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if renewed.RefreshToken == session.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if tokens.refresh[user.ID.Hex()] != renewed.RefreshToken {
		t.Fatal("registry does not hold the rotated token")
	}

	// Replaying the consumed token must fail.
	if _, err := service.Refresh(context.Background(), session.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("Refresh(replayed) error = %v, want ErrTokenMismatch", err)
	}

	// The rotated token still works.
	if _, err := service.Refresh(context.Background(), renewed.RefreshToken); err != nil {
		t.Fatalf("Refresh(rotated) error = %v", err)
	}
}

func TestRefreshRejectsUnregisteredToken(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, _ := newTestService(user)

	// A structurally valid refresh token that was never stored.
	orphan, _, err := newTestCodec().Issue(user.ID.Hex(), TokenRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := service.Refresh(context.Background(), orphan); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("Refresh() error = %v, want ErrTokenMismatch", err)
	}
}

func TestRefreshRejectsBannedAccount(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, _ := newTestService(user)

	session, err := service.Login(context.Background(), "a@example.com", "hunter22", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user.IsBanned = true
	if _, err := service.Refresh(context.Background(), session.RefreshToken); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("Refresh() error = %v, want ErrAccountBanned", err)
	}
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, _ := newTestService(user)

	session, err := service.Login(context.Background(), "a@example.com", "hunter22", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := service.Logout(context.Background(), session.AccessToken, session.RefreshToken); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}

	if _, err := service.Authenticate(context.Background(), session.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("Authenticate() error = %v, want ErrTokenRevoked", err)
	}
	if _, err := service.Refresh(context.Background(), session.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("Refresh() error = %v, want ErrTokenMismatch", err)
	}
}

func TestLogoutIgnoresInvalidTokens(t *testing.T) {
	service, _ := newTestService()

	if err := service.Logout(context.Background(), "garbage", "also-garbage"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if err := service.Logout(context.Background(), "", ""); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
}

func TestChangePasswordRevokesRefreshToken(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, tokens := newTestService(user)

	session, err := service.Login(context.Background(), "a@example.com", "hunter22", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	if err := service.ChangePassword(context.Background(), user.ID.Hex(), "hunter22", "new-password"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if _, ok := tokens.refresh[user.ID.Hex()]; ok {
		t.Fatal("refresh token still registered after password change")
	}
	if _, err := service.Refresh(context.Background(), session.RefreshToken); !errors.Is(err, ErrTokenMismatch) {
		t.Fatalf("Refresh() error = %v, want ErrTokenMismatch", err)
	}

	// Old password no longer works, new one does.
	if _, err := service.Login(context.Background(), "a@example.com", "hunter22", false); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Login(old password) error = %v, want ErrInvalidCredentials", err)
	}
	if _, err := service.Login(context.Background(), "a@example.com", "new-password", false); err != nil {
		t.Fatalf("Login(new password) error = %v", err)
	}
}

func TestChangePasswordRejectsWrongCurrent(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, _ := newTestService(user)

	err := service.ChangePassword(context.Background(), user.ID.Hex(), "wrong", "new-password")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("ChangePassword() error = %v, want ErrInvalidCredentials", err)
	}
}

func TestAuthenticateBannedAccount(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, _ := newTestService(user)

	session, err := service.Login(context.Background(), "a@example.com", "hunter22", false)
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	user.IsBanned = true
	if _, err := service.Authenticate(context.Background(), session.AccessToken); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("Authenticate() error = %v, want ErrAccountBanned", err)
	}
}

func TestRevokeSessionsClearsRegistry(t *testing.T) {
	user := testUser(t, "a@example.com", "hunter22")
	service, tokens := newTestService(user)

	if _, err := service.Login(context.Background(), "a@example.com", "hunter22", false); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if err := service.RevokeSessions(context.Background(), user.ID.Hex()); err != nil {
		t.Fatalf("RevokeSessions() error = %v", err)
	}
	if _, ok := tokens.refresh[user.ID.Hex()]; ok {
		t.Fatal("refresh token still registered after revocation")
	}
}
