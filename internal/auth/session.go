package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"abegfix/internal/db"
	"abegfix/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountBanned      = errors.New("account banned")
	ErrTokenRevoked       = errors.New("token revoked")
	// ErrTokenMismatch means a presented refresh token no longer matches the
	// stored value for its account: stale after rotation, or replayed.
	ErrTokenMismatch = errors.New("refresh token mismatch")
)

// Pre-computed hash for constant-time login: unknown-email and wrong-password
// paths both perform exactly one bcrypt comparison.
var dummyPasswordHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// AccountStore is the credential-store surface the session manager needs.
// Implementations return db.ErrNotFound for missing accounts.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}

// TokenStore is the ephemeral-store surface: the per-account refresh-token
// registry and the access-token jti blacklist. Entries self-expire.
type TokenStore interface {
	SaveRefreshToken(ctx context.Context, userID, token string, ttl time.Duration) error
	GetRefreshToken(ctx context.Context, userID string) (string, error)
	// ReplaceRefreshToken swaps old for new only if old is still the stored
	// value. Returns false when the stored value has moved on.
	ReplaceRefreshToken(ctx context.Context, userID, old, new string, ttl time.Duration) (bool, error)
	DeleteRefreshToken(ctx context.Context, userID string) error
	BlacklistAccessToken(ctx context.Context, jti string, ttl time.Duration) error
	IsAccessTokenBlacklisted(ctx context.Context, jti string) (bool, error)
}

// TokenTTLs carries the four lifetime settings for a token pair.
type TokenTTLs struct {
	Access          time.Duration
	Refresh         time.Duration
	RememberAccess  time.Duration
	RememberRefresh time.Duration
}

// Session is the result of a successful login or refresh. The TTLs drive the
// cookie MaxAge values set by the HTTP layer.
type Session struct {
	UserID          string
	Role            models.Role
	AccessToken     string
	RefreshToken    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// SessionService owns the login/logout/refresh/password-change flows and the
// invariants around which refresh token is valid and which jtis are revoked.
type SessionService struct {
	codec    *TokenCodec
	accounts AccountStore
	tokens   TokenStore
	ttls     TokenTTLs
}

func NewSessionService(codec *TokenCodec, accounts AccountStore, tokens TokenStore, ttls TokenTTLs) *SessionService {
	return &SessionService{
		codec:    codec,
		accounts: accounts,
		tokens:   tokens,
		ttls:     ttls,
	}
}

// Login verifies credentials and installs a fresh token pair. Any previously
// stored refresh token for the account is overwritten and thereby invalidated.
func (s *SessionService) Login(ctx context.Context, email, password string, rememberMe bool) (*Session, error) {
	user, err := s.accounts.FindByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("finding account: %w", err)
	}
	if user.IsDeleted {
		_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(password))
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.IsBanned {
		return nil, ErrAccountBanned
	}

	return s.issueSession(ctx, user, rememberMe)
}

// Refresh redeems a refresh token for a new pair. A refresh token is valid at
// most once: rotation replaces the stored value, so replaying the old token
// fails with ErrTokenMismatch.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.codec.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return nil, err
	}

	stored, err := s.tokens.GetRefreshToken(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("reading refresh registry: %w", err)
	}
	if stored == "" || stored != refreshToken {
		return nil, ErrTokenMismatch
	}

	user, err := s.accounts.FindByID(ctx, claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrTokenMismatch
	}
	if err != nil {
		return nil, fmt.Errorf("finding account: %w", err)
	}
	if user.IsBanned || user.IsDeleted {
		return nil, ErrAccountBanned
	}

	ttls := s.pairTTLs(false)
	userID := user.ID.Hex()

	accessToken, _, err := s.codec.Issue(userID, TokenAccess, ttls.Access)
	if err != nil {
		return nil, err
	}
	newRefresh, _, err := s.codec.Issue(userID, TokenRefresh, ttls.Refresh)
	if err != nil {
		return nil, err
	}

	// Compare-and-swap so two racing refreshes with the same token cannot
	// both win; the loser sees a mismatch and must re-login.
	swapped, err := s.tokens.ReplaceRefreshToken(ctx, userID, refreshToken, newRefresh, ttls.Refresh)
	if err != nil {
		return nil, fmt.Errorf("rotating refresh token: %w", err)
	}
	if !swapped {
		return nil, ErrTokenMismatch
	}

	return &Session{
		UserID:          userID,
		Role:            user.Role,
		AccessToken:     accessToken,
		RefreshToken:    newRefresh,
		AccessTokenTTL:  ttls.Access,
		RefreshTokenTTL: ttls.Refresh,
	}, nil
}

// Logout revokes both halves of a session: the access token's jti goes on the
// blacklist for its remaining lifetime and the refresh registry entry is
// deleted. Invalid or absent tokens are ignored; there is nothing to revoke.
func (s *SessionService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if accessToken != "" {
		if claims, err := s.codec.Verify(accessToken, TokenAccess); err == nil {
			remaining := time.Until(claims.ExpiresAt.Time)
			if remaining > 0 {
				if err := s.tokens.BlacklistAccessToken(ctx, claims.JTI(), remaining); err != nil {
					return fmt.Errorf("blacklisting access token: %w", err)
				}
			}
		}
	}

	if refreshToken != "" {
		if claims, err := s.codec.Verify(refreshToken, TokenRefresh); err == nil {
			if err := s.tokens.DeleteRefreshToken(ctx, claims.UserID); err != nil {
				return fmt.Errorf("deleting refresh token: %w", err)
			}
		}
	}

	return nil
}

// ChangePassword rotates the credential and deletes the stored refresh token,
// forcing every other session of the account to re-login.
func (s *SessionService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.accounts.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("finding account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if err := s.accounts.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}

	if err := s.tokens.DeleteRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}

	return nil
}

// RevokeSessions deletes the account's stored refresh token so no existing
// session can be renewed. Outstanding access tokens still run to expiry.
func (s *SessionService) RevokeSessions(ctx context.Context, userID string) error {
	if err := s.tokens.DeleteRefreshToken(ctx, userID); err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

// Authenticate resolves an access token to its account. It fails closed:
// expired or malformed tokens, blacklisted jtis, missing or banned accounts
// and store errors all yield an error, never a default-allow.
func (s *SessionService) Authenticate(ctx context.Context, accessToken string) (*models.User, error) {
	claims, err := s.codec.Verify(accessToken, TokenAccess)
	if err != nil {
		return nil, err
	}

	blacklisted, err := s.tokens.IsAccessTokenBlacklisted(ctx, claims.JTI())
	if err != nil {
		return nil, fmt.Errorf("checking blacklist: %w", err)
	}
	if blacklisted {
		return nil, ErrTokenRevoked
	}

	user, err := s.accounts.FindByID(ctx, claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("finding account: %w", err)
	}
	if user.IsDeleted {
		return nil, ErrTokenInvalid
	}
	if user.IsBanned {
		return nil, ErrAccountBanned
	}

	return user, nil
}

// IssueSession installs a fresh token pair for an already-authenticated
// account (signup does this right after creating the user).
func (s *SessionService) IssueSession(ctx context.Context, user *models.User, rememberMe bool) (*Session, error) {
	return s.issueSession(ctx, user, rememberMe)
}

func (s *SessionService) issueSession(ctx context.Context, user *models.User, rememberMe bool) (*Session, error) {
	ttls := s.pairTTLs(rememberMe)
	userID := user.ID.Hex()

	accessToken, _, err := s.codec.Issue(userID, TokenAccess, ttls.Access)
	if err != nil {
		return nil, err
	}
	refreshToken, _, err := s.codec.Issue(userID, TokenRefresh, ttls.Refresh)
	if err != nil {
		return nil, err
	}

	if err := s.tokens.SaveRefreshToken(ctx, userID, refreshToken, ttls.Refresh); err != nil {
		return nil, fmt.Errorf("storing refresh token: %w", err)
	}

	return &Session{
		UserID:          userID,
		Role:            user.Role,
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		AccessTokenTTL:  ttls.Access,
		RefreshTokenTTL: ttls.Refresh,
	}, nil
}

type pairTTLs struct {
	Access  time.Duration
	Refresh time.Duration
}

func (s *SessionService) pairTTLs(rememberMe bool) pairTTLs {
	if rememberMe {
		return pairTTLs{Access: s.ttls.RememberAccess, Refresh: s.ttls.RememberRefresh}
	}
	return pairTTLs{Access: s.ttls.Access, Refresh: s.ttls.Refresh}
}
