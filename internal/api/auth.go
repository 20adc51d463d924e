package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"abegfix/internal/auth"
	"abegfix/internal/db"
	"abegfix/internal/jobs"
	"abegfix/internal/kv"
	"abegfix/internal/models"
)

// AccountStore is the account persistence surface the auth handlers use.
// *db.UserRepository satisfies it.
type AccountStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	SetOneTimeToken(ctx context.Context, id string, kind db.OneTimeTokenKind, hash string, expiresAt time.Time) error
	FindByOneTimeToken(ctx context.Context, kind db.OneTimeTokenKind, hash string) (*models.User, error)
	ConsumeVerificationToken(ctx context.Context, id string) error
	ConsumeResetToken(ctx context.Context, id string, passwordHash string) error
}

type AuthHandler struct {
	sessions     *auth.SessionService
	users        AccountStore
	referrals    *kv.ReferralStore
	queue        *jobs.Queue
	tokenTTL     time.Duration
	cookieDomain string

	loginLimiter  *RateLimiter
	forgotLimiter *RateLimiter
	resendLimiter *RateLimiter
}

func NewAuthHandler(
	sessions *auth.SessionService,
	users AccountStore,
	referrals *kv.ReferralStore,
	queue *jobs.Queue,
	tokenTTL time.Duration,
	cookieDomain string,
) *AuthHandler {
	return &AuthHandler{
		sessions:      sessions,
		users:         users,
		referrals:     referrals,
		queue:         queue,
		tokenTTL:      tokenTTL,
		cookieDomain:  cookieDomain,
		loginLimiter:  NewRateLimiter(5, 15*time.Minute),
		forgotLimiter: NewRateLimiter(3, 15*time.Minute),
		resendLimiter: NewRateLimiter(3, time.Hour),
	}
}

type SignupRequest struct {
	Name         string `json:"name" validate:"required,min=2,max=100"`
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	Phone        string `json:"phone" validate:"omitempty,len=11,numeric,startswith=0"`
	Role         string `json:"role" validate:"omitempty,oneof=user artisan"`
	ReferralCode string `json:"referralCode" validate:"omitempty,max=32"`
	RememberMe   bool   `json:"rememberMe"`
}

type SessionResponse struct {
	User publicUser `json:"user"`
}

// POST /api/v1/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	role := models.RoleUser
	if req.Role == string(models.RoleArtisan) {
		role = models.RoleArtisan
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        req.Email,
		PasswordHash: string(passwordHash),
		Phone:        req.Phone,
		Role:         role,
	}
	if role == models.RoleArtisan {
		user.ArtisanProfile = &models.ArtisanProfile{}
	}

	if err := h.users.Create(r.Context(), user); err != nil {
		if db.IsDuplicateKeyError(err) {
			conflict(w, "An account with this email already exists")
			return
		}
		slog.Error("error creating user", "error", err)
		internalError(w)
		return
	}

	h.sendVerificationEmail(r, user)
	h.creditReferral(r, req.ReferralCode, user.ID.Hex())

	session, err := h.sessions.IssueSession(r.Context(), user, req.RememberMe)
	if err != nil {
		slog.Error("error issuing session", "error", err)
		internalError(w)
		return
	}

	setSessionCookies(w, session, h.cookieDomain)
	writeJSON(w, http.StatusCreated, SessionResponse{User: toPublicUser(user)})
}

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	Password   string `json:"password" validate:"required,max=128"`
	RememberMe bool   `json:"rememberMe"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	if !h.loginLimiter.Allow(rateLimitKey(req.Email, r.RemoteAddr)) {
		w.Header().Set("Retry-After", "900")
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Too many login attempts, please try again later")
		return
	}

	session, err := h.sessions.Login(r.Context(), req.Email, req.Password, req.RememberMe)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Invalid email or password")
		return
	case errors.Is(err, auth.ErrAccountBanned):
		writeError(w, http.StatusForbidden, ErrCodeBanned, "Account is banned")
		return
	case err != nil:
		slog.Error("error logging in", "error", err)
		internalError(w)
		return
	}

	user, err := h.users.FindByID(r.Context(), session.UserID)
	if err != nil {
		slog.Error("error loading user after login", "error", err)
		internalError(w)
		return
	}

	setSessionCookies(w, session, h.cookieDomain)
	writeJSON(w, http.StatusOK, SessionResponse{User: toPublicUser(user)})
}

// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookie)
	if err != nil || cookie.Value == "" {
		clearSessionCookies(w, h.cookieDomain)
		unauthorized(w, "Refresh token required")
		return
	}

	session, err := h.sessions.Refresh(r.Context(), cookie.Value)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		clearSessionCookies(w, h.cookieDomain)
		writeError(w, http.StatusUnauthorized, ErrCodeTokenExpired, "Refresh token expired")
		return
	case errors.Is(err, auth.ErrTokenMismatch), errors.Is(err, auth.ErrTokenInvalid):
		clearSessionCookies(w, h.cookieDomain)
		unauthorized(w, "Invalid refresh token")
		return
	case errors.Is(err, auth.ErrAccountBanned):
		clearSessionCookies(w, h.cookieDomain)
		writeError(w, http.StatusForbidden, ErrCodeBanned, "Account is banned")
		return
	case err != nil:
		slog.Error("error refreshing session", "error", err)
		internalError(w)
		return
	}

	setSessionCookies(w, session, h.cookieDomain)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session refreshed"})
}

// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var accessToken, refreshToken string
	if cookie, err := r.Cookie(accessTokenCookie); err == nil {
		accessToken = cookie.Value
	}
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil {
		refreshToken = cookie.Value
	}

	if err := h.sessions.Logout(r.Context(), accessToken, refreshToken); err != nil {
		slog.Error("error logging out", "error", err)
		internalError(w)
		return
	}

	clearSessionCookies(w, h.cookieDomain)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// POST /api/v1/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	response := map[string]string{
		"message": "If an account exists with this email, a reset link has been sent",
	}

	if !h.forgotLimiter.Allow(rateLimitKey(req.Email, r.RemoteAddr)) {
		w.Header().Set("Retry-After", "900")
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Too many reset requests, please try again later")
		return
	}

	user, err := h.users.FindByEmail(r.Context(), req.Email)
	if errors.Is(err, db.ErrNotFound) {
		writeJSON(w, http.StatusOK, response)
		return
	}
	if err != nil {
		slog.Error("error looking up account", "error", err)
		internalError(w)
		return
	}

	token, err := auth.NewOneTimeToken(h.tokenTTL)
	if err != nil {
		slog.Error("error generating reset token", "error", err)
		internalError(w)
		return
	}

	err = h.users.SetOneTimeToken(r.Context(), user.ID.Hex(), db.TokenPasswordReset, token.Hash, token.ExpiresAt)
	if err != nil {
		slog.Error("error storing reset token", "error", err)
		internalError(w)
		return
	}

	h.enqueueEmail(r, jobs.EmailTask{
		Type:  jobs.EmailTypePasswordReset,
		To:    user.Email,
		Token: token.Raw,
	})

	writeJSON(w, http.StatusOK, response)
}

type ResetPasswordRequest struct {
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// POST /api/v1/auth/reset-password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "token")
	if raw == "" {
		badRequest(w, "token is required")
		return
	}

	var req ResetPasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	user, err := h.users.FindByOneTimeToken(r.Context(), db.TokenPasswordReset, auth.HashOneTimeToken(raw))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusBadRequest, ErrCodeTokenExpired, "Invalid or expired reset token")
		return
	}
	if err != nil {
		slog.Error("error looking up reset token", "error", err)
		internalError(w)
		return
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("error hashing password", "error", err)
		internalError(w)
		return
	}

	if err := h.users.ConsumeResetToken(r.Context(), user.ID.Hex(), string(passwordHash)); err != nil {
		slog.Error("error resetting password", "error", err)
		internalError(w)
		return
	}

	// Any live session for this account is revoked with the old password.
	if err := h.sessions.RevokeSessions(r.Context(), user.ID.Hex()); err != nil {
		slog.Error("error revoking sessions after reset", "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

// POST /api/v1/auth/verify-email/{token}
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "token")
	if raw == "" {
		badRequest(w, "token is required")
		return
	}

	user, err := h.users.FindByOneTimeToken(r.Context(), db.TokenVerification, auth.HashOneTimeToken(raw))
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusBadRequest, ErrCodeTokenExpired, "Invalid or expired verification token")
		return
	}
	if err != nil {
		slog.Error("error looking up verification token", "error", err)
		internalError(w)
		return
	}

	if err := h.users.ConsumeVerificationToken(r.Context(), user.ID.Hex()); err != nil {
		slog.Error("error verifying email", "error", err)
		internalError(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Email verified"})
}

// POST /api/v1/auth/resend-verification
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	if user.IsEmailVerified {
		conflict(w, "Email is already verified")
		return
	}

	if !h.resendLimiter.Allow(rateLimitKey(user.Email, r.RemoteAddr)) {
		w.Header().Set("Retry-After", "3600")
		writeError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Too many verification emails, please try again later")
		return
	}

	h.sendVerificationEmail(r, user)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Verification email sent"})
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required,max=128"`
	NewPassword     string `json:"newPassword" validate:"required,min=8,max=128"`
}

// POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)

	var req ChangePasswordRequest
	if err := decodeAndValidate(r.Body, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	err := h.sessions.ChangePassword(r.Context(), user.ID.Hex(), req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, ErrCodeInvalidCredentials, "Current password is incorrect")
		return
	case err != nil:
		slog.Error("error changing password", "error", err)
		internalError(w)
		return
	}

	// The refresh registry entry is gone, so the browser session ends at
	// access token expiry. Drop the cookies now.
	clearSessionCookies(w, h.cookieDomain)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed, please log in again"})
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := CurrentUser(r)
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) sendVerificationEmail(r *http.Request, user *models.User) {
	token, err := auth.NewOneTimeToken(h.tokenTTL)
	if err != nil {
		slog.Error("error generating verification token", "error", err)
		return
	}

	err = h.users.SetOneTimeToken(r.Context(), user.ID.Hex(), db.TokenVerification, token.Hash, token.ExpiresAt)
	if err != nil {
		slog.Error("error storing verification token", "error", err)
		return
	}

	h.enqueueEmail(r, jobs.EmailTask{
		Type:  jobs.EmailTypeVerification,
		To:    user.Email,
		Token: token.Raw,
	})
}

func (h *AuthHandler) enqueueEmail(r *http.Request, task jobs.EmailTask) {
	if err := h.queue.Enqueue(r.Context(), jobs.EmailQueue, task); err != nil {
		// Not surfaced to the client - prevents email enumeration attacks.
		slog.Error("error enqueueing email task", "error", err, "type", task.Type)
	}
}

func (h *AuthHandler) creditReferral(r *http.Request, code, newUserID string) {
	if code == "" {
		return
	}

	referrerID, err := h.referrals.ResolveCode(r.Context(), code)
	if err != nil {
		slog.Warn("error resolving referral code", "error", err)
		return
	}
	if referrerID == "" || referrerID == newUserID {
		return
	}

	if err := h.referrals.RecordReferral(r.Context(), referrerID, newUserID); err != nil {
		slog.Warn("error recording referral", "error", err)
	}
}
