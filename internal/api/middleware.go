package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"abegfix/internal/auth"
	"abegfix/internal/models"
)

type contextKey string

const currentUserKey contextKey = "currentUser"

type AuthMiddleware struct {
	sessions *auth.SessionService
}

func NewAuthMiddleware(sessions *auth.SessionService) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// RequireAuth authenticates the request from the access token cookie, or a
// Bearer header for non-browser clients, and stores the account in context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessTokenFromRequest(r)
		if token == "" {
			unauthorized(w, "Authentication required")
			return
		}

		user, err := m.sessions.Authenticate(r.Context(), token)
		switch {
		case errors.Is(err, auth.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, ErrCodeTokenExpired, "Access token expired")
			return
		case errors.Is(err, auth.ErrTokenRevoked):
			writeError(w, http.StatusUnauthorized, ErrCodeTokenRevoked, "Access token revoked")
			return
		case errors.Is(err, auth.ErrAccountBanned):
			writeError(w, http.StatusForbidden, ErrCodeBanned, "Account is banned")
			return
		case err != nil:
			unauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), currentUserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil {
				unauthorized(w, "Authentication required")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			forbidden(w, "Insufficient permissions")
		})
	}
}

// RequireVerifiedEmail gates actions that need a confirmed address.
func (m *AuthMiddleware) RequireVerifiedEmail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			unauthorized(w, "Authentication required")
			return
		}
		if !user.IsEmailVerified {
			forbidden(w, "Email verification required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CurrentUser(r *http.Request) *models.User {
	if v := r.Context().Value(currentUserKey); v != nil {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

func accessTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
