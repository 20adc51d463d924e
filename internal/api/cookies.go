package api

import (
	"net/http"
	"time"

	"abegfix/internal/auth"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

// setSessionCookies installs both token cookies. MaxAge follows the token
// lifetimes so the browser drops them when the tokens die.
func setSessionCookies(w http.ResponseWriter, session *auth.Session, domain string) {
	http.SetCookie(w, sessionCookie(accessTokenCookie, session.AccessToken, session.AccessTokenTTL, domain))
	http.SetCookie(w, sessionCookie(refreshTokenCookie, session.RefreshToken, session.RefreshTokenTTL, domain))
}

func clearSessionCookies(w http.ResponseWriter, domain string) {
	http.SetCookie(w, sessionCookie(accessTokenCookie, "", -time.Second, domain))
	http.SetCookie(w, sessionCookie(refreshTokenCookie, "", -time.Second, domain))
}

func sessionCookie(name, value string, ttl time.Duration, domain string) *http.Cookie {
	maxAge := int(ttl / time.Second)
	if value == "" {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}
