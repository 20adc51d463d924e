package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenKind selects which signing secret a token is bound to. Access and
// refresh tokens use independent secrets so a leaked refresh key cannot
// forge access tokens.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// JTI returns the unique token identifier used for revocation.
func (c *Claims) JTI() string {
	return c.RegisteredClaims.ID
}

// TokenCodec mints and verifies signed, expiring tokens. It is stateless;
// all secret material is supplied at construction.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
}

func NewTokenCodec(accessSecret, refreshSecret string) *TokenCodec {
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
	}
}

// Issue mints a token for userID with a fresh jti and expiry now+ttl.
func (c *TokenCodec) Issue(userID string, kind TokenKind, ttl time.Duration) (token string, jti string, err error) {
	now := time.Now()
	jti = uuid.NewString()

	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret(kind))
	if err != nil {
		return "", "", fmt.Errorf("signing %s token: %w", kind, err)
	}

	return signed, jti, nil
}

// Verify checks signature and expiry and returns the embedded claims.
func (c *TokenCodec) Verify(token string, kind TokenKind) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret(kind), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.UserID == "" || claims.JTI() == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (c *TokenCodec) secret(kind TokenKind) []byte {
	if kind == TokenRefresh {
		return c.refreshSecret
	}
	return c.accessSecret
}
