package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshTokenKeyPrefix = "refresh_token:"
	blacklistKeyPrefix    = "bl_access:"
)

// replaceRefreshScript swaps the stored refresh token only when the current
// value matches the presented one. This is what makes concurrent refresh
// attempts with the same token resolve to a single winner.
var replaceRefreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "EX", ARGV[3])
	return 1
end
return 0
`)

// TokenStore keeps the per-user refresh token registry and the access token
// blacklist in Redis.
type TokenStore struct {
	client *redis.Client
}

func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func (s *TokenStore) SaveRefreshToken(ctx context.Context, userID, token string, ttl time.Duration) error {
	if err := s.client.Set(ctx, refreshTokenKeyPrefix+userID, token, ttl).Err(); err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

// GetRefreshToken returns the stored token, or empty string if none exists.
func (s *TokenStore) GetRefreshToken(ctx context.Context, userID string) (string, error) {
	token, err := s.client.Get(ctx, refreshTokenKeyPrefix+userID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting refresh token: %w", err)
	}
	return token, nil
}

// ReplaceRefreshToken atomically swaps old for new. Returns false without
// error when the stored token no longer matches old.
func (s *TokenStore) ReplaceRefreshToken(ctx context.Context, userID, old, new string, ttl time.Duration) (bool, error) {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	swapped, err := replaceRefreshScript.Run(ctx, s.client,
		[]string{refreshTokenKeyPrefix + userID}, old, new, seconds).Int()
	if err != nil {
		return false, fmt.Errorf("replacing refresh token: %w", err)
	}
	return swapped == 1, nil
}

func (s *TokenStore) DeleteRefreshToken(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, refreshTokenKeyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

// BlacklistAccessToken marks a jti revoked until its natural expiry.
func (s *TokenStore) BlacklistAccessToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, blacklistKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklisting access token: %w", err)
	}
	return nil
}

func (s *TokenStore) IsAccessTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, blacklistKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("checking token blacklist: %w", err)
	}
	return n > 0, nil
}
