package kv

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	referralCodeKeyPrefix  = "referral_code:"
	referralSetKeyPrefix   = "referral:"
	referralCountKeyPrefix = "referral_count:"
)

// ReferralStore maps referral codes to user ids and tracks who each user
// has referred.
type ReferralStore struct {
	client *redis.Client
}

func NewReferralStore(client *redis.Client) *ReferralStore {
	return &ReferralStore{client: client}
}

// CreateCode generates a fresh referral code for the user. Codes never
// expire.
func (s *ReferralStore) CreateCode(ctx context.Context, userID string) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating referral code: %w", err)
	}
	code := hex.EncodeToString(buf)

	if err := s.client.Set(ctx, referralCodeKeyPrefix+code, userID, 0).Err(); err != nil {
		return "", fmt.Errorf("saving referral code: %w", err)
	}
	return code, nil
}

// ResolveCode returns the owner of a referral code, or empty string when the
// code is unknown.
func (s *ReferralStore) ResolveCode(ctx context.Context, code string) (string, error) {
	userID, err := s.client.Get(ctx, referralCodeKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving referral code: %w", err)
	}
	return userID, nil
}

// RecordReferral credits the referrer with the new user. The set dedupes a
// user being credited twice; the counter only moves on first insertion.
func (s *ReferralStore) RecordReferral(ctx context.Context, referrerID, referredID string) error {
	added, err := s.client.SAdd(ctx, referralSetKeyPrefix+referrerID, referredID).Result()
	if err != nil {
		return fmt.Errorf("recording referral: %w", err)
	}
	if added == 0 {
		return nil
	}
	if err := s.client.Incr(ctx, referralCountKeyPrefix+referrerID).Err(); err != nil {
		return fmt.Errorf("incrementing referral count: %w", err)
	}
	return nil
}

func (s *ReferralStore) Count(ctx context.Context, userID string) (int64, error) {
	n, err := s.client.Get(ctx, referralCountKeyPrefix+userID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("getting referral count: %w", err)
	}
	return n, nil
}

func (s *ReferralStore) Referred(ctx context.Context, userID string) ([]string, error) {
	members, err := s.client.SMembers(ctx, referralSetKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("listing referrals: %w", err)
	}
	return members, nil
}
