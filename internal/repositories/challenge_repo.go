package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "challenge:"

type RedisChallengeRepository struct {
	client *redis.Client
}

func NewRedisChallengeRepository(client *redis.Client) *RedisChallengeRepository {
	return &RedisChallengeRepository{client: client}
}

// Put stores the challenge, replacing any pending one for the same address.
// It expires after ttl if never taken.
func (r *RedisChallengeRepository) Put(ctx context.Context, challenge *models.Challenge, ttl time.Duration) error {
	challenge.ExpiresAt = time.Now().Add(ttl)

	data, err := json.Marshal(challenge)
	if err != nil {
		return fmt.Errorf("failed to marshal challenge: %w", err)
	}

	if err := r.client.Set(ctx, challengeKey(challenge.Address), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set challenge: %w", err)
	}
	return nil
}

func (r *RedisChallengeRepository) Take(ctx context.Context, address common.Address) (*models.Challenge, error) {
	data, err := r.client.GetDel(ctx, challengeKey(address)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to take challenge: %w", err)
	}

	var challenge models.Challenge
	if err := json.Unmarshal([]byte(data), &challenge); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	return &challenge, nil
}

func challengeKey(address common.Address) string {
	return challengeKeyPrefix + address.Hex()
}
