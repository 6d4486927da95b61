package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const sessionPrefix = "session:"
const addressSessionsPrefix = "address:%s:sessions"

type RedisSessionRepository struct {
	client *redis.Client
}

func NewRedisSessionRepository(client *redis.Client) *RedisSessionRepository {
	return &RedisSessionRepository{client: client}
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *models.Session) error {
	jsonData, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", session.ID)
	}

	err = r.client.Set(ctx, sessionPrefix+session.ID, jsonData, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	err = r.client.SAdd(ctx, addressSessionsKey(session.Address), session.ID).Err()
	if err != nil {
		return fmt.Errorf("failed to add session to address sessions: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id string) (*models.Session, error) {
	jsonData, err := r.client.Get(ctx, sessionPrefix+id).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// ListByAddress returns live sessions and prunes ids whose keys have expired.
func (r *RedisSessionRepository) ListByAddress(ctx context.Context, address common.Address) ([]*models.Session, error) {
	key := addressSessionsKey(address)
	sessionIDs, err := r.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get address sessions: %w", err)
	}

	var sessions []*models.Session
	var expiredIDs []interface{}

	for _, id := range sessionIDs {
		session, err := r.GetByID(ctx, id)
		if errors.Is(err, ErrNotFound) {
			expiredIDs = append(expiredIDs, id)
			continue
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"session_id": id,
				"error":      err.Error(),
			}).Warn("Skipping unreadable session")
			continue
		}
		sessions = append(sessions, session)
	}

	if len(expiredIDs) > 0 {
		if err := r.client.SRem(ctx, key, expiredIDs...).Err(); err != nil {
			return nil, fmt.Errorf("failed to remove expired sessions: %w", err)
		}
	}
	return sessions, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	if err := r.client.SRem(ctx, addressSessionsKey(session.Address), id).Err(); err != nil {
		return fmt.Errorf("failed to remove session from address sessions: %w", err)
	}

	if err := r.client.Del(ctx, sessionPrefix+id).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepository) DeleteAllForAddress(ctx context.Context, address common.Address) error {
	sessionIDs, err := r.client.SMembers(ctx, addressSessionsKey(address)).Result()
	if err != nil {
		return fmt.Errorf("failed to get address sessions: %w", err)
	}
	for _, id := range sessionIDs {
		if err := r.Delete(ctx, id); err != nil {
			logrus.WithFields(logrus.Fields{
				"session_id": id,
				"error":      err.Error(),
			}).Warn("Failed to delete session")
			continue
		}
	}
	return nil
}

func addressSessionsKey(address common.Address) string {
	return fmt.Sprintf(addressSessionsPrefix, address.Hex())
}
