package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	eventLogPrefix     = "events:%s:%s"
	eventChannelPrefix = "events:%s"
	// Only the most recent entries are kept per user.
	maxEventLogLength = 1000
)

type RedisEventRepository struct {
	client *redis.Client
}

func NewRedisEventRepository(client *redis.Client) *RedisEventRepository {
	return &RedisEventRepository{client: client}
}

// Append records the event in the user's log and publishes it to the
// contract's channel.
func (r *RedisEventRepository) Append(ctx context.Context, event *models.ContractEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	logKey := eventLogKey(event.Contract, event.User)

	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, logKey, data)
	pipe.LTrim(ctx, logKey, 0, maxEventLogLength-1)
	pipe.Publish(ctx, eventChannel(event.Contract), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// ListByUser returns up to limit events in emission order, oldest first.
func (r *RedisEventRepository) ListByUser(ctx context.Context, contract, user common.Address, limit int64) ([]*models.ContractEvent, error) {
	if limit <= 0 || limit > maxEventLogLength {
		limit = maxEventLogLength
	}

	raw, err := r.client.LRange(ctx, eventLogKey(contract, user), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*models.ContractEvent, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var event models.ContractEvent
		if err := json.Unmarshal([]byte(raw[i]), &event); err != nil {
			logrus.WithFields(logrus.Fields{
				"user":  user.Hex(),
				"error": err.Error(),
			}).Warn("Skipping unreadable event log entry")
			continue
		}
		events = append(events, &event)
	}
	return events, nil
}

// Subscribe streams events published for contract until ctx is cancelled.
func (r *RedisEventRepository) Subscribe(ctx context.Context, contract common.Address) (<-chan *models.ContractEvent, error) {
	pubsub := r.client.Subscribe(ctx, eventChannel(contract))
	// Wait for the subscription to be confirmed before handing out the channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to events: %w", err)
	}

	out := make(chan *models.ContractEvent)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event models.ContractEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					continue
				}
				select {
				case out <- &event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

func eventLogKey(contract, user common.Address) string {
	return fmt.Sprintf(eventLogPrefix, contract.Hex(), user.Hex())
}

func eventChannel(contract common.Address) string {
	return fmt.Sprintf(eventChannelPrefix, contract.Hex())
}
