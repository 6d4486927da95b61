package repositories

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/models"
)

// MessageRepository stores per-user message lists, scoped by contract.
// Lists are append-only; position in the list is the message index.
type MessageRepository interface {
	Append(ctx context.Context, contract, owner common.Address, message *models.Message) (uint64, error)
	Count(ctx context.Context, contract, owner common.Address) (uint64, error)
	GetByIndex(ctx context.Context, contract, owner common.Address, index uint64) (*models.Message, error)
	List(ctx context.Context, contract, owner common.Address) ([]*models.Message, error)
	DeleteAll(ctx context.Context, contract, owner common.Address) (int64, error)
}

type EventRepository interface {
	Append(ctx context.Context, event *models.ContractEvent) error
	ListByUser(ctx context.Context, contract, user common.Address, limit int64) ([]*models.ContractEvent, error)
	Subscribe(ctx context.Context, contract common.Address) (<-chan *models.ContractEvent, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	ListByAddress(ctx context.Context, address common.Address) ([]*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAddress(ctx context.Context, address common.Address) error
}

type ChallengeRepository interface {
	Put(ctx context.Context, challenge *models.Challenge, ttl time.Duration) error
	// Take returns the pending challenge for address and removes it.
	Take(ctx context.Context, address common.Address) (*models.Challenge, error)
}
