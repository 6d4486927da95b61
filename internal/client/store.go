// Package client talks to the message store from a wallet's point of view:
// the deployed contract when the network has one, a local SQLite file when
// it does not.
package client

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/models"
)

var (
	// ErrNoContract means nothing is deployed at the configured address.
	// FallbackStore treats it as the signal to go local.
	ErrNoContract = errors.New("no contract deployed at address")
	// ErrNetwork wraps transport failures and unexpected server replies.
	ErrNetwork = errors.New("network error, please try again")
	// ErrNoWallet is returned by writes when no signing key is configured.
	ErrNoWallet     = errors.New("no wallet key configured")
	ErrUnauthorized = errors.New("wallet login rejected")
)

// Backend names where a store keeps its messages.
type Backend string

const (
	BackendContract Backend = "contract"
	BackendLocal    Backend = "local"
)

// MessageStore mirrors the contract's read and write methods. Writes always
// act on Caller's own list; reads may target any address.
type MessageStore interface {
	Backend() Backend
	Caller() common.Address

	StoreMessage(ctx context.Context, content []byte) (*models.Receipt, error)
	StoreResponse(ctx context.Context, content []byte) (*models.Receipt, error)
	ClearMessages(ctx context.Context) (*models.Receipt, error)
	RequestDecryption(ctx context.Context) (*models.Receipt, error)

	GetMessageCount(ctx context.Context, user common.Address) (uint64, error)
	GetMessage(ctx context.Context, user common.Address, index uint64) (*models.Message, error)
	GetMessageMetadata(ctx context.Context, user common.Address, index uint64) (*models.MessageMetadata, error)
	GetEncryptedContent(ctx context.Context, user common.Address, index uint64) ([]byte, error)
	GetAllMessages(ctx context.Context, user common.Address) ([]*models.Message, error)
}
