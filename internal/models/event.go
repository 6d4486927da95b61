package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type EventName string

const (
	EventMessageStored       EventName = "MessageStored"
	EventMessagesCleared     EventName = "MessagesCleared"
	EventDecryptionRequested EventName = "DecryptionRequested"
)

// ContractEvent is the log entry emitted by a state-changing call.
// Index is only meaningful for MessageStored.
type ContractEvent struct {
	ID         uuid.UUID      `json:"id"`
	Contract   common.Address `json:"contract"`
	Name       EventName      `json:"name"`
	User       common.Address `json:"user"`
	Index      uint64         `json:"index,omitempty"`
	IsResponse bool           `json:"is_response,omitempty"`
	Timestamp  uint64         `json:"timestamp"`
	CreatedAt  time.Time      `json:"created_at"`
}
