package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Receipt confirms a state-changing call. Once the caller holds a receipt
// the change is visible to subsequent reads.
type Receipt struct {
	TxHash      uuid.UUID       `json:"tx_hash"`
	Contract    common.Address  `json:"contract"`
	From        common.Address  `json:"from"`
	Events      []ContractEvent `json:"events"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}
