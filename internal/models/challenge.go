package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Challenge is the one-time text a wallet signs to prove it owns Address.
type Challenge struct {
	Address   common.Address `json:"address"`
	Nonce     string         `json:"nonce"`
	Message   string         `json:"message"`
	ExpiresAt time.Time      `json:"expires_at"`
}
