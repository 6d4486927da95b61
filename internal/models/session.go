package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Session struct {
	ID        string         `json:"id"`
	Address   common.Address `json:"address"`
	ExpiresAt time.Time      `json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
}
