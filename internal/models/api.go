package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Request and response bodies shared by the HTTP API and its client.
// Byte fields travel as standard base64.

type ContentRequest struct {
	EncryptedContent []byte `json:"encrypted_content"`
}

type ContentResponse struct {
	EncryptedContent []byte `json:"encrypted_content"`
}

type CountResponse struct {
	Count uint64 `json:"count"`
}

type MessagesResponse struct {
	Messages []*Message `json:"messages"`
}

type EventsResponse struct {
	Events []*ContractEvent `json:"events"`
}

type ChallengeRequest struct {
	Address common.Address `json:"address"`
}

type LoginRequest struct {
	Address   common.Address `json:"address"`
	Signature string         `json:"signature"`
}

type TokenResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Address   common.Address `json:"address"`
}
