package models

import (
	"github.com/ethereum/go-ethereum/common"
)

// Message is one stored chat entry. EncryptedContent is an opaque
// salt||iv||ciphertext blob that the store never interprets.
type Message struct {
	Sender           common.Address `json:"sender"`
	EncryptedContent []byte         `json:"encrypted_content"`
	Timestamp        uint64         `json:"timestamp"`
	IsResponse       bool           `json:"is_response"`
}

type MessageMetadata struct {
	Sender     common.Address `json:"sender"`
	Timestamp  uint64         `json:"timestamp"`
	IsResponse bool           `json:"is_response"`
}

func (m Message) Metadata() MessageMetadata {
	return MessageMetadata{
		Sender:     m.Sender,
		Timestamp:  m.Timestamp,
		IsResponse: m.IsResponse,
	}
}
