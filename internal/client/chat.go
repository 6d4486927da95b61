package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/codec"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DecryptionFailedText replaces the body of a message that did not open.
const DecryptionFailedText = "decryption failed"

var ErrEmptyMessage = errors.New("message text is empty")

// AutoResponses are the canned replies stored after every sent message.
var AutoResponses = []string{
	"Message received. It is stored encrypted and only your password can open it.",
	"Got it. Your message is sealed on the ledger.",
	"Thanks! Nobody without the password can read this, including me.",
	"Stored. Use the same password later to decrypt the conversation.",
	"Encrypted and saved. Reply any time.",
}

// ChatMessage is a stored record after a decryption attempt.
type ChatMessage struct {
	Index      uint64
	Sender     common.Address
	Timestamp  time.Time
	IsResponse bool
	Text       string
	Failed     bool
}

// Chat is one wallet's conversation with the store.
type Chat struct {
	store     MessageStore
	responses []string
	pick      func(n int) int
}

func NewChat(store MessageStore) *Chat {
	return &Chat{
		store:     store,
		responses: AutoResponses,
		pick:      rand.IntN,
	}
}

func (c *Chat) Store() MessageStore { return c.store }

// Send encrypts text, stores it, stores an auto-response sealed with the
// same password, then re-reads and decrypts the whole conversation.
func (c *Chat) Send(ctx context.Context, text, password string) ([]ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	payload, err := codec.Encrypt(text, password)
	if err != nil {
		return nil, err
	}
	receipt, err := c.store.StoreMessage(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"tx":      receipt.TxHash.String(),
		"backend": c.store.Backend(),
	}).Debug("Message confirmed")

	reply, err := codec.Encrypt(c.responses[c.pick(len(c.responses))], password)
	if err != nil {
		return nil, err
	}
	if _, err := c.store.StoreResponse(ctx, reply); err != nil {
		return nil, fmt.Errorf("failed to store response: %w", err)
	}

	return c.DecryptAll(ctx, password)
}

// DecryptAll fetches the caller's list and decrypts every entry in
// parallel. A message that fails to open is flagged; the rest still return.
func (c *Chat) DecryptAll(ctx context.Context, password string) ([]ChatMessage, error) {
	if password == "" {
		return nil, codec.ErrEmptyPassword
	}

	messages, err := c.store.GetAllMessages(ctx, c.store.Caller())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	out := make([]ChatMessage, len(messages))
	var g errgroup.Group
	for i, m := range messages {
		g.Go(func() error {
			if m == nil {
				out[i] = ChatMessage{Index: uint64(i), Failed: true, Text: DecryptionFailedText}
				return nil
			}
			out[i] = ChatMessage{
				Index:      uint64(i),
				Sender:     m.Sender,
				Timestamp:  time.Unix(int64(m.Timestamp), 0),
				IsResponse: m.IsResponse,
			}
			text, err := codec.Decrypt(m.EncryptedContent, password)
			if err != nil {
				out[i].Failed = true
				out[i].Text = DecryptionFailedText
				return nil
			}
			out[i].Text = text
			return nil
		})
	}
	// Per-message failures never surface here.
	_ = g.Wait()

	return out, nil
}

func (c *Chat) Clear(ctx context.Context) error {
	if _, err := c.store.ClearMessages(ctx); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}

func (c *Chat) RequestDecryption(ctx context.Context) (*models.Receipt, error) {
	receipt, err := c.store.RequestDecryption(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to request decryption: %w", err)
	}
	return receipt, nil
}
