package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/prudhvinik1/cipherchat/internal/repositories"
	"github.com/sirupsen/logrus"
)

const MaxContentSize = models.MaxContentSize

var (
	ErrEmptyContent     = models.ErrEmptyContent
	ErrContentTooLarge  = models.ErrContentTooLarge
	ErrIndexOutOfBounds = models.ErrIndexOutOfBounds
)

// MessageService is the message-store contract deployed at one address.
// Reads are open to every caller for every user; writes only ever touch
// the caller's own list.
type MessageService struct {
	contract    common.Address
	messageRepo repositories.MessageRepository
	eventRepo   repositories.EventRepository
	now         func() time.Time
}

func NewMessageService(
	contract common.Address,
	messageRepo repositories.MessageRepository,
	eventRepo repositories.EventRepository,
) *MessageService {
	return &MessageService{
		contract:    contract,
		messageRepo: messageRepo,
		eventRepo:   eventRepo,
		now:         time.Now,
	}
}

func (s *MessageService) Contract() common.Address {
	return s.contract
}

// StoreMessage appends a user-authored message to the caller's list.
func (s *MessageService) StoreMessage(ctx context.Context, caller common.Address, content []byte) (*models.Receipt, error) {
	return s.store(ctx, caller, caller, content, false)
}

// StoreResponse appends a system response to the caller's list. The
// contract itself is recorded as the sender.
func (s *MessageService) StoreResponse(ctx context.Context, caller common.Address, content []byte) (*models.Receipt, error) {
	return s.store(ctx, caller, s.contract, content, true)
}

func (s *MessageService) store(ctx context.Context, caller, sender common.Address, content []byte, isResponse bool) (*models.Receipt, error) {
	if err := models.ValidateContent(content); err != nil {
		return nil, err
	}

	now := s.now()
	message := &models.Message{
		Sender:           sender,
		EncryptedContent: append([]byte(nil), content...),
		Timestamp:        uint64(now.Unix()),
		IsResponse:       isResponse,
	}

	index, err := s.messageRepo.Append(ctx, s.contract, caller, message)
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	event := s.newEvent(models.EventMessageStored, caller, now)
	event.Index = index
	event.IsResponse = isResponse

	logrus.WithFields(logrus.Fields{
		"contract":    s.contract.Hex(),
		"user":        caller.Hex(),
		"index":       index,
		"size":        len(content),
		"is_response": isResponse,
	}).Debug("Message stored")

	return s.emit(ctx, caller, now, event), nil
}

func (s *MessageService) GetMessageCount(ctx context.Context, user common.Address) (uint64, error) {
	count, err := s.messageRepo.Count(ctx, s.contract, user)
	if err != nil {
		return 0, fmt.Errorf("failed to get message count: %w", err)
	}
	return count, nil
}

func (s *MessageService) GetMessage(ctx context.Context, user common.Address, index uint64) (*models.Message, error) {
	count, err := s.GetMessageCount(ctx, user)
	if err != nil {
		return nil, err
	}
	if index >= count {
		return nil, ErrIndexOutOfBounds
	}

	message, err := s.messageRepo.GetByIndex(ctx, s.contract, user, index)
	if errors.Is(err, repositories.ErrNotFound) {
		// The list shrank between the count and the read.
		return nil, ErrIndexOutOfBounds
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return message, nil
}

func (s *MessageService) GetMessageMetadata(ctx context.Context, user common.Address, index uint64) (*models.MessageMetadata, error) {
	message, err := s.GetMessage(ctx, user, index)
	if err != nil {
		return nil, err
	}
	metadata := message.Metadata()
	return &metadata, nil
}

func (s *MessageService) GetEncryptedContent(ctx context.Context, user common.Address, index uint64) ([]byte, error) {
	message, err := s.GetMessage(ctx, user, index)
	if err != nil {
		return nil, err
	}
	return message.EncryptedContent, nil
}

func (s *MessageService) GetAllMessages(ctx context.Context, user common.Address) ([]*models.Message, error) {
	messages, err := s.messageRepo.List(ctx, s.contract, user)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// ClearMessages deletes every message in the caller's list. Other users'
// lists are never touched.
func (s *MessageService) ClearMessages(ctx context.Context, caller common.Address) (*models.Receipt, error) {
	removed, err := s.messageRepo.DeleteAll(ctx, s.contract, caller)
	if err != nil {
		return nil, fmt.Errorf("failed to clear messages: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"contract": s.contract.Hex(),
		"user":     caller.Hex(),
		"removed":  removed,
	}).Info("Messages cleared")

	now := s.now()
	return s.emit(ctx, caller, now, s.newEvent(models.EventMessagesCleared, caller, now)), nil
}

// RequestDecryption only emits DecryptionRequested; no state changes.
func (s *MessageService) RequestDecryption(ctx context.Context, caller common.Address) (*models.Receipt, error) {
	now := s.now()
	return s.emit(ctx, caller, now, s.newEvent(models.EventDecryptionRequested, caller, now)), nil
}

func (s *MessageService) GetEvents(ctx context.Context, user common.Address, limit int64) ([]*models.ContractEvent, error) {
	events, err := s.eventRepo.ListByUser(ctx, s.contract, user, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	return events, nil
}

func (s *MessageService) SubscribeEvents(ctx context.Context) (<-chan *models.ContractEvent, error) {
	return s.eventRepo.Subscribe(ctx, s.contract)
}

func (s *MessageService) newEvent(name models.EventName, user common.Address, now time.Time) *models.ContractEvent {
	return &models.ContractEvent{
		ID:        uuid.New(),
		Contract:  s.contract,
		Name:      name,
		User:      user,
		Timestamp: uint64(now.Unix()),
		CreatedAt: now,
	}
}

// emit records the event and builds the receipt. The state change has
// already committed, so a failed event write is logged rather than
// failing the call.
func (s *MessageService) emit(ctx context.Context, caller common.Address, now time.Time, event *models.ContractEvent) *models.Receipt {
	if err := s.eventRepo.Append(ctx, event); err != nil {
		logrus.WithFields(logrus.Fields{
			"contract": s.contract.Hex(),
			"event":    event.Name,
			"user":     caller.Hex(),
			"error":    err.Error(),
		}).Warn("Failed to record contract event")
	}

	return &models.Receipt{
		TxHash:      uuid.New(),
		Contract:    s.contract,
		From:        caller,
		Events:      []models.ContractEvent{*event},
		ConfirmedAt: now,
	}
}
