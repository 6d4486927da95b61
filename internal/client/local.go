package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/sirupsen/logrus"
)

// LocalKeyPrefix namespaces each wallet's message array in the kv table.
const LocalKeyPrefix = "cipherchat_messages_"

var localMigrations = []string{
	`
CREATE TABLE IF NOT EXISTS kv (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
`,
}

// LocalStore keeps one JSON array of message records per wallet address in
// a SQLite key/value table. Nothing leaves the machine.
type LocalStore struct {
	db     *sql.DB
	caller common.Address
	now    func() time.Time

	// Serializes read-modify-write of a single array.
	mu        sync.Mutex
	closeOnce sync.Once
}

// OpenLocalStore opens (or creates) the SQLite file at path and runs migrations.
func OpenLocalStore(path string, caller common.Address) (*LocalStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create local store directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.ToSlash(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	store := &LocalStore{db: db, caller: caller, now: time.Now}
	if err := store.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *LocalStore) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		closeErr = s.db.Close()
	})
	return closeErr
}

func (s *LocalStore) applyMigrations() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= len(localMigrations) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := version; i < len(localMigrations); i++ {
		if _, err := tx.Exec(localMigrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d;", i+1)); err != nil {
			return fmt.Errorf("set schema version %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration transaction: %w", err)
	}
	return nil
}

func (s *LocalStore) Backend() Backend { return BackendLocal }

func (s *LocalStore) Caller() common.Address { return s.caller }

func localKey(user common.Address) string {
	return LocalKeyPrefix + strings.ToLower(user.Hex())
}

// load returns the stored array for user. A missing key reads as an empty
// list, and so does any value that is not a list of messages.
func (s *LocalStore) load(ctx context.Context, user common.Address) ([]*models.Message, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, localKey(user)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []*models.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read local messages: %w", err)
	}

	var messages []*models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		logrus.WithFields(logrus.Fields{
			"key":   localKey(user),
			"error": err.Error(),
		}).Warn("Discarding malformed local messages")
		return []*models.Message{}, nil
	}
	if i := slices.Index(messages, nil); i >= 0 {
		logrus.WithFields(logrus.Fields{
			"key":   localKey(user),
			"index": i,
		}).Warn("Discarding local messages with a null entry")
		return []*models.Message{}, nil
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	return messages, nil
}

func (s *LocalStore) save(ctx context.Context, user common.Address, messages []*models.Message) error {
	raw, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("encode local messages: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		localKey(user), string(raw), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("write local messages: %w", err)
	}
	return nil
}

func (s *LocalStore) StoreMessage(ctx context.Context, content []byte) (*models.Receipt, error) {
	return s.append(ctx, s.caller, content, false)
}

// StoreResponse records a response with the zero address as sender, since
// no contract exists to stand in for the system.
func (s *LocalStore) StoreResponse(ctx context.Context, content []byte) (*models.Receipt, error) {
	return s.append(ctx, common.Address{}, content, true)
}

func (s *LocalStore) append(ctx context.Context, sender common.Address, content []byte, isResponse bool) (*models.Receipt, error) {
	if err := models.ValidateContent(content); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	messages, err := s.load(ctx, s.caller)
	if err != nil {
		return nil, err
	}

	now := s.now()
	messages = append(messages, &models.Message{
		Sender:           sender,
		EncryptedContent: append([]byte(nil), content...),
		Timestamp:        uint64(now.Unix()),
		IsResponse:       isResponse,
	})
	if err := s.save(ctx, s.caller, messages); err != nil {
		return nil, err
	}

	event := s.event(models.EventMessageStored, now)
	event.Index = uint64(len(messages) - 1)
	event.IsResponse = isResponse
	return s.receipt(event), nil
}

func (s *LocalStore) ClearMessages(ctx context.Context) (*models.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, localKey(s.caller)); err != nil {
		return nil, fmt.Errorf("clear local messages: %w", err)
	}
	return s.receipt(s.event(models.EventMessagesCleared, s.now())), nil
}

func (s *LocalStore) RequestDecryption(_ context.Context) (*models.Receipt, error) {
	return s.receipt(s.event(models.EventDecryptionRequested, s.now())), nil
}

func (s *LocalStore) GetMessageCount(ctx context.Context, user common.Address) (uint64, error) {
	messages, err := s.load(ctx, user)
	if err != nil {
		return 0, err
	}
	return uint64(len(messages)), nil
}

func (s *LocalStore) GetMessage(ctx context.Context, user common.Address, index uint64) (*models.Message, error) {
	messages, err := s.load(ctx, user)
	if err != nil {
		return nil, err
	}
	if index >= uint64(len(messages)) {
		return nil, models.ErrIndexOutOfBounds
	}
	return messages[index], nil
}

func (s *LocalStore) GetMessageMetadata(ctx context.Context, user common.Address, index uint64) (*models.MessageMetadata, error) {
	message, err := s.GetMessage(ctx, user, index)
	if err != nil {
		return nil, err
	}
	metadata := message.Metadata()
	return &metadata, nil
}

func (s *LocalStore) GetEncryptedContent(ctx context.Context, user common.Address, index uint64) ([]byte, error) {
	message, err := s.GetMessage(ctx, user, index)
	if err != nil {
		return nil, err
	}
	return message.EncryptedContent, nil
}

func (s *LocalStore) GetAllMessages(ctx context.Context, user common.Address) ([]*models.Message, error) {
	return s.load(ctx, user)
}

func (s *LocalStore) event(name models.EventName, now time.Time) *models.ContractEvent {
	return &models.ContractEvent{
		ID:        uuid.New(),
		Name:      name,
		User:      s.caller,
		Timestamp: uint64(now.Unix()),
		CreatedAt: now,
	}
}

// receipt mirrors what the contract returns so callers need not care which
// backend served them. Contract stays zero.
func (s *LocalStore) receipt(event *models.ContractEvent) *models.Receipt {
	return &models.Receipt{
		TxHash:      uuid.New(),
		From:        s.caller,
		Events:      []models.ContractEvent{*event},
		ConfirmedAt: event.CreatedAt,
	}
}
