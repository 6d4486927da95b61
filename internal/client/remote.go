package client

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/prudhvinik1/cipherchat/internal/utils"
	"github.com/sirupsen/logrus"
)

const (
	requestTimeout = 30 * time.Second
	// tokenSkew re-logs in slightly before the server would reject the token.
	tokenSkew = 30 * time.Second

	notDeployedMessage = "contract not deployed"
)

// RemoteStore calls the contract at one address through the chat server's
// HTTP API. Writes are signed in as the wallet behind key.
type RemoteStore struct {
	rpcURL   string
	contract common.Address
	key      *ecdsa.PrivateKey
	caller   common.Address
	client   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewRemoteStore builds a store for contract behind rpcURL. key may be nil
// for a read-only store.
func NewRemoteStore(rpcURL string, contract common.Address, key *ecdsa.PrivateKey, httpClient *http.Client) *RemoteStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}
	s := &RemoteStore{
		rpcURL:   strings.TrimRight(rpcURL, "/"),
		contract: contract,
		key:      key,
		client:   httpClient,
	}
	if key != nil {
		s.caller = utils.AddressOf(key)
	}
	return s
}

func (s *RemoteStore) Backend() Backend { return BackendContract }

func (s *RemoteStore) Caller() common.Address { return s.caller }

func (s *RemoteStore) Contract() common.Address { return s.contract }

// Login signs a fresh server challenge and caches the resulting token.
func (s *RemoteStore) Login(ctx context.Context) error {
	if s.key == nil {
		return ErrNoWallet
	}

	var challenge models.Challenge
	if err := s.do(ctx, http.MethodPost, "/v1/auth/challenge", "", models.ChallengeRequest{Address: s.caller}, &challenge); err != nil {
		return fmt.Errorf("failed to get challenge: %w", err)
	}

	signature, err := utils.SignText(s.key, challenge.Message)
	if err != nil {
		return err
	}

	var token models.TokenResponse
	req := models.LoginRequest{Address: s.caller, Signature: signature}
	if err := s.do(ctx, http.MethodPost, "/v1/auth/login", "", req, &token); err != nil {
		return fmt.Errorf("failed to login: %w", err)
	}

	s.mu.Lock()
	s.token = token.Token
	s.tokenExpiry = token.ExpiresAt
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"address":    s.caller.Hex(),
		"expires_at": token.ExpiresAt,
	}).Debug("Wallet signed in")
	return nil
}

func (s *RemoteStore) bearer(ctx context.Context) (string, error) {
	s.mu.Lock()
	token, expiry := s.token, s.tokenExpiry
	s.mu.Unlock()

	if token != "" && time.Now().Add(tokenSkew).Before(expiry) {
		return token, nil
	}
	if err := s.Login(ctx); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *RemoteStore) contractPath(suffix string) string {
	return "/v1/contracts/" + s.contract.Hex() + suffix
}

func (s *RemoteStore) userPath(user common.Address, suffix string) string {
	return s.contractPath("/users/" + user.Hex() + suffix)
}

func (s *RemoteStore) write(ctx context.Context, method, path string, body interface{}) (*models.Receipt, error) {
	token, err := s.bearer(ctx)
	if err != nil {
		return nil, err
	}
	var receipt models.Receipt
	if err := s.do(ctx, method, path, token, body, &receipt); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (s *RemoteStore) StoreMessage(ctx context.Context, content []byte) (*models.Receipt, error) {
	if err := models.ValidateContent(content); err != nil {
		return nil, err
	}
	return s.write(ctx, http.MethodPost, s.contractPath("/messages"), models.ContentRequest{EncryptedContent: content})
}

func (s *RemoteStore) StoreResponse(ctx context.Context, content []byte) (*models.Receipt, error) {
	if err := models.ValidateContent(content); err != nil {
		return nil, err
	}
	return s.write(ctx, http.MethodPost, s.contractPath("/responses"), models.ContentRequest{EncryptedContent: content})
}

func (s *RemoteStore) ClearMessages(ctx context.Context) (*models.Receipt, error) {
	return s.write(ctx, http.MethodDelete, s.contractPath("/messages"), nil)
}

func (s *RemoteStore) RequestDecryption(ctx context.Context) (*models.Receipt, error) {
	return s.write(ctx, http.MethodPost, s.contractPath("/decryption-requests"), nil)
}

func (s *RemoteStore) GetMessageCount(ctx context.Context, user common.Address) (uint64, error) {
	var resp models.CountResponse
	if err := s.do(ctx, http.MethodGet, s.userPath(user, "/messages/count"), "", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (s *RemoteStore) GetMessage(ctx context.Context, user common.Address, index uint64) (*models.Message, error) {
	var message models.Message
	if err := s.do(ctx, http.MethodGet, s.userPath(user, fmt.Sprintf("/messages/%d", index)), "", nil, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (s *RemoteStore) GetMessageMetadata(ctx context.Context, user common.Address, index uint64) (*models.MessageMetadata, error) {
	var metadata models.MessageMetadata
	if err := s.do(ctx, http.MethodGet, s.userPath(user, fmt.Sprintf("/messages/%d/metadata", index)), "", nil, &metadata); err != nil {
		return nil, err
	}
	return &metadata, nil
}

func (s *RemoteStore) GetEncryptedContent(ctx context.Context, user common.Address, index uint64) ([]byte, error) {
	var resp models.ContentResponse
	if err := s.do(ctx, http.MethodGet, s.userPath(user, fmt.Sprintf("/messages/%d/content", index)), "", nil, &resp); err != nil {
		return nil, err
	}
	return resp.EncryptedContent, nil
}

func (s *RemoteStore) GetAllMessages(ctx context.Context, user common.Address) ([]*models.Message, error) {
	var resp models.MessagesResponse
	if err := s.do(ctx, http.MethodGet, s.userPath(user, "/messages"), "", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Messages == nil {
		resp.Messages = []*models.Message{}
	}
	return resp.Messages, nil
}

type apiError struct {
	Error string `json:"error"`
}

func (s *RemoteStore) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.rpcURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: malformed response: %v", ErrNetwork, err)
		}
		return nil
	}

	var apiErr apiError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)
	return statusError(resp.StatusCode, apiErr.Error)
}

// statusError turns a non-2xx reply back into the sentinel the server
// started from.
func statusError(status int, message string) error {
	switch status {
	case http.StatusNotFound:
		if message == models.ErrIndexOutOfBounds.Error() {
			return models.ErrIndexOutOfBounds
		}
		if message == notDeployedMessage {
			return ErrNoContract
		}
		return fmt.Errorf("%w: not found", ErrNoContract)
	case http.StatusBadRequest:
		switch message {
		case models.ErrEmptyContent.Error():
			return models.ErrEmptyContent
		case models.ErrContentTooLarge.Error():
			return models.ErrContentTooLarge
		}
		return fmt.Errorf("request rejected: %s", message)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return fmt.Errorf("%w: server returned %d: %s", ErrNetwork, status, message)
}

// IsNoContract reports whether err means the configured address holds no
// contract.
func IsNoContract(err error) bool {
	return errors.Is(err, ErrNoContract)
}
