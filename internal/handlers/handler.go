package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prudhvinik1/cipherchat/internal/deployments"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/prudhvinik1/cipherchat/internal/services"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes leaves room for a base64-encoded 16 KiB payload.
const maxBodyBytes = 64 * 1024

type ContractService interface {
	Contract() common.Address
	StoreMessage(ctx context.Context, caller common.Address, content []byte) (*models.Receipt, error)
	StoreResponse(ctx context.Context, caller common.Address, content []byte) (*models.Receipt, error)
	GetMessageCount(ctx context.Context, user common.Address) (uint64, error)
	GetMessage(ctx context.Context, user common.Address, index uint64) (*models.Message, error)
	GetMessageMetadata(ctx context.Context, user common.Address, index uint64) (*models.MessageMetadata, error)
	GetEncryptedContent(ctx context.Context, user common.Address, index uint64) ([]byte, error)
	GetAllMessages(ctx context.Context, user common.Address) ([]*models.Message, error)
	ClearMessages(ctx context.Context, caller common.Address) (*models.Receipt, error)
	RequestDecryption(ctx context.Context, caller common.Address) (*models.Receipt, error)
	GetEvents(ctx context.Context, user common.Address, limit int64) ([]*models.ContractEvent, error)
	SubscribeEvents(ctx context.Context) (<-chan *models.ContractEvent, error)
}

type Authenticator interface {
	Challenge(ctx context.Context, address common.Address) (*models.Challenge, error)
	Login(ctx context.Context, req services.LoginRequest) (*services.LoginResponse, error)
	Authenticate(ctx context.Context, token string) (*services.TokenClaims, error)
	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, token string) error
}

type Handler struct {
	contract    ContractService
	auth        Authenticator
	deployments deployments.Map
}

func NewHandler(contract ContractService, auth Authenticator, deployed deployments.Map) *Handler {
	return &Handler{
		contract:    contract,
		auth:        auth,
		deployments: deployed,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithField("error", err.Error()).Warn("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeServiceError maps contract errors onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyContent), errors.Is(err, services.ErrContentTooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrIndexOutOfBounds):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrNoChallenge),
		errors.Is(err, services.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		logrus.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"error":  err.Error(),
		}).Error("Request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func addressParam(r *http.Request, name string) (common.Address, bool) {
	raw := chi.URLParam(r, name)
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func indexParam(r *http.Request) (uint64, bool) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	return index, err == nil
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func userAndIndex(w http.ResponseWriter, r *http.Request) (common.Address, uint64, bool) {
	user, ok := addressParam(r, "address")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return common.Address{}, 0, false
	}
	index, ok := indexParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid index")
		return common.Address{}, 0, false
	}
	return user, index, true
}
