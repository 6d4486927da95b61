package client

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/deployments"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/sirupsen/logrus"
)

// DeploymentSource is satisfied by *deployments.Loader.
type DeploymentSource interface {
	Load(ctx context.Context) (deployments.Map, error)
}

type ConnectOptions struct {
	RPCURL      string
	Network     string
	Deployments DeploymentSource
	Key         *ecdsa.PrivateKey
	Local       *LocalStore
	HTTPClient  *http.Client
}

// Connect picks the contract for opts.Network when the deployment map has
// one and the local store otherwise. A deployment map that cannot be loaded
// counts as "not deployed".
func Connect(ctx context.Context, opts ConnectOptions) (MessageStore, error) {
	if opts.Local == nil {
		return nil, errors.New("local store is required")
	}

	deployed, err := opts.Deployments.Load(ctx)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"network": opts.Network,
			"error":   err.Error(),
		}).Warn("Deployment map unavailable, using local storage")
		return opts.Local, nil
	}

	contract, err := deployed.Lookup(opts.Network)
	if err != nil {
		logrus.WithField("network", opts.Network).Info("No contract on network, using local storage")
		return opts.Local, nil
	}

	logrus.WithFields(logrus.Fields{
		"network":  opts.Network,
		"contract": contract.Hex(),
	}).Debug("Using deployed contract")

	remote := NewRemoteStore(opts.RPCURL, contract, opts.Key, opts.HTTPClient)
	return NewFallbackStore(remote, opts.Local), nil
}

// FallbackStore sends every call to the primary until one reports that no
// contract is deployed, then moves to the local store for good.
type FallbackStore struct {
	primary  MessageStore
	local    MessageStore
	degraded atomic.Bool
}

func NewFallbackStore(primary, local MessageStore) *FallbackStore {
	return &FallbackStore{primary: primary, local: local}
}

func (f *FallbackStore) active() MessageStore {
	if f.degraded.Load() {
		return f.local
	}
	return f.primary
}

func (f *FallbackStore) Backend() Backend { return f.active().Backend() }

func (f *FallbackStore) Caller() common.Address { return f.active().Caller() }

func withFallback[T any](f *FallbackStore, call func(MessageStore) (T, error)) (T, error) {
	if f.degraded.Load() {
		return call(f.local)
	}

	result, err := call(f.primary)
	if !IsNoContract(err) {
		return result, err
	}

	if f.degraded.CompareAndSwap(false, true) {
		logrus.WithField("error", err.Error()).Warn("Contract not reachable, falling back to local storage")
	}
	return call(f.local)
}

func (f *FallbackStore) StoreMessage(ctx context.Context, content []byte) (*models.Receipt, error) {
	return withFallback(f, func(s MessageStore) (*models.Receipt, error) {
		return s.StoreMessage(ctx, content)
	})
}

func (f *FallbackStore) StoreResponse(ctx context.Context, content []byte) (*models.Receipt, error) {
	return withFallback(f, func(s MessageStore) (*models.Receipt, error) {
		return s.StoreResponse(ctx, content)
	})
}

func (f *FallbackStore) ClearMessages(ctx context.Context) (*models.Receipt, error) {
	return withFallback(f, func(s MessageStore) (*models.Receipt, error) {
		return s.ClearMessages(ctx)
	})
}

func (f *FallbackStore) RequestDecryption(ctx context.Context) (*models.Receipt, error) {
	return withFallback(f, func(s MessageStore) (*models.Receipt, error) {
		return s.RequestDecryption(ctx)
	})
}

func (f *FallbackStore) GetMessageCount(ctx context.Context, user common.Address) (uint64, error) {
	return withFallback(f, func(s MessageStore) (uint64, error) {
		return s.GetMessageCount(ctx, user)
	})
}

func (f *FallbackStore) GetMessage(ctx context.Context, user common.Address, index uint64) (*models.Message, error) {
	return withFallback(f, func(s MessageStore) (*models.Message, error) {
		return s.GetMessage(ctx, user, index)
	})
}

func (f *FallbackStore) GetMessageMetadata(ctx context.Context, user common.Address, index uint64) (*models.MessageMetadata, error) {
	return withFallback(f, func(s MessageStore) (*models.MessageMetadata, error) {
		return s.GetMessageMetadata(ctx, user, index)
	})
}

func (f *FallbackStore) GetEncryptedContent(ctx context.Context, user common.Address, index uint64) ([]byte, error) {
	return withFallback(f, func(s MessageStore) ([]byte, error) {
		return s.GetEncryptedContent(ctx, user, index)
	})
}

func (f *FallbackStore) GetAllMessages(ctx context.Context, user common.Address) ([]*models.Message, error) {
	return withFallback(f, func(s MessageStore) ([]*models.Message, error) {
		return s.GetAllMessages(ctx, user)
	})
}
