package services

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/models"
	"github.com/prudhvinik1/cipherchat/internal/repositories"
)

type listKey struct {
	contract common.Address
	owner    common.Address
}

type fakeMessageRepo struct {
	mu    sync.Mutex
	lists map[listKey][]*models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{lists: make(map[listKey][]*models.Message)}
}

func (r *fakeMessageRepo) Append(_ context.Context, contract, owner common.Address, message *models.Message) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := listKey{contract, owner}
	r.lists[key] = append(r.lists[key], message)
	return uint64(len(r.lists[key]) - 1), nil
}

func (r *fakeMessageRepo) Count(_ context.Context, contract, owner common.Address) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return uint64(len(r.lists[listKey{contract, owner}])), nil
}

func (r *fakeMessageRepo) GetByIndex(_ context.Context, contract, owner common.Address, index uint64) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.lists[listKey{contract, owner}]
	if index >= uint64(len(list)) {
		return nil, repositories.ErrNotFound
	}
	return list[index], nil
}

func (r *fakeMessageRepo) List(_ context.Context, contract, owner common.Address) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.Message{}, r.lists[listKey{contract, owner}]...), nil
}

func (r *fakeMessageRepo) DeleteAll(_ context.Context, contract, owner common.Address) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := listKey{contract, owner}
	n := len(r.lists[key])
	delete(r.lists, key)
	return int64(n), nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*models.ContractEvent
	err    error
}

func (r *fakeEventRepo) Append(_ context.Context, event *models.ContractEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *fakeEventRepo) ListByUser(_ context.Context, contract, user common.Address, limit int64) ([]*models.ContractEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.ContractEvent
	for _, e := range r.events {
		if e.Contract == contract && e.User == user {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) Subscribe(ctx context.Context, contract common.Address) (<-chan *models.ContractEvent, error) {
	ch := make(chan *models.ContractEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

type fakeChallengeRepo struct {
	mu         sync.Mutex
	challenges map[common.Address]*models.Challenge
}

func newFakeChallengeRepo() *fakeChallengeRepo {
	return &fakeChallengeRepo{challenges: make(map[common.Address]*models.Challenge)}
}

func (r *fakeChallengeRepo) Put(_ context.Context, challenge *models.Challenge, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	challenge.ExpiresAt = time.Now().Add(ttl)
	r.challenges[challenge.Address] = challenge
	return nil
}

func (r *fakeChallengeRepo) Take(_ context.Context, address common.Address) (*models.Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	challenge, ok := r.challenges[address]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	delete(r.challenges, address)
	return challenge, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*models.Session)}
}

func (r *fakeSessionRepo) Create(_ context.Context, session *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return session, nil
}

func (r *fakeSessionRepo) ListByAddress(_ context.Context, address common.Address) ([]*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Session
	for _, s := range r.sessions {
		if s.Address == address {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteAllForAddress(_ context.Context, address common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.Address == address {
			delete(r.sessions, id)
		}
	}
	return nil
}
