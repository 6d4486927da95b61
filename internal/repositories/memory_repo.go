package repositories

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prudhvinik1/cipherchat/internal/models"
)

// In-memory repositories back a server started with DATABASE_URL=memory://.
// Nothing survives a restart.

type memoryListKey struct {
	contract common.Address
	owner    common.Address
}

type MemoryMessageRepository struct {
	mu    sync.RWMutex
	lists map[memoryListKey][]*models.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{lists: make(map[memoryListKey][]*models.Message)}
}

func (r *MemoryMessageRepository) Append(_ context.Context, contract, owner common.Address, message *models.Message) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryListKey{contract, owner}
	stored := *message
	r.lists[key] = append(r.lists[key], &stored)
	return uint64(len(r.lists[key]) - 1), nil
}

func (r *MemoryMessageRepository) Count(_ context.Context, contract, owner common.Address) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(len(r.lists[memoryListKey{contract, owner}])), nil
}

func (r *MemoryMessageRepository) GetByIndex(_ context.Context, contract, owner common.Address, index uint64) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.lists[memoryListKey{contract, owner}]
	if index >= uint64(len(list)) {
		return nil, ErrNotFound
	}
	message := *list[index]
	return &message, nil
}

func (r *MemoryMessageRepository) List(_ context.Context, contract, owner common.Address) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.lists[memoryListKey{contract, owner}]
	messages := make([]*models.Message, 0, len(list))
	for _, m := range list {
		message := *m
		messages = append(messages, &message)
	}
	return messages, nil
}

func (r *MemoryMessageRepository) DeleteAll(_ context.Context, contract, owner common.Address) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryListKey{contract, owner}
	removed := len(r.lists[key])
	delete(r.lists, key)
	return int64(removed), nil
}

type MemoryEventRepository struct {
	mu          sync.RWMutex
	logs        map[memoryListKey][]*models.ContractEvent
	subscribers map[common.Address]map[chan *models.ContractEvent]struct{}
}

func NewMemoryEventRepository() *MemoryEventRepository {
	return &MemoryEventRepository{
		logs:        make(map[memoryListKey][]*models.ContractEvent),
		subscribers: make(map[common.Address]map[chan *models.ContractEvent]struct{}),
	}
}

// Append records the event and offers it to every subscriber. Slow
// subscribers miss events rather than block the writer.
func (r *MemoryEventRepository) Append(_ context.Context, event *models.ContractEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryListKey{event.Contract, event.User}
	log := append(r.logs[key], event)
	if len(log) > maxEventLogLength {
		log = log[len(log)-maxEventLogLength:]
	}
	r.logs[key] = log

	for ch := range r.subscribers[event.Contract] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (r *MemoryEventRepository) ListByUser(_ context.Context, contract, user common.Address, limit int64) ([]*models.ContractEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.logs[memoryListKey{contract, user}]
	if limit > 0 && int64(len(log)) > limit {
		log = log[int64(len(log))-limit:]
	}
	return append([]*models.ContractEvent{}, log...), nil
}

func (r *MemoryEventRepository) Subscribe(ctx context.Context, contract common.Address) (<-chan *models.ContractEvent, error) {
	ch := make(chan *models.ContractEvent, 64)

	r.mu.Lock()
	if r.subscribers[contract] == nil {
		r.subscribers[contract] = make(map[chan *models.ContractEvent]struct{})
	}
	r.subscribers[contract][ch] = struct{}{}
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		delete(r.subscribers[contract], ch)
		close(ch)
		r.mu.Unlock()
	}()

	return ch, nil
}
