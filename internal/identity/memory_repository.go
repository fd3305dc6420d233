package identity

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu         sync.RWMutex
	identities map[string]Identity
}

// NewMemoryRepository builds an in-memory identity store for testing.
func NewMemoryRepository() Repository {
	return &memoryRepository{identities: make(map[string]Identity)}
}

func (r *memoryRepository) Create(_ context.Context, id Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.identities[id.Address]; exists {
		return ErrIdentityExists
	}
	r.identities[id.Address] = id
	return nil
}

func (r *memoryRepository) FindByAddress(_ context.Context, address string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.identities[address]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	return id, nil
}
