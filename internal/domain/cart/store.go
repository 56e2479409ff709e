// internal/domain/cart/store.go
package cart

import (
	"context"
	"sync"
)

// Store persists cart snapshots by key
type Store interface {
	Save(ctx context.Context, key string, c *Cart) error
	// Load returns ErrSnapshotNotFound when nothing is stored under key
	Load(ctx context.Context, key string) (*Cart, error)
}

// MemoryStore keeps snapshots in process memory
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]*Cart
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]*Cart)}
}

// Save implements Store
func (m *MemoryStore) Save(ctx context.Context, key string, c *Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[key] = c.Clone()
	return nil
}

// Load implements Store
func (m *MemoryStore) Load(ctx context.Context, key string) (*Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[key]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return c.Clone(), nil
}
