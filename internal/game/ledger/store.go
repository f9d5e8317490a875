package ledger

import (
	"context"
	"errors"
	"sync"
)

// ErrTenantNotFound is returned when a tenant has no persisted state.
var ErrTenantNotFound = errors.New("tenant state not found")

// Store is the durability collaborator: it loads and saves the full
// per-tenant economy state. The engines perform one Load per logical
// operation and one Save per mutation; no caching beyond that.
type Store interface {
	// Load returns the state for tenantID, or ErrTenantNotFound.
	Load(ctx context.Context, tenantID string) (*TenantState, error)
	// Save persists the state for tenantID, overwriting any prior state.
	Save(ctx context.Context, tenantID string, state *TenantState) error
}

// MemoryStore is an in-memory Store for tests and the simulate tool.
// All methods are safe for concurrent use; values are deep-copied on both
// Load and Save so callers never share live state.
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]*TenantState
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]*TenantState)}
}

// Load returns a deep copy of the tenant's state or ErrTenantNotFound.
func (m *MemoryStore) Load(_ context.Context, tenantID string) (*TenantState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.tenants[tenantID]
	if !ok {
		return nil, ErrTenantNotFound
	}
	return st.Clone(), nil
}

// Save stores a deep copy of state under tenantID.
func (m *MemoryStore) Save(_ context.Context, tenantID string, state *TenantState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[tenantID] = state.Clone()
	return nil
}
