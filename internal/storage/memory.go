package storage

import (
	"context"
	"sort"
	"sync"

	"alpha_ledger/internal/models"
)

// Memory keeps accounts in process. Records are copied on the way in and
// out, so callers never share state with the store.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*models.Account)}
}

// Load returns a copy of the stored account or ErrNotFound.
func (m *Memory) Load(_ context.Context, name string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[Key(name)]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

// Save stores a copy of account under its key.
func (m *Memory) Save(_ context.Context, account *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[Key(account.Name)] = account.Clone()
	return nil
}

// List returns the stored keys in sorted order.
func (m *Memory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.accounts))
	for k := range m.accounts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}
