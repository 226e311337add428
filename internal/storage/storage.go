// Package storage persists account state. Every backend stores the full
// account record under its canonical key; writes are last-write-wins.
package storage

import (
	"context"
	"errors"
	"strings"

	"alpha_ledger/internal/models"
)

// ErrNotFound is returned by Load when no record exists for the key.
var ErrNotFound = errors.New("account not found")

// AccountStore is the durable key-value store for accounts.
// Save followed by Load on the same key must return an equal record.
type AccountStore interface {
	Load(ctx context.Context, name string) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) error
}

// Lister enumerates stored account keys in sorted order.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

// Key is the canonical, case-insensitive form of an account name.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
