// Package badger stores accounts in an embedded BadgerHold database.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"alpha_ledger/internal/logger"
	"alpha_ledger/internal/models"
	"alpha_ledger/internal/storage"

	"github.com/timshannon/badgerhold/v4"
)

// Store implements storage.AccountStore on BadgerHold.
type Store struct {
	db     *badgerhold.Store
	logger *logger.Logger
}

var (
	_ storage.AccountStore = (*Store)(nil)
	_ storage.Lister       = (*Store)(nil)
)

// Open opens (or creates) the database at path.
func Open(path string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewSilent()
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create badger directory %s: %w", path, err)
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path
	opts.Logger = nil
	// JSON keeps decimals as strings and empty collections as empty.
	opts.Encoder = json.Marshal
	opts.Decoder = json.Unmarshal

	db, err := badgerhold.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database at %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("badger account store opened")
	return &Store{db: db, logger: log}, nil
}

func (s *Store) Load(_ context.Context, name string) (*models.Account, error) {
	key := storage.Key(name)
	var a models.Account
	if err := s.db.Get(key, &a); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	if a.Repair() {
		s.logger.Info().Str("account", key).Msg("repaired stored account record")
	}
	return &a, nil
}

func (s *Store) Save(_ context.Context, account *models.Account) error {
	key := storage.Key(account.Name)
	if err := s.db.Upsert(key, account); err != nil {
		return fmt.Errorf("put account %s: %w", key, err)
	}
	return nil
}

func (s *Store) List(_ context.Context) ([]string, error) {
	var accounts []models.Account
	if err := s.db.Find(&accounts, nil); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, storage.Key(a.Name))
	}
	sort.Strings(out)
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
