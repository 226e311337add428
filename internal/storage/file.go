package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"alpha_ledger/internal/logger"
	"alpha_ledger/internal/models"
)

const (
	filePrefix = "account-"
	fileSuffix = ".json"
)

// FileStore keeps one pretty-printed JSON file per account in Dir.
type FileStore struct {
	Dir    string
	logger *logger.Logger
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, log *logger.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create account dir %s: %w", dir, err)
	}
	if log == nil {
		log = logger.NewSilent()
	}
	return &FileStore{Dir: dir, logger: log}, nil
}

// path maps a key to a file name. Escaping keeps names like "../x" inside Dir.
func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, filePrefix+url.PathEscape(key)+fileSuffix)
}

// Load reads an account. Records that break the account invariants (nil
// collections, zero-quantity holdings) are repaired and written back.
func (s *FileStore) Load(ctx context.Context, name string) (*models.Account, error) {
	key := Key(name)
	b, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read account %s: %w", key, err)
	}

	var a models.Account
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", key, err)
	}
	if a.Repair() {
		s.logger.Info().Str("account", key).Msg("repaired stored account record")
		if err := s.Save(ctx, &a); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

// Save writes the account atomically:
// write a temp file in Dir, fsync it, then rename over the target.
func (s *FileStore) Save(_ context.Context, account *models.Account) error {
	key := Key(account.Name)
	b, err := json.MarshalIndent(account, "", "  ")
	if err != nil {
		return fmt.Errorf("encode account %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(s.Dir, filePrefix+"*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write account %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync account %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close account %s: %w", key, err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return fmt.Errorf("replace account %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	var out []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, filePrefix) || !strings.HasSuffix(n, fileSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(strings.TrimPrefix(n, filePrefix), fileSuffix))
		if err != nil {
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out, nil
}
