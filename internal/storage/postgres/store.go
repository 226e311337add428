// Package postgres stores accounts as JSONB documents in PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"alpha_ledger/internal/logger"
	"alpha_ledger/internal/models"
	"alpha_ledger/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_accounts (
	name       TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// Store implements storage.AccountStore on a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

var (
	_ storage.AccountStore = (*Store)(nil)
	_ storage.Lister       = (*Store)(nil)
)

// Open connects to dsn, verifies the connection and ensures the schema.
func Open(ctx context.Context, dsn string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewSilent()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewStore(pool, log)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	log.Debug().Msg("postgres account store opened")
	return s, nil
}

// NewStore wraps an existing pool. The caller owns the pool.
func NewStore(pool *pgxpool.Pool, log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewSilent()
	}
	return &Store{pool: pool, logger: log}
}

// EnsureSchema creates the accounts table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create ledger_accounts table: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, name string) (*models.Account, error) {
	key := storage.Key(name)
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT state FROM ledger_accounts WHERE name = $1`, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select account %s: %w", key, err)
	}
	var a models.Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode account %s: %w", key, err)
	}
	if a.Repair() {
		s.logger.Info().Str("account", key).Msg("repaired stored account record")
	}
	return &a, nil
}

func (s *Store) Save(ctx context.Context, account *models.Account) error {
	key := storage.Key(account.Name)
	raw, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("encode account %s: %w", key, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ledger_accounts (name, state, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET state = EXCLUDED.state, updated_at = NOW()
	`, key, raw)
	if err != nil {
		return fmt.Errorf("upsert account %s: %w", key, err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM ledger_accounts ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan account names: %w", err)
	}
	return names, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
