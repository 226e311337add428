// Package ledger owns every state transition of a trading account: cash
// movements, share trades, strategy changes and valuation reports.
//
// Each operation runs inside a per-account critical section and follows the
// same unit of work: load (or create) the account, validate against the
// stored state and a fresh quote, mutate a private copy, persist it, then
// write one audit line. A failed validation or a failed save leaves the
// stored account untouched.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"alpha_ledger/internal/audit"
	"alpha_ledger/internal/logger"
	"alpha_ledger/internal/market"
	"alpha_ledger/internal/models"
	"alpha_ledger/internal/storage"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// DefaultInitialBalance is the cash a new account starts with.
	DefaultInitialBalance = decimal.NewFromInt(10000)
	// DefaultSpread is the fraction added to buys and taken off sells.
	DefaultSpread = decimal.RequireFromString("0.002")
)

// Service runs ledger operations against a store and a price oracle.
// It is safe for concurrent use.
type Service struct {
	store          storage.AccountStore
	oracle         market.PriceOracle
	audit          audit.Log
	logger         *logger.Logger
	now            func() time.Time
	initialBalance decimal.Decimal
	spread         decimal.Decimal
	locks          *accountLocks
}

// Option configures a Service.
type Option func(*Service)

// WithAuditLog sets where per-account audit entries are written.
func WithAuditLog(l audit.Log) Option { return func(s *Service) { s.audit = l } }

// WithLogger sets the diagnostic logger.
func WithLogger(l *logger.Logger) Option { return func(s *Service) { s.logger = l } }

// WithClock replaces time.Now for transaction and sample timestamps.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithInitialBalance overrides DefaultInitialBalance.
func WithInitialBalance(b decimal.Decimal) Option {
	return func(s *Service) { s.initialBalance = b }
}

// WithSpread overrides DefaultSpread.
func WithSpread(spread decimal.Decimal) Option { return func(s *Service) { s.spread = spread } }

// New creates a Service. Audit entries are dropped unless WithAuditLog is given.
func New(store storage.AccountStore, oracle market.PriceOracle, opts ...Option) *Service {
	s := &Service{
		store:          store,
		oracle:         oracle,
		audit:          audit.Discard{},
		logger:         logger.NewSilent(),
		now:            time.Now,
		initialBalance: DefaultInitialBalance,
		spread:         DefaultSpread,
		locks:          newAccountLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitialBalance is the starting cash of new and reset accounts.
func (s *Service) InitialBalance() decimal.Decimal { return s.initialBalance }

// Deposit adds a positive amount to the cash balance.
func (s *Service) Deposit(ctx context.Context, name string, amount decimal.Decimal) (models.CashResult, error) {
	if !amount.IsPositive() {
		return models.CashResult{}, fmt.Errorf("%w: deposit of %s", ErrInvalidAmount, amount)
	}
	a, err := s.update(ctx, "deposit", name, func(a *models.Account) (string, error) {
		a.Balance = a.Balance.Add(amount)
		return fmt.Sprintf("Deposited %s", amount), nil
	})
	if err != nil {
		return models.CashResult{}, err
	}
	return models.CashResult{Account: a.Name, Amount: amount, Balance: a.Balance}, nil
}

// Withdraw removes amount from the cash balance. The only rule is that the
// balance cannot go below zero; a zero or negative amount is applied as given.
func (s *Service) Withdraw(ctx context.Context, name string, amount decimal.Decimal) (models.CashResult, error) {
	a, err := s.update(ctx, "withdraw", name, func(a *models.Account) (string, error) {
		if amount.GreaterThan(a.Balance) {
			return "", fmt.Errorf("%w: withdrawal of %s exceeds balance %s", ErrInsufficientFunds, amount, a.Balance)
		}
		a.Balance = a.Balance.Sub(amount)
		return fmt.Sprintf("Withdrew %s", amount), nil
	})
	if err != nil {
		return models.CashResult{}, err
	}
	return models.CashResult{Account: a.Name, Amount: amount, Balance: a.Balance}, nil
}

// BuyShares buys quantity shares at the quoted price plus the spread.
func (s *Service) BuyShares(ctx context.Context, name, symbol string, quantity int, rationale string) (models.TradeResult, error) {
	symbol = market.NormalizeSymbol(symbol)
	if quantity <= 0 {
		return models.TradeResult{}, fmt.Errorf("%w: buy of %d shares", ErrInvalidQuantity, quantity)
	}
	var tx models.Transaction
	a, err := s.update(ctx, "buy", name, func(a *models.Account) (string, error) {
		price, err := s.quote(ctx, symbol)
		if err != nil {
			return "", err
		}
		if price.IsZero() {
			return "", fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
		}
		execPrice := price.Mul(decimal.NewFromInt(1).Add(s.spread))
		cost := execPrice.Mul(decimal.NewFromInt(int64(quantity)))
		if cost.GreaterThan(a.Balance) {
			return "", fmt.Errorf("%w: %d %s cost %s, balance %s", ErrInsufficientFunds, quantity, symbol, cost, a.Balance)
		}

		a.Holdings[symbol] += quantity
		a.Balance = a.Balance.Sub(cost)
		tx = models.Transaction{
			Symbol:    symbol,
			Quantity:  quantity,
			Price:     execPrice,
			Timestamp: s.timestamp(),
			Rationale: rationale,
		}
		a.Transactions = append(a.Transactions, tx)
		return fmt.Sprintf("Bought %d of %s", quantity, symbol), nil
	})
	if err != nil {
		return models.TradeResult{}, err
	}
	return s.tradeResult(ctx, tx, a), nil
}

// SellShares sells quantity held shares at the quoted price minus the spread.
func (s *Service) SellShares(ctx context.Context, name, symbol string, quantity int, rationale string) (models.TradeResult, error) {
	symbol = market.NormalizeSymbol(symbol)
	if quantity <= 0 {
		return models.TradeResult{}, fmt.Errorf("%w: sale of %d shares", ErrInvalidQuantity, quantity)
	}
	var tx models.Transaction
	a, err := s.update(ctx, "sell", name, func(a *models.Account) (string, error) {
		held := a.Holdings[symbol]
		if held < quantity {
			return "", fmt.Errorf("%w: selling %d %s, holding %d", ErrInsufficientHoldings, quantity, symbol, held)
		}
		price, err := s.quote(ctx, symbol)
		if err != nil {
			return "", err
		}
		execPrice := price.Mul(decimal.NewFromInt(1).Sub(s.spread))
		proceeds := execPrice.Mul(decimal.NewFromInt(int64(quantity)))

		if held == quantity {
			delete(a.Holdings, symbol)
		} else {
			a.Holdings[symbol] = held - quantity
		}
		a.Balance = a.Balance.Add(proceeds)
		tx = models.Transaction{
			Symbol:    symbol,
			Quantity:  -quantity,
			Price:     execPrice,
			Timestamp: s.timestamp(),
			Rationale: rationale,
		}
		a.Transactions = append(a.Transactions, tx)
		return fmt.Sprintf("Sold %d of %s", quantity, symbol), nil
	})
	if err != nil {
		return models.TradeResult{}, err
	}
	return s.tradeResult(ctx, tx, a), nil
}

// ChangeStrategy replaces the free-text strategy and returns the new value.
func (s *Service) ChangeStrategy(ctx context.Context, name, strategy string) (string, error) {
	a, err := s.update(ctx, "change_strategy", name, func(a *models.Account) (string, error) {
		a.Strategy = strategy
		return "Changed strategy", nil
	})
	if err != nil {
		return "", err
	}
	return a.Strategy, nil
}

// Reset returns the account to its starting state with a new strategy.
func (s *Service) Reset(ctx context.Context, name, strategy string) (*models.Account, error) {
	return s.update(ctx, "reset", name, func(a *models.Account) (string, error) {
		fresh := models.NewAccount(a.Name, s.initialBalance)
		fresh.Strategy = strategy
		*a = *fresh
		return "Reset account", nil
	})
}

// Account returns a copy of the full stored record.
func (s *Service) Account(ctx context.Context, name string) (*models.Account, error) {
	return s.view(ctx, name)
}

// Balance returns the cash balance.
func (s *Service) Balance(ctx context.Context, name string) (decimal.Decimal, error) {
	a, err := s.view(ctx, name)
	if err != nil {
		return decimal.Zero, err
	}
	return a.Balance, nil
}

// Strategy returns the account's strategy text.
func (s *Service) Strategy(ctx context.Context, name string) (string, error) {
	a, err := s.view(ctx, name)
	if err != nil {
		return "", err
	}
	return a.Strategy, nil
}

// Holdings returns a copy of symbol to share count.
func (s *Service) Holdings(ctx context.Context, name string) (map[string]int, error) {
	a, err := s.view(ctx, name)
	if err != nil {
		return nil, err
	}
	return a.Holdings, nil
}

// Transactions returns the trade history, oldest first.
func (s *Service) Transactions(ctx context.Context, name string) ([]models.Transaction, error) {
	a, err := s.view(ctx, name)
	if err != nil {
		return nil, err
	}
	return a.Transactions, nil
}

// update is the single write path. fn mutates a private copy of the account
// and returns the audit message; the copy is saved only if fn succeeds.
func (s *Service) update(ctx context.Context, op, name string, fn func(a *models.Account) (string, error)) (*models.Account, error) {
	key, err := accountKey(name)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(key)
	defer unlock()

	opID := uuid.NewString()
	log := s.logger.With().Str("op", op).Str("op_id", opID).Str("account", key).Logger()

	a, err := s.loadOrCreate(ctx, key)
	if err != nil {
		log.Warn().Err(err).Msg("load failed")
		return nil, err
	}
	msg, err := fn(a)
	if err != nil {
		if IsRetryable(err) {
			log.Warn().Err(err).Msg("operation aborted")
		} else {
			log.Debug().Err(err).Msg("operation rejected")
		}
		return nil, err
	}

	// Once validated the operation runs to completion even if the caller
	// has gone away.
	commitCtx := context.WithoutCancel(ctx)
	if err := s.store.Save(commitCtx, a); err != nil {
		log.Warn().Err(err).Msg("save failed, mutation discarded")
		return nil, unavailable("save account "+key, err)
	}
	if err := s.audit.Write(commitCtx, key, audit.CategoryAccount, msg); err != nil {
		log.Warn().Err(err).Str("message", msg).Msg("audit write failed")
	}
	log.Debug().Str("balance", a.Balance.String()).Msg(msg)
	return a, nil
}

// view loads a snapshot inside the account's critical section so that a
// read never observes a half-created account.
func (s *Service) view(ctx context.Context, name string) (*models.Account, error) {
	key, err := accountKey(name)
	if err != nil {
		return nil, err
	}
	unlock := s.locks.lock(key)
	defer unlock()
	return s.loadOrCreate(ctx, key)
}

// loadOrCreate must be called with the account lock held.
func (s *Service) loadOrCreate(ctx context.Context, key string) (*models.Account, error) {
	a, err := s.store.Load(ctx, key)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, unavailable("load account "+key, err)
	}

	a = models.NewAccount(key, s.initialBalance)
	if err := s.store.Save(ctx, a); err != nil {
		return nil, unavailable("create account "+key, err)
	}
	s.logger.Info().Str("account", key).Str("balance", a.Balance.String()).Msg("created account")
	return a, nil
}

func (s *Service) quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := s.oracle.Price(ctx, symbol)
	if err != nil {
		return decimal.Zero, unavailable("price "+symbol, err)
	}
	if price.IsNegative() {
		return decimal.Zero, unavailable("price "+symbol, fmt.Errorf("%w: %s", market.ErrNegativePrice, price))
	}
	return price, nil
}

func (s *Service) timestamp() string {
	return s.now().Format(models.TimestampLayout)
}

func accountKey(name string) (string, error) {
	key := storage.Key(name)
	if key == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAccountName, name)
	}
	return key, nil
}
