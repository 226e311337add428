package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"alpha_ledger/internal/audit"
	"alpha_ledger/internal/config"
	"alpha_ledger/internal/ledger"
	"alpha_ledger/internal/logger"
	"alpha_ledger/internal/market"
	"alpha_ledger/internal/market/alpaca"
	"alpha_ledger/internal/storage"
	"alpha_ledger/internal/storage/badger"
	"alpha_ledger/internal/storage/postgres"
)

// app holds everything a command needs, built from one Config.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   storage.AccountStore
	ledger  *ledger.Service
	closers []io.Closer
}

func openApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	store, closer, err := buildStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.store = store
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	oracle, err := buildOracle(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	opts := []ledger.Option{
		ledger.WithLogger(log),
		ledger.WithInitialBalance(cfg.Ledger.InitialBalanceDecimal()),
		ledger.WithSpread(cfg.Ledger.SpreadDecimal()),
	}
	if cfg.Logging.AuditFile != "" {
		rf, err := logger.OpenRotatingFile(cfg.Logging.AuditFile, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		a.closers = append(a.closers, rf)
		opts = append(opts, ledger.WithAuditLog(audit.NewWriter(rf)))
	}

	a.ledger = ledger.New(store, oracle, opts...)
	return a, nil
}

func buildStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (storage.AccountStore, io.Closer, error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		s, err := storage.NewFileStore(cfg.Storage.FileDir, log)
		return s, nil, err
	case config.BackendBadger:
		s, err := badger.Open(cfg.Storage.BadgerDir, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.Storage.PostgresDSN, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BackendMemory:
		return storage.NewMemory(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// buildOracle layers the configured source: static table or Alpaca REST,
// optionally fronted by the trade stream, then the cache and rate limiter.
func buildOracle(ctx context.Context, cfg *config.Config, log *logger.Logger) (market.PriceOracle, error) {
	var base market.PriceOracle
	switch cfg.Market.Source {
	case config.SourceStatic:
		table, err := market.ParsePriceTable(cfg.Market.StaticPrices)
		if err != nil {
			return nil, fmt.Errorf("static prices: %w", err)
		}
		base = market.NewStatic(table)
	case config.SourceAlpaca:
		opts := alpaca.Options{
			APIKey:    cfg.Market.Alpaca.APIKey,
			APISecret: cfg.Market.Alpaca.APISecret,
			DataURL:   cfg.Market.Alpaca.DataURL,
			Feed:      cfg.Market.Alpaca.Feed,
			Timeout:   cfg.Market.GetTimeout(),
		}
		rest := alpaca.NewProvider(opts)
		base = rest
		if cfg.Market.Stream {
			if len(cfg.Market.StreamSymbols) == 0 {
				log.Warn().Msg("price stream enabled without stream_symbols, using REST only")
			} else {
				s := alpaca.NewStreamer(opts, cfg.Market.StreamSymbols, rest, cfg.Market.GetStreamMaxAge(), log)
				if err := s.Start(ctx); err != nil {
					log.Warn().Err(err).Msg("price stream unavailable, using REST only")
				} else {
					base = s
				}
			}
		}
	default:
		return nil, fmt.Errorf("unknown price source %q", cfg.Market.Source)
	}

	ttl := cfg.Market.GetCacheTTL()
	if ttl <= 0 && cfg.Market.RateLimit <= 0 {
		return base, nil
	}
	return market.NewCached(base, ttl, market.WithRateLimit(cfg.Market.RateLimit)), nil
}

// summaryPath is where the watcher appends its per-poll valuation blocks.
func (a *app) summaryPath() string {
	return filepath.Join(filepath.Dir(a.cfg.Logging.AuditFile), "valuations.log")
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
