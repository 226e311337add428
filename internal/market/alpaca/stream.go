package alpaca

import (
	"context"
	"fmt"
	"sync"
	"time"

	"alpha_ledger/internal/logger"
	"alpha_ledger/internal/market"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata/stream"
	"github.com/shopspring/decimal"
)

// Streamer keeps the last trade price of a fixed symbol set from the
// Alpaca websocket feed. Symbols without a streamed trade, or whose last
// trade is older than maxAge, are quoted by the fallback oracle.
type Streamer struct {
	client   *stream.StocksClient
	fallback market.PriceOracle
	maxAge   time.Duration
	logger   *logger.Logger
	now      func() time.Time

	mu   sync.RWMutex
	last map[string]streamedTrade
}

type streamedTrade struct {
	price decimal.Decimal
	at    time.Time
}

var _ market.PriceOracle = (*Streamer)(nil)

// NewStreamer prepares a stream subscription for symbols. Call Start to connect.
func NewStreamer(opts Options, symbols []string, fallback market.PriceOracle, maxAge time.Duration, log *logger.Logger) *Streamer {
	s := &Streamer{
		fallback: fallback,
		maxAge:   maxAge,
		logger:   log,
		now:      time.Now,
		last:     make(map[string]streamedTrade),
	}
	normalized := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		normalized = append(normalized, market.NormalizeSymbol(sym))
	}
	feed := marketdata.Feed(opts.Feed)
	if feed == "" {
		feed = marketdata.IEX
	}
	s.client = stream.NewStocksClient(
		feed,
		stream.WithCredentials(opts.APIKey, opts.APISecret),
		stream.WithReconnectSettings(10, 500*time.Millisecond),
		stream.WithTrades(func(t stream.Trade) { s.record(t.Symbol, t.Price, t.Timestamp) }, normalized...),
	)
	return s
}

// Start connects the websocket. It returns once the initial connection is
// established; a later termination is logged and quotes fall back to REST.
func (s *Streamer) Start(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("alpaca stream connect: %w", err)
	}
	s.logger.Info().Msg("alpaca trade stream connected")
	go func() {
		if err := <-s.client.Terminated(); err != nil {
			s.logger.Warn().Err(err).Msg("alpaca trade stream terminated")
		}
	}()
	return nil
}

func (s *Streamer) record(symbol string, price float64, at time.Time) {
	if price <= 0 {
		return
	}
	s.mu.Lock()
	s.last[market.NormalizeSymbol(symbol)] = streamedTrade{price: decimal.NewFromFloat(price), at: at}
	s.mu.Unlock()
}

func (s *Streamer) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = market.NormalizeSymbol(symbol)
	s.mu.RLock()
	t, ok := s.last[symbol]
	s.mu.RUnlock()
	if ok && (s.maxAge <= 0 || s.now().Sub(t.at) < s.maxAge) {
		return t.price, nil
	}
	return s.fallback.Price(ctx, symbol)
}
