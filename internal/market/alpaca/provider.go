// Package alpaca quotes prices from the Alpaca market data API.
package alpaca

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"alpha_ledger/internal/market"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// Options carries the credentials and feed. Empty credentials make the SDK
// fall back to the APCA_API_KEY_ID / APCA_API_SECRET_KEY environment.
type Options struct {
	APIKey    string
	APISecret string
	DataURL   string
	Feed      string        // "iex" (free) or "sip"
	Timeout   time.Duration // per HTTP request, zero keeps the SDK default
}

// latestTrader is the slice of the SDK client we use.
type latestTrader interface {
	GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
}

// Provider implements market.PriceOracle with the latest trade price.
type Provider struct {
	client latestTrader
	feed   marketdata.Feed
}

var _ market.PriceOracle = (*Provider)(nil)

// NewProvider builds a market data client from opts.
func NewProvider(opts Options) *Provider {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
		BaseURL:   opts.DataURL,
	}
	if opts.Timeout > 0 {
		clientOpts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Provider{
		client: marketdata.NewClient(clientOpts),
		feed:   marketdata.Feed(opts.Feed),
	}
}

// Price returns the last trade price. A symbol without trades quotes zero.
// The SDK call is not context aware; ctx is checked before the request.
func (p *Provider) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	trade, err := p.client.GetLatestTrade(market.NormalizeSymbol(symbol), marketdata.GetLatestTradeRequest{Feed: p.feed})
	if err != nil {
		return decimal.Zero, fmt.Errorf("alpaca latest trade %s: %w", symbol, err)
	}
	if trade == nil {
		return decimal.Zero, nil
	}
	return decimal.NewFromFloat(trade.Price), nil
}
