package market

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// PriceOracle quotes the current price of a symbol.
// A zero price with a nil error means the symbol is not recognized.
// Implementations must be safe for concurrent use.
type PriceOracle interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// ErrNegativePrice is returned when a source reports a price below zero.
var ErrNegativePrice = errors.New("negative price")

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Static serves prices from a fixed table. Unknown symbols quote zero.
type Static struct {
	prices map[string]decimal.Decimal
}

// NewStatic copies prices, normalizing the symbols.
func NewStatic(prices map[string]decimal.Decimal) *Static {
	s := &Static{prices: make(map[string]decimal.Decimal, len(prices))}
	for sym, p := range prices {
		s.prices[NormalizeSymbol(sym)] = p
	}
	return s
}

func (s *Static) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	p, ok := s.prices[NormalizeSymbol(symbol)]
	if !ok {
		return decimal.Zero, nil
	}
	if p.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s %s", ErrNegativePrice, symbol, p)
	}
	return p, nil
}

// ParsePriceTable parses "AAPL=190.5,MSFT=410" into a price table.
func ParsePriceTable(s string) (map[string]decimal.Decimal, error) {
	out := map[string]decimal.Decimal{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		sym, val, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(sym) == "" {
			return nil, fmt.Errorf("invalid price entry %q, want SYMBOL=PRICE", item)
		}
		p, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("invalid price for %s: %w", sym, err)
		}
		out[NormalizeSymbol(sym)] = p
	}
	return out, nil
}
