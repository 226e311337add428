package market

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Cached wraps an oracle with a short-lived quote cache and a request
// rate limiter, so bursts of ledger calls do not hammer the upstream API.
// Errors are never cached.
type Cached struct {
	next    PriceOracle
	ttl     time.Duration
	limiter *rate.Limiter
	now     func() time.Time

	mu     sync.Mutex
	quotes map[string]cachedQuote
}

type cachedQuote struct {
	price   decimal.Decimal
	fetched time.Time
}

// CachedOption configures a Cached oracle.
type CachedOption func(*Cached)

// WithRateLimit caps upstream calls per second. Zero or less disables the limit.
func WithRateLimit(perSecond int) CachedOption {
	return func(c *Cached) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CachedOption {
	return func(c *Cached) { c.now = now }
}

// NewCached caches quotes from next for ttl. A ttl of zero disables caching
// but keeps the limiter.
func NewCached(next PriceOracle, ttl time.Duration, opts ...CachedOption) *Cached {
	c := &Cached{
		next:   next,
		ttl:    ttl,
		now:    time.Now,
		quotes: make(map[string]cachedQuote),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cached) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = NormalizeSymbol(symbol)
	if p, ok := c.lookup(symbol); ok {
		return p, nil
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return decimal.Zero, err
		}
	}
	p, err := c.next.Price(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if c.ttl > 0 {
		c.mu.Lock()
		c.quotes[symbol] = cachedQuote{price: p, fetched: c.now()}
		c.mu.Unlock()
	}
	return p, nil
}

func (c *Cached) lookup(symbol string) (decimal.Decimal, bool) {
	if c.ttl <= 0 {
		return decimal.Zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[symbol]
	if !ok || c.now().Sub(q.fetched) >= c.ttl {
		return decimal.Zero, false
	}
	return q.price, true
}
