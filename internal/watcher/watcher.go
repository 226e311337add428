// Package watcher periodically reports on accounts so their portfolio value
// time series grows without a caller asking for it.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"alpha_ledger/internal/logger"
	"alpha_ledger/internal/models"
	"alpha_ledger/internal/storage"
)

// Reporter values an account and records the sample.
type Reporter interface {
	Report(ctx context.Context, name string) (models.Report, error)
}

// Watcher reports every target account on each poll.
type Watcher struct {
	reporter Reporter
	lister   storage.Lister
	accounts []string
	logger   *logger.Logger
	summary  io.Writer
	now      func() time.Time

	mu sync.Mutex // one poll at a time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithAccounts fixes the accounts to poll. Without it every stored account
// is polled.
func WithAccounts(names ...string) Option {
	return func(w *Watcher) { w.accounts = names }
}

// WithSummary appends a plain-text block per poll to out.
func WithSummary(out io.Writer) Option { return func(w *Watcher) { w.summary = out } }

// WithClock replaces time.Now for summary headers.
func WithClock(now func() time.Time) Option { return func(w *Watcher) { w.now = now } }

// New creates a Watcher. lister may be nil when WithAccounts is given.
func New(reporter Reporter, lister storage.Lister, log *logger.Logger, opts ...Option) *Watcher {
	if log == nil {
		log = logger.NewSilent()
	}
	w := &Watcher{
		reporter: reporter,
		lister:   lister,
		logger:   log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Poll reports every target account once. A failing account does not stop
// the others; all failures are returned joined.
func (w *Watcher) Poll(ctx context.Context) ([]models.Report, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	names, err := w.targets(ctx)
	if err != nil {
		return nil, err
	}

	var (
		reports []models.Report
		errs    []error
	)
	for _, name := range names {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		r, err := w.reporter.Report(ctx, name)
		if err != nil {
			w.logger.Warn().Err(err).Str("account", name).Msg("valuation failed")
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		w.logger.Info().
			Str("account", r.Name).
			Str("value", r.TotalPortfolioValue.String()).
			Str("pnl", r.TotalProfitLoss.String()).
			Msg("account valued")
		reports = append(reports, r)
	}

	w.writeSummary(reports)
	return reports, errors.Join(errs...)
}

// Run polls immediately and then on every tick until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("watcher interval must be positive, got %s", interval)
	}
	w.poll(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("watcher stopping")
			return nil
		case <-ticker.C:
			w.logger.Debug().Str("next", w.now().Add(interval).Format(models.TimestampLayout)).Msg("next valuation scheduled")
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	reports, err := w.Poll(ctx)
	if err != nil && ctx.Err() == nil {
		w.logger.Warn().Err(err).Int("valued", len(reports)).Msg("poll finished with errors")
	}
}

func (w *Watcher) targets(ctx context.Context) ([]string, error) {
	if len(w.accounts) > 0 {
		return w.accounts, nil
	}
	if w.lister == nil {
		return nil, errors.New("watcher has no accounts and no lister")
	}
	names, err := w.lister.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return names, nil
}

func (w *Watcher) writeSummary(reports []models.Report) {
	if w.summary == nil || len(reports) == 0 {
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s ---\n", w.now().Format(models.TimestampLayout))
	for _, r := range reports {
		fmt.Fprintf(&sb, "%-16s value=%s pnl=%s cash=%s\n", r.Name, r.TotalPortfolioValue.StringFixed(2), r.TotalProfitLoss.StringFixed(2), r.Balance.StringFixed(2))
	}
	if _, err := io.WriteString(w.summary, sb.String()); err != nil {
		w.logger.Warn().Err(err).Msg("write valuation summary")
	}
}
