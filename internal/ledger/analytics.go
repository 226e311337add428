package ledger

import (
	"context"

	"alpha_ledger/internal/models"

	"github.com/shopspring/decimal"
)

// PortfolioValue is cash plus every holding at the current quote.
func (s *Service) PortfolioValue(ctx context.Context, name string) (decimal.Decimal, error) {
	a, err := s.view(ctx, name)
	if err != nil {
		return decimal.Zero, err
	}
	return s.value(ctx, a)
}

// ProfitAndLoss is the portfolio value minus the starting balance and the net
// cash spent on trades. Deposits and withdrawals are not part of the baseline,
// so they show up as profit or loss.
func (s *Service) ProfitAndLoss(ctx context.Context, name string) (decimal.Decimal, error) {
	a, err := s.view(ctx, name)
	if err != nil {
		return decimal.Zero, err
	}
	v, err := s.value(ctx, a)
	if err != nil {
		return decimal.Zero, err
	}
	return s.profitAndLoss(a, v), nil
}

// Report values the account, records the value in the time series and
// returns the stored record together with the value and PnL.
func (s *Service) Report(ctx context.Context, name string) (models.Report, error) {
	var value decimal.Decimal
	a, err := s.update(ctx, "report", name, func(a *models.Account) (string, error) {
		v, err := s.value(ctx, a)
		if err != nil {
			return "", err
		}
		value = v
		a.PortfolioValueTimeSeries = append(a.PortfolioValueTimeSeries, models.ValueSample{
			Timestamp: s.timestamp(),
			Value:     v,
		})
		return "Retrieved account details", nil
	})
	if err != nil {
		return models.Report{}, err
	}
	return s.report(a, value), nil
}

// value quotes each symbol once, in sorted order.
func (s *Service) value(ctx context.Context, a *models.Account) (decimal.Decimal, error) {
	total := a.Balance
	for _, sym := range a.Symbols() {
		price, err := s.quote(ctx, sym)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(a.Holdings[sym]))))
	}
	return total, nil
}

func (s *Service) profitAndLoss(a *models.Account, value decimal.Decimal) decimal.Decimal {
	return value.Sub(s.initialBalance.Add(a.NetInvested()))
}

func (s *Service) report(a *models.Account, value decimal.Decimal) models.Report {
	return models.Report{
		Account:             *a,
		TotalPortfolioValue: value,
		TotalProfitLoss:     s.profitAndLoss(a, value),
	}
}

// tradeResult builds the post-trade view from the committed account. The
// trade is already persisted, so a failed valuation is reported in the
// result rather than as an error.
func (s *Service) tradeResult(ctx context.Context, tx models.Transaction, a *models.Account) models.TradeResult {
	res := models.TradeResult{Transaction: tx}
	v, err := s.value(ctx, a)
	if err != nil {
		s.logger.Warn().Err(err).Str("account", a.Name).Msg("post-trade valuation failed")
		res.Report = models.Report{Account: *a}
		res.ValuationError = err.Error()
		return res
	}
	res.Report = s.report(a, v)
	return res
}
