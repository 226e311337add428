package models

import "github.com/shopspring/decimal"

// Report is an account snapshot together with its valuation.
// Account fields are flattened into the same JSON object.
type Report struct {
	Account
	TotalPortfolioValue decimal.Decimal `json:"total_portfolio_value"`
	TotalProfitLoss     decimal.Decimal `json:"total_profit_loss"`
}

// CashResult is returned by deposits and withdrawals.
type CashResult struct {
	Account string          `json:"account"`
	Amount  decimal.Decimal `json:"amount"`
	Balance decimal.Decimal `json:"balance"`
}

// TradeResult is returned by buys and sells. The trade is committed even
// when ValuationError is set; only the report figures are missing then.
type TradeResult struct {
	Transaction    Transaction `json:"transaction"`
	Report         Report      `json:"report"`
	ValuationError string      `json:"valuation_error,omitempty"`
}
