package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

func init() {
	// Stored records and command output carry money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// TimestampLayout is the layout used for transaction and valuation timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// Transaction is a single executed trade. Quantity is positive for buys and
// negative for sells; Price is the execution price including the spread.
type Transaction struct {
	Symbol    string          `json:"symbol"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Timestamp string          `json:"timestamp"`
	Rationale string          `json:"rationale"`
}

// Total is the signed cash effect of the trade: positive for buys, negative for sells.
func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(int64(t.Quantity)))
}

func (t Transaction) String() string {
	qty := t.Quantity
	if qty < 0 {
		qty = -qty
	}
	return fmt.Sprintf("%d shares of %s at %s each.", qty, t.Symbol, t.Price)
}

// ValueSample is one point of the portfolio value time series.
// It is encoded as a two element array: [timestamp, value].
type ValueSample struct {
	Timestamp string
	Value     decimal.Decimal
}

func (s ValueSample) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{s.Timestamp, json.Number(s.Value.String())})
}

func (s *ValueSample) UnmarshalJSON(b []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(b, &parts); err != nil {
		return fmt.Errorf("value sample: %w", err)
	}
	if len(parts) != 2 {
		return fmt.Errorf("value sample: expected 2 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &s.Timestamp); err != nil {
		return fmt.Errorf("value sample timestamp: %w", err)
	}
	if err := s.Value.UnmarshalJSON(parts[1]); err != nil {
		return fmt.Errorf("value sample value: %w", err)
	}
	return nil
}

// Account is the full persisted state of one trading account.
// The JSON field names are the storage format shared with external readers.
type Account struct {
	Name                     string          `json:"name"`
	Balance                  decimal.Decimal `json:"balance"`
	Strategy                 string          `json:"strategy"`
	Holdings                 map[string]int  `json:"holdings"`
	Transactions             []Transaction   `json:"transactions"`
	PortfolioValueTimeSeries []ValueSample   `json:"portfolio_value_time_series"`
}

// NewAccount returns an empty account holding only the starting cash.
func NewAccount(name string, balance decimal.Decimal) *Account {
	return &Account{
		Name:                     name,
		Balance:                  balance,
		Holdings:                 map[string]int{},
		Transactions:             []Transaction{},
		PortfolioValueTimeSeries: []ValueSample{},
	}
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Holdings = make(map[string]int, len(a.Holdings))
	for sym, qty := range a.Holdings {
		c.Holdings[sym] = qty
	}
	c.Transactions = append(make([]Transaction, 0, len(a.Transactions)), a.Transactions...)
	c.PortfolioValueTimeSeries = append(make([]ValueSample, 0, len(a.PortfolioValueTimeSeries)), a.PortfolioValueTimeSeries...)
	return &c
}

// Repair brings a decoded record back in line with the account invariants:
// nil collections become empty and zero or negative holdings are dropped.
// It reports whether anything changed.
func (a *Account) Repair() bool {
	changed := false
	if a.Holdings == nil {
		a.Holdings = map[string]int{}
		changed = true
	}
	for sym, qty := range a.Holdings {
		if qty <= 0 {
			delete(a.Holdings, sym)
			changed = true
		}
	}
	if a.Transactions == nil {
		a.Transactions = []Transaction{}
		changed = true
	}
	if a.PortfolioValueTimeSeries == nil {
		a.PortfolioValueTimeSeries = []ValueSample{}
		changed = true
	}
	return changed
}

// Symbols returns the held symbols in sorted order.
func (a *Account) Symbols() []string {
	out := make([]string, 0, len(a.Holdings))
	for sym := range a.Holdings {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// NetInvested sums the cash effect of every transaction.
func (a *Account) NetInvested() decimal.Decimal {
	total := decimal.Zero
	for _, tx := range a.Transactions {
		total = total.Add(tx.Total())
	}
	return total
}
