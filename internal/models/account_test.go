package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionTotal(t *testing.T) {
	buy := Transaction{Symbol: "AAPL", Quantity: 5, Price: decimal.RequireFromString("100.2")}
	sell := Transaction{Symbol: "AAPL", Quantity: -2, Price: decimal.RequireFromString("99.8")}

	assert.True(t, buy.Total().Equal(decimal.RequireFromString("501")), "got %s", buy.Total())
	assert.True(t, sell.Total().Equal(decimal.RequireFromString("-199.6")), "got %s", sell.Total())
	assert.Equal(t, "2 shares of AAPL at 99.8 each.", sell.String())
}

func TestValueSampleJSON(t *testing.T) {
	s := ValueSample{Timestamp: "2025-01-02 10:00:00", Value: decimal.RequireFromString("10999.5")}
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `["2025-01-02 10:00:00",10999.5]`, string(b))

	// Quoted values from older records decode too.
	var legacy ValueSample
	require.NoError(t, json.Unmarshal([]byte(`["2025-01-02 10:00:00", "10999.5"]`), &legacy))
	assert.Equal(t, "2025-01-02 10:00:00", legacy.Timestamp)
	assert.True(t, legacy.Value.Equal(s.Value))

	assert.Error(t, json.Unmarshal([]byte(`["only one"]`), &legacy))
}

func TestAccountEncodesMoneyAsNumbers(t *testing.T) {
	a := NewAccount("alice", decimal.NewFromInt(10000))
	a.Transactions = append(a.Transactions, Transaction{
		Symbol: "SYM", Quantity: 5, Price: decimal.RequireFromString("100.2"), Timestamp: "2025-01-02 10:00:00",
	})
	a.PortfolioValueTimeSeries = append(a.PortfolioValueTimeSeries,
		ValueSample{Timestamp: "2025-01-02 10:00:00", Value: decimal.RequireFromString("10999.5")})

	b, err := json.Marshal(a)
	require.NoError(t, err)

	var raw struct {
		Balance      json.RawMessage          `json:"balance"`
		Transactions []map[string]interface{} `json:"transactions"`
		Series       [][]interface{}          `json:"portfolio_value_time_series"`
	}
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "10000", string(raw.Balance))
	require.Len(t, raw.Transactions, 1)
	assert.Equal(t, 100.2, raw.Transactions[0]["price"])
	require.Len(t, raw.Series, 1)
	assert.Equal(t, 10999.5, raw.Series[0][1])

	var back Account
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Balance.Equal(a.Balance))
	assert.True(t, back.Transactions[0].Price.Equal(a.Transactions[0].Price))
	assert.True(t, back.PortfolioValueTimeSeries[0].Value.Equal(a.PortfolioValueTimeSeries[0].Value))
}

func TestAccountDecodesLegacyRecord(t *testing.T) {
	raw := `{
		"name": "alice",
		"balance": 10499.0,
		"strategy": "value",
		"holdings": {"SYM": 5, "OLD": 0},
		"transactions": [
			{"symbol": "SYM", "quantity": 5, "price": 100.2, "timestamp": "2025-01-02 10:00:00", "rationale": "test"}
		],
		"portfolio_value_time_series": [["2025-01-02 10:00:00", 10999.0]]
	}`
	var a Account
	require.NoError(t, json.Unmarshal([]byte(raw), &a))

	assert.True(t, a.Balance.Equal(decimal.NewFromInt(10499)))
	assert.True(t, a.Repair(), "zero holding should be dropped")
	assert.Equal(t, map[string]int{"SYM": 5}, a.Holdings)
	require.Len(t, a.Transactions, 1)
	assert.True(t, a.NetInvested().Equal(decimal.NewFromInt(501)))
	require.Len(t, a.PortfolioValueTimeSeries, 1)
}

func TestAccountCloneIsDeep(t *testing.T) {
	a := NewAccount("bob", decimal.NewFromInt(100))
	a.Holdings["X"] = 1
	a.Transactions = append(a.Transactions, Transaction{Symbol: "X", Quantity: 1})

	c := a.Clone()
	c.Holdings["X"] = 7
	c.Transactions[0].Quantity = 9
	c.PortfolioValueTimeSeries = append(c.PortfolioValueTimeSeries, ValueSample{})

	assert.Equal(t, 1, a.Holdings["X"])
	assert.Equal(t, 1, a.Transactions[0].Quantity)
	assert.Empty(t, a.PortfolioValueTimeSeries)
	assert.False(t, a.Repair())
}

func TestReportFlattensAccount(t *testing.T) {
	r := Report{
		Account:             *NewAccount("carol", decimal.NewFromInt(10)),
		TotalPortfolioValue: decimal.NewFromInt(10),
		TotalProfitLoss:     decimal.NewFromInt(-9990),
	}
	b, err := json.Marshal(r)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &fields))
	for _, k := range []string{"name", "balance", "strategy", "holdings", "transactions",
		"portfolio_value_time_series", "total_portfolio_value", "total_profit_loss"} {
		assert.Contains(t, fields, k)
	}
}
