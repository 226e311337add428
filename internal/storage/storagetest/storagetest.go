// Package storagetest holds the behaviour every AccountStore must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"alpha_ledger/internal/models"
	"alpha_ledger/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Sample returns a fully populated account.
func Sample(name string) *models.Account {
	a := models.NewAccount(name, decimal.RequireFromString("10698.6"))
	a.Strategy = "buy quality tech on dips"
	a.Holdings["SYM"] = 3
	a.Holdings["AAPL"] = 10
	a.Transactions = append(a.Transactions,
		models.Transaction{Symbol: "SYM", Quantity: 5, Price: decimal.RequireFromString("100.2"), Timestamp: "2025-01-02 10:00:00", Rationale: "entry"},
		models.Transaction{Symbol: "SYM", Quantity: -2, Price: decimal.RequireFromString("99.8"), Timestamp: "2025-01-02 11:00:00", Rationale: "trim"},
	)
	a.PortfolioValueTimeSeries = append(a.PortfolioValueTimeSeries,
		models.ValueSample{Timestamp: "2025-01-02 12:00:00", Value: decimal.RequireFromString("10998.6")},
	)
	return a
}

// Run exercises the AccountStore contract against stores built by open.
func Run(t *testing.T, open func(t *testing.T) storage.AccountStore) {
	t.Run("MissingIsNotFound", func(t *testing.T) {
		s := open(t)
		_, err := s.Load(context.Background(), "ghost")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("RoundTrip", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		want := Sample("alice")
		require.NoError(t, s.Save(ctx, want))

		got, err := s.Load(ctx, "alice")
		require.NoError(t, err)
		AssertEqual(t, want, got)
	})

	t.Run("KeysAreCaseInsensitive", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, Sample("bob")))

		got, err := s.Load(ctx, "  BoB ")
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Name)
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		a := Sample("carol")
		require.NoError(t, s.Save(ctx, a))

		a.Balance = decimal.NewFromInt(1)
		a.Holdings = map[string]int{}
		require.NoError(t, s.Save(ctx, a))

		got, err := s.Load(ctx, "carol")
		require.NoError(t, err)
		AssertEqual(t, a, got)
	})

	t.Run("LoadedRecordIsIndependent", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, Sample("dave")))

		first, err := s.Load(ctx, "dave")
		require.NoError(t, err)
		first.Holdings["SYM"] = 999

		second, err := s.Load(ctx, "dave")
		require.NoError(t, err)
		assert.Equal(t, 3, second.Holdings["SYM"])
	})

	t.Run("ConcurrentDistinctAccounts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.Save(ctx, Sample(fmt.Sprintf("user-%02d", i))))
			}(i)
		}
		wg.Wait()
		for i := 0; i < 16; i++ {
			_, err := s.Load(ctx, fmt.Sprintf("user-%02d", i))
			assert.NoError(t, err)
		}
	})

	if _, ok := open(t).(storage.Lister); ok {
		t.Run("List", func(t *testing.T) {
			s := open(t)
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, Sample("zed")))
			require.NoError(t, s.Save(ctx, Sample("amy")))

			names, err := s.(storage.Lister).List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"amy", "zed"}, names)
		})
	}
}

// AssertEqual compares accounts field by field, using decimal equality.
func AssertEqual(t *testing.T, want, got *models.Account) {
	t.Helper()
	require.NotNil(t, got)
	assert.Equal(t, want.Name, got.Name)
	assert.True(t, want.Balance.Equal(got.Balance), "balance: want %s got %s", want.Balance, got.Balance)
	assert.Equal(t, want.Strategy, got.Strategy)
	assert.Equal(t, want.Holdings, got.Holdings)
	require.Len(t, got.Transactions, len(want.Transactions))
	for i := range want.Transactions {
		w, g := want.Transactions[i], got.Transactions[i]
		assert.Equal(t, w.Symbol, g.Symbol)
		assert.Equal(t, w.Quantity, g.Quantity)
		assert.True(t, w.Price.Equal(g.Price), "tx %d price: want %s got %s", i, w.Price, g.Price)
		assert.Equal(t, w.Timestamp, g.Timestamp)
		assert.Equal(t, w.Rationale, g.Rationale)
	}
	require.Len(t, got.PortfolioValueTimeSeries, len(want.PortfolioValueTimeSeries))
	for i := range want.PortfolioValueTimeSeries {
		w, g := want.PortfolioValueTimeSeries[i], got.PortfolioValueTimeSeries[i]
		assert.Equal(t, w.Timestamp, g.Timestamp)
		assert.True(t, w.Value.Equal(g.Value), "sample %d: want %s got %s", i, w.Value, g.Value)
	}
}
