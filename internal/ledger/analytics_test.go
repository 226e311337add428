package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// aliceAfterTrades replays the deposit / buy 5 / sell 2 scenario.
func aliceAfterTrades(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.Deposit(ctx, "alice", dec("1000"))
	require.NoError(t, err)
	_, err = f.svc.BuyShares(ctx, "alice", "SYM", 5, "")
	require.NoError(t, err)
	_, err = f.svc.SellShares(ctx, "alice", "SYM", 2, "")
	require.NoError(t, err)
}

func TestPortfolioValue(t *testing.T) {
	f := newFixture(t)
	aliceAfterTrades(t, f)

	v, err := f.svc.PortfolioValue(context.Background(), "alice")
	require.NoError(t, err)
	// 10698.6 cash + 3 * 100
	assertDecimal(t, "10998.6", v)

	f.oracle.set("SYM", "110")
	v, err = f.svc.PortfolioValue(context.Background(), "alice")
	require.NoError(t, err)
	assertDecimal(t, "11028.6", v)
}

func TestPortfolioValueOfNewAccountIsCash(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.PortfolioValue(context.Background(), "bob")
	require.NoError(t, err)
	assertDecimal(t, "10000", v)
}

func TestProfitAndLoss(t *testing.T) {
	f := newFixture(t)
	aliceAfterTrades(t, f)

	// 10998.6 - (10000 + 501 - 199.6); the deposit counts as profit.
	pnl, err := f.svc.ProfitAndLoss(context.Background(), "alice")
	require.NoError(t, err)
	assertDecimal(t, "697.2", pnl)
}

func TestPureReadsDoNotPersist(t *testing.T) {
	f := newFixture(t)
	aliceAfterTrades(t, f)
	before := f.stored(t, "alice")

	_, err := f.svc.PortfolioValue(context.Background(), "alice")
	require.NoError(t, err)
	_, err = f.svc.ProfitAndLoss(context.Background(), "alice")
	require.NoError(t, err)

	after := f.stored(t, "alice")
	assert.Len(t, after.PortfolioValueTimeSeries, len(before.PortfolioValueTimeSeries))
}

func TestReportAppendsOneSamplePerCall(t *testing.T) {
	f := newFixture(t)
	aliceAfterTrades(t, f)
	ctx := context.Background()

	first, err := f.svc.Report(ctx, "alice")
	require.NoError(t, err)
	second, err := f.svc.Report(ctx, "alice")
	require.NoError(t, err)

	assertDecimal(t, "10998.6", first.TotalPortfolioValue)
	assertDecimal(t, "697.2", first.TotalProfitLoss)
	assert.True(t, first.TotalPortfolioValue.Equal(second.TotalPortfolioValue))
	assert.Equal(t, "alice", second.Name)

	require.Len(t, second.PortfolioValueTimeSeries, 2)
	for _, s := range second.PortfolioValueTimeSeries {
		assert.Equal(t, "2025-01-02 10:30:00", s.Timestamp)
		assertDecimal(t, "10998.6", s.Value)
	}
	assert.Len(t, f.stored(t, "alice").PortfolioValueTimeSeries, 2)
	assert.Equal(t, "Retrieved account details", f.audit.Recent("alice", 1)[0].Message)
}

func TestTradesDoNotAppendSamples(t *testing.T) {
	f := newFixture(t)
	aliceAfterTrades(t, f)
	assert.Empty(t, f.stored(t, "alice").PortfolioValueTimeSeries)
}

func TestReportFailsWithoutQuote(t *testing.T) {
	f := newFixture(t)
	aliceAfterTrades(t, f)
	f.oracle.fail("SYM", errBoom)

	_, err := f.svc.Report(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrCollaboratorUnavailable)
	assert.Empty(t, f.stored(t, "alice").PortfolioValueTimeSeries)
}

func TestTradeCommitsWhenValuationFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.BuyShares(ctx, "alice", "AAPL", 1, "")
	require.NoError(t, err)

	f.oracle.fail("AAPL", errBoom)
	res, err := f.svc.BuyShares(ctx, "alice", "SYM", 1, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ValuationError)
	assert.Equal(t, map[string]int{"AAPL": 1, "SYM": 1}, res.Report.Holdings)
	assert.Equal(t, 1, f.stored(t, "alice").Holdings["SYM"])
}

func TestTradeResultCarriesValuation(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.BuyShares(context.Background(), "alice", "SYM", 5, "")
	require.NoError(t, err)
	assert.Empty(t, res.ValuationError)
	// 9499 cash + 500 in shares
	assertDecimal(t, "9999", res.Report.TotalPortfolioValue)
	// 9999 - (10000 + 501)
	assertDecimal(t, "-502", res.Report.TotalProfitLoss)
}
