package watcher

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"alpha_ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReporter struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]error
	polled  chan struct{}
}

func (f *fakeReporter) Report(_ context.Context, name string) (models.Report, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	err := f.failing[name]
	f.mu.Unlock()
	if f.polled != nil {
		select {
		case f.polled <- struct{}{}:
		default:
		}
	}
	if err != nil {
		return models.Report{}, err
	}
	a := models.NewAccount(name, decimal.NewFromInt(10000))
	return models.Report{Account: *a, TotalPortfolioValue: decimal.NewFromInt(10500), TotalProfitLoss: decimal.NewFromInt(500)}, nil
}

func (f *fakeReporter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLister struct {
	names []string
	err   error
}

func (f fakeLister) List(context.Context) ([]string, error) { return f.names, f.err }

func TestPollConfiguredAccounts(t *testing.T) {
	r := &fakeReporter{}
	w := New(r, fakeLister{names: []string{"ignored"}}, nil, WithAccounts("alice", "bob"))

	reports, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, reports, 2)
	assert.Equal(t, []string{"alice", "bob"}, r.calls)
}

func TestPollListsStoredAccounts(t *testing.T) {
	r := &fakeReporter{}
	w := New(r, fakeLister{names: []string{"amy", "zed"}}, nil)

	_, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"amy", "zed"}, r.calls)
}

func TestPollWithoutTargets(t *testing.T) {
	w := New(&fakeReporter{}, nil, nil)
	_, err := w.Poll(context.Background())
	assert.Error(t, err)

	w = New(&fakeReporter{}, fakeLister{err: errors.New("disk gone")}, nil)
	_, err = w.Poll(context.Background())
	assert.ErrorContains(t, err, "disk gone")
}

func TestPollContinuesPastFailures(t *testing.T) {
	boom := errors.New("quote unavailable")
	r := &fakeReporter{failing: map[string]error{"bob": boom}}
	w := New(r, nil, nil, WithAccounts("alice", "bob", "carol"))

	reports, err := w.Poll(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "bob")
	assert.Len(t, reports, 2)
	assert.Equal(t, []string{"alice", "bob", "carol"}, r.calls)
}

func TestPollWritesSummary(t *testing.T) {
	var buf bytes.Buffer
	now := time.Date(2025, 3, 4, 16, 0, 0, 0, time.UTC)
	w := New(&fakeReporter{}, nil, nil,
		WithAccounts("alice"),
		WithSummary(&buf),
		WithClock(func() time.Time { return now }),
	)

	_, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "--- 2025-03-04 16:00:00 ---")
	assert.Contains(t, buf.String(), "value=10500.00 pnl=500.00 cash=10000.00")
}

func TestRunPollsImmediatelyAndStops(t *testing.T) {
	r := &fakeReporter{polled: make(chan struct{}, 1)}
	w := New(r, nil, nil, WithAccounts("alice"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, time.Hour) }()

	select {
	case <-r.polled:
	case <-time.After(2 * time.Second):
		t.Fatal("no immediate poll")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, 1, r.callCount())
}

func TestRunPollsOnTick(t *testing.T) {
	r := &fakeReporter{}
	w := New(r, nil, nil, WithAccounts("alice"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, 10*time.Millisecond)

	assert.Eventually(t, func() bool { return r.callCount() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestRunRejectsBadInterval(t *testing.T) {
	w := New(&fakeReporter{}, nil, nil, WithAccounts("alice"))
	assert.Error(t, w.Run(context.Background(), 0))
}
