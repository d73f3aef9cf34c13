package internal

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/reckon/config"
	"github.com/vadiminshakov/reckon/internal/entity"
	"github.com/vadiminshakov/reckon/internal/exchange"
	"github.com/vadiminshakov/reckon/internal/services/reconciler"
)

func sp(s string) *string { return &s }

// fakeVenue is an in-memory Exchange for orchestration tests.
type fakeVenue struct {
	balances     map[entity.AccountType]entity.RawBalances
	failures     map[entity.AccountType]error
	positions    []entity.RawPosition
	orders       []entity.RawOrder
	fills        map[string][]entity.RawFill
	balanceCalls []entity.AccountType
}

func (f *fakeVenue) Name() string { return "fake" }

func (f *fakeVenue) FetchBalance(_ context.Context, accountType entity.AccountType) (entity.RawBalances, error) {
	f.balanceCalls = append(f.balanceCalls, accountType)
	if err, ok := f.failures[accountType]; ok {
		return nil, err
	}
	raw, ok := f.balances[accountType]
	if !ok {
		return nil, exchange.ErrAccountTypeUnsupported
	}
	return raw, nil
}

func (f *fakeVenue) FetchPositions(context.Context) ([]entity.RawPosition, error) {
	return f.positions, nil
}

func (f *fakeVenue) FetchClosedOrders(context.Context, time.Time) ([]entity.RawOrder, error) {
	return f.orders, nil
}

func (f *fakeVenue) FetchFills(_ context.Context, symbol string, _ time.Time) ([]entity.RawFill, error) {
	return f.fills[symbol], nil
}

func (f *fakeVenue) ListMarketCapabilities(context.Context) ([]entity.MarketCapability, error) {
	return []entity.MarketCapability{entity.CapabilitySpot, entity.CapabilitySwap}, nil
}

func testConfig() config.Config {
	return config.Config{
		Platform:             "bybit",
		SettlementCurrencies: []string{"USDT", "USDC", "USD"},
		SharedPoolEpsilon:    decimal.NewFromInt(1),
		SharedPoolPrefer:     entity.AccountTypeDerivatives,
		LookbackDays:         7,
		FundingCandidates: []entity.AccountType{
			entity.AccountTypeFunding,
			entity.AccountTypeEarn,
			entity.AccountTypeSavings,
		},
	}
}

func newTestReckoner(t *testing.T, venue *fakeVenue) *Reckoner {
	t.Helper()
	r, err := NewReckoner(testConfig(), venue, zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestRunDetectsSharedPool(t *testing.T) {
	venue := &fakeVenue{
		balances: map[entity.AccountType]entity.RawBalances{
			entity.AccountTypeSpot: {
				"USDT": {Total: sp("1000"), Free: sp("1000"), Used: sp("0")},
			},
			entity.AccountTypeDerivatives: {
				"USDT": {Total: sp("1000.5"), Free: sp("900.5"), Used: sp("100")},
			},
		},
	}

	diagnosis, err := newTestReckoner(t, venue).Run(context.Background())
	require.NoError(t, err)

	assert.True(t, diagnosis.Verdict.PoolsAreShared)
	// derivatives subtotal wins, spot is suppressed as a double count
	assert.True(t, diagnosis.TotalEquity.Equal(decimal.RequireFromString("1000.5")),
		"got %s", diagnosis.TotalEquity)
	assert.Equal(t, "fake", diagnosis.Venue)
	assert.Empty(t, diagnosis.Missing)
	assert.Equal(t,
		[]entity.MarketCapability{entity.CapabilitySpot, entity.CapabilitySwap},
		diagnosis.Capabilities)
}

func TestRunAddsDistinctPools(t *testing.T) {
	venue := &fakeVenue{
		balances: map[entity.AccountType]entity.RawBalances{
			entity.AccountTypeSpot: {
				"USDT": {Total: sp("1000"), Free: sp("1000"), Used: sp("0")},
			},
			entity.AccountTypeDerivatives: {
				"USDT": {Total: sp("5000"), Free: sp("5000"), Used: sp("0")},
			},
		},
	}

	diagnosis, err := newTestReckoner(t, venue).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, diagnosis.Verdict.PoolsAreShared)
	assert.True(t, diagnosis.TotalEquity.Equal(decimal.RequireFromString("6000")))
}

func TestRunFundingScanOrder(t *testing.T) {
	venue := &fakeVenue{
		balances: map[entity.AccountType]entity.RawBalances{
			entity.AccountTypeSpot: {
				"USDT": {Total: sp("100"), Free: sp("100"), Used: sp("0")},
			},
			entity.AccountTypeDerivatives: {
				"USDT": {Total: sp("900"), Free: sp("900"), Used: sp("0")},
			},
			// funding account type not offered: scan must move on to earn
			entity.AccountTypeEarn: {
				"USDT": {Total: sp("50"), Free: sp("50"), Used: sp("0")},
			},
		},
	}

	diagnosis, err := newTestReckoner(t, venue).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, entity.AccountTypeEarn, diagnosis.FundingSource)
	assert.True(t, diagnosis.FundingSubtotal.Equal(decimal.RequireFromString("50")))
	assert.True(t, diagnosis.TotalEquity.Equal(decimal.RequireFromString("1050")))

	var probed []entity.AccountType
	for _, call := range venue.balanceCalls {
		if call != entity.AccountTypeSpot && call != entity.AccountTypeDerivatives {
			probed = append(probed, call)
		}
	}
	require.GreaterOrEqual(t, len(probed), 2)
	assert.Equal(t, entity.AccountTypeFunding, probed[0])
	assert.Equal(t, entity.AccountTypeEarn, probed[1])
}

func TestRunDegradesWhenSpotUnavailable(t *testing.T) {
	venue := &fakeVenue{
		balances: map[entity.AccountType]entity.RawBalances{
			entity.AccountTypeDerivatives: {
				"USDT": {Total: sp("700"), Free: sp("700"), Used: sp("0")},
			},
		},
		failures: map[entity.AccountType]error{
			entity.AccountTypeSpot: errors.New("gateway timeout"),
		},
	}

	diagnosis, err := newTestReckoner(t, venue).Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, diagnosis.Missing, entity.AccountTypeSpot)
	assert.True(t, diagnosis.SpotSubtotal.IsZero())
	assert.True(t, diagnosis.TotalEquity.Equal(decimal.RequireFromString("700")))
}

func TestRunAbortsWhenAllCapitalMissing(t *testing.T) {
	venue := &fakeVenue{
		failures: map[entity.AccountType]error{
			entity.AccountTypeSpot:        errors.New("down"),
			entity.AccountTypeDerivatives: errors.New("down"),
		},
	}

	_, err := newTestReckoner(t, venue).Run(context.Background())
	require.Error(t, err)

	var invalid *reconciler.InvalidSnapshotError
	assert.ErrorAs(t, err, &invalid)
}

func TestRunAggregatesFillsForDiscoveredSymbols(t *testing.T) {
	venue := &fakeVenue{
		balances: map[entity.AccountType]entity.RawBalances{
			entity.AccountTypeSpot: {
				"USDT": {Total: sp("100"), Free: sp("100"), Used: sp("0")},
			},
			entity.AccountTypeDerivatives: {
				"USDT": {Total: sp("900"), Free: sp("900"), Used: sp("0")},
			},
		},
		positions: []entity.RawPosition{
			{
				Symbol:        "BTCUSDT",
				Side:          "long",
				Size:          sp("0.5"),
				EntryPrice:    sp("60000"),
				MarkPrice:     sp("61000"),
				UnrealizedPnl: sp("500"),
				Notional:      sp("30500"),
				Leverage:      sp("3"),
			},
		},
		orders: []entity.RawOrder{
			{Symbol: "ETHUSDT", UpdatedAt: time.Now().Add(-24 * time.Hour)},
		},
		fills: map[string][]entity.RawFill{
			"BTCUSDT": {
				{Symbol: "BTCUSDT", Cost: sp("30000"), Fee: sp("16.5"), Timestamp: time.Now()},
			},
			"ETHUSDT": {
				{Symbol: "ETHUSDT", Cost: sp("2000"), Fee: sp("1.1"), Timestamp: time.Now()},
			},
		},
	}

	diagnosis, err := newTestReckoner(t, venue).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, diagnosis.FillCount)
	assert.True(t, diagnosis.TotalVolume.Equal(decimal.RequireFromString("32000")))
	assert.True(t, diagnosis.TotalFees.Equal(decimal.RequireFromString("17.6")))
	require.Len(t, diagnosis.OpenPositions, 1)
	assert.True(t, diagnosis.TotalUnrealizedPnl.Equal(decimal.RequireFromString("500")))
	// unrealized PnL is reported, never added to equity
	assert.True(t, diagnosis.TotalEquity.Equal(decimal.RequireFromString("1000")))
}
