package reconciler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/reckon/internal/entity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snap(at entity.AccountType, settlement string, unpriced ...string) *entity.AccountSnapshot {
	return &entity.AccountSnapshot{
		AccountType:          at,
		SettlementEquivalent: dec(settlement),
		UnpricedAssets:       unpriced,
	}
}

func TestReconcileAdditive(t *testing.T) {
	got, err := Reconcile(Input{
		Venue:       "bybit",
		Spot:        snap(entity.AccountTypeSpot, "300"),
		Derivatives: snap(entity.AccountTypeDerivatives, "700"),
		Funding:     snap(entity.AccountTypeFunding, "50"),
		Verdict:     entity.Verdict{PoolsAreShared: false, ChosenTotal: dec("1000")},
	})
	require.NoError(t, err)

	assert.True(t, got.TotalEquity.Equal(dec("1050")), "want 1050, got %s", got.TotalEquity)
}

func TestReconcileSharedPool(t *testing.T) {
	got, err := Reconcile(Input{
		Venue:       "bybit",
		Spot:        snap(entity.AccountTypeSpot, "1000"),
		Derivatives: snap(entity.AccountTypeDerivatives, "1000.2"),
		Verdict:     entity.Verdict{PoolsAreShared: true, ChosenTotal: dec("1000.2")},
	})
	require.NoError(t, err)

	// spot is suppressed, not summed, but still reported
	assert.True(t, got.TotalEquity.Equal(dec("1000.2")), "want 1000.2, got %s", got.TotalEquity)
	assert.True(t, got.SpotSubtotal.Equal(dec("1000")))
	assert.True(t, got.DerivativesSubtotal.Equal(dec("1000.2")))
}

func TestReconcileMissingAccountsContributeZero(t *testing.T) {
	got, err := Reconcile(Input{
		Venue:       "binance",
		Derivatives: snap(entity.AccountTypeDerivatives, "700"),
		Missing:     []entity.AccountType{entity.AccountTypeSpot},
		Verdict:     entity.Verdict{PoolsAreShared: false, ChosenTotal: dec("700")},
	})
	require.NoError(t, err)

	assert.True(t, got.TotalEquity.Equal(dec("700")))
	assert.Equal(t, []entity.AccountType{entity.AccountTypeSpot}, got.Missing)
}

func TestReconcileNoCapitalSnapshots(t *testing.T) {
	_, err := Reconcile(Input{Venue: "bybit"})
	require.Error(t, err)

	var invalid *InvalidSnapshotError
	require.ErrorAs(t, err, &invalid)
}

func TestReconcilePnlReportedNotAdded(t *testing.T) {
	got, err := Reconcile(Input{
		Venue:              "bybit",
		Spot:               snap(entity.AccountTypeSpot, "300"),
		Derivatives:        snap(entity.AccountTypeDerivatives, "700"),
		Verdict:            entity.Verdict{PoolsAreShared: false},
		TotalUnrealizedPnl: dec("123.45"),
	})
	require.NoError(t, err)

	assert.True(t, got.TotalEquity.Equal(dec("1000")), "PnL must not inflate equity, got %s", got.TotalEquity)
	assert.True(t, got.TotalUnrealizedPnl.Equal(dec("123.45")))
}

func TestReconcileIdempotent(t *testing.T) {
	in := Input{
		Venue:       "bybit",
		TakenAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		Spot:        snap(entity.AccountTypeSpot, "300", "BTC", "ETH"),
		Derivatives: snap(entity.AccountTypeDerivatives, "700"),
		Funding:     snap(entity.AccountTypeFunding, "50"),
		Verdict:     entity.Verdict{PoolsAreShared: false, Rationale: "additive"},
	}

	first, err := Reconcile(in)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := Reconcile(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestReconcileReportsUnpricedSpotAssets(t *testing.T) {
	got, err := Reconcile(Input{
		Venue:       "bybit",
		Spot:        snap(entity.AccountTypeSpot, "300", "BTC", "DOGE"),
		Derivatives: snap(entity.AccountTypeDerivatives, "700"),
		Verdict:     entity.Verdict{PoolsAreShared: false},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"BTC", "DOGE"}, got.UnpricedSpotAssets)
}
