package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/reckon/internal/entity"
)

func testDiagnosis(equity string) entity.Diagnosis {
	return entity.Diagnosis{
		Venue:       "bybit",
		TakenAt:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		TotalEquity: decimal.RequireFromString(equity),
		Verdict: entity.Verdict{
			PoolsAreShared: true,
			Rationale:      "spot and derivatives read one pool",
			ChosenTotal:    decimal.RequireFromString(equity),
		},
	}
}

func TestWALStoreRoundTrip(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(testDiagnosis("1000.2")))
	require.NoError(t, store.Save(testDiagnosis("999.8")))

	records, err := store.ReportsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "bybit", records[0].Diagnosis.Venue)
	assert.True(t, records[0].Diagnosis.TotalEquity.Equal(decimal.RequireFromString("1000.2")))
	assert.True(t, records[0].Diagnosis.Verdict.PoolsAreShared)
}

func TestWALStoreReportsAfterIndex(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Save(testDiagnosis("100")))
	first := store.CurrentIndex()
	require.NoError(t, store.Save(testDiagnosis("200")))

	records, err := store.ReportsAfter(first)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].Diagnosis.TotalEquity.Equal(decimal.RequireFromString("200")))
}

func TestWALStoreRejectsAnonymousDiagnosis(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	err = store.Save(entity.Diagnosis{})
	require.Error(t, err)
}
