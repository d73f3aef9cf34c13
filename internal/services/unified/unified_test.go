package unified

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/vadiminshakov/reckon/internal/entity"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCompare(t *testing.T) {
	tests := []struct {
		name        string
		spot        string
		derivatives string
		wantShared  bool
		wantChosen  string
	}{
		{
			name:        "near-identical positive subtotals are one pool",
			spot:        "1000.00",
			derivatives: "1000.50",
			wantShared:  true,
			wantChosen:  "1000.50", // derivatives figure wins by default
		},
		{
			name:        "clearly different subtotals are additive",
			spot:        "1000.00",
			derivatives: "5000.00",
			wantShared:  false,
			wantChosen:  "6000.00",
		},
		{
			name:        "zero spot cannot alias a pool",
			spot:        "0",
			derivatives: "500",
			wantShared:  false,
			wantChosen:  "500",
		},
		{
			name:        "zero derivatives cannot alias a pool",
			spot:        "500",
			derivatives: "0",
			wantShared:  false,
			wantChosen:  "500",
		},
		{
			name:        "difference exactly at epsilon is additive",
			spot:        "1000",
			derivatives: "1001",
			wantShared:  false,
			wantChosen:  "2001",
		},
	}

	d := New(DefaultEpsilon, entity.AccountTypeDerivatives)

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := d.Compare(entity.AccountTypeSpot, dec(tc.spot), entity.AccountTypeDerivatives, dec(tc.derivatives))

			assert.Equal(t, tc.wantShared, v.PoolsAreShared)
			assert.True(t, v.ChosenTotal.Equal(dec(tc.wantChosen)),
				"chosen total: want %s, got %s", tc.wantChosen, v.ChosenTotal)
			assert.NotEmpty(t, v.Rationale)
		})
	}
}

func TestCompareRationaleNamesBothSides(t *testing.T) {
	d := New(DefaultEpsilon, entity.AccountTypeDerivatives)

	v := d.Compare(entity.AccountTypeSpot, dec("1000.00"), entity.AccountTypeDerivatives, dec("1000.50"))

	assert.Contains(t, v.Rationale, "spot")
	assert.Contains(t, v.Rationale, "derivatives")
	assert.Contains(t, v.Rationale, "0.5") // the observed difference
}

func TestComparePreferSpotPolicy(t *testing.T) {
	d := New(DefaultEpsilon, entity.AccountTypeSpot)

	v := d.Compare(entity.AccountTypeSpot, dec("1000.00"), entity.AccountTypeDerivatives, dec("1000.50"))

	assert.True(t, v.PoolsAreShared)
	assert.True(t, v.ChosenTotal.Equal(dec("1000.00")), "spot figure must win, got %s", v.ChosenTotal)
}

func TestCompareCustomEpsilon(t *testing.T) {
	d := New(dec("10"), entity.AccountTypeDerivatives)

	v := d.Compare(entity.AccountTypeSpot, dec("1000"), entity.AccountTypeDerivatives, dec("1005"))
	assert.True(t, v.PoolsAreShared, "difference 5 is below epsilon 10")
}
