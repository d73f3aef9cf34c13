// Package reconciler combines normalized snapshots, the detector
// verdict, and position/trade aggregates into one total-equity figure
// with a machine-checkable diagnosis.
package reconciler

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/reckon/internal/entity"
)

// InvalidSnapshotError is the one reconciliation-level failure: no
// trustworthy settlement subtotal exists for any capital account, so
// total equity cannot be computed.
type InvalidSnapshotError struct {
	AccountTypes []entity.AccountType
}

func (e *InvalidSnapshotError) Error() string {
	return fmt.Sprintf("no settlement-equivalent subtotal available for %v, total equity cannot be trusted", e.AccountTypes)
}

// Input is everything a single reconciliation run produced upstream.
// Nil snapshots mean the account type was unavailable and contributes
// zero.
type Input struct {
	Venue   string
	TakenAt time.Time

	Spot        *entity.AccountSnapshot
	Derivatives *entity.AccountSnapshot
	Funding     *entity.AccountSnapshot
	// FundingSource names the candidate account type the funding
	// balance was found under, empty when none was.
	FundingSource entity.AccountType
	// Missing lists account types that degraded to zero contribution.
	Missing []entity.AccountType

	Verdict entity.Verdict

	TotalUnrealizedPnl decimal.Decimal
	TotalNotional      decimal.Decimal
	OpenPositions      []entity.Position

	FillCount   int
	TotalVolume decimal.Decimal
	TotalFees   decimal.Decimal

	Capabilities []entity.MarketCapability
}

// Reconcile produces the diagnosis. Pure function: identical input
// yields an identical diagnosis.
//
// When the verdict says the spot/derivatives pools are shared, the
// verdict's chosen figure replaces their sum; the excluded subtotal is
// still reported so the caller can see what was suppressed. Unrealized
// PnL rides alongside the equity figure, never into it: derivatives
// equity already reflects it.
func Reconcile(in Input) (entity.Diagnosis, error) {
	if in.Spot == nil && in.Derivatives == nil {
		return entity.Diagnosis{}, &InvalidSnapshotError{
			AccountTypes: []entity.AccountType{entity.AccountTypeSpot, entity.AccountTypeDerivatives},
		}
	}

	spot := subtotal(in.Spot)
	derivatives := subtotal(in.Derivatives)
	funding := subtotal(in.Funding)

	var baseTotal decimal.Decimal
	if in.Verdict.PoolsAreShared {
		baseTotal = in.Verdict.ChosenTotal
	} else {
		baseTotal = spot.Add(derivatives)
	}

	diagnosis := entity.Diagnosis{
		Venue:   in.Venue,
		TakenAt: in.TakenAt,

		SpotSubtotal:        spot,
		DerivativesSubtotal: derivatives,
		FundingSubtotal:     funding,
		FundingSource:       in.FundingSource,
		Missing:             in.Missing,

		Verdict:     in.Verdict,
		TotalEquity: baseTotal.Add(funding),

		TotalUnrealizedPnl: in.TotalUnrealizedPnl,
		TotalNotional:      in.TotalNotional,
		OpenPositions:      in.OpenPositions,

		FillCount:   in.FillCount,
		TotalVolume: in.TotalVolume,
		TotalFees:   in.TotalFees,

		Capabilities: in.Capabilities,
	}

	if in.Spot != nil {
		diagnosis.UnpricedSpotAssets = in.Spot.UnpricedAssets
	}

	return diagnosis, nil
}

func subtotal(s *entity.AccountSnapshot) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	return s.SettlementEquivalent
}
