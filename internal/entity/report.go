package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Verdict is the unified-margin detector's decision about whether two
// sub-account totals alias one physical pool of capital. Advisory: the
// reconciler acts on it, but it is always surfaced in the diagnosis.
type Verdict struct {
	PoolsAreShared bool            `json:"pools_are_shared"`
	Rationale      string          `json:"rationale"`
	ChosenTotal    decimal.Decimal `json:"chosen_total"`
}

// Diagnosis is the reconciliation report emitted once per run. It is
// the single object handed to presentation collaborators; nothing else
// leaks out of a run.
type Diagnosis struct {
	Venue   string    `json:"venue"`
	TakenAt time.Time `json:"taken_at"`

	SpotSubtotal        decimal.Decimal `json:"spot_subtotal"`
	DerivativesSubtotal decimal.Decimal `json:"derivatives_subtotal"`
	FundingSubtotal     decimal.Decimal `json:"funding_subtotal"`
	// FundingSource is the candidate account type that actually held the
	// funding balance (funding/earn/savings), empty when none was found.
	FundingSource AccountType `json:"funding_source,omitempty"`

	// Missing lists account types that contributed zero because their
	// snapshot could not be fetched or normalized.
	Missing []AccountType `json:"missing,omitempty"`

	Verdict     Verdict         `json:"verdict"`
	TotalEquity decimal.Decimal `json:"total_equity"`

	TotalUnrealizedPnl decimal.Decimal `json:"total_unrealized_pnl"`
	TotalNotional      decimal.Decimal `json:"total_notional"`
	OpenPositions      []Position      `json:"open_positions,omitempty"`

	FillCount   int             `json:"fill_count"`
	TotalVolume decimal.Decimal `json:"total_volume"`
	TotalFees   decimal.Decimal `json:"total_fees"`

	// UnpricedSpotAssets are spot holdings outside the settlement set;
	// they require pricing to include accurately and are only counted.
	UnpricedSpotAssets []string `json:"unpriced_spot_assets,omitempty"`

	Capabilities []MarketCapability `json:"capabilities,omitempty"`
}

// DiagnosisRecord bundles a diagnosis with the journal index it
// originated from, for incremental streaming.
type DiagnosisRecord struct {
	Index     uint64    `json:"index"`
	Diagnosis Diagnosis `json:"diagnosis"`
}
