package entity

import "github.com/shopspring/decimal"

// AssetBalance is a normalized per-currency holding.
type AssetBalance struct {
	Currency string          `json:"currency"`
	Total    decimal.Decimal `json:"total"`
	Free     decimal.Decimal `json:"free"`
	Used     decimal.Decimal `json:"used"`
	// Inconsistent marks holdings where total deviates from free+used
	// beyond the reconciliation tolerance. Reported, never rejected.
	Inconsistent bool `json:"inconsistent,omitempty"`
}

// AccountSnapshot is the normalized state of one sub-account.
type AccountSnapshot struct {
	AccountType AccountType    `json:"account_type"`
	Balances    []AssetBalance `json:"balances"`
	// SettlementEquivalent sums totals of settlement currencies only.
	// Other assets stay in Balances but are not priced.
	SettlementEquivalent decimal.Decimal `json:"settlement_equivalent"`
	// UnpricedAssets lists currencies excluded from the settlement sum.
	UnpricedAssets []string `json:"unpriced_assets,omitempty"`
}
