package entity

import "time"

// AccountType identifies a venue sub-account holding capital.
type AccountType string

const (
	AccountTypeSpot        AccountType = "spot"
	AccountTypeDerivatives AccountType = "derivatives"
	AccountTypeFunding     AccountType = "funding"
	AccountTypeEarn        AccountType = "earn"
	AccountTypeSavings     AccountType = "savings"
)

func (a AccountType) String() string { return string(a) }

// MarketCapability is a market-type tag reported by the venue.
// Used only for report context, never for reconciliation arithmetic.
type MarketCapability string

const (
	CapabilitySpot    MarketCapability = "spot"
	CapabilitySwap    MarketCapability = "swap"
	CapabilityFuture  MarketCapability = "future"
	CapabilityMargin  MarketCapability = "margin"
	CapabilityOptions MarketCapability = "options"
)

// RawAsset is a single currency entry of a raw balance response.
// Numeric fields stay as optional strings until the normalizer parses
// them: venue REST APIs deliver numbers as strings and may omit any of
// the three fields.
type RawAsset struct {
	Total *string
	Free  *string
	Used  *string
}

// RawBalances maps currency identifier to its raw entry. Adapters may
// pass through venue metadata keys; the normalizer filters them.
type RawBalances map[string]RawAsset

// RawPosition is an open-position record as delivered by the venue.
type RawPosition struct {
	Symbol        string
	Side          string
	Size          *string
	EntryPrice    *string
	MarkPrice     *string
	UnrealizedPnl *string
	Notional      *string
	Leverage      *string
}

// RawOrder is a closed order, consumed only to discover symbols of
// interest for the fill aggregation.
type RawOrder struct {
	Symbol    string
	UpdatedAt time.Time
}

// RawFill is a single trade execution as delivered by the venue.
type RawFill struct {
	Symbol    string
	Cost      *string
	Fee       *string
	Timestamp time.Time
}
