package entity

import "github.com/shopspring/decimal"

// PositionSide is the direction of an open position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// Position is a normalized open position. Read-only once produced.
type Position struct {
	Symbol        string          `json:"symbol"`
	Side          PositionSide    `json:"side"`
	Size          decimal.Decimal `json:"size"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	MarkPrice     decimal.Decimal `json:"mark_price"`
	UnrealizedPnl decimal.Decimal `json:"unrealized_pnl"`
	Notional      decimal.Decimal `json:"notional"`
	Leverage      decimal.Decimal `json:"leverage"`
}

// Fill is a normalized trade execution within the lookback window.
type Fill struct {
	Symbol string          `json:"symbol"`
	Cost   decimal.Decimal `json:"cost"`
	Fee    decimal.Decimal `json:"fee"`
}
