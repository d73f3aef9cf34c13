// Package positions aggregates raw open-position records into
// portfolio-level PnL and exposure figures.
package positions

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/reckon/internal/entity"
)

// Aggregate is the position aggregator's output: retained positions
// plus signed PnL and absolute notional sums.
type Aggregate struct {
	Positions          []entity.Position
	TotalUnrealizedPnl decimal.Decimal
	TotalNotional      decimal.Decimal
}

// Build filters raw records to open positions (size > 0) and sums
// unrealized PnL (signed) and notional exposure (absolute). Pure
// function of its input.
func Build(raw []entity.RawPosition) (Aggregate, error) {
	var agg Aggregate

	for _, r := range raw {
		size, err := field(r.Symbol, "size", r.Size)
		if err != nil {
			return Aggregate{}, err
		}

		side := normalizeSide(r.Side)
		if size.IsNegative() {
			// venues reporting signed size encode the side in the sign
			side = entity.PositionSideShort
			size = size.Abs()
		}
		if size.IsZero() {
			continue
		}

		entry, err := field(r.Symbol, "entryPrice", r.EntryPrice)
		if err != nil {
			return Aggregate{}, err
		}
		mark, err := field(r.Symbol, "markPrice", r.MarkPrice)
		if err != nil {
			return Aggregate{}, err
		}
		pnl, err := field(r.Symbol, "unrealizedPnl", r.UnrealizedPnl)
		if err != nil {
			return Aggregate{}, err
		}
		notional, err := field(r.Symbol, "notional", r.Notional)
		if err != nil {
			return Aggregate{}, err
		}

		leverage := decimal.NewFromInt(1)
		if r.Leverage != nil {
			leverage, err = field(r.Symbol, "leverage", r.Leverage)
			if err != nil {
				return Aggregate{}, err
			}
			if leverage.LessThan(decimal.NewFromInt(1)) {
				leverage = decimal.NewFromInt(1)
			}
		}

		agg.Positions = append(agg.Positions, entity.Position{
			Symbol:        r.Symbol,
			Side:          side,
			Size:          size,
			EntryPrice:    entry,
			MarkPrice:     mark,
			UnrealizedPnl: pnl,
			Notional:      notional,
			Leverage:      leverage,
		})
		agg.TotalUnrealizedPnl = agg.TotalUnrealizedPnl.Add(pnl)
		agg.TotalNotional = agg.TotalNotional.Add(notional.Abs())
	}

	return agg, nil
}

func normalizeSide(s string) entity.PositionSide {
	switch strings.ToLower(s) {
	case "short", "sell":
		return entity.PositionSideShort
	default:
		return entity.PositionSideLong
	}
}

func field(symbol, name string, v *string) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "position %s: %s is not numeric", symbol, name)
	}
	return d, nil
}
