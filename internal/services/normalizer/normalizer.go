// Package normalizer converts raw venue balance responses into
// canonical account snapshots. It is the schema boundary: everything
// past it works with parsed decimals only.
package normalizer

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/reckon/internal/entity"
)

// reconTolerance bounds the acceptable drift between total and
// free+used before a holding is flagged inconsistent.
var reconTolerance = decimal.New(1, -8)

// reservedKeys are metadata keys venues mix into balance mappings.
// They are skipped, never parsed as currencies.
var reservedKeys = map[string]struct{}{
	"info":      {},
	"free":      {},
	"used":      {},
	"total":     {},
	"debt":      {},
	"timestamp": {},
	"datetime":  {},
}

// MalformedBalanceError reports a numeric field that could not be
// parsed. It aborts normalization of the offending snapshot only.
type MalformedBalanceError struct {
	Currency string
	Field    string
	Value    string
}

func (e *MalformedBalanceError) Error() string {
	return fmt.Sprintf("malformed balance: %s.%s=%q is not numeric", e.Currency, e.Field, e.Value)
}

// Normalizer builds account snapshots against a fixed settlement
// currency set.
type Normalizer struct {
	settlement map[string]struct{}
}

// New creates a Normalizer. Currencies in settlement are treated as
// direct settlement-unit equivalents; everything else is counted but
// not priced.
func New(settlement []string) *Normalizer {
	set := make(map[string]struct{}, len(settlement))
	for _, c := range settlement {
		set[c] = struct{}{}
	}
	return &Normalizer{settlement: set}
}

// Normalize converts a raw balance mapping into an AccountSnapshot.
// Missing numeric fields coerce to zero, zero-total assets are
// dropped, and the result ordering is deterministic: descending by
// total, ties broken by currency ascending.
func (n *Normalizer) Normalize(accountType entity.AccountType, raw entity.RawBalances) (entity.AccountSnapshot, error) {
	snapshot := entity.AccountSnapshot{AccountType: accountType}

	for currency, asset := range raw {
		if _, reserved := reservedKeys[currency]; reserved {
			continue
		}

		total, err := coerce(currency, "total", asset.Total)
		if err != nil {
			return entity.AccountSnapshot{}, err
		}
		free, err := coerce(currency, "free", asset.Free)
		if err != nil {
			return entity.AccountSnapshot{}, err
		}
		used, err := coerce(currency, "used", asset.Used)
		if err != nil {
			return entity.AccountSnapshot{}, err
		}

		if total.LessThanOrEqual(decimal.Zero) {
			continue
		}

		snapshot.Balances = append(snapshot.Balances, entity.AssetBalance{
			Currency:     currency,
			Total:        total,
			Free:         free,
			Used:         used,
			Inconsistent: total.Sub(free.Add(used)).Abs().GreaterThanOrEqual(reconTolerance),
		})
	}

	sort.Slice(snapshot.Balances, func(i, j int) bool {
		a, b := snapshot.Balances[i], snapshot.Balances[j]
		if !a.Total.Equal(b.Total) {
			return a.Total.GreaterThan(b.Total)
		}
		return a.Currency < b.Currency
	})

	for _, bal := range snapshot.Balances {
		if _, ok := n.settlement[bal.Currency]; ok {
			snapshot.SettlementEquivalent = snapshot.SettlementEquivalent.Add(bal.Total)
		} else {
			snapshot.UnpricedAssets = append(snapshot.UnpricedAssets, bal.Currency)
		}
	}

	return snapshot, nil
}

func coerce(currency, field string, v *string) (decimal.Decimal, error) {
	if v == nil {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.Zero, &MalformedBalanceError{Currency: currency, Field: field, Value: *v}
	}
	return d, nil
}
