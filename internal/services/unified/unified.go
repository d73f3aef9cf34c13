// Package unified decides whether two sub-account totals alias one
// physical pool of capital (the venue's unified-margin mode) or are
// genuinely additive.
package unified

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/reckon/internal/entity"
)

// DefaultEpsilon is the empirical threshold below which two positive
// subtotals are treated as one shared pool: one settlement unit.
var DefaultEpsilon = decimal.NewFromInt(1)

// Detector compares settlement-equivalent subtotals. The epsilon and
// the winning side are venue policy, not venue contract, so both are
// injected.
type Detector struct {
	epsilon decimal.Decimal
	prefer  entity.AccountType
}

// New creates a Detector. prefer names the account type whose subtotal
// wins when pools are shared; anything other than spot means the
// derivatives (margin-aware) figure wins.
func New(epsilon decimal.Decimal, prefer entity.AccountType) *Detector {
	if epsilon.LessThanOrEqual(decimal.Zero) {
		epsilon = DefaultEpsilon
	}
	return &Detector{epsilon: epsilon, prefer: prefer}
}

// Compare inspects two subtotals and produces an advisory verdict.
// Shared pools require both subtotals strictly positive and an
// absolute difference below epsilon; a zero side means there is
// nothing to conflate.
func (d *Detector) Compare(a entity.AccountType, aTotal decimal.Decimal, b entity.AccountType, bTotal decimal.Decimal) entity.Verdict {
	diff := aTotal.Sub(bTotal).Abs()

	if aTotal.IsPositive() && bTotal.IsPositive() && diff.LessThan(d.epsilon) {
		chosen := bTotal
		winner := b
		if d.prefer == a {
			chosen = aTotal
			winner = a
		}
		return entity.Verdict{
			PoolsAreShared: true,
			Rationale: fmt.Sprintf(
				"%s (%s) and %s (%s) differ by %s, below epsilon %s: both read one shared pool, using the %s figure",
				a, aTotal, b, bTotal, diff, d.epsilon, winner),
			ChosenTotal: chosen,
		}
	}

	rationale := fmt.Sprintf("%s (%s) and %s (%s) differ by %s, at or above epsilon %s: pools are additive",
		a, aTotal, b, bTotal, diff, d.epsilon)
	if aTotal.IsZero() || bTotal.IsZero() {
		rationale = fmt.Sprintf("%s (%s) and %s (%s): a zero subtotal cannot alias a shared pool, treating as additive",
			a, aTotal, b, bTotal)
	}

	return entity.Verdict{
		PoolsAreShared: false,
		Rationale:      rationale,
		ChosenTotal:    aTotal.Add(bTotal),
	}
}
