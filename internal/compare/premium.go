package compare

import (
	"github.com/shopspring/decimal"

	"github.com/tcdsagency/renewals/internal/model"
)

var hundred = decimal.NewFromInt(100)

type premiumDiff struct {
	direction model.PremiumDirection
	amount    *decimal.Decimal
	percent   *float64
	change    *model.Change
}

// diffPremium computes direction, amount and percent. A null premium on
// either side leaves direction unknown and both numbers nil.
func diffPremium(renewal, baseline *decimal.Decimal, reviewPercent float64) premiumDiff {
	if renewal == nil || baseline == nil {
		return premiumDiff{direction: model.PremiumUnknown}
	}

	amount := renewal.Sub(*baseline)
	d := premiumDiff{amount: &amount}
	switch amount.Sign() {
	case 1:
		d.direction = model.PremiumIncrease
	case -1:
		d.direction = model.PremiumDecrease
	default:
		d.direction = model.PremiumUnchanged
	}
	if !baseline.IsZero() {
		pct := amount.Mul(hundred).DivRound(*baseline, 2).InexactFloat64()
		d.percent = &pct
	}
	if amount.IsZero() {
		return d
	}

	m := model.NonMaterial
	switch {
	case d.direction == model.PremiumDecrease:
		m = model.MaterialPositive
	case d.percent == nil || *d.percent > reviewPercent:
		m = model.MaterialNegative
	}
	d.change = &model.Change{
		Category:    model.CategoryPremium,
		Field:       "premium",
		Before:      baseline.StringFixed(2),
		After:       renewal.StringFixed(2),
		Materiality: m,
		Description: Headline(model.ComparisonSummary{
			PremiumDirection:     d.direction,
			PremiumChangeAmount:  d.amount,
			PremiumChangePercent: d.percent,
		}),
	}
	return d
}
