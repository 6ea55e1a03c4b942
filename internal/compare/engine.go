// Package compare produces the structural diff between a renewal term and
// its prior term. The engine is pure: no clock, no I/O, no logging.
package compare

import (
	"github.com/tcdsagency/renewals/internal/model"
)

// Config holds the provisional recommendation thresholds.
type Config struct {
	// ReshopPremiumPercent: a premium increase above this percent recommends reshop.
	ReshopPremiumPercent float64 `yaml:"reshop_premium_percent" mapstructure:"reshop_premium_percent"`
	// ReviewPremiumPercent: a premium increase above this percent needs review.
	ReviewPremiumPercent float64 `yaml:"review_premium_percent" mapstructure:"review_premium_percent"`
	// ReshopNegativeCount: this many material_negative changes recommend reshop.
	ReshopNegativeCount int `yaml:"reshop_negative_count" mapstructure:"reshop_negative_count"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		ReshopPremiumPercent: 10,
		ReviewPremiumPercent: 5,
		ReshopNegativeCount:  3,
	}
}

// Engine diffs snapshots.
type Engine struct {
	cfg Config
}

// NewEngine creates an Engine with the given thresholds.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Compare diffs renewal against baseline. The caller must have checked both
// terms with model.Comparable; a nil baseline yields the not-found shape.
func (e *Engine) Compare(renewal, baseline *model.Snapshot) *model.ComparisonResult {
	if baseline == nil || renewal == nil {
		return NotFound("no baseline snapshot supplied")
	}

	p := diffPremium(renewal.Policy.Premium, baseline.Policy.Premium, e.cfg.ReviewPremiumPercent)

	changes := make([]model.Change, 0)
	if p.change != nil {
		changes = append(changes, *p.change)
	}
	changes = append(changes, diffCoverages("coverages", baseline.Policy.Coverages, renewal.Policy.Coverages)...)
	if baseline.Auto != nil && renewal.Auto != nil {
		changes = append(changes, diffVehicles(baseline.Auto.Vehicles, renewal.Auto.Vehicles)...)
		changes = append(changes, diffDrivers(baseline.Auto.Drivers, renewal.Auto.Drivers)...)
	}
	if baseline.Home != nil && renewal.Home != nil {
		changes = append(changes, diffDwelling(baseline.Home.Dwelling, renewal.Home.Dwelling)...)
	}

	summary := model.ComparisonSummary{
		PremiumDirection:     p.direction,
		PremiumChangeAmount:  p.amount,
		PremiumChangePercent: p.percent,
	}
	for _, c := range changes {
		switch c.Materiality {
		case model.MaterialNegative:
			summary.MaterialNegativeCount++
		case model.MaterialPositive:
			summary.MaterialPositiveCount++
		default:
			summary.NonMaterialCount++
		}
	}
	summary.Headline = Headline(summary)

	return &model.ComparisonResult{
		MaterialChanges: changes,
		Summary:         summary,
		BaselineStatus:  model.BaselineFound,
		Recommendation:  e.provisional(summary),
	}
}

func (e *Engine) provisional(s model.ComparisonSummary) model.Recommendation {
	increase := 0.0
	if s.PremiumDirection == model.PremiumIncrease && s.PremiumChangePercent != nil {
		increase = *s.PremiumChangePercent
	}
	switch {
	case e.cfg.ReshopNegativeCount > 0 && s.MaterialNegativeCount >= e.cfg.ReshopNegativeCount:
		return model.RecommendReshop
	case increase > e.cfg.ReshopPremiumPercent:
		return model.RecommendReshop
	case increase > e.cfg.ReviewPremiumPercent, s.MaterialNegativeCount > 0:
		return model.RecommendNeedsReview
	default:
		return model.RecommendRenewAsIs
	}
}

// NotFound is the result shape for a renewal with no prior term. It is a
// valid outcome, not an error.
func NotFound(reason string) *model.ComparisonResult {
	summary := model.ComparisonSummary{PremiumDirection: model.PremiumUnknown}
	summary.Headline = Headline(summary)
	return &model.ComparisonResult{
		MaterialChanges:      []model.Change{},
		Summary:              summary,
		BaselineStatus:       model.BaselineNotFound,
		BaselineStatusReason: reason,
		Recommendation:       model.RecommendNeedsReview,
	}
}
