package model

import "github.com/shopspring/decimal"

// Category groups a change by the part of the term it affects.
type Category string

const (
	CategoryPremium  Category = "premium"
	CategoryCoverage Category = "coverage"
	CategoryVehicle  Category = "vehicle"
	CategoryDriver   Category = "driver"
	CategoryDwelling Category = "dwelling"
)

// Materiality classifies how a change bears on the renew/reshop decision.
type Materiality string

const (
	MaterialNegative Materiality = "material_negative"
	MaterialPositive Materiality = "material_positive"
	NonMaterial      Materiality = "non_material"
)

// Change is one field-level difference between baseline and renewal.
type Change struct {
	Category    Category    `json:"category"`
	Field       string      `json:"field"`
	Before      string      `json:"before,omitempty"`
	After       string      `json:"after,omitempty"`
	Materiality Materiality `json:"materiality"`
	Description string      `json:"description"`
}

// PremiumDirection is the sign of the premium change.
type PremiumDirection string

const (
	PremiumIncrease  PremiumDirection = "increase"
	PremiumDecrease  PremiumDirection = "decrease"
	PremiumUnchanged PremiumDirection = "unchanged"
	PremiumUnknown   PremiumDirection = "unknown"
)

// ComparisonSummary aggregates a comparison run.
type ComparisonSummary struct {
	PremiumDirection      PremiumDirection `json:"premium_direction"`
	PremiumChangeAmount   *decimal.Decimal `json:"premium_change_amount,omitempty"`
	PremiumChangePercent  *float64         `json:"premium_change_percent,omitempty"`
	MaterialNegativeCount int              `json:"material_negative_count"`
	MaterialPositiveCount int              `json:"material_positive_count"`
	NonMaterialCount      int              `json:"non_material_count"`
	Headline              string           `json:"headline"`
}

// BaselineStatus records whether a prior term was available.
type BaselineStatus string

const (
	BaselineFound    BaselineStatus = "found"
	BaselineNotFound BaselineStatus = "not_found"
	BaselineUnknown  BaselineStatus = "unknown"
)

// Recommendation is the engine's verdict for the renewal.
type Recommendation string

const (
	RecommendRenewAsIs   Recommendation = "renew_as_is"
	RecommendNeedsReview Recommendation = "needs_review"
	RecommendReshop      Recommendation = "reshop"
)

// Rank orders recommendations by severity so escalation can take the max.
func (r Recommendation) Rank() int {
	switch r {
	case RecommendRenewAsIs:
		return 0
	case RecommendNeedsReview:
		return 1
	case RecommendReshop:
		return 2
	default:
		return 1
	}
}

// ComparisonResult is produced fresh on every comparison run and never patched.
type ComparisonResult struct {
	MaterialChanges      []Change          `json:"material_changes"`
	Summary              ComparisonSummary `json:"summary"`
	BaselineStatus       BaselineStatus    `json:"baseline_status"`
	BaselineStatusReason string            `json:"baseline_status_reason,omitempty"`
	Recommendation       Recommendation    `json:"recommendation"`
}

// Changes returns the subset of changes in a category.
func (r *ComparisonResult) Changes(cat Category) []Change {
	var out []Change
	for _, c := range r.MaterialChanges {
		if c.Category == cat {
			out = append(out, c)
		}
	}
	return out
}
