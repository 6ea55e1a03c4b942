// Package recommend merges the comparison verdict with check findings into
// the stored recommendation and headline.
package recommend

import (
	"github.com/tcdsagency/renewals/internal/compare"
	"github.com/tcdsagency/renewals/internal/model"
)

// Outcome is the final recommendation for a record.
type Outcome struct {
	Recommendation model.Recommendation
	Headline       string
	// Escalated is true when check findings raised the comparison verdict.
	Escalated bool
}

// Aggregate applies check escalation: any critical finding forces at least
// reshop, warnings lift renew_as_is to needs_review, otherwise the
// comparison's provisional value passes through.
func Aggregate(cmp *model.ComparisonResult, sum model.CheckSummary) Outcome {
	provisional := model.RecommendNeedsReview
	var summary model.ComparisonSummary
	if cmp != nil {
		provisional = cmp.Recommendation
		summary = cmp.Summary
	}

	final := provisional
	switch {
	case sum.HasCritical || sum.CriticalCount > 0:
		final = atLeast(final, model.RecommendReshop)
	case sum.WarningCount > 0:
		final = atLeast(final, model.RecommendNeedsReview)
	}

	return Outcome{
		Recommendation: final,
		Headline:       compare.Headline(summary),
		Escalated:      final != provisional,
	}
}

func atLeast(r, floor model.Recommendation) model.Recommendation {
	if r.Rank() < floor.Rank() {
		return floor
	}
	return r
}

// Apply writes the outcome into the comparison result in place.
func Apply(cmp *model.ComparisonResult, sum model.CheckSummary) Outcome {
	out := Aggregate(cmp, sum)
	if cmp != nil {
		cmp.Recommendation = out.Recommendation
		cmp.Summary.Headline = out.Headline
	}
	return out
}
