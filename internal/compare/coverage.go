package compare

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tcdsagency/renewals/internal/model"
)

var titler = cases.Title(language.AmericanEnglish)

// coverageLabel renders a canonical code for descriptions.
func coverageLabel(code model.CoverageCode) string {
	return titler.String(strings.ReplaceAll(string(code), "_", " "))
}

type amountKind int

const (
	kindLimit amountKind = iota
	kindDeductible
)

func (k amountKind) String() string {
	if k == kindDeductible {
		return "deductible"
	}
	return "limit"
}

// diffCoverages diffs two coverage lists over the union of their codes.
// Codes are visited in sorted order so output is independent of source order.
func diffCoverages(prefix string, baseline, renewal []model.Coverage) []model.Change {
	before := indexCoverages(baseline)
	after := indexCoverages(renewal)

	codes := make([]model.CoverageCode, 0, len(before)+len(after))
	for code := range before {
		codes = append(codes, code)
	}
	for code := range after {
		if _, ok := before[code]; !ok {
			codes = append(codes, code)
		}
	}
	slices.Sort(codes)

	var changes []model.Change
	for _, code := range codes {
		b, inBefore := before[code]
		a, inAfter := after[code]
		field := prefix + "." + string(code)
		label := coverageLabel(code)
		switch {
		case !inAfter:
			changes = append(changes, model.Change{
				Category:    model.CategoryCoverage,
				Field:       field,
				Before:      describeCoverage(b),
				Materiality: model.MaterialNegative,
				Description: fmt.Sprintf("%s coverage dropped (was %s)", label, describeCoverage(b)),
			})
		case !inBefore:
			changes = append(changes, model.Change{
				Category:    model.CategoryCoverage,
				Field:       field,
				After:       describeCoverage(a),
				Materiality: model.MaterialPositive,
				Description: fmt.Sprintf("%s coverage added (%s)", label, describeCoverage(a)),
			})
		default:
			if c, ok := diffAmount(field, label, kindLimit, b.Limit, a.Limit); ok {
				changes = append(changes, c)
			}
			if c, ok := diffAmount(field, label, kindDeductible, b.Deductible, a.Deductible); ok {
				changes = append(changes, c)
			}
		}
	}
	return changes
}

func indexCoverages(covs []model.Coverage) map[model.CoverageCode]model.Coverage {
	out := make(map[model.CoverageCode]model.Coverage, len(covs))
	for _, c := range covs {
		if _, dup := out[c.Code]; !dup {
			out[c.Code] = c
		}
	}
	return out
}

func describeCoverage(c model.Coverage) string {
	var parts []string
	if !c.Limit.IsZero() {
		parts = append(parts, "limit "+c.Limit.String())
	}
	if !c.Deductible.IsZero() {
		parts = append(parts, "deductible "+c.Deductible.String())
	}
	if len(parts) == 0 {
		return "no limit or deductible"
	}
	return strings.Join(parts, ", ")
}

// diffAmount classifies one limit or deductible. A limit going up is
// positive, a deductible going up is negative. Values that are not single
// numbers only match or differ; a differing structured value is negative.
func diffAmount(field, label string, kind amountKind, before, after model.Amount) (model.Change, bool) {
	if before.Equal(after) {
		return model.Change{}, false
	}

	c := model.Change{
		Category: model.CategoryCoverage,
		Field:    field + "." + kind.String(),
		Before:   before.String(),
		After:    after.String(),
	}

	switch {
	case after.IsZero():
		c.Materiality = model.MaterialNegative
		c.Description = fmt.Sprintf("%s %s removed (was %s)", label, kind, before)
	case before.IsZero():
		c.Materiality = model.NonMaterial
		c.Description = fmt.Sprintf("%s %s now reported as %s", label, kind, after)
	case before.Number != nil && after.Number != nil:
		up := after.Number.GreaterThan(*before.Number)
		verb := "decreased"
		if up {
			verb = "increased"
		}
		if up == (kind == kindLimit) {
			c.Materiality = model.MaterialPositive
		} else {
			c.Materiality = model.MaterialNegative
		}
		c.Description = fmt.Sprintf("%s %s %s from %s to %s", label, kind, verb, before, after)
	default:
		c.Materiality = model.MaterialNegative
		c.Description = fmt.Sprintf("%s %s changed from %s to %s", label, kind, before, after)
	}
	return c, true
}
