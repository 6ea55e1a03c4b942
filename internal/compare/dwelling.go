package compare

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/normalize"
)

// fieldRule says how a changed dwelling attribute bears on the decision.
type fieldRule int

const (
	// ruleMaterial: any change is material_negative (the insured risk moved).
	ruleMaterial fieldRule = iota
	// ruleInformational: reported, never material.
	ruleInformational
	// ruleLowerIsBetter: numeric decrease is positive, increase is negative.
	ruleLowerIsBetter
)

type dwellingField struct {
	name  string
	label string
	rule  fieldRule
	get   func(model.Dwelling) (text string, num *decimal.Decimal)
}

func intField(p *int) (string, *decimal.Decimal) {
	if p == nil {
		return "", nil
	}
	d := decimal.NewFromInt(int64(*p))
	return strconv.Itoa(*p), &d
}

func decField(p *decimal.Decimal) (string, *decimal.Decimal) {
	if p == nil {
		return "", nil
	}
	return p.String(), p
}

func textField(s string) (string, *decimal.Decimal) {
	return s, nil
}

// protectionClass orders plain numeric ISO classes; split classes like
// "8B" compare as text.
func protectionClass(s string) (string, *decimal.Decimal) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return s, nil
	}
	d := decimal.NewFromInt(int64(n))
	return s, &d
}

var dwellingFields = []dwellingField{
	{"year_built", "Year built", ruleMaterial, func(d model.Dwelling) (string, *decimal.Decimal) { return intField(d.YearBuilt) }},
	{"square_feet", "Square footage", ruleMaterial, func(d model.Dwelling) (string, *decimal.Decimal) { return intField(d.SquareFeet) }},
	{"stories", "Stories", ruleMaterial, func(d model.Dwelling) (string, *decimal.Decimal) { return intField(d.Stories) }},
	{"construction_type", "Construction type", ruleMaterial, func(d model.Dwelling) (string, *decimal.Decimal) { return textField(d.ConstructionType) }},
	{"roof_type", "Roof type", ruleMaterial, func(d model.Dwelling) (string, *decimal.Decimal) { return textField(d.RoofType) }},
	{"roof_year", "Roof year", ruleInformational, func(d model.Dwelling) (string, *decimal.Decimal) { return intField(d.RoofYear) }},
	{"protection_class", "Protection class", ruleLowerIsBetter, func(d model.Dwelling) (string, *decimal.Decimal) { return protectionClass(d.ProtectionClass) }},
	{"distance_to_fire_station", "Distance to fire station", ruleLowerIsBetter, func(d model.Dwelling) (string, *decimal.Decimal) { return decField(d.DistanceToFireStation) }},
	{"distance_to_hydrant", "Distance to hydrant", ruleLowerIsBetter, func(d model.Dwelling) (string, *decimal.Decimal) { return decField(d.DistanceToHydrant) }},
	{"foundation_type", "Foundation type", ruleMaterial, func(d model.Dwelling) (string, *decimal.Decimal) { return textField(d.FoundationType) }},
}

// diffDwelling compares each scalar attribute. A value missing on one side
// is a data gap, reported as non_material.
func diffDwelling(baseline, renewal model.Dwelling) []model.Change {
	var changes []model.Change
	for _, f := range dwellingFields {
		bt, bn := f.get(baseline)
		at, an := f.get(renewal)
		if sameValue(bt, bn, at, an) {
			continue
		}

		c := model.Change{
			Category: model.CategoryDwelling,
			Field:    "dwelling." + f.name,
			Before:   bt,
			After:    at,
		}
		switch {
		case bt == "" || at == "":
			c.Materiality = model.NonMaterial
			c.Description = fmt.Sprintf("%s reported as %q (was %q)", f.label, at, bt)
		case f.rule == ruleInformational:
			c.Materiality = model.NonMaterial
			c.Description = fmt.Sprintf("%s changed from %s to %s", f.label, bt, at)
		case f.rule == ruleLowerIsBetter && bn != nil && an != nil:
			c.Materiality = model.MaterialNegative
			if an.LessThan(*bn) {
				c.Materiality = model.MaterialPositive
			}
			c.Description = fmt.Sprintf("%s changed from %s to %s", f.label, bt, at)
		default:
			c.Materiality = model.MaterialNegative
			c.Description = fmt.Sprintf("%s changed from %s to %s", f.label, bt, at)
		}
		changes = append(changes, c)
	}
	return changes
}

func sameValue(bt string, bn *decimal.Decimal, at string, an *decimal.Decimal) bool {
	if bn != nil && an != nil {
		return bn.Equal(*an)
	}
	return normalize.TextKey(bt) == normalize.TextKey(at)
}
