package compare

import (
	"fmt"
	"strings"

	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/normalize"
)

type vehiclePair struct {
	before, after *model.Vehicle
}

// matchVehicles pairs vehicles by VIN, then by exact year+make+model among
// the leftovers. Unpaired vehicles carry a nil side.
func matchVehicles(baseline, renewal []model.Vehicle) []vehiclePair {
	usedB := make([]bool, len(baseline))
	usedR := make([]bool, len(renewal))
	matchedTo := make([]int, len(baseline))
	for i := range matchedTo {
		matchedTo[i] = -1
	}

	link := func(same func(b, r model.Vehicle) bool) {
		for i := range baseline {
			if usedB[i] {
				continue
			}
			for j := range renewal {
				if usedR[j] || !same(baseline[i], renewal[j]) {
					continue
				}
				usedB[i], usedR[j] = true, true
				matchedTo[i] = j
				break
			}
		}
	}
	link(func(b, r model.Vehicle) bool {
		vb, vr := normalize.VINKey(b.VIN), normalize.VINKey(r.VIN)
		return vb != "" && vb == vr
	})
	link(func(b, r model.Vehicle) bool {
		return b.Year == r.Year &&
			normalize.TextKey(b.Make) == normalize.TextKey(r.Make) &&
			normalize.TextKey(b.Model) == normalize.TextKey(r.Model) &&
			normalize.TextKey(b.Make) != ""
	})

	var pairs []vehiclePair
	for i := range baseline {
		p := vehiclePair{before: &baseline[i]}
		if j := matchedTo[i]; j >= 0 {
			p.after = &renewal[j]
		}
		pairs = append(pairs, p)
	}
	for j := range renewal {
		if !usedR[j] {
			pairs = append(pairs, vehiclePair{after: &renewal[j]})
		}
	}
	return pairs
}

func vehicleKey(v *model.Vehicle) string {
	if vin := normalize.VINKey(v.VIN); vin != "" {
		return vin
	}
	return strings.ReplaceAll(strings.TrimSpace(v.Label()), " ", "_")
}

func diffVehicles(baseline, renewal []model.Vehicle) []model.Change {
	var changes []model.Change
	for _, p := range matchVehicles(baseline, renewal) {
		switch {
		case p.after == nil:
			changes = append(changes, model.Change{
				Category:    model.CategoryVehicle,
				Field:       "vehicles." + vehicleKey(p.before),
				Before:      p.before.Label(),
				Materiality: model.MaterialNegative,
				Description: "Vehicle removed: " + p.before.Label(),
			})
		case p.before == nil:
			changes = append(changes, model.Change{
				Category:    model.CategoryVehicle,
				Field:       "vehicles." + vehicleKey(p.after),
				After:       p.after.Label(),
				Materiality: model.MaterialPositive,
				Description: "Vehicle added: " + p.after.Label(),
			})
		default:
			prefix := "vehicles." + vehicleKey(p.before)
			if b, a := normalize.VINKey(p.before.VIN), normalize.VINKey(p.after.VIN); b != a {
				changes = append(changes, model.Change{
					Category:    model.CategoryVehicle,
					Field:       prefix + ".vin",
					Before:      b,
					After:       a,
					Materiality: model.NonMaterial,
					Description: fmt.Sprintf("VIN on %s changed", p.after.Label()),
				})
			}
			for _, c := range diffCoverages(prefix+".coverages", p.before.Coverages, p.after.Coverages) {
				c.Category = model.CategoryVehicle
				c.Description = p.after.Label() + ": " + c.Description
				changes = append(changes, c)
			}
		}
	}
	return changes
}
