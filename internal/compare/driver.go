package compare

import (
	"github.com/tcdsagency/renewals/internal/model"
	"github.com/tcdsagency/renewals/internal/normalize"
)

// diffDrivers matches drivers by case-folded full name. An added driver is
// informational; a removed or newly excluded driver needs an agent's eyes.
func diffDrivers(baseline, renewal []model.Driver) []model.Change {
	remaining := make(map[string][]int, len(renewal))
	for j, d := range renewal {
		key := normalize.NameKey(d.FirstName, d.LastName)
		remaining[key] = append(remaining[key], j)
	}
	matched := make([]bool, len(renewal))

	var changes []model.Change
	for _, b := range baseline {
		key := normalize.NameKey(b.FirstName, b.LastName)
		field := "drivers." + key
		idx := remaining[key]
		if len(idx) == 0 {
			changes = append(changes, model.Change{
				Category:    model.CategoryDriver,
				Field:       field,
				Before:      b.FullName(),
				Materiality: model.MaterialNegative,
				Description: "Driver removed: " + b.FullName() + " (confirm this was not an erroneous exclusion)",
			})
			continue
		}
		j := idx[0]
		remaining[key] = idx[1:]
		matched[j] = true
		a := renewal[j]

		switch {
		case a.Excluded && !b.Excluded:
			changes = append(changes, model.Change{
				Category:    model.CategoryDriver,
				Field:       field + ".excluded",
				Before:      "false",
				After:       "true",
				Materiality: model.MaterialNegative,
				Description: "Driver newly excluded: " + a.FullName(),
			})
		case !a.Excluded && b.Excluded:
			changes = append(changes, model.Change{
				Category:    model.CategoryDriver,
				Field:       field + ".excluded",
				Before:      "true",
				After:       "false",
				Materiality: model.NonMaterial,
				Description: "Driver exclusion removed: " + a.FullName(),
			})
		}
	}

	for j, a := range renewal {
		if matched[j] {
			continue
		}
		changes = append(changes, model.Change{
			Category:    model.CategoryDriver,
			Field:       "drivers." + normalize.NameKey(a.FirstName, a.LastName),
			After:       a.FullName(),
			Materiality: model.NonMaterial,
			Description: "Driver added: " + a.FullName(),
		})
	}
	return changes
}
