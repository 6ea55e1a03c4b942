// Package model defines the policy-term snapshots, comparison and check results,
// and the renewal record that flows through the renewal workflow.
package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// LineOfBusiness is the insurance product category of a policy term.
type LineOfBusiness string

const (
	LineAuto         LineOfBusiness = "auto"
	LineHomeowners   LineOfBusiness = "homeowners"
	LineDwellingFire LineOfBusiness = "dwelling_fire"
	LineRenters      LineOfBusiness = "renters"
	LineCondo        LineOfBusiness = "condo"
)

// AllLines lists every supported line of business.
var AllLines = []LineOfBusiness{LineAuto, LineHomeowners, LineDwellingFire, LineRenters, LineCondo}

// IsAuto reports whether the line carries vehicles and drivers.
func (l LineOfBusiness) IsAuto() bool {
	return l == LineAuto
}

// IsProperty reports whether the line carries a dwelling.
func (l LineOfBusiness) IsProperty() bool {
	switch l {
	case LineHomeowners, LineDwellingFire, LineRenters, LineCondo:
		return true
	default:
		return false
	}
}

// ParseLineOfBusiness maps vendor spellings ("Personal Auto", "HO3", "DP") onto a line.
func ParseLineOfBusiness(s string) (LineOfBusiness, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "_", " ", "_").Replace(key)
	switch key {
	case "auto", "personal_auto", "pa", "paut", "automobile", "private_passenger_auto":
		return LineAuto, nil
	case "homeowners", "home", "ho", "ho3", "ho5", "hown", "homeowner":
		return LineHomeowners, nil
	case "dwelling_fire", "dwelling", "dp", "dp1", "dp3", "dfire":
		return LineDwellingFire, nil
	case "renters", "ho4", "tenant":
		return LineRenters, nil
	case "condo", "ho6", "condominium":
		return LineCondo, nil
	default:
		return "", eris.Errorf("model: unknown line of business %q", s)
	}
}
