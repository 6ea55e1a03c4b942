package normalize

import (
	"strings"

	"golang.org/x/text/cases"
)

var folder = cases.Fold()

// NameKey is the match key for a person: whitespace-collapsed and
// case-folded full name.
func NameKey(first, last string) string {
	full := strings.Join(strings.Fields(first+" "+last), " ")
	return folder.String(full)
}

// VINKey normalizes a VIN for matching. Empty input stays empty.
func VINKey(vin string) string {
	return strings.ToUpper(strings.Join(strings.Fields(vin), ""))
}

// TextKey is a case-folded, whitespace-collapsed key for free-form
// attributes (make, model, construction type).
func TextKey(s string) string {
	return folder.String(strings.Join(strings.Fields(s), " "))
}
