package compare

import (
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/tcdsagency/renewals/internal/model"
)

var printer = message.NewPrinter(language.AmericanEnglish)

// Headline renders the one-line premium summary, e.g.
// "Premium increase of $240 (12.3%)".
func Headline(s model.ComparisonSummary) string {
	if s.PremiumChangeAmount == nil || s.PremiumChangeAmount.IsZero() {
		return "No premium change"
	}

	verb := "increase"
	if s.PremiumChangeAmount.Sign() < 0 {
		verb = "decrease"
	}
	out := fmt.Sprintf("Premium %s of %s", verb, money(s.PremiumChangeAmount.Abs().InexactFloat64()))
	if s.PremiumChangePercent != nil {
		pct := *s.PremiumChangePercent
		if pct < 0 {
			pct = -pct
		}
		out += fmt.Sprintf(" (%.1f%%)", pct)
	}
	return out
}

func money(v float64) string {
	if v == float64(int64(v)) {
		return printer.Sprintf("$%d", int64(v))
	}
	return printer.Sprintf("$%.2f", v)
}
