package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/tcdsagency/renewals/internal/model"
)

var currencyStrip = strings.NewReplacer("$", "", ",", "", " ", "", "USD", "", "usd", "")

// ParseCurrency converts "$1,200.00" style strings to a decimal. An empty
// string yields nil without error; "(120.00)" is negative.
func ParseCurrency(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	clean := currencyStrip.Replace(s)
	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		negative = true
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
	}
	if strings.HasSuffix(clean, "-") {
		negative = true
		clean = strings.TrimSuffix(clean, "-")
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return nil, eris.Errorf("normalize: unparseable currency %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return &d, nil
}

// Date layouts tried per source, most specific first.
var (
	al3Layouts = []string{"20060102", "060102", "2006-01-02"}
	pdfLayouts = []string{"01/02/2006", "1/2/2006", "01/02/06", "1/2/06", "January 2, 2006", "Jan 2, 2006", "2006-01-02"}
	amsLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05", "01/02/2006", "1/2/2006"}
)

func layoutsFor(kind model.RenewalSource) []string {
	switch kind {
	case model.SourceAL3:
		return append(append([]string{}, al3Layouts...), pdfLayouts...)
	case model.SourcePDFUpload:
		return append(append([]string{}, pdfLayouts...), amsLayouts...)
	default:
		return append(append([]string{}, amsLayouts...), pdfLayouts...)
	}
}

// ParseDate converts a source date to a UTC calendar date. An empty string
// yields nil without error.
func ParseDate(s string, kind model.RenewalSource) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range layoutsFor(kind) {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &d, nil
	}
	return nil, eris.Errorf("normalize: unparseable date %q", s)
}

var amountNumber = regexp.MustCompile(`^\$?\s*[0-9][0-9,]*(\.[0-9]+)?$`)

// ParseAmount turns a limit or deductible string into an Amount. Single
// numbers become numeric; split limits and percentages stay textual.
func ParseAmount(s string) model.Amount {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.Amount{}
	}
	if amountNumber.MatchString(s) {
		if d, err := ParseCurrency(s); err == nil && d != nil {
			return model.NumberAmount(*d)
		}
	}
	return model.TextAmount(s)
}

// parseInt reads "2,150" or "2150 sq ft" as 2150.
func parseInt(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	digits := leadingNumber(s)
	if digits == "" {
		return nil, eris.Errorf("normalize: unparseable integer %q", s)
	}
	n, err := strconv.Atoi(strings.ReplaceAll(digits, ",", ""))
	if err != nil {
		return nil, eris.Errorf("normalize: unparseable integer %q", s)
	}
	return &n, nil
}

// parseMeasure reads "1.5 miles" or "500 ft" as a decimal.
func parseMeasure(s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	num := leadingNumber(s)
	if num == "" {
		return nil, eris.Errorf("normalize: unparseable measure %q", s)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(num, ",", ""))
	if err != nil {
		return nil, eris.Errorf("normalize: unparseable measure %q", s)
	}
	return &d, nil
}

var leadingNumberRe = regexp.MustCompile(`^[0-9][0-9,]*(\.[0-9]+)?`)

func leadingNumber(s string) string {
	return leadingNumberRe.FindString(s)
}

// parseFlag reads Y/N style indicators.
func parseFlag(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "n", "no", "false", "0", "f":
		return false, nil
	case "y", "yes", "true", "1", "t", "x", "excluded", "excl":
		return true, nil
	default:
		return false, eris.Errorf("normalize: unparseable flag %q", s)
	}
}

// PaymentStatus maps free text from the mortgagee lookup onto a status.
func PaymentStatus(s string) model.MortgageePaymentStatus {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return ""
	case strings.Contains(v, "lapse"), strings.Contains(v, "cancel"):
		return model.PaymentLapsed
	case strings.Contains(v, "grace"):
		return model.PaymentGracePeriod
	case strings.Contains(v, "late"), strings.Contains(v, "past due"), strings.Contains(v, "delinquent"):
		return model.PaymentLate
	case strings.Contains(v, "current"), strings.Contains(v, "paid"):
		return model.PaymentCurrent
	default:
		return model.PaymentUnknown
	}
}
