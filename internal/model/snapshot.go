package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// CoverageCode is the canonical coverage key used for diffing across sources.
type CoverageCode string

const (
	CoverageBodilyInjury         CoverageCode = "bodily_injury"
	CoveragePropertyDamage       CoverageCode = "property_damage"
	CoverageCombinedSingleLimit  CoverageCode = "combined_single_limit"
	CoverageUninsuredMotorist    CoverageCode = "uninsured_motorist"
	CoverageUnderinsuredMotorist CoverageCode = "underinsured_motorist"
	CoverageUMPropertyDamage     CoverageCode = "uninsured_motorist_pd"
	CoverageMedicalPayments      CoverageCode = "medical_payments"
	CoveragePIP                  CoverageCode = "personal_injury_protection"
	CoverageComprehensive        CoverageCode = "comprehensive"
	CoverageCollision            CoverageCode = "collision"
	CoverageRental               CoverageCode = "rental_reimbursement"
	CoverageTowing               CoverageCode = "towing"
	CoverageDwelling             CoverageCode = "dwelling"
	CoverageOtherStructures      CoverageCode = "other_structures"
	CoveragePersonalProperty     CoverageCode = "personal_property"
	CoverageLossOfUse            CoverageCode = "loss_of_use"
	CoveragePersonalLiability    CoverageCode = "personal_liability"
	CoverageMedicalToOthers      CoverageCode = "medical_payments_to_others"
	CoverageWindHail             CoverageCode = "wind_hail"
	CoverageAllPerils            CoverageCode = "all_perils"
	CoverageWaterBackup          CoverageCode = "water_backup"
)

// IsUninsuredMotorist reports whether the code is one of the UM/UIM family.
func (c CoverageCode) IsUninsuredMotorist() bool {
	switch c {
	case CoverageUninsuredMotorist, CoverageUnderinsuredMotorist, CoverageUMPropertyDamage:
		return true
	default:
		return false
	}
}

// Amount is a limit or deductible. Vendors send either a single number
// ("500", "$1,000") or a structured string ("100/300/100", "2%"); Number is set
// only when the value parses as one number.
type Amount struct {
	Text   string           `json:"text,omitempty"`
	Number *decimal.Decimal `json:"number,omitempty"`
}

// IsZero reports whether no value was supplied.
func (a Amount) IsZero() bool {
	return a.Number == nil && strings.TrimSpace(a.Text) == ""
}

// String renders the amount for change descriptions.
func (a Amount) String() string {
	if a.Number != nil {
		return a.Number.String()
	}
	if a.Text == "" {
		return "none"
	}
	return a.Text
}

// Equal compares by number when both sides are numeric, otherwise by
// whitespace- and case-insensitive text.
func (a Amount) Equal(b Amount) bool {
	if a.Number != nil && b.Number != nil {
		return a.Number.Equal(*b.Number)
	}
	return normalizeText(a.Text) == normalizeText(b.Text) && (a.Number == nil) == (b.Number == nil)
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// NumberAmount builds a numeric Amount.
func NumberAmount(v decimal.Decimal) Amount {
	return Amount{Text: v.String(), Number: &v}
}

// TextAmount builds a structured (non-numeric) Amount.
func TextAmount(s string) Amount {
	return Amount{Text: s}
}

// Coverage is one coverage line on a policy term or vehicle.
type Coverage struct {
	Code        CoverageCode     `json:"code"`
	Description string           `json:"description,omitempty"`
	Limit       Amount           `json:"limit"`
	Deductible  Amount           `json:"deductible"`
	Premium     *decimal.Decimal `json:"premium,omitempty"`
}

// Vehicle is an insured vehicle. ID is stable within a term only.
type Vehicle struct {
	ID        string     `json:"id"`
	Year      int        `json:"year,omitempty"`
	Make      string     `json:"make,omitempty"`
	Model     string     `json:"model,omitempty"`
	VIN       string     `json:"vin,omitempty"`
	Coverages []Coverage `json:"coverages,omitempty"`
}

// Label renders "2019 Honda Civic (VIN ...1234)" for change descriptions.
func (v Vehicle) Label() string {
	var parts []string
	if v.Year > 0 {
		parts = append(parts, strconv.Itoa(v.Year))
	}
	if v.Make != "" {
		parts = append(parts, v.Make)
	}
	if v.Model != "" {
		parts = append(parts, v.Model)
	}
	label := strings.Join(parts, " ")
	if v.VIN != "" {
		tail := v.VIN
		if len(tail) > 4 {
			tail = tail[len(tail)-4:]
		}
		if label == "" {
			return "VIN ..." + tail
		}
		return label + " (VIN ..." + tail + ")"
	}
	if label == "" {
		return "vehicle " + v.ID
	}
	return label
}

// Coverage returns the vehicle coverage with the given code.
func (v Vehicle) Coverage(code CoverageCode) (Coverage, bool) {
	for _, c := range v.Coverages {
		if c.Code == code {
			return c, true
		}
	}
	return Coverage{}, false
}

// Driver is a listed driver on an auto term.
type Driver struct {
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	DOB           *time.Time `json:"dob,omitempty"`
	LicenseNumber string     `json:"license_number,omitempty"`
	LicenseState  string     `json:"license_state,omitempty"`
	Relationship  string     `json:"relationship,omitempty"`
	Excluded      bool       `json:"excluded"`
}

// FullName joins first and last name.
func (d Driver) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
}

// Dwelling holds the rating attributes of an insured structure.
type Dwelling struct {
	YearBuilt             *int             `json:"year_built,omitempty"`
	SquareFeet            *int             `json:"square_feet,omitempty"`
	Stories               *int             `json:"stories,omitempty"`
	ConstructionType      string           `json:"construction_type,omitempty"`
	RoofType              string           `json:"roof_type,omitempty"`
	RoofYear              *int             `json:"roof_year,omitempty"`
	ProtectionClass       string           `json:"protection_class,omitempty"`
	DistanceToFireStation *decimal.Decimal `json:"distance_to_fire_station,omitempty"`
	DistanceToHydrant     *decimal.Decimal `json:"distance_to_hydrant,omitempty"`
	FoundationType        string           `json:"foundation_type,omitempty"`
}

// MortgageePaymentStatus is the escrow payment status reported by the
// mortgagee lookup service.
type MortgageePaymentStatus string

const (
	PaymentCurrent     MortgageePaymentStatus = "current"
	PaymentLate        MortgageePaymentStatus = "late"
	PaymentGracePeriod MortgageePaymentStatus = "grace_period"
	PaymentLapsed      MortgageePaymentStatus = "lapsed"
	PaymentUnknown     MortgageePaymentStatus = "unknown"
)

// PolicyInfo is the part of a term shared by every line of business.
type PolicyInfo struct {
	PolicyNumber   string           `json:"policy_number"`
	CarrierName    string           `json:"carrier_name"`
	InsuredName    string           `json:"insured_name"`
	LineOfBusiness LineOfBusiness   `json:"line_of_business"`
	State          string           `json:"state,omitempty"`
	Premium        *decimal.Decimal `json:"premium,omitempty"`
	EffectiveDate  *time.Time       `json:"effective_date,omitempty"`
	ExpirationDate *time.Time       `json:"expiration_date,omitempty"`
	Coverages      []Coverage       `json:"coverages,omitempty"`
	// Remarks carries free text from the source document (notices, messages).
	Remarks                []string               `json:"remarks,omitempty"`
	MortgageePaymentStatus MortgageePaymentStatus `json:"mortgagee_payment_status,omitempty"`
}

// AutoDetail is present only on auto terms.
type AutoDetail struct {
	Vehicles []Vehicle `json:"vehicles"`
	Drivers  []Driver  `json:"drivers"`
}

// HomeDetail is present only on property terms.
type HomeDetail struct {
	Dwelling Dwelling `json:"dwelling"`
}

// Snapshot is one policy term. Exactly one of Auto or Home is set, matching
// Policy.LineOfBusiness. Snapshots are treated as immutable once built.
type Snapshot struct {
	Policy PolicyInfo  `json:"policy"`
	Auto   *AutoDetail `json:"auto,omitempty"`
	Home   *HomeDetail `json:"home,omitempty"`
}

// NewAutoSnapshot builds an auto term.
func NewAutoSnapshot(info PolicyInfo, vehicles []Vehicle, drivers []Driver) *Snapshot {
	info.LineOfBusiness = LineAuto
	return &Snapshot{Policy: info, Auto: &AutoDetail{Vehicles: vehicles, Drivers: drivers}}
}

// NewHomeSnapshot builds a property term for the given property line.
func NewHomeSnapshot(info PolicyInfo, lob LineOfBusiness, dwelling Dwelling) *Snapshot {
	info.LineOfBusiness = lob
	return &Snapshot{Policy: info, Home: &HomeDetail{Dwelling: dwelling}}
}

// LineOfBusiness returns the term's line.
func (s *Snapshot) LineOfBusiness() LineOfBusiness {
	return s.Policy.LineOfBusiness
}

// Coverage returns the policy-level coverage with the given code.
func (s *Snapshot) Coverage(code CoverageCode) (Coverage, bool) {
	for _, c := range s.Policy.Coverages {
		if c.Code == code {
			return c, true
		}
	}
	return Coverage{}, false
}

// Validate checks that the line-specific detail matches the line of business.
func (s *Snapshot) Validate() error {
	lob := s.Policy.LineOfBusiness
	switch {
	case lob.IsAuto():
		if s.Auto == nil || s.Home != nil {
			return eris.Errorf("model: auto snapshot %s must carry auto detail only", s.Policy.PolicyNumber)
		}
	case lob.IsProperty():
		if s.Home == nil || s.Auto != nil {
			return eris.Errorf("model: %s snapshot %s must carry home detail only", lob, s.Policy.PolicyNumber)
		}
	default:
		return eris.Errorf("model: snapshot %s has unknown line of business %q", s.Policy.PolicyNumber, lob)
	}
	return nil
}

// Comparable returns an error when two terms cannot be diffed against each other.
func Comparable(renewal, baseline *Snapshot) error {
	if renewal == nil {
		return eris.New("model: renewal snapshot is required")
	}
	if baseline == nil {
		return nil
	}
	if renewal.Policy.LineOfBusiness != baseline.Policy.LineOfBusiness {
		return eris.Errorf("model: line of business mismatch: renewal %s, baseline %s",
			renewal.Policy.LineOfBusiness, baseline.Policy.LineOfBusiness)
	}
	return nil
}
