// Package normalize converts producer payloads into canonical snapshots.
// Bad fields never abort normalization; they are collected as violations.
package normalize

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/tcdsagency/renewals/internal/model"
)

// Result is a normalized snapshot plus the fields that could not be used.
type Result struct {
	Snapshot   *model.Snapshot        `json:"snapshot"`
	Violations []model.FieldViolation `json:"violations,omitempty"`
}

// Usable reports whether the snapshot carries the fields a renewal record
// cannot do without.
func (r *Result) Usable() error {
	var missing []string
	if r.Snapshot == nil {
		return eris.New("normalize: no snapshot produced")
	}
	if strings.TrimSpace(r.Snapshot.Policy.PolicyNumber) == "" {
		missing = append(missing, "policy_number")
	}
	if r.Snapshot.Policy.Premium == nil {
		missing = append(missing, "premium")
	}
	if len(missing) > 0 {
		return eris.Errorf("normalize: missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

type collector struct {
	violations []model.FieldViolation
}

func (c *collector) add(field, value string, err error) {
	c.violations = append(c.violations, model.FieldViolation{Field: field, Value: value, Reason: err.Error()})
}

// Normalize converts a raw payload into a Snapshot for the given line. When
// lob is empty it is parsed from the payload.
func Normalize(raw RawPayload, kind model.RenewalSource, lob model.LineOfBusiness) Result {
	c := &collector{}

	if lob == "" {
		parsed, err := model.ParseLineOfBusiness(raw.LineOfBusiness)
		if err != nil {
			c.add("line_of_business", raw.LineOfBusiness, err)
			parsed = model.LineAuto
			if raw.Dwelling != nil {
				parsed = model.LineHomeowners
			}
		}
		lob = parsed
	}

	info := model.PolicyInfo{
		PolicyNumber:           strings.TrimSpace(raw.PolicyNumber),
		CarrierName:            strings.TrimSpace(raw.CarrierName),
		InsuredName:            strings.Join(strings.Fields(raw.InsuredName), " "),
		State:                  strings.ToUpper(strings.TrimSpace(raw.State)),
		Remarks:                cleanRemarks(raw.Remarks),
		MortgageePaymentStatus: PaymentStatus(raw.MortgageePaymentStatus),
	}

	if p, err := ParseCurrency(raw.Premium); err != nil {
		c.add("premium", raw.Premium, err)
	} else {
		info.Premium = p
	}
	if d, err := ParseDate(raw.EffectiveDate, kind); err != nil {
		c.add("effective_date", raw.EffectiveDate, err)
	} else {
		info.EffectiveDate = d
	}
	if d, err := ParseDate(raw.ExpirationDate, kind); err != nil {
		c.add("expiration_date", raw.ExpirationDate, err)
	} else {
		info.ExpirationDate = d
	}

	var policyLevel, vehicleLinked []RawCoverage
	for _, rc := range raw.Coverages {
		if strings.TrimSpace(rc.VehicleRef) != "" {
			vehicleLinked = append(vehicleLinked, rc)
			continue
		}
		policyLevel = append(policyLevel, rc)
	}
	info.Coverages = normalizeCoverages(c, "coverages", policyLevel)

	var snap *model.Snapshot
	if lob.IsAuto() {
		vehicles := normalizeVehicles(c, raw.Vehicles, vehicleLinked)
		drivers := normalizeDrivers(c, raw.Drivers, kind)
		snap = model.NewAutoSnapshot(info, vehicles, drivers)
	} else {
		for _, rc := range vehicleLinked {
			c.add("coverages", rc.Code, eris.Errorf("normalize: vehicle coverage on %s policy", lob))
		}
		snap = model.NewHomeSnapshot(info, lob, normalizeDwelling(c, raw.Dwelling))
	}

	return Result{Snapshot: snap, Violations: c.violations}
}

func cleanRemarks(in []string) []string {
	var out []string
	for _, r := range in {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

func normalizeCoverage(c *collector, field string, rc RawCoverage) (model.Coverage, bool) {
	if strings.TrimSpace(rc.Code) == "" && strings.TrimSpace(rc.Description) == "" {
		c.add(field, "", eris.New("normalize: coverage has no type"))
		return model.Coverage{}, false
	}
	label := rc.Code
	if label == "" || (!KnownCoverage(label) && KnownCoverage(rc.Description)) {
		label = rc.Description
	}
	cov := model.Coverage{
		Code:        CoverageCode(label),
		Description: strings.TrimSpace(rc.Description),
		Limit:       ParseAmount(rc.Limit),
		Deductible:  ParseAmount(rc.Deductible),
	}
	if p, err := ParseCurrency(rc.Premium); err != nil {
		c.add(field+"."+string(cov.Code)+".premium", rc.Premium, err)
	} else {
		cov.Premium = p
	}
	return cov, true
}

// normalizeCoverages keeps source order and merges duplicate codes, filling
// blanks on the first occurrence from later ones.
func normalizeCoverages(c *collector, field string, raws []RawCoverage) []model.Coverage {
	var out []model.Coverage
	index := make(map[model.CoverageCode]int)
	for _, rc := range raws {
		cov, ok := normalizeCoverage(c, field, rc)
		if !ok {
			continue
		}
		if i, dup := index[cov.Code]; dup {
			out[i] = fillBlanks(out[i], cov)
			continue
		}
		index[cov.Code] = len(out)
		out = append(out, cov)
	}
	return out
}

// fillBlanks returns primary with empty fields taken from secondary.
func fillBlanks(primary, secondary model.Coverage) model.Coverage {
	if primary.Limit.IsZero() {
		primary.Limit = secondary.Limit
	}
	if primary.Deductible.IsZero() {
		primary.Deductible = secondary.Deductible
	}
	if primary.Premium == nil {
		primary.Premium = secondary.Premium
	}
	if primary.Description == "" {
		primary.Description = secondary.Description
	}
	return primary
}

func normalizeVehicles(c *collector, raws []RawVehicle, linked []RawCoverage) []model.Vehicle {
	vehicles := make([]model.Vehicle, 0, len(raws))
	for i, rv := range raws {
		field := fmt.Sprintf("vehicles[%d]", i)
		v := model.Vehicle{
			ID:    strings.TrimSpace(rv.ID),
			Make:  strings.TrimSpace(rv.Make),
			Model: strings.TrimSpace(rv.Model),
			VIN:   VINKey(rv.VIN),
		}
		if v.ID == "" {
			v.ID = fmt.Sprintf("veh-%d", i+1)
		}
		if y, err := parseInt(rv.Year); err != nil {
			c.add(field+".year", rv.Year, err)
		} else if y != nil {
			v.Year = *y
		}
		v.Coverages = normalizeCoverages(c, field+".coverages", rv.Coverages)
		vehicles = append(vehicles, v)
	}

	// Parent-linked records win over inline copies of the same coverage.
	for _, rc := range linked {
		i := findVehicle(vehicles, rc.VehicleRef)
		if i < 0 {
			c.add("coverages", rc.VehicleRef, eris.Errorf("normalize: coverage %q references unknown vehicle", rc.Code))
			continue
		}
		cov, ok := normalizeCoverage(c, fmt.Sprintf("vehicles[%d].coverages", i), rc)
		if !ok {
			continue
		}
		replaced := false
		for j, existing := range vehicles[i].Coverages {
			if existing.Code == cov.Code {
				vehicles[i].Coverages[j] = fillBlanks(cov, existing)
				replaced = true
				break
			}
		}
		if !replaced {
			vehicles[i].Coverages = append(vehicles[i].Coverages, cov)
		}
	}
	return vehicles
}

func findVehicle(vehicles []model.Vehicle, ref string) int {
	ref = strings.TrimSpace(ref)
	for i, v := range vehicles {
		if strings.EqualFold(v.ID, ref) {
			return i
		}
	}
	vin := VINKey(ref)
	for i, v := range vehicles {
		if v.VIN != "" && v.VIN == vin {
			return i
		}
	}
	return -1
}

func normalizeDrivers(c *collector, raws []RawDriver, kind model.RenewalSource) []model.Driver {
	drivers := make([]model.Driver, 0, len(raws))
	for i, rd := range raws {
		field := fmt.Sprintf("drivers[%d]", i)
		d := model.Driver{
			FirstName:     strings.TrimSpace(rd.FirstName),
			LastName:      strings.TrimSpace(rd.LastName),
			LicenseNumber: strings.ToUpper(strings.TrimSpace(rd.LicenseNumber)),
			LicenseState:  strings.ToUpper(strings.TrimSpace(rd.LicenseState)),
			Relationship:  strings.ToLower(strings.TrimSpace(rd.Relationship)),
		}
		if dob, err := ParseDate(rd.DOB, kind); err != nil {
			c.add(field+".dob", rd.DOB, err)
		} else {
			d.DOB = dob
		}
		if ex, err := parseFlag(rd.Excluded); err != nil {
			c.add(field+".excluded", rd.Excluded, err)
		} else {
			d.Excluded = ex
		}
		drivers = append(drivers, d)
	}
	return drivers
}

func normalizeDwelling(c *collector, raw *RawDwelling) model.Dwelling {
	var d model.Dwelling
	if raw == nil {
		return d
	}
	ints := []struct {
		field string
		value string
		dst   **int
	}{
		{"dwelling.year_built", raw.YearBuilt, &d.YearBuilt},
		{"dwelling.square_feet", raw.SquareFeet, &d.SquareFeet},
		{"dwelling.stories", raw.Stories, &d.Stories},
		{"dwelling.roof_year", raw.RoofYear, &d.RoofYear},
	}
	for _, f := range ints {
		n, err := parseInt(f.value)
		if err != nil {
			c.add(f.field, f.value, err)
			continue
		}
		*f.dst = n
	}
	if m, err := parseMeasure(raw.DistanceToFireStation); err != nil {
		c.add("dwelling.distance_to_fire_station", raw.DistanceToFireStation, err)
	} else {
		d.DistanceToFireStation = m
	}
	if m, err := parseMeasure(raw.DistanceToHydrant); err != nil {
		c.add("dwelling.distance_to_hydrant", raw.DistanceToHydrant, err)
	} else {
		d.DistanceToHydrant = m
	}
	d.ConstructionType = strings.TrimSpace(raw.ConstructionType)
	d.RoofType = strings.TrimSpace(raw.RoofType)
	d.ProtectionClass = strings.ToUpper(strings.TrimSpace(raw.ProtectionClass))
	d.FoundationType = strings.TrimSpace(raw.FoundationType)
	return d
}
