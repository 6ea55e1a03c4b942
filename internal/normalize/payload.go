package normalize

// RawPayload is the loosely-typed shape every producer (AL3 parse, PDF
// extraction, AMS API) fills before normalization. All values are strings as
// delivered by the source.
type RawPayload struct {
	PolicyNumber           string        `json:"policy_number"`
	CarrierName            string        `json:"carrier_name"`
	InsuredName            string        `json:"insured_name"`
	LineOfBusiness         string        `json:"line_of_business"`
	State                  string        `json:"state"`
	Premium                string        `json:"premium"`
	EffectiveDate          string        `json:"effective_date"`
	ExpirationDate         string        `json:"expiration_date"`
	Coverages              []RawCoverage `json:"coverages"`
	Vehicles               []RawVehicle  `json:"vehicles"`
	Drivers                []RawDriver   `json:"drivers"`
	Dwelling               *RawDwelling  `json:"dwelling"`
	Remarks                []string      `json:"remarks"`
	MortgageePaymentStatus string        `json:"mortgagee_payment_status"`
}

// RawCoverage is a coverage line. VehicleRef links a policy-level record to
// its parent vehicle by vehicle id or VIN.
type RawCoverage struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Limit       string `json:"limit"`
	Deductible  string `json:"deductible"`
	Premium     string `json:"premium"`
	VehicleRef  string `json:"vehicle_ref"`
}

// RawVehicle is a vehicle with its inline coverages.
type RawVehicle struct {
	ID        string        `json:"id"`
	Year      string        `json:"year"`
	Make      string        `json:"make"`
	Model     string        `json:"model"`
	VIN       string        `json:"vin"`
	Coverages []RawCoverage `json:"coverages"`
}

// RawDriver is a listed driver.
type RawDriver struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	DOB           string `json:"dob"`
	LicenseNumber string `json:"license_number"`
	LicenseState  string `json:"license_state"`
	Relationship  string `json:"relationship"`
	Excluded      string `json:"excluded"`
}

// RawDwelling holds dwelling attributes.
type RawDwelling struct {
	YearBuilt             string `json:"year_built"`
	SquareFeet            string `json:"square_feet"`
	Stories               string `json:"stories"`
	ConstructionType      string `json:"construction_type"`
	RoofType              string `json:"roof_type"`
	RoofYear              string `json:"roof_year"`
	ProtectionClass       string `json:"protection_class"`
	DistanceToFireStation string `json:"distance_to_fire_station"`
	DistanceToHydrant     string `json:"distance_to_hydrant"`
	FoundationType        string `json:"foundation_type"`
}
