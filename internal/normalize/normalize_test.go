package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcdsagency/renewals/internal/model"
)

func TestParseCurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		in      string
		want    string
		wantNil bool
		wantErr bool
	}{
		{name: "dollars and commas", in: "$1,200.50", want: "1200.5"},
		{name: "plain", in: "980", want: "980"},
		{name: "parentheses negative", in: "(120.00)", want: "-120"},
		{name: "trailing minus", in: "45.10-", want: "-45.1"},
		{name: "usd suffix", in: "1,000 USD", want: "1000"},
		{name: "empty", in: "  ", wantNil: true},
		{name: "garbage", in: "n/a", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseCurrency(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		kind model.RenewalSource
		want string
	}{
		{name: "al3 compact", in: "20260301", kind: model.SourceAL3, want: "2026-03-01"},
		{name: "pdf slashes", in: "03/01/2026", kind: model.SourcePDFUpload, want: "2026-03-01"},
		{name: "pdf long month", in: "March 1, 2026", kind: model.SourcePDFUpload, want: "2026-03-01"},
		{name: "ams iso", in: "2026-03-01", kind: model.SourceHawkSoftCloud, want: "2026-03-01"},
		{name: "ams rfc3339", in: "2026-03-01T10:00:00Z", kind: model.SourceHawkSoftCloud, want: "2026-03-01"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDate(tt.in, tt.kind)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}

	got, err := ParseDate("", model.SourceAL3)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = ParseDate("someday", model.SourceAL3)
	assert.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	num := ParseAmount("$1,000")
	require.NotNil(t, num.Number)
	assert.True(t, num.Number.Equal(decimal.NewFromInt(1000)))

	split := ParseAmount("100/300")
	assert.Nil(t, split.Number)
	assert.Equal(t, "100/300", split.Text)

	pct := ParseAmount("2%")
	assert.Nil(t, pct.Number)

	assert.True(t, ParseAmount("").IsZero())
}

func TestCoverageCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want model.CoverageCode
	}{
		{"BI", model.CoverageBodilyInjury},
		{"Bodily Injury", model.CoverageBodilyInjury},
		{"UM", model.CoverageUninsuredMotorist},
		{"Comp", model.CoverageComprehensive},
		{"Coverage A - Dwelling", model.CoverageDwelling},
		{"Pet Injury", model.CoverageCode("pet_injury")},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CoverageCode(tt.in))
		})
	}
}

func TestPaymentStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, model.PaymentLate, PaymentStatus("Payment Late"))
	assert.Equal(t, model.PaymentLapsed, PaymentStatus("LAPSED"))
	assert.Equal(t, model.PaymentGracePeriod, PaymentStatus("in grace period"))
	assert.Equal(t, model.PaymentCurrent, PaymentStatus("Current"))
	assert.Equal(t, model.PaymentUnknown, PaymentStatus("pending review"))
	assert.Equal(t, model.MortgageePaymentStatus(""), PaymentStatus(""))
}

func TestNameKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, NameKey("JANE", "Doe"), NameKey("  jane ", "doe"))
	assert.NotEqual(t, NameKey("Jane", "Doe"), NameKey("John", "Doe"))
	assert.Equal(t, "1HGCM82633A004352", VINKey(" 1hgcm82633a004352 "))
}

func autoPayload() RawPayload {
	return RawPayload{
		PolicyNumber:   " PA-100 ",
		CarrierName:    "Acme Mutual",
		InsuredName:    "Jane   Doe",
		LineOfBusiness: "Personal Auto",
		State:          "tx",
		Premium:        "$1,200.00",
		EffectiveDate:  "03/01/2026",
		ExpirationDate: "09/01/2026",
		Coverages: []RawCoverage{
			{Code: "BI", Limit: "30/60"},
			{Code: "PD", Limit: "25000"},
			{Code: "COMP", Deductible: "1000", VehicleRef: "1HGCM82633A004352"},
		},
		Vehicles: []RawVehicle{
			{
				ID: "v1", Year: "2019", Make: "Honda", Model: "Civic", VIN: "1hgcm82633a004352",
				Coverages: []RawCoverage{
					{Code: "Comprehensive", Deductible: "500", Premium: "80"},
					{Code: "Collision", Deductible: "500"},
				},
			},
		},
		Drivers: []RawDriver{
			{FirstName: "Jane", LastName: "Doe", DOB: "01/02/1980", Excluded: "N"},
			{FirstName: "Jim", LastName: "Doe", DOB: "05/06/2004", Excluded: "Y"},
		},
	}
}

func TestNormalize_Auto(t *testing.T) {
	t.Parallel()

	res := Normalize(autoPayload(), model.SourcePDFUpload, "")
	require.NoError(t, res.Usable())
	assert.Empty(t, res.Violations)

	snap := res.Snapshot
	require.NotNil(t, snap.Auto)
	assert.Nil(t, snap.Home)
	assert.Equal(t, model.LineAuto, snap.LineOfBusiness())
	assert.Equal(t, "PA-100", snap.Policy.PolicyNumber)
	assert.Equal(t, "Jane Doe", snap.Policy.InsuredName)
	assert.Equal(t, "TX", snap.Policy.State)
	assert.True(t, snap.Policy.Premium.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, "2026-03-01", snap.Policy.EffectiveDate.Format("2006-01-02"))
	require.NoError(t, snap.Validate())

	require.Len(t, snap.Policy.Coverages, 2)
	assert.Equal(t, model.CoverageBodilyInjury, snap.Policy.Coverages[0].Code)
	assert.Nil(t, snap.Policy.Coverages[0].Limit.Number)

	require.Len(t, snap.Auto.Vehicles, 1)
	v := snap.Auto.Vehicles[0]
	assert.Equal(t, 2019, v.Year)
	assert.Equal(t, "1HGCM82633A004352", v.VIN)
	require.Len(t, v.Coverages, 2)

	comp, ok := findCoverage(v.Coverages, model.CoverageComprehensive)
	require.True(t, ok)
	// Parent-linked record wins; the inline premium fills the gap.
	assert.True(t, comp.Deductible.Number.Equal(decimal.NewFromInt(1000)))
	require.NotNil(t, comp.Premium)
	assert.True(t, comp.Premium.Equal(decimal.NewFromInt(80)))

	require.Len(t, snap.Auto.Drivers, 2)
	assert.False(t, snap.Auto.Drivers[0].Excluded)
	assert.True(t, snap.Auto.Drivers[1].Excluded)
}

func TestNormalize_UnknownVehicleRef(t *testing.T) {
	t.Parallel()

	raw := autoPayload()
	raw.Coverages = append(raw.Coverages, RawCoverage{Code: "Towing", Limit: "75", VehicleRef: "nope"})

	res := Normalize(raw, model.SourcePDFUpload, model.LineAuto)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "coverages", res.Violations[0].Field)
	_, ok := findCoverage(res.Snapshot.Auto.Vehicles[0].Coverages, model.CoverageTowing)
	assert.False(t, ok)
}

func TestNormalize_CollectsViolations(t *testing.T) {
	t.Parallel()

	raw := autoPayload()
	raw.Premium = "call agent"
	raw.EffectiveDate = "soon"
	raw.Vehicles[0].Year = "new"

	res := Normalize(raw, model.SourcePDFUpload, "")
	require.NotNil(t, res.Snapshot)

	fields := make([]string, 0, len(res.Violations))
	for _, v := range res.Violations {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"premium", "effective_date", "vehicles[0].year"}, fields)

	err := res.Usable()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "premium")
}

func TestNormalize_Home(t *testing.T) {
	t.Parallel()

	raw := RawPayload{
		PolicyNumber:   "HO-200",
		CarrierName:    "Acme Mutual",
		LineOfBusiness: "HO3",
		Premium:        "2,400",
		Coverages: []RawCoverage{
			{Code: "Cov A", Limit: "350,000"},
			{Code: "Dwelling", Premium: "1900"},
			{Code: "Wind/Hail", Deductible: "2%"},
		},
		Dwelling: &RawDwelling{
			YearBuilt:             "1998",
			SquareFeet:            "2,150 sq ft",
			RoofYear:              "2015",
			ProtectionClass:       "3",
			DistanceToFireStation: "1.5 miles",
			ConstructionType:      "Frame",
		},
	}

	res := Normalize(raw, model.SourceHawkSoftCloud, "")
	require.NoError(t, res.Usable())
	assert.Empty(t, res.Violations)

	snap := res.Snapshot
	require.NotNil(t, snap.Home)
	assert.Nil(t, snap.Auto)
	assert.Equal(t, model.LineHomeowners, snap.LineOfBusiness())

	require.Len(t, snap.Policy.Coverages, 2)
	dw, ok := snap.Coverage(model.CoverageDwelling)
	require.True(t, ok)
	assert.True(t, dw.Limit.Number.Equal(decimal.NewFromInt(350000)))
	require.NotNil(t, dw.Premium)

	d := snap.Home.Dwelling
	require.NotNil(t, d.YearBuilt)
	assert.Equal(t, 1998, *d.YearBuilt)
	require.NotNil(t, d.SquareFeet)
	assert.Equal(t, 2150, *d.SquareFeet)
	require.NotNil(t, d.DistanceToFireStation)
	assert.True(t, d.DistanceToFireStation.Equal(decimal.RequireFromString("1.5")))
}

func findCoverage(covs []model.Coverage, code model.CoverageCode) (model.Coverage, bool) {
	for _, c := range covs {
		if c.Code == code {
			return c, true
		}
	}
	return model.Coverage{}, false
}
