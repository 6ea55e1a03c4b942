package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcdsagency/renewals/internal/model"
)

func vehicleTerm(premium string, vehicles []model.Vehicle, drivers []model.Driver, coverages ...model.Coverage) *model.Snapshot {
	s := autoTerm(premium, coverages...)
	s.Auto.Vehicles = vehicles
	s.Auto.Drivers = drivers
	return s
}

func homeTerm(d model.Dwelling) *model.Snapshot {
	return model.NewHomeSnapshot(model.PolicyInfo{PolicyNumber: "HO-1", Premium: dec("2000")}, model.LineHomeowners, d)
}

func TestDiffVehicles(t *testing.T) {
	t.Parallel()

	civic := model.Vehicle{ID: "1", Year: 2019, Make: "Honda", Model: "Civic", VIN: "1HGCM82633A004352"}
	truck := model.Vehicle{ID: "2", Year: 2015, Make: "Ford", Model: "F-150"}
	rav := model.Vehicle{ID: "3", Year: 2024, Make: "Toyota", Model: "RAV4", VIN: "JTMB1RFV5PD000001"}

	t.Run("match by vin despite new id", func(t *testing.T) {
		t.Parallel()
		renewed := civic
		renewed.ID = "x"
		assert.Empty(t, diffVehicles([]model.Vehicle{civic}, []model.Vehicle{renewed}))
	})

	t.Run("fallback to year make model", func(t *testing.T) {
		t.Parallel()
		renewed := truck
		renewed.Make = "FORD"
		assert.Empty(t, diffVehicles([]model.Vehicle{truck}, []model.Vehicle{renewed}))
	})

	t.Run("added and removed", func(t *testing.T) {
		t.Parallel()
		changes := diffVehicles([]model.Vehicle{civic, truck}, []model.Vehicle{civic, rav})
		require.Len(t, changes, 2)
		assert.Equal(t, model.MaterialNegative, changes[0].Materiality)
		assert.Contains(t, changes[0].Description, "Vehicle removed: 2015 Ford F-150")
		assert.Equal(t, model.MaterialPositive, changes[1].Materiality)
		assert.Contains(t, changes[1].Description, "Vehicle added: 2024 Toyota RAV4")
	})

	t.Run("deductible change on matched vehicle", func(t *testing.T) {
		t.Parallel()
		before := civic
		before.Coverages = []model.Coverage{
			{Code: model.CoverageComprehensive, Deductible: num("250")},
			{Code: model.CoverageCollision, Deductible: num("500")},
		}
		after := civic
		after.Coverages = []model.Coverage{
			{Code: model.CoverageComprehensive, Deductible: num("250")},
			{Code: model.CoverageCollision, Deductible: num("1000")},
		}
		changes := diffVehicles([]model.Vehicle{before}, []model.Vehicle{after})
		require.Len(t, changes, 1)
		assert.Equal(t, model.CategoryVehicle, changes[0].Category)
		assert.Equal(t, model.MaterialNegative, changes[0].Materiality)
		assert.Equal(t, "vehicles.1HGCM82633A004352.coverages.collision.deductible", changes[0].Field)
	})
}

func TestDiffDrivers(t *testing.T) {
	t.Parallel()

	jane := model.Driver{FirstName: "Jane", LastName: "Doe"}
	jim := model.Driver{FirstName: "Jim", LastName: "Doe"}
	amy := model.Driver{FirstName: "Amy", LastName: "Doe"}

	changes := diffDrivers(
		[]model.Driver{jane, jim},
		[]model.Driver{{FirstName: " JANE ", LastName: "doe"}, amy},
	)
	require.Len(t, changes, 2)
	assert.Equal(t, model.MaterialNegative, changes[0].Materiality)
	assert.Contains(t, changes[0].Description, "Driver removed: Jim Doe")
	assert.Equal(t, model.NonMaterial, changes[1].Materiality)
	assert.Contains(t, changes[1].Description, "Driver added: Amy Doe")

	excluded := jim
	excluded.Excluded = true
	changes = diffDrivers([]model.Driver{jim}, []model.Driver{excluded})
	require.Len(t, changes, 1)
	assert.Equal(t, model.MaterialNegative, changes[0].Materiality)
}

func TestDiffDwelling(t *testing.T) {
	t.Parallel()

	base := model.Dwelling{
		YearBuilt:             ptr(1998),
		RoofYear:              ptr(2010),
		ConstructionType:      "Frame",
		ProtectionClass:       "3",
		DistanceToFireStation: dec("1.5"),
	}

	tests := []struct {
		name   string
		mutate func(d *model.Dwelling)
		field  string
		want   model.Materiality
	}{
		{name: "roof year informational", mutate: func(d *model.Dwelling) { d.RoofYear = ptr(2022) }, field: "dwelling.roof_year", want: model.NonMaterial},
		{name: "construction type material", mutate: func(d *model.Dwelling) { d.ConstructionType = "Masonry" }, field: "dwelling.construction_type", want: model.MaterialNegative},
		{name: "protection class worse", mutate: func(d *model.Dwelling) { d.ProtectionClass = "6" }, field: "dwelling.protection_class", want: model.MaterialNegative},
		{name: "protection class better", mutate: func(d *model.Dwelling) { d.ProtectionClass = "2" }, field: "dwelling.protection_class", want: model.MaterialPositive},
		{name: "fire station closer", mutate: func(d *model.Dwelling) { d.DistanceToFireStation = dec("0.8") }, field: "dwelling.distance_to_fire_station", want: model.MaterialPositive},
		{name: "year built missing", mutate: func(d *model.Dwelling) { d.YearBuilt = nil }, field: "dwelling.year_built", want: model.NonMaterial},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			after := base
			tt.mutate(&after)
			res := NewEngine(DefaultConfig()).Compare(homeTerm(after), homeTerm(base))
			changes := res.Changes(model.CategoryDwelling)
			require.Len(t, changes, 1)
			assert.Equal(t, tt.field, changes[0].Field)
			assert.Equal(t, tt.want, changes[0].Materiality)
		})
	}

	assert.Empty(t, diffDwelling(base, base))
	same := base
	same.ConstructionType = "frame"
	assert.Empty(t, diffDwelling(base, same))
}
