package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecision_IsFinal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		decision Decision
		final    bool
	}{
		{"", false},
		{DecisionNeedsMoreInfo, false},
		{DecisionContactCust, false},
		{DecisionRenewAsIs, true},
		{DecisionReshop, true},
		{DecisionNoBetterOption, true},
		{DecisionBoundNewPolicy, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.decision), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.final, tt.decision.IsFinal())
		})
	}
}

func TestDecision_IsValid(t *testing.T) {
	for _, d := range AllDecisions {
		assert.True(t, d.IsValid(), d)
	}
	assert.False(t, Decision("approve").IsValid())
	assert.False(t, Decision("").IsValid())
}

func TestRenewalStatus_Expand(t *testing.T) {
	assert.Equal(t, []RenewalStatus{StatusWaitingAgentReview, StatusQuoteReady}, StatusComparisonReady.Expand())
	assert.Equal(t, []RenewalStatus{StatusPending}, StatusPending.Expand())
	assert.Nil(t, RenewalStatus("").Expand())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusQuoteReady.IsTerminal())
}

func TestParseLineOfBusiness(t *testing.T) {
	tests := map[string]LineOfBusiness{
		"Personal Auto": LineAuto,
		"AUTO":          LineAuto,
		"HO3":           LineHomeowners,
		"homeowners":    LineHomeowners,
		"DP-3":          LineDwellingFire,
		"ho6":           LineCondo,
		"Renters":       LineRenters,
	}
	for in, want := range tests {
		got, err := ParseLineOfBusiness(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLineOfBusiness("boat")
	assert.Error(t, err)
}

func TestAmount_Equal(t *testing.T) {
	assert.True(t, NumberAmount(decimal.NewFromInt(500)).Equal(NumberAmount(decimal.RequireFromString("500.00"))))
	assert.False(t, NumberAmount(decimal.NewFromInt(500)).Equal(NumberAmount(decimal.NewFromInt(1000))))
	assert.True(t, TextAmount("100/300/100").Equal(TextAmount(" 100 / 300 / 100 ")))
	assert.False(t, TextAmount("100/300/100").Equal(TextAmount("50/100/50")))
	assert.False(t, TextAmount("500").Equal(NumberAmount(decimal.NewFromInt(500))))
	assert.True(t, Amount{}.IsZero())
	assert.Equal(t, "none", Amount{}.String())
}

func TestSnapshot_Validate(t *testing.T) {
	auto := NewAutoSnapshot(PolicyInfo{PolicyNumber: "PA-1"}, nil, nil)
	require.NoError(t, auto.Validate())

	home := NewHomeSnapshot(PolicyInfo{PolicyNumber: "HO-1"}, LineHomeowners, Dwelling{})
	require.NoError(t, home.Validate())

	broken := &Snapshot{Policy: PolicyInfo{PolicyNumber: "HO-2", LineOfBusiness: LineHomeowners}, Auto: &AutoDetail{}}
	assert.Error(t, broken.Validate())

	assert.Error(t, Comparable(auto, home))
	assert.NoError(t, Comparable(auto, nil))
	assert.Error(t, Comparable(nil, auto))
}

func TestVehicle_Label(t *testing.T) {
	v := Vehicle{ID: "1", Year: 2019, Make: "Honda", Model: "Civic", VIN: "2HGFC2F59KH123456"}
	assert.Equal(t, "2019 Honda Civic (VIN ...3456)", v.Label())
	assert.Equal(t, "vehicle 7", Vehicle{ID: "7"}.Label())
}

func TestRecommendation_Rank(t *testing.T) {
	assert.Less(t, RecommendRenewAsIs.Rank(), RecommendNeedsReview.Rank())
	assert.Less(t, RecommendNeedsReview.Rank(), RecommendReshop.Rank())
}
