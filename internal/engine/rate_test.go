package engine

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearway-trade/tariff-cli/internal/model"
)

func TestResolveRate_ProductCountryWins(t *testing.T) {
	rule := &model.AuthorityRule{
		ID: "ns-steel",
		RateTable: model.RateTable{
			ProductCountry: []model.ProductCountryRate{
				{HSPrefix: "7208", Origin: "CN", Rate: dec("0.25")},
			},
			Product: []model.ProductRate{
				{HSPrefix: "7208", Rate: dec("0.20")},
			},
			Country: map[string]decimal.Decimal{"CN": dec("0.10")},
		},
	}

	d := baseDescriptor("1000")
	rr, err := ResolveRate(rule, d)
	require.NoError(t, err)
	assert.True(t, rr.Rate.Equal(dec("0.25")))
	assert.Equal(t, model.SpecificityProductCountry, rr.Specificity)
}

func TestResolveRate_LongestPrefixWins(t *testing.T) {
	rule := &model.AuthorityRule{
		ID: "ns-steel",
		RateTable: model.RateTable{
			Product: []model.ProductRate{
				{HSPrefix: "72", Rate: dec("0.10")},
				{HSPrefix: "7208.10", Rate: dec("0.30")},
				{HSPrefix: "7208", Rate: dec("0.20")},
			},
		},
	}

	d := baseDescriptor("1000")
	rr, err := ResolveRate(rule, d)
	require.NoError(t, err)
	// 7208.10 spans six digits, the most specific match.
	assert.True(t, rr.Rate.Equal(dec("0.30")))
	assert.Equal(t, model.SpecificityProduct, rr.Specificity)
}

func TestResolveRate_FallsBackToProduct(t *testing.T) {
	rule := &model.AuthorityRule{
		ID: "ns-steel",
		RateTable: model.RateTable{
			ProductCountry: []model.ProductCountryRate{
				// Wrong origin: must not match a CN shipment.
				{HSPrefix: "7208", Origin: "DE", Rate: dec("0.50")},
			},
			Product: []model.ProductRate{
				{HSPrefix: "7208", Rate: dec("0.20")},
			},
		},
	}

	d := baseDescriptor("1000")
	rr, err := ResolveRate(rule, d)
	require.NoError(t, err)
	assert.True(t, rr.Rate.Equal(dec("0.20")))
	assert.Equal(t, model.SpecificityProduct, rr.Specificity)
}

func TestResolveRate_CountryHeadline(t *testing.T) {
	rule := &model.AuthorityRule{
		ID: "ep-reciprocal",
		RateTable: model.RateTable{
			Country: map[string]decimal.Decimal{"CN": dec("0.10")},
		},
	}

	d := baseDescriptor("1000")
	rr, err := ResolveRate(rule, d)
	require.NoError(t, err)
	assert.True(t, rr.Rate.Equal(dec("0.10")))
	assert.Equal(t, model.SpecificityCountry, rr.Specificity)
}

func TestResolveRate_ZeroRateIsNotAFault(t *testing.T) {
	// A configured zero rate is a legitimate zero-duty outcome, distinct
	// from a missing rate.
	rule := &model.AuthorityRule{
		ID: "ep-reciprocal",
		RateTable: model.RateTable{
			Country: map[string]decimal.Decimal{"CN": decimal.Zero},
		},
	}

	d := baseDescriptor("1000")
	rr, err := ResolveRate(rule, d)
	require.NoError(t, err)
	assert.True(t, rr.Rate.IsZero())
}

func TestResolveRate_NoRateDefined(t *testing.T) {
	rule := &model.AuthorityRule{
		ID: "ns-steel",
		RateTable: model.RateTable{
			Country: map[string]decimal.Decimal{"DE": dec("0.25")},
		},
	}

	d := baseDescriptor("1000") // origin CN
	_, err := ResolveRate(rule, d)
	require.Error(t, err)

	var nre *NoRateDefinedError
	require.True(t, errors.As(err, &nre))
	assert.Equal(t, "ns-steel", nre.RuleID)
	assert.Equal(t, "CN", nre.Origin)
}

func mfnAdjustedRule() *model.AuthorityRule {
	return &model.AuthorityRule{
		ID: "ep-reciprocal",
		RateTable: model.RateTable{
			Country:            map[string]decimal.Decimal{"JP": dec("0.15")},
			MFNAdjustedOrigins: []string{"JP"},
		},
	}
}

func TestResolveRate_MFNAdjusted(t *testing.T) {
	d := baseDescriptor("1000")
	d.OriginCountry = "JP"
	mfn := dec("0.05")
	d.MFNRate = &mfn

	rr, err := ResolveRate(mfnAdjustedRule(), d)
	require.NoError(t, err)
	// 15% floor minus the 5% column-1 rate.
	assert.True(t, rr.Rate.Equal(dec("0.10")), "rate %s", rr.Rate)
	assert.False(t, rr.MFNRequired)
}

func TestResolveRate_MFNAtOrAboveFloor(t *testing.T) {
	d := baseDescriptor("1000")
	d.OriginCountry = "JP"
	mfn := dec("0.18")
	d.MFNRate = &mfn

	rr, err := ResolveRate(mfnAdjustedRule(), d)
	require.NoError(t, err)
	// Column-1 already meets the floor: no reciprocal duty, never negative.
	assert.True(t, rr.Rate.IsZero(), "rate %s", rr.Rate)
}

func TestResolveRate_MFNMissingIsFlagged(t *testing.T) {
	d := baseDescriptor("1000")
	d.OriginCountry = "JP"

	rr, err := ResolveRate(mfnAdjustedRule(), d)
	require.NoError(t, err)
	assert.True(t, rr.MFNRequired)
}

func TestResolveRate_MFNIgnoredForOtherOrigins(t *testing.T) {
	rule := mfnAdjustedRule()
	rule.RateTable.Country["CN"] = dec("0.10")

	d := baseDescriptor("1000") // origin CN
	mfn := dec("0.05")
	d.MFNRate = &mfn

	rr, err := ResolveRate(rule, d)
	require.NoError(t, err)
	// CN is not MFN-adjusted: the headline rate stands as declared.
	assert.True(t, rr.Rate.Equal(dec("0.10")))
	assert.False(t, rr.MFNRequired)
}

func TestHSPrefixMatch(t *testing.T) {
	tests := []struct {
		code    string
		prefix  string
		wantLen int
		wantOK  bool
	}{
		{"7208.10.00.00", "7208", 4, true},
		{"7208.10.00.00", "7208.10", 6, true},
		{"7208100000", "7208.10.00.00", 10, true},
		{"7208.10.00.00", "73", 0, false},
		{"7208.10.00.00", "", 0, true},
		{"8702.10.31", "8702", 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.prefix, func(t *testing.T) {
			n, ok := model.HSPrefixMatch(tt.code, tt.prefix)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantLen, n)
		})
	}
}
