package engine

import (
	"github.com/shopspring/decimal"

	"github.com/clearway-trade/tariff-cli/internal/model"
)

// ResolvedRate is the outcome of the specificity cascade for one authority.
type ResolvedRate struct {
	Rate        decimal.Decimal
	Specificity model.RateSpecificity

	// MFNRequired marks an origin whose rate is MFN-adjusted while the
	// shipment declares no MFN rate. The authority cannot be charged until
	// the caller supplies one; this is a data gap, not a catalog fault.
	MFNRequired bool
}

// ResolveRate resolves the effective ad-valorem rate for a rule via the
// specificity cascade, most specific first: (hsCode, origin) pair, then
// hsCode alone, then the origin-country headline rate. HS keys match by
// prefix; among same-level candidates the longest prefix wins, compared by
// digit count. Returns NoRateDefinedError when no level has an entry, which
// signals a catalog defect rather than a shipment-level outcome.
func ResolveRate(rule *model.AuthorityRule, d *model.ShipmentDescriptor) (ResolvedRate, error) {
	// Level 1: product and country.
	bestLen := -1
	var best decimal.Decimal
	for _, r := range rule.RateTable.ProductCountry {
		if r.Origin != d.OriginCountry {
			continue
		}
		if n, ok := model.HSPrefixMatch(d.HSCode, r.HSPrefix); ok && n > bestLen {
			bestLen = n
			best = r.Rate
		}
	}
	if bestLen >= 0 {
		return adjustForMFN(rule, d, ResolvedRate{Rate: best, Specificity: model.SpecificityProductCountry}), nil
	}

	// Level 2: product only.
	bestLen = -1
	for _, r := range rule.RateTable.Product {
		if n, ok := model.HSPrefixMatch(d.HSCode, r.HSPrefix); ok && n > bestLen {
			bestLen = n
			best = r.Rate
		}
	}
	if bestLen >= 0 {
		return adjustForMFN(rule, d, ResolvedRate{Rate: best, Specificity: model.SpecificityProduct}), nil
	}

	// Level 3: country headline.
	if rate, ok := rule.RateTable.Country[d.OriginCountry]; ok {
		return adjustForMFN(rule, d, ResolvedRate{Rate: rate, Specificity: model.SpecificityCountry}), nil
	}

	return ResolvedRate{}, &NoRateDefinedError{
		RuleID: rule.ID,
		HSCode: d.HSCode,
		Origin: d.OriginCountry,
	}
}

// adjustForMFN applies the column-1 threshold rule for MFN-adjusted origins:
// the effective rate is the resolved rate minus the declared MFN rate,
// floored at zero, so the combined duty equals max(MFN, resolved). A missing
// declaration is flagged rather than assumed zero.
func adjustForMFN(rule *model.AuthorityRule, d *model.ShipmentDescriptor, rr ResolvedRate) ResolvedRate {
	if !rule.RateTable.MFNAdjusted(d.OriginCountry) {
		return rr
	}
	if d.MFNRate == nil {
		rr.MFNRequired = true
		return rr
	}
	adjusted := rr.Rate.Sub(*d.MFNRate)
	if adjusted.IsNegative() {
		adjusted = decimal.Zero
	}
	rr.Rate = adjusted
	return rr
}
