package engine

import (
	"fmt"

	"github.com/clearway-trade/tariff-cli/internal/model"
)

// ExemptionOutcome records whether an authority's duty is exempted, and why.
// Exactly one outcome is recorded per authority; evaluation short-circuits at
// the first exclusion rule that resolves, granted or denied.
type ExemptionOutcome struct {
	Exempt     bool
	Code       string
	ReasonCode model.ReasonCode
	Reason     string
}

// EvaluateExemption runs the fixed exemption order for one authority:
//
//  1. declared trade-agreement qualification exempts the whole authority;
//  2. domestic processing (material sourced and finished-processed in the
//     destination country) exempts that material's portion;
//  3. claimed product-specific exclusion codes, checked against validity
//     window and quantity cap — a lapsed window or exhausted cap DENIES the
//     claim and the duty applies in full, which is a normal outcome;
//  4. category-level blanket exemptions (informational materials and the
//     like), matched against claims;
//  5. otherwise not exempt.
//
// The usage snapshot is read-only; the caller owns cap bookkeeping.
func EvaluateExemption(rule *model.AuthorityRule, d *model.ShipmentDescriptor, usage model.UsageSnapshot) ExemptionOutcome {
	// Step 1: regional trade-agreement preference.
	for i := range rule.Exclusions {
		rec := &rule.Exclusions[i]
		if rec.Condition.Kind != model.ConditionTradeAgreement || !recordActive(rec, d) {
			continue
		}
		if !d.TradeAgreementQualified {
			continue
		}
		if !countryListed(rec.Condition.Countries, d.OriginCountry) {
			continue
		}
		return ExemptionOutcome{
			Exempt:     true,
			Code:       rec.Code,
			ReasonCode: model.ReasonExemptTradeAgreement,
			Reason:     fmt.Sprintf("origin %s qualifies under regional trade agreement", d.OriginCountry),
		}
	}

	// Step 2: domestic processing of the dutiable material.
	for i := range rule.Exclusions {
		rec := &rule.Exclusions[i]
		if rec.Condition.Kind != model.ConditionDomesticProcessing || !recordActive(rec, d) {
			continue
		}
		material := rec.Condition.Material
		if material == "" {
			material = rule.AppliesTo.Material
		}
		if material == "" {
			continue
		}
		if d.MaterialOrigin[material] != d.DestinationCountry {
			continue
		}
		return ExemptionOutcome{
			Exempt:     true,
			Code:       rec.Code,
			ReasonCode: model.ReasonExemptDomesticProcessing,
			Reason:     fmt.Sprintf("%s sourced and finished-processed in %s", material, d.DestinationCountry),
		}
	}

	// Step 3: enumerated product-specific exclusion claims.
	for i := range rule.Exclusions {
		rec := &rule.Exclusions[i]
		if rec.Condition.Kind != model.ConditionClaimedCode {
			continue
		}
		claim := d.ClaimFor(rec.Code)
		if claim == nil {
			continue
		}
		return resolveClaim(rec, claim, d, usage)
	}

	// Step 4: category-level blanket exemptions.
	for i := range rule.Exclusions {
		rec := &rule.Exclusions[i]
		if rec.Condition.Kind != model.ConditionCategoryBlanket || !recordActive(rec, d) {
			continue
		}
		if d.ClaimFor(rec.Code) == nil {
			continue
		}
		return ExemptionOutcome{
			Exempt:     true,
			Code:       rec.Code,
			ReasonCode: model.ReasonExemptCategory,
			Reason:     fmt.Sprintf("category blanket exemption %s claimed", rec.Code),
		}
	}

	// Step 5: not exempt.
	return ExemptionOutcome{ReasonCode: model.ReasonApplied}
}

// resolveClaim grants or denies a claimed product-specific exclusion.
// Window and cap are evaluated together; either failing is sufficient to
// deny, and when both fail the reason names both.
func resolveClaim(rec *model.ExclusionRecord, claim *model.ExclusionClaim, d *model.ShipmentDescriptor, usage model.UsageSnapshot) ExemptionOutcome {
	windowNotOpen := rec.ValidFrom != nil && d.EntryDate.Before(*rec.ValidFrom)
	windowElapsed := rec.ValidUntil != nil && d.EntryDate.After(*rec.ValidUntil)

	capExceeded := false
	if rec.QuantityLimit != nil {
		total := usage.Used(rec.Code).Add(claim.Quantity)
		capExceeded = total.GreaterThan(*rec.QuantityLimit)
	}

	switch {
	case windowElapsed && capExceeded:
		return ExemptionOutcome{
			Code:       rec.Code,
			ReasonCode: model.ReasonDeniedWindowExpired,
			Reason: fmt.Sprintf("exclusion %s denied: validity window elapsed %s and quantity cap exhausted",
				rec.Code, rec.ValidUntil.Format("2006-01-02")),
		}
	case windowElapsed:
		return ExemptionOutcome{
			Code:       rec.Code,
			ReasonCode: model.ReasonDeniedWindowExpired,
			Reason:     fmt.Sprintf("exclusion %s denied: validity window elapsed %s", rec.Code, rec.ValidUntil.Format("2006-01-02")),
		}
	case windowNotOpen:
		return ExemptionOutcome{
			Code:       rec.Code,
			ReasonCode: model.ReasonDeniedWindowNotOpen,
			Reason:     fmt.Sprintf("exclusion %s denied: not valid before %s", rec.Code, rec.ValidFrom.Format("2006-01-02")),
		}
	case capExceeded:
		return ExemptionOutcome{
			Code:       rec.Code,
			ReasonCode: model.ReasonDeniedQuantityCap,
			Reason: fmt.Sprintf("exclusion %s denied: cumulative usage %s plus claimed %s exceeds cap %s",
				rec.Code, usage.Used(rec.Code), claim.Quantity, rec.QuantityLimit),
		}
	}

	return ExemptionOutcome{
		Exempt:     true,
		Code:       rec.Code,
		ReasonCode: model.ReasonExemptExclusionCode,
		Reason:     fmt.Sprintf("product-specific exclusion %s granted", rec.Code),
	}
}

// recordActive reports whether a non-claimed exclusion record is in force at
// the entry date. Claimed records go through resolveClaim instead, where a
// lapsed window is a denial rather than silence.
func recordActive(rec *model.ExclusionRecord, d *model.ShipmentDescriptor) bool {
	if rec.ValidFrom != nil && d.EntryDate.Before(*rec.ValidFrom) {
		return false
	}
	if rec.ValidUntil != nil && d.EntryDate.After(*rec.ValidUntil) {
		return false
	}
	return true
}

func countryListed(countries []string, country string) bool {
	if len(countries) == 0 {
		return true
	}
	for _, c := range countries {
		if c == country {
			return true
		}
	}
	return false
}
