package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuthorityFamily tags the legal basis of a duty authority. Families are
// assigned at catalog build time; nothing ever infers a family from
// free-text names.
type AuthorityFamily string

const (
	FamilyNationalSecurity AuthorityFamily = "national_security"
	FamilyRetaliatory      AuthorityFamily = "retaliatory"
	FamilyEmergencyPowers  AuthorityFamily = "emergency_powers"
	FamilyTradeRemedy      AuthorityFamily = "trade_remedy"
)

// StackingMode governs whether an authority's duty combines with others.
type StackingMode string

const (
	// StackAdditive duties always combine with other applicable authorities.
	StackAdditive StackingMode = "additive"
	// StackExclusive duties apply only when no higher-precedence authority in
	// the same exclusivity group already applies.
	StackExclusive StackingMode = "exclusive"
)

// PortionKind names the slice of declared value an authority's rate applies to.
type PortionKind string

const (
	PortionWholeValue       PortionKind = "whole_value"
	PortionMaterial         PortionKind = "material_portion"
	PortionNonMaterial      PortionKind = "non_material_residual"
	PortionDomesticResidual PortionKind = "domestic_content_residual"
)

// ValuePortion selects the dutiable slice of declared value. Material is set
// only when Kind is PortionMaterial.
type ValuePortion struct {
	Kind     PortionKind  `json:"kind" yaml:"kind"`
	Material MaterialKind `json:"material,omitempty" yaml:"material,omitempty"`
}

// RateSpecificity identifies which cascade level produced a resolved rate.
type RateSpecificity string

const (
	SpecificityProductCountry RateSpecificity = "product_country"
	SpecificityProduct        RateSpecificity = "product"
	SpecificityCountry        RateSpecificity = "country_headline"
)

// ProductCountryRate is a rate keyed by HS prefix and origin country.
type ProductCountryRate struct {
	HSPrefix string          `json:"hs_prefix" yaml:"hs_prefix"`
	Origin   string          `json:"origin" yaml:"origin"`
	Rate     decimal.Decimal `json:"rate" yaml:"rate"`
}

// ProductRate is a rate keyed by HS prefix alone.
type ProductRate struct {
	HSPrefix string          `json:"hs_prefix" yaml:"hs_prefix"`
	Rate     decimal.Decimal `json:"rate" yaml:"rate"`
}

// RateTable holds an authority's ad-valorem rates at three specificity
// levels. Each level is optional; resolution takes the most specific
// non-absent match.
type RateTable struct {
	ProductCountry []ProductCountryRate       `json:"product_country,omitempty" yaml:"product_country,omitempty"`
	Product        []ProductRate              `json:"product,omitempty" yaml:"product,omitempty"`
	Country        map[string]decimal.Decimal `json:"country,omitempty" yaml:"country,omitempty"`

	// MFNAdjustedOrigins lists origins whose resolved rate acts as a floor
	// on combined duty rather than a surcharge: the effective rate is the
	// resolved rate minus the shipment's declared column-1 (MFN) rate,
	// never below zero, so combined duty works out to max(MFN, resolved).
	// Shipments from these origins must declare mfn_rate.
	MFNAdjustedOrigins []string `json:"mfn_adjusted_origins,omitempty" yaml:"mfn_adjusted_origins,omitempty"`
}

// Empty reports whether no rate is defined at any level.
func (t RateTable) Empty() bool {
	return len(t.ProductCountry) == 0 && len(t.Product) == 0 && len(t.Country) == 0
}

// MFNAdjusted reports whether origin's resolved rate is reduced by the
// shipment's declared MFN rate.
func (t RateTable) MFNAdjusted(origin string) bool {
	for _, o := range t.MFNAdjustedOrigins {
		if o == origin {
			return true
		}
	}
	return false
}

// Applicability is the predicate deciding whether an authority is a
// candidate for a shipment at all. Empty slices match anything.
type Applicability struct {
	HSPrefixes    []string   `json:"hs_prefixes,omitempty" yaml:"hs_prefixes,omitempty"`
	Origins       []string   `json:"origins,omitempty" yaml:"origins,omitempty"`
	Destinations  []string   `json:"destinations,omitempty" yaml:"destinations,omitempty"`
	EffectiveFrom *time.Time `json:"effective_from,omitempty" yaml:"effective_from,omitempty"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" yaml:"effective_to,omitempty"`
}

// ConditionKind enumerates exclusion predicates. Conditions are data, not
// code: the evaluator interprets each kind in a fixed order.
type ConditionKind string

const (
	// ConditionTradeAgreement exempts the whole authority when the shipment
	// declares regional-agreement qualification and the origin is listed.
	ConditionTradeAgreement ConditionKind = "trade_agreement"
	// ConditionDomesticProcessing exempts a material portion when the material
	// was sourced and finished-processed in the destination country.
	ConditionDomesticProcessing ConditionKind = "domestic_processing"
	// ConditionClaimedCode grants an enumerated product-specific exclusion
	// when claimed, subject to validity window and quantity cap.
	ConditionClaimedCode ConditionKind = "claimed_code"
	// ConditionCategoryBlanket grants a category-level blanket exemption
	// (informational materials, humanitarian donations) when claimed.
	ConditionCategoryBlanket ConditionKind = "category_blanket"
)

// ExclusionCondition parameterizes one ConditionKind.
type ExclusionCondition struct {
	Kind      ConditionKind   `json:"kind" yaml:"kind"`
	Countries []string        `json:"countries,omitempty" yaml:"countries,omitempty"`
	Material  MaterialKind    `json:"material,omitempty" yaml:"material,omitempty"`
	Threshold decimal.Decimal `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// ExclusionRecord is one exclusion/exemption attached to an authority.
// ValidFrom/ValidUntil bound when a claimed exclusion may be honored; absent
// means unbounded. QuantityLimit caps cumulative claimed quantity; the
// running total arrives per-invocation as a UsageSnapshot.
type ExclusionRecord struct {
	Code          string             `json:"code" yaml:"code"`
	DisplayName   string             `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	Condition     ExclusionCondition `json:"condition" yaml:"condition"`
	ValidFrom     *time.Time         `json:"valid_from,omitempty" yaml:"valid_from,omitempty"`
	ValidUntil    *time.Time         `json:"valid_until,omitempty" yaml:"valid_until,omitempty"`
	QuantityLimit *decimal.Decimal   `json:"quantity_limit,omitempty" yaml:"quantity_limit,omitempty"`
}

// AuthorityRule is a static catalog entry describing one duty authority.
// Built once at catalog load, never mutated at request time.
type AuthorityRule struct {
	ID              string          `json:"id" yaml:"id"`
	DisplayName     string          `json:"display_name" yaml:"display_name"`
	Family          AuthorityFamily `json:"family" yaml:"family"`
	PrecedenceLevel int             `json:"precedence_level" yaml:"precedence_level"`
	Applicability   Applicability   `json:"applicability" yaml:"applicability"`
	RateTable       RateTable       `json:"rate_table" yaml:"rate_table"`
	StackingMode    StackingMode    `json:"stacking_mode" yaml:"stacking_mode"`

	// ExclusivityGroup must be set when StackingMode is exclusive; within a
	// group only the highest-precedence applicable authority is charged.
	ExclusivityGroup string `json:"exclusivity_group,omitempty" yaml:"exclusivity_group,omitempty"`

	AppliesTo ValuePortion `json:"applies_to" yaml:"applies_to"`

	// DeMinimisPct, when set on a material-portion authority, renders the
	// authority not applicable if the material share is at or below it.
	// The boundary is inclusive: a share exactly at the threshold is exempt.
	DeMinimisPct *decimal.Decimal `json:"de_minimis_pct,omitempty" yaml:"de_minimis_pct,omitempty"`

	// DomesticContentPct, when set on a non-material-residual authority,
	// carves the declared domestic-content share out of the dutiable residual
	// once that share meets the threshold.
	DomesticContentPct *decimal.Decimal `json:"domestic_content_pct,omitempty" yaml:"domestic_content_pct,omitempty"`

	Exclusions []ExclusionRecord `json:"exclusions,omitempty" yaml:"exclusions,omitempty"`
}
