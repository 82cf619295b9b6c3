package model

import "github.com/shopspring/decimal"

// ReasonCode is a short symbolic code explaining an authority line outcome.
// The result must be self-explanatory from these codes alone; no prose
// generation lives in the engine.
type ReasonCode string

const (
	// ReasonApplied: the authority's duty applies in full to its portion.
	ReasonApplied ReasonCode = "applied"
	// ReasonSuperseded: a higher-precedence authority in the same exclusivity
	// group already applies.
	ReasonSuperseded ReasonCode = "superseded_by_exclusivity_group"
	// ReasonNoMaterialContent: a material-portion authority with zero declared
	// content; informational zero-amount line.
	ReasonNoMaterialContent ReasonCode = "no_material_content"
	// ReasonBelowDeMinimis: material share at or below the authority's
	// de-minimis threshold; informational zero-amount line.
	ReasonBelowDeMinimis ReasonCode = "below_de_minimis"
	// ReasonMFNRateRequired: the authority adjusts its rate against the
	// column-1 (MFN) rate but the shipment did not declare one;
	// informational zero-amount line until the caller supplies it.
	ReasonMFNRateRequired ReasonCode = "mfn_rate_required"

	ReasonExemptTradeAgreement     ReasonCode = "exempt_trade_agreement"
	ReasonExemptDomesticProcessing ReasonCode = "exempt_domestic_processing"
	ReasonExemptExclusionCode      ReasonCode = "exempt_exclusion_code"
	ReasonExemptCategory           ReasonCode = "exempt_category_blanket"

	// Denied reasons are normal outcomes, not errors: the claimed exclusion
	// did not hold and the duty applies in full (excluded stays false).
	ReasonDeniedWindowExpired ReasonCode = "denied_window_expired"
	ReasonDeniedWindowNotOpen ReasonCode = "denied_window_not_open"
	ReasonDeniedQuantityCap   ReasonCode = "denied_quantity_cap"
)

// AuthorityLine is one authority's outcome within a CalculationResult.
type AuthorityLine struct {
	AuthorityID     string          `json:"authority_id"`
	DisplayName     string          `json:"display_name"`
	Family          AuthorityFamily `json:"family"`
	PrecedenceLevel int             `json:"precedence_level"`
	MatchedRate     decimal.Decimal `json:"matched_rate"`
	Specificity     RateSpecificity `json:"specificity,omitempty"`
	DutiableValue   decimal.Decimal `json:"dutiable_value"`
	ComputedAmount  decimal.Decimal `json:"computed_amount"`
	Excluded        bool            `json:"excluded"`
	ExclusionCode   string          `json:"exclusion_code,omitempty"`
	ReasonCode      ReasonCode      `json:"reason_code"`
	Reason          string          `json:"reason"`
}

// CalculationResult is the engine's output: ordered authority lines plus
// totals. Invariants: TotalAfter equals the sum of non-excluded line amounts
// and Savings equals TotalBefore minus TotalAfter, exactly.
type CalculationResult struct {
	Lines       []AuthorityLine `json:"lines"`
	TotalBefore decimal.Decimal `json:"total_before"`
	TotalAfter  decimal.Decimal `json:"total_after"`
	Savings     decimal.Decimal `json:"savings"`
}

// ExcludedCount returns the number of excluded lines.
func (r *CalculationResult) ExcludedCount() int {
	n := 0
	for _, l := range r.Lines {
		if l.Excluded {
			n++
		}
	}
	return n
}
