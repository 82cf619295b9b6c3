// Package engine implements the tariff stacking and rate resolution engine:
// a pure, synchronous computation that turns a shipment descriptor and a set
// of candidate duty authorities into an auditable per-authority breakdown.
//
// The engine performs no I/O and holds no mutable state; concurrent
// invocations are safe without locking.
package engine

import (
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clearway-trade/tariff-cli/internal/model"
)

// Compute stacks the candidate authorities against the shipment and produces
// the final calculation breakdown.
//
// Candidates are walked in precedence order (ties broken by rule id). Within
// an exclusivity group only the first authority that actually applies is
// charged; later members are reported excluded with a supersession reason,
// their notional amount still counted in TotalBefore. Authorities whose
// material portion is absent or at/below the de-minimis threshold are not
// applicable and appear only as zero-amount informational lines.
func Compute(d *model.ShipmentDescriptor, rules []model.AuthorityRule, usage model.UsageSnapshot) (*model.CalculationResult, error) {
	if err := ValidateDescriptor(d); err != nil {
		return nil, err
	}

	sorted := make([]model.AuthorityRule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PrecedenceLevel != sorted[j].PrecedenceLevel {
			return sorted[i].PrecedenceLevel < sorted[j].PrecedenceLevel
		}
		return sorted[i].ID < sorted[j].ID
	})

	split := SplitValue(d)

	result := &model.CalculationResult{
		Lines:       make([]model.AuthorityLine, 0, len(sorted)),
		TotalBefore: decimal.Zero,
		TotalAfter:  decimal.Zero,
	}

	// Exclusivity-group lock set, scoped to this invocation only.
	locked := make(map[string]string)

	for i := range sorted {
		rule := &sorted[i]

		rr, err := ResolveRate(rule, d)
		if err != nil {
			return nil, eris.Wrapf(err, "engine: authority %s", rule.ID)
		}

		dutiable := DutiableFor(rule, d, split)
		line := model.AuthorityLine{
			AuthorityID:     rule.ID,
			DisplayName:     rule.DisplayName,
			Family:          rule.Family,
			PrecedenceLevel: rule.PrecedenceLevel,
			MatchedRate:     rr.Rate,
			Specificity:     rr.Specificity,
			DutiableValue:   dutiable,
			ComputedAmount:  decimal.Zero,
		}

		// Supersession by an earlier authority in the same exclusivity group.
		if rule.StackingMode == model.StackExclusive {
			if holder, ok := locked[rule.ExclusivityGroup]; ok {
				notional := dutiable.Mul(rr.Rate).Round(2)
				line.Excluded = true
				line.ReasonCode = model.ReasonSuperseded
				line.Reason = fmt.Sprintf("superseded by higher-precedence authority %s in exclusivity group %s", holder, rule.ExclusivityGroup)
				result.TotalBefore = result.TotalBefore.Add(notional)
				result.Lines = append(result.Lines, line)
				continue
			}
		}

		// An MFN-adjusted authority without a declared column-1 rate cannot
		// be charged: zero-amount informational line, no group lock.
		if rr.MFNRequired {
			line.Excluded = true
			line.ReasonCode = model.ReasonMFNRateRequired
			line.Reason = fmt.Sprintf("origin %s requires a declared column-1 (MFN) rate to adjust %s", d.OriginCountry, rule.DisplayName)
			result.Lines = append(result.Lines, line)
			continue
		}

		// A material-portion authority with no qualifying content is not
		// applicable: zero-amount informational line, no group lock.
		if rule.AppliesTo.Kind == model.PortionMaterial {
			pct := d.Composition[rule.AppliesTo.Material]
			if pct.IsZero() {
				line.Excluded = true
				line.ReasonCode = model.ReasonNoMaterialContent
				line.Reason = fmt.Sprintf("shipment declares no %s content", rule.AppliesTo.Material)
				result.Lines = append(result.Lines, line)
				continue
			}
			if rule.DeMinimisPct != nil && pct.LessThanOrEqual(*rule.DeMinimisPct) {
				line.Excluded = true
				line.ReasonCode = model.ReasonBelowDeMinimis
				line.Reason = fmt.Sprintf("%s share %s%% at or below de-minimis threshold %s%%",
					rule.AppliesTo.Material, pct, rule.DeMinimisPct)
				result.Lines = append(result.Lines, line)
				continue
			}
		}

		outcome := EvaluateExemption(rule, d, usage)
		notional := dutiable.Mul(rr.Rate).Round(2)
		result.TotalBefore = result.TotalBefore.Add(notional)

		line.ExclusionCode = outcome.Code
		line.ReasonCode = outcome.ReasonCode
		line.Reason = outcome.Reason
		if line.Reason == "" {
			line.Reason = fmt.Sprintf("%s applies to %s portion", rule.DisplayName, rule.AppliesTo.Kind)
		}

		if outcome.Exempt {
			line.Excluded = true
			result.Lines = append(result.Lines, line)
			continue
		}

		line.ComputedAmount = notional
		result.TotalAfter = result.TotalAfter.Add(notional)
		result.Lines = append(result.Lines, line)

		if rule.StackingMode == model.StackExclusive {
			locked[rule.ExclusivityGroup] = rule.ID
		}
	}

	result.Savings = result.TotalBefore.Sub(result.TotalAfter)

	zap.L().Debug("engine: computation complete",
		zap.String("hs_code", d.HSCode),
		zap.String("origin", d.OriginCountry),
		zap.Int("candidates", len(sorted)),
		zap.Int("excluded", result.ExcludedCount()),
		zap.String("total_before", result.TotalBefore.String()),
		zap.String("total_after", result.TotalAfter.String()),
	)

	return result, nil
}

// ValidateDescriptor rejects malformed shipment descriptors before any
// computation begins.
func ValidateDescriptor(d *model.ShipmentDescriptor) error {
	if d == nil {
		return &ValidationError{Field: "descriptor", Reason: "nil"}
	}
	if model.NormalizeHS(d.HSCode) == "" {
		return &ValidationError{Field: "hs_code", Reason: "required"}
	}
	if d.OriginCountry == "" {
		return &ValidationError{Field: "origin_country", Reason: "required"}
	}
	if d.DestinationCountry == "" {
		return &ValidationError{Field: "destination_country", Reason: "required"}
	}
	if d.DeclaredValue.IsNegative() {
		return &ValidationError{Field: "declared_value", Reason: "must be non-negative"}
	}
	if d.EntryDate.IsZero() {
		return &ValidationError{Field: "entry_date", Reason: "required"}
	}
	if d.MFNRate != nil && (d.MFNRate.IsNegative() || d.MFNRate.GreaterThan(decimal.NewFromInt(10))) {
		return &ValidationError{Field: "mfn_rate", Reason: "must be a non-negative ad-valorem fraction"}
	}

	valid := false
	for _, t := range model.ValidEntryTypes {
		if d.EntryType == t {
			valid = true
			break
		}
	}
	if !valid {
		return &ValidationError{Field: "entry_type", Reason: fmt.Sprintf("unknown entry type %q", d.EntryType)}
	}

	for kind, pct := range d.Composition {
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return &ValidationError{
				Field:  "composition",
				Reason: fmt.Sprintf("%s share %s%% outside [0,100]", kind, pct),
			}
		}
	}
	matSum := d.MaterialPercentSum()
	if matSum.GreaterThan(hundred) {
		return &ValidationError{
			Field:  "composition",
			Reason: fmt.Sprintf("material shares sum to %s%%, above 100%%", matSum),
		}
	}
	if matSum.Add(d.DomesticContentPercent()).GreaterThan(hundred) {
		return &ValidationError{
			Field:  "composition",
			Reason: "material shares plus domestic content exceed 100%",
		}
	}

	return nil
}
