package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/clearway-trade/tariff-cli/internal/model"
)

func date(y int, m time.Month, day int) *time.Time {
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func steelRuleWithExclusions(recs ...model.ExclusionRecord) *model.AuthorityRule {
	return &model.AuthorityRule{
		ID:           "ns-steel",
		DisplayName:  "National-Security Steel",
		Family:       model.FamilyNationalSecurity,
		AppliesTo:    model.ValuePortion{Kind: model.PortionMaterial, Material: model.MaterialSteel},
		StackingMode: model.StackAdditive,
		Exclusions:   recs,
	}
}

func TestEvaluateExemption_TradeAgreement(t *testing.T) {
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:      "TA-CA",
		Condition: model.ExclusionCondition{Kind: model.ConditionTradeAgreement, Countries: []string{"CA", "MX"}},
	})

	d := baseDescriptor("1000")
	d.OriginCountry = "CA"
	d.TradeAgreementQualified = true

	out := EvaluateExemption(rule, d, nil)
	assert.True(t, out.Exempt)
	assert.Equal(t, "TA-CA", out.Code)
	assert.Equal(t, model.ReasonExemptTradeAgreement, out.ReasonCode)
}

func TestEvaluateExemption_TradeAgreementNotQualified(t *testing.T) {
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:      "TA-CA",
		Condition: model.ExclusionCondition{Kind: model.ConditionTradeAgreement, Countries: []string{"CA", "MX"}},
	})

	d := baseDescriptor("1000")
	d.OriginCountry = "CA"
	d.TradeAgreementQualified = false

	out := EvaluateExemption(rule, d, nil)
	assert.False(t, out.Exempt)
	assert.Equal(t, model.ReasonApplied, out.ReasonCode)
}

func TestEvaluateExemption_TradeAgreementWrongOrigin(t *testing.T) {
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:      "TA-CA",
		Condition: model.ExclusionCondition{Kind: model.ConditionTradeAgreement, Countries: []string{"CA", "MX"}},
	})

	d := baseDescriptor("1000") // origin CN
	d.TradeAgreementQualified = true

	out := EvaluateExemption(rule, d, nil)
	assert.False(t, out.Exempt)
}

func TestEvaluateExemption_DomesticProcessing(t *testing.T) {
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:      "DP-STEEL",
		Condition: model.ExclusionCondition{Kind: model.ConditionDomesticProcessing, Material: model.MaterialSteel},
	})

	d := baseDescriptor("1000")
	d.Composition = map[model.MaterialKind]decimal.Decimal{model.MaterialSteel: dec("60")}
	d.MaterialOrigin = map[model.MaterialKind]string{model.MaterialSteel: "US"}

	out := EvaluateExemption(rule, d, nil)
	assert.True(t, out.Exempt)
	assert.Equal(t, model.ReasonExemptDomesticProcessing, out.ReasonCode)
}

func TestEvaluateExemption_DomesticProcessingForeignMaterial(t *testing.T) {
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:      "DP-STEEL",
		Condition: model.ExclusionCondition{Kind: model.ConditionDomesticProcessing, Material: model.MaterialSteel},
	})

	d := baseDescriptor("1000")
	d.MaterialOrigin = map[model.MaterialKind]string{model.MaterialSteel: "CN"}

	out := EvaluateExemption(rule, d, nil)
	assert.False(t, out.Exempt)
}

func TestEvaluateExemption_DomesticProcessingDefaultsToRuleMaterial(t *testing.T) {
	// Condition without an explicit material falls back to the rule's portion.
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:      "DP",
		Condition: model.ExclusionCondition{Kind: model.ConditionDomesticProcessing},
	})

	d := baseDescriptor("1000")
	d.MaterialOrigin = map[model.MaterialKind]string{model.MaterialSteel: "US"}

	out := EvaluateExemption(rule, d, nil)
	assert.True(t, out.Exempt)
}

func TestEvaluateExemption_ClaimedCodeGranted(t *testing.T) {
	limit := dec("500")
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:          "EXCL-164",
		Condition:     model.ExclusionCondition{Kind: model.ConditionClaimedCode},
		ValidFrom:     date(2025, 1, 1),
		ValidUntil:    date(2026, 11, 10),
		QuantityLimit: &limit,
	})

	d := baseDescriptor("1000")
	d.ExclusionClaims = []model.ExclusionClaim{{Code: "EXCL-164", Quantity: dec("100")}}

	usage := model.UsageSnapshot{"EXCL-164": dec("300")}
	out := EvaluateExemption(rule, d, usage)
	assert.True(t, out.Exempt)
	assert.Equal(t, model.ReasonExemptExclusionCode, out.ReasonCode)
}

func TestEvaluateExemption_ClaimedCodeWindowExpired(t *testing.T) {
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:       "EXCL-164",
		Condition:  model.ExclusionCondition{Kind: model.ConditionClaimedCode},
		ValidUntil: date(2025, 6, 30),
	})

	d := baseDescriptor("1000") // entry date 2026-03-15
	d.ExclusionClaims = []model.ExclusionClaim{{Code: "EXCL-164"}}

	out := EvaluateExemption(rule, d, nil)
	assert.False(t, out.Exempt)
	assert.Equal(t, model.ReasonDeniedWindowExpired, out.ReasonCode)
	assert.Contains(t, out.Reason, "2025-06-30")
}

func TestEvaluateExemption_ClaimedCodeWindowNotOpen(t *testing.T) {
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:      "EXCL-164",
		Condition: model.ExclusionCondition{Kind: model.ConditionClaimedCode},
		ValidFrom: date(2026, 9, 1),
	})

	d := baseDescriptor("1000")
	d.ExclusionClaims = []model.ExclusionClaim{{Code: "EXCL-164"}}

	out := EvaluateExemption(rule, d, nil)
	assert.False(t, out.Exempt)
	assert.Equal(t, model.ReasonDeniedWindowNotOpen, out.ReasonCode)
}

func TestEvaluateExemption_ClaimedCodeCapExceeded(t *testing.T) {
	limit := dec("500")
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:          "EXCL-164",
		Condition:     model.ExclusionCondition{Kind: model.ConditionClaimedCode},
		QuantityLimit: &limit,
	})

	d := baseDescriptor("1000")
	d.ExclusionClaims = []model.ExclusionClaim{{Code: "EXCL-164", Quantity: dec("250")}}

	usage := model.UsageSnapshot{"EXCL-164": dec("300")}
	out := EvaluateExemption(rule, d, usage)
	assert.False(t, out.Exempt)
	assert.Equal(t, model.ReasonDeniedQuantityCap, out.ReasonCode)
}

func TestEvaluateExemption_ClaimedCodeCapExactlyAtLimit(t *testing.T) {
	// cumulative + claimed == limit is still within the cap.
	limit := dec("500")
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:          "EXCL-164",
		Condition:     model.ExclusionCondition{Kind: model.ConditionClaimedCode},
		QuantityLimit: &limit,
	})

	d := baseDescriptor("1000")
	d.ExclusionClaims = []model.ExclusionClaim{{Code: "EXCL-164", Quantity: dec("200")}}

	usage := model.UsageSnapshot{"EXCL-164": dec("300")}
	out := EvaluateExemption(rule, d, usage)
	assert.True(t, out.Exempt)
}

func TestEvaluateExemption_ClaimedCodeBothConditionsFail(t *testing.T) {
	// Window elapsed and cap exhausted together: window denial code, reason
	// names both.
	limit := dec("100")
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:          "EXCL-164",
		Condition:     model.ExclusionCondition{Kind: model.ConditionClaimedCode},
		ValidUntil:    date(2025, 6, 30),
		QuantityLimit: &limit,
	})

	d := baseDescriptor("1000")
	d.ExclusionClaims = []model.ExclusionClaim{{Code: "EXCL-164", Quantity: dec("50")}}

	usage := model.UsageSnapshot{"EXCL-164": dec("90")}
	out := EvaluateExemption(rule, d, usage)
	assert.False(t, out.Exempt)
	assert.Equal(t, model.ReasonDeniedWindowExpired, out.ReasonCode)
	assert.Contains(t, out.Reason, "window elapsed")
	assert.Contains(t, out.Reason, "quantity cap")
}

func TestEvaluateExemption_CategoryBlanket(t *testing.T) {
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:      "INFO-MAT",
		Condition: model.ExclusionCondition{Kind: model.ConditionCategoryBlanket},
	})

	d := baseDescriptor("1000")
	d.ExclusionClaims = []model.ExclusionClaim{{Code: "INFO-MAT"}}

	out := EvaluateExemption(rule, d, nil)
	assert.True(t, out.Exempt)
	assert.Equal(t, model.ReasonExemptCategory, out.ReasonCode)
}

func TestEvaluateExemption_UnclaimedCodeIgnored(t *testing.T) {
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:      "EXCL-164",
		Condition: model.ExclusionCondition{Kind: model.ConditionClaimedCode},
	})

	d := baseDescriptor("1000") // no claims

	out := EvaluateExemption(rule, d, nil)
	assert.False(t, out.Exempt)
	assert.Equal(t, model.ReasonApplied, out.ReasonCode)
}

func TestEvaluateExemption_FixedOrderShortCircuits(t *testing.T) {
	// Trade agreement resolves first even when a claimed exclusion would
	// also be granted.
	rule := steelRuleWithExclusions(
		model.ExclusionRecord{
			Code:      "EXCL-164",
			Condition: model.ExclusionCondition{Kind: model.ConditionClaimedCode},
		},
		model.ExclusionRecord{
			Code:      "TA-CA",
			Condition: model.ExclusionCondition{Kind: model.ConditionTradeAgreement, Countries: []string{"CA"}},
		},
	)

	d := baseDescriptor("1000")
	d.OriginCountry = "CA"
	d.TradeAgreementQualified = true
	d.ExclusionClaims = []model.ExclusionClaim{{Code: "EXCL-164"}}

	out := EvaluateExemption(rule, d, nil)
	assert.True(t, out.Exempt)
	assert.Equal(t, model.ReasonExemptTradeAgreement, out.ReasonCode)
	assert.Equal(t, "TA-CA", out.Code)
}

func TestEvaluateExemption_InactiveRecordSkipped(t *testing.T) {
	// A lapsed trade-agreement record is simply inactive; nothing was
	// claimed, so there is no denial outcome.
	rule := steelRuleWithExclusions(model.ExclusionRecord{
		Code:       "TA-CA",
		Condition:  model.ExclusionCondition{Kind: model.ConditionTradeAgreement, Countries: []string{"CA"}},
		ValidUntil: date(2025, 1, 1),
	})

	d := baseDescriptor("1000")
	d.OriginCountry = "CA"
	d.TradeAgreementQualified = true

	out := EvaluateExemption(rule, d, nil)
	assert.False(t, out.Exempt)
	assert.Equal(t, model.ReasonApplied, out.ReasonCode)
}
