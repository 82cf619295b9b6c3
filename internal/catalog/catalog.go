// Package catalog loads and indexes the static rule catalog: the set of duty
// authorities, their rate tables, and their attached exclusion records. A
// Catalog is built once at startup, validated, and never mutated afterwards;
// request-time code only reads it.
package catalog

import (
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clearway-trade/tariff-cli/internal/model"
)

// Document is the on-disk shape of a rule catalog.
type Document struct {
	Version     string                `yaml:"version" json:"version"`
	Authorities []model.AuthorityRule `yaml:"authorities" json:"authorities"`
}

// Catalog is an immutable, validated set of authority rules.
type Catalog struct {
	version  string
	rules    []model.AuthorityRule
	byID     map[string]int
	byFamily map[model.AuthorityFamily][]int
	// families holds byFamily's keys in sorted order so lookups walk the
	// index deterministically.
	families []model.AuthorityFamily
}

// New validates doc and builds the indexed catalog. Validation is strict:
// a single malformed authority rejects the whole document.
func New(doc Document) (*Catalog, error) {
	c := &Catalog{
		version:  doc.Version,
		rules:    make([]model.AuthorityRule, len(doc.Authorities)),
		byID:     make(map[string]int, len(doc.Authorities)),
		byFamily: make(map[model.AuthorityFamily][]int),
	}
	copy(c.rules, doc.Authorities)

	for i := range c.rules {
		rule := &c.rules[i]
		if err := validateRule(rule); err != nil {
			return nil, eris.Wrapf(err, "catalog: authority %q", rule.ID)
		}
		if _, dup := c.byID[rule.ID]; dup {
			return nil, eris.Errorf("catalog: duplicate authority id %q", rule.ID)
		}
		c.byID[rule.ID] = i
		c.byFamily[rule.Family] = append(c.byFamily[rule.Family], i)
	}

	for fam := range c.byFamily {
		c.families = append(c.families, fam)
	}
	sort.Slice(c.families, func(i, j int) bool { return c.families[i] < c.families[j] })

	zap.L().Debug("catalog: built",
		zap.String("version", c.version),
		zap.Int("authorities", len(c.rules)),
	)
	return c, nil
}

// Version returns the catalog document version string.
func (c *Catalog) Version() string { return c.version }

// Len returns the number of authorities in the catalog.
func (c *Catalog) Len() int { return len(c.rules) }

// Rule returns the authority with the given id.
func (c *Catalog) Rule(id string) (model.AuthorityRule, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.AuthorityRule{}, false
	}
	return c.rules[i], true
}

// All returns a copy of every authority in the catalog.
func (c *Catalog) All() []model.AuthorityRule {
	out := make([]model.AuthorityRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Lookup returns the candidate authorities for a shipment: every authority
// whose applicability predicate matches the HS code, origin, destination,
// and entry date. Within a family, when several authorities match the HS
// code, only those tied for the longest matching prefix are kept; a more
// specific listing displaces a broader one of the same family. The caller
// feeds the result straight to the stacking engine, which owns ordering.
func (c *Catalog) Lookup(hsCode, origin, destination string, entryDate time.Time) []model.AuthorityRule {
	var out []model.AuthorityRule

	for _, fam := range c.families {
		idxs := c.byFamily[fam]
		bestLen := -1
		var kept []int
		for _, i := range idxs {
			rule := &c.rules[i]
			n, ok := matches(rule, hsCode, origin, destination, entryDate)
			if !ok {
				continue
			}
			switch {
			case n > bestLen:
				bestLen = n
				kept = kept[:0]
				kept = append(kept, i)
			case n == bestLen:
				kept = append(kept, i)
			}
		}
		for _, i := range kept {
			out = append(out, c.rules[i])
		}
	}

	return out
}

// matches evaluates rule applicability and reports the longest HS prefix
// length that matched (zero when the rule lists no prefixes).
func matches(rule *model.AuthorityRule, hsCode, origin, destination string, entryDate time.Time) (int, bool) {
	a := rule.Applicability

	if len(a.Origins) > 0 && !contains(a.Origins, origin) {
		return 0, false
	}
	if len(a.Destinations) > 0 && !contains(a.Destinations, destination) {
		return 0, false
	}
	if a.EffectiveFrom != nil && entryDate.Before(*a.EffectiveFrom) {
		return 0, false
	}
	if a.EffectiveTo != nil && entryDate.After(*a.EffectiveTo) {
		return 0, false
	}

	if len(a.HSPrefixes) == 0 {
		return 0, true
	}
	best := -1
	for _, p := range a.HSPrefixes {
		if n, ok := model.HSPrefixMatch(hsCode, p); ok && n > best {
			best = n
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func validateRule(rule *model.AuthorityRule) error {
	if rule.ID == "" {
		return eris.New("missing id")
	}
	if rule.DisplayName == "" {
		return eris.New("missing display_name")
	}

	switch rule.Family {
	case model.FamilyNationalSecurity, model.FamilyRetaliatory, model.FamilyEmergencyPowers, model.FamilyTradeRemedy:
	default:
		return eris.Errorf("unknown family %q", rule.Family)
	}

	switch rule.StackingMode {
	case model.StackAdditive:
	case model.StackExclusive:
		if rule.ExclusivityGroup == "" {
			return eris.New("exclusive stacking mode requires an exclusivity_group")
		}
	default:
		return eris.Errorf("unknown stacking_mode %q", rule.StackingMode)
	}

	switch rule.AppliesTo.Kind {
	case model.PortionWholeValue, model.PortionNonMaterial, model.PortionDomesticResidual:
		if rule.AppliesTo.Material != "" {
			return eris.Errorf("portion kind %q must not name a material", rule.AppliesTo.Kind)
		}
	case model.PortionMaterial:
		if !rule.AppliesTo.Material.IsMaterial() || rule.AppliesTo.Material == "" {
			return eris.Errorf("material portion names invalid material %q", rule.AppliesTo.Material)
		}
	default:
		return eris.Errorf("unknown portion kind %q", rule.AppliesTo.Kind)
	}

	if rule.RateTable.Empty() {
		return eris.New("rate table defines no rates at any specificity level")
	}
	for _, r := range rule.RateTable.ProductCountry {
		if err := validateRate(r.Rate); err != nil {
			return eris.Wrapf(err, "product_country rate %s/%s", r.HSPrefix, r.Origin)
		}
	}
	for _, r := range rule.RateTable.Product {
		if err := validateRate(r.Rate); err != nil {
			return eris.Wrapf(err, "product rate %s", r.HSPrefix)
		}
	}
	for origin, r := range rule.RateTable.Country {
		if err := validateRate(r); err != nil {
			return eris.Wrapf(err, "country rate %s", origin)
		}
	}
	for _, origin := range rule.RateTable.MFNAdjustedOrigins {
		if _, ok := rule.RateTable.Country[origin]; !ok {
			return eris.Errorf("mfn-adjusted origin %s has no country rate to adjust", origin)
		}
	}

	if rule.DeMinimisPct != nil {
		if rule.AppliesTo.Kind != model.PortionMaterial {
			return eris.New("de_minimis_pct is only meaningful on a material portion")
		}
		if err := validatePercent(*rule.DeMinimisPct); err != nil {
			return eris.Wrap(err, "de_minimis_pct")
		}
	}
	if rule.DomesticContentPct != nil {
		if err := validatePercent(*rule.DomesticContentPct); err != nil {
			return eris.Wrap(err, "domestic_content_pct")
		}
	}

	seen := make(map[string]struct{}, len(rule.Exclusions))
	for i := range rule.Exclusions {
		if err := validateExclusion(&rule.Exclusions[i]); err != nil {
			return eris.Wrapf(err, "exclusion %q", rule.Exclusions[i].Code)
		}
		if _, dup := seen[rule.Exclusions[i].Code]; dup {
			return eris.Errorf("duplicate exclusion code %q", rule.Exclusions[i].Code)
		}
		seen[rule.Exclusions[i].Code] = struct{}{}
	}

	return nil
}

func validateExclusion(rec *model.ExclusionRecord) error {
	if rec.Code == "" {
		return eris.New("missing code")
	}
	switch rec.Condition.Kind {
	case model.ConditionTradeAgreement, model.ConditionDomesticProcessing,
		model.ConditionClaimedCode, model.ConditionCategoryBlanket:
	default:
		return eris.Errorf("unknown condition kind %q", rec.Condition.Kind)
	}
	if rec.ValidFrom != nil && rec.ValidUntil != nil && rec.ValidUntil.Before(*rec.ValidFrom) {
		return eris.New("valid_until precedes valid_from")
	}
	if rec.QuantityLimit != nil && rec.QuantityLimit.IsNegative() {
		return eris.New("negative quantity_limit")
	}
	return nil
}

func validateRate(r decimal.Decimal) error {
	if r.IsNegative() {
		return eris.New("negative rate")
	}
	if r.GreaterThan(decimal.NewFromInt(10)) {
		return eris.Errorf("rate %s is implausibly large for an ad-valorem fraction", r)
	}
	return nil
}

func validatePercent(p decimal.Decimal) error {
	if p.IsNegative() || p.GreaterThan(decimal.NewFromInt(100)) {
		return eris.Errorf("percentage %s outside [0,100]", p)
	}
	return nil
}
