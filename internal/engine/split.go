package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/clearway-trade/tariff-cli/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Split is the decomposition of a shipment's declared value into dutiable
// portions. All amounts are fixed-point with two decimal places; rounding
// drift is reconciled onto the largest portion so the portions, plus the
// domestic-content carve-out, sum to the declared value exactly.
type Split struct {
	// Materials maps each declared material kind to its value portion.
	Materials map[model.MaterialKind]decimal.Decimal
	// DomesticContent is the carve-out for declared destination-country
	// content. Zero when none is declared.
	DomesticContent decimal.Decimal
	// NonMaterialNet is the non-material residual after the domestic-content
	// carve-out.
	NonMaterialNet decimal.Decimal
}

// NonMaterialGross returns the non-material residual before the
// domestic-content carve-out.
func (s Split) NonMaterialGross() decimal.Decimal {
	return s.NonMaterialNet.Add(s.DomesticContent)
}

// Material returns the portion for kind, or zero if not declared.
func (s Split) Material(kind model.MaterialKind) decimal.Decimal {
	if v, ok := s.Materials[kind]; ok {
		return v
	}
	return decimal.Zero
}

// SplitValue decomposes the declared value per the declared composition.
// Each material portion is value x pct/100; the non-material residual is
// value x (100 - sum material pct)/100; declared domestic content is carved
// out of the residual.
func SplitValue(d *model.ShipmentDescriptor) Split {
	s := Split{
		Materials: make(map[model.MaterialKind]decimal.Decimal, len(d.Composition)),
	}

	value := d.DeclaredValue
	matSum := decimal.Zero
	for kind, pct := range d.Composition {
		if !kind.IsMaterial() {
			continue
		}
		matSum = matSum.Add(pct)
		s.Materials[kind] = value.Mul(pct).Div(hundred).Round(2)
	}

	domPct := d.DomesticContentPercent()
	s.DomesticContent = value.Mul(domPct).Div(hundred).Round(2)

	residualPct := hundred.Sub(matSum).Sub(domPct)
	s.NonMaterialNet = value.Mul(residualPct).Div(hundred).Round(2)

	reconcile(&s, value)
	return s
}

// reconcile pushes any rounding drift onto the largest portion so the split
// sums to value exactly. Ties between material portions break toward the
// lexically smallest kind; map iteration order must never pick the target or
// two runs over the same shipment would split a penny differently.
func reconcile(s *Split, value decimal.Decimal) {
	sum := s.DomesticContent.Add(s.NonMaterialNet)
	for _, amt := range s.Materials {
		sum = sum.Add(amt)
	}
	diff := value.Sub(sum)
	if diff.IsZero() {
		return
	}

	largestKind := model.MaterialKind("")
	largest := s.NonMaterialNet
	target := &s.NonMaterialNet
	if s.DomesticContent.GreaterThan(largest) {
		largest = s.DomesticContent
		target = &s.DomesticContent
	}
	for _, kind := range sortedKinds(s.Materials) {
		if amt := s.Materials[kind]; amt.GreaterThan(largest) {
			largest = amt
			largestKind = kind
			target = nil
		}
	}
	if target != nil {
		*target = target.Add(diff)
		return
	}
	s.Materials[largestKind] = s.Materials[largestKind].Add(diff)
}

func sortedKinds(m map[model.MaterialKind]decimal.Decimal) []model.MaterialKind {
	kinds := make([]model.MaterialKind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DutiableFor resolves the slice of declared value an authority's rate
// applies to. Whole-value authorities bypass the splitter and use the
// declared value directly. A non-material-residual authority with a
// domestic-content threshold gets the carved residual only once the declared
// domestic share meets that threshold.
func DutiableFor(rule *model.AuthorityRule, d *model.ShipmentDescriptor, s Split) decimal.Decimal {
	switch rule.AppliesTo.Kind {
	case model.PortionWholeValue:
		return d.DeclaredValue
	case model.PortionMaterial:
		return s.Material(rule.AppliesTo.Material)
	case model.PortionNonMaterial:
		if rule.DomesticContentPct != nil && d.DomesticContentPercent().GreaterThanOrEqual(*rule.DomesticContentPct) {
			return s.NonMaterialNet
		}
		return s.NonMaterialGross()
	case model.PortionDomesticResidual:
		return s.DomesticContent
	default:
		return decimal.Zero
	}
}
