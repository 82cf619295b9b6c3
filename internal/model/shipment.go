package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType classifies how a shipment enters the destination country.
type EntryType string

const (
	EntryStandard              EntryType = "standard"
	EntryDeMinimis             EntryType = "de_minimis"
	EntryAssemblyReturn        EntryType = "assembly_return"
	EntryTemporaryExportReturn EntryType = "temporary_export_return"
)

// ValidEntryTypes lists every recognized entry type.
var ValidEntryTypes = []EntryType{
	EntryStandard,
	EntryDeMinimis,
	EntryAssemblyReturn,
	EntryTemporaryExportReturn,
}

// MaterialKind names a material or content kind declared in a shipment's
// composition. DomesticContent is a content kind, not a material: it names
// the share of value originating in the destination country.
type MaterialKind string

const (
	MaterialSteel    MaterialKind = "steel"
	MaterialAluminum MaterialKind = "aluminum"
	MaterialCopper   MaterialKind = "copper"
	MaterialLumber   MaterialKind = "lumber"
	DomesticContent  MaterialKind = "domestic_content"
)

// IsMaterial reports whether k is a physical material kind (as opposed to
// the domestic-content marker).
func (k MaterialKind) IsMaterial() bool {
	return k != DomesticContent
}

// ExclusionClaim is a claimed exclusion code with optional supporting facts.
// Quantity carries the shipment quantity counted against a quantity-capped
// exclusion; zero means the claim asserts no quantity.
type ExclusionClaim struct {
	Code     string            `json:"code" yaml:"code"`
	Quantity decimal.Decimal   `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Facts    map[string]string `json:"facts,omitempty" yaml:"facts,omitempty"`
}

// ShipmentDescriptor is the immutable input to one duty computation.
type ShipmentDescriptor struct {
	HSCode             string                          `json:"hs_code" yaml:"hs_code"`
	OriginCountry      string                          `json:"origin_country" yaml:"origin_country"`
	DestinationCountry string                          `json:"destination_country" yaml:"destination_country"`
	DeclaredValue      decimal.Decimal                 `json:"declared_value" yaml:"declared_value"`
	EntryDate          time.Time                       `json:"entry_date" yaml:"entry_date"`
	EntryType          EntryType                       `json:"entry_type" yaml:"entry_type"`
	Composition        map[MaterialKind]decimal.Decimal `json:"composition,omitempty" yaml:"composition,omitempty"`
	MaterialOrigin     map[MaterialKind]string         `json:"material_origin,omitempty" yaml:"material_origin,omitempty"`

	// TradeAgreementQualified records declared regional-agreement preference
	// qualification (regional-value-content threshold met).
	TradeAgreementQualified bool `json:"trade_agreement_qualified" yaml:"trade_agreement_qualified"`

	// MFNRate is the declared column-1 (MFN) ad-valorem rate for this HS
	// code, as a fraction. Required when an applicable authority adjusts
	// its rate against the MFN rate; otherwise ignored.
	MFNRate *decimal.Decimal `json:"mfn_rate,omitempty" yaml:"mfn_rate,omitempty"`

	ExclusionClaims []ExclusionClaim `json:"exclusion_claims,omitempty" yaml:"exclusion_claims,omitempty"`
}

// MaterialPercentSum returns the sum of declared material percentages,
// excluding the domestic-content kind.
func (d *ShipmentDescriptor) MaterialPercentSum() decimal.Decimal {
	sum := decimal.Zero
	for kind, pct := range d.Composition {
		if kind.IsMaterial() {
			sum = sum.Add(pct)
		}
	}
	return sum
}

// DomesticContentPercent returns the declared domestic-content share, or zero.
func (d *ShipmentDescriptor) DomesticContentPercent() decimal.Decimal {
	if pct, ok := d.Composition[DomesticContent]; ok {
		return pct
	}
	return decimal.Zero
}

// ClaimFor returns the first claim matching code, or nil.
func (d *ShipmentDescriptor) ClaimFor(code string) *ExclusionClaim {
	for i := range d.ExclusionClaims {
		if d.ExclusionClaims[i].Code == code {
			return &d.ExclusionClaims[i]
		}
	}
	return nil
}

// UsageSnapshot maps an exclusion code to the cumulative quantity already
// consumed against its cap. The engine only reads it; the caller owns the
// bookkeeping that produces it.
type UsageSnapshot map[string]decimal.Decimal

// Used returns the recorded usage for code, or zero.
func (s UsageSnapshot) Used(code string) decimal.Decimal {
	if s == nil {
		return decimal.Zero
	}
	if v, ok := s[code]; ok {
		return v
	}
	return decimal.Zero
}
