package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/clearway-trade/tariff-cli/internal/engine"
	"github.com/clearway-trade/tariff-cli/internal/model"
	"github.com/clearway-trade/tariff-cli/internal/usage"
)

var (
	computeInput     string
	computeJSON      bool
	computeHS        string
	computeOrigin    string
	computeDest      string
	computeValue     string
	computeDate      string
	computeEntryType string
	computeMaterials []string
	computeMatOrigin []string
	computeUSMCA     bool
	computeMFNRate   string
	computeClaims    []string
)

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute stacked duties for a single shipment",
	Long:  "Reads a shipment descriptor from a file or from flags, resolves the applicable authorities, and prints the per-authority duty breakdown.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		d, err := shipmentFromFlags()
		if err != nil {
			return err
		}

		cat, err := initCatalog()
		if err != nil {
			return err
		}

		ledger, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer ledger.Close() //nolint:errcheck

		rules := cat.Lookup(d.HSCode, d.OriginCountry, d.DestinationCountry, d.EntryDate)

		snapshot, err := snapshotForClaims(ctx, ledger, d, rules)
		if err != nil {
			return err
		}

		result, err := engine.Compute(d, rules, snapshot)
		if err != nil {
			return err
		}

		if computeJSON {
			return writeJSON(cmd, result)
		}
		renderResult(cmd, result)
		return nil
	},
}

func init() {
	computeCmd.Flags().StringVarP(&computeInput, "input", "i", "", "shipment descriptor file (yaml or json)")
	computeCmd.Flags().BoolVar(&computeJSON, "json", false, "emit the result as JSON")
	computeCmd.Flags().StringVar(&computeHS, "hs", "", "HS code (e.g. 7208.10.00.00)")
	computeCmd.Flags().StringVar(&computeOrigin, "origin", "", "origin country (ISO 3166-1 alpha-2)")
	computeCmd.Flags().StringVar(&computeDest, "destination", "US", "destination country")
	computeCmd.Flags().StringVar(&computeValue, "value", "", "declared customs value")
	computeCmd.Flags().StringVar(&computeDate, "entry-date", "", "entry date (YYYY-MM-DD, default today)")
	computeCmd.Flags().StringVar(&computeEntryType, "entry-type", string(model.EntryStandard), "entry type")
	computeCmd.Flags().StringArrayVar(&computeMaterials, "material", nil, "material share, e.g. steel=60 (repeatable; domestic_content counts US-origin value)")
	computeCmd.Flags().StringArrayVar(&computeMatOrigin, "material-origin", nil, "material origin, e.g. steel=US (repeatable)")
	computeCmd.Flags().BoolVar(&computeUSMCA, "usmca", false, "shipment qualifies for USMCA preference")
	computeCmd.Flags().StringVar(&computeMFNRate, "mfn-rate", "", "declared column-1 (MFN) ad-valorem rate as a fraction, e.g. 0.025")
	computeCmd.Flags().StringArrayVar(&computeClaims, "claim", nil, "claimed exclusion code, e.g. 9903.88.69 or 9903.80.60=1200 (repeatable, =qty for capped codes)")
	rootCmd.AddCommand(computeCmd)
}

// shipmentFromFlags builds the descriptor from --input when given, otherwise
// from the individual flags.
func shipmentFromFlags() (*model.ShipmentDescriptor, error) {
	if computeInput != "" {
		return loadDescriptor(computeInput)
	}

	if computeHS == "" || computeOrigin == "" || computeValue == "" {
		return nil, eris.New("compute: --hs, --origin and --value are required without --input")
	}

	value, err := decimal.NewFromString(computeValue)
	if err != nil {
		return nil, eris.Wrapf(err, "compute: parse value %q", computeValue)
	}

	entryDate := time.Now().UTC().Truncate(24 * time.Hour)
	if computeDate != "" {
		entryDate, err = time.Parse("2006-01-02", computeDate)
		if err != nil {
			return nil, eris.Wrapf(err, "compute: parse entry date %q", computeDate)
		}
	}

	composition, err := parseMaterialShares(computeMaterials)
	if err != nil {
		return nil, err
	}
	matOrigin, err := parseMaterialOrigins(computeMatOrigin)
	if err != nil {
		return nil, err
	}
	claims, err := parseClaims(computeClaims)
	if err != nil {
		return nil, err
	}

	var mfnRate *decimal.Decimal
	if computeMFNRate != "" {
		r, err := decimal.NewFromString(computeMFNRate)
		if err != nil {
			return nil, eris.Wrapf(err, "compute: parse mfn rate %q", computeMFNRate)
		}
		mfnRate = &r
	}

	return &model.ShipmentDescriptor{
		HSCode:                  computeHS,
		OriginCountry:           strings.ToUpper(computeOrigin),
		DestinationCountry:      strings.ToUpper(computeDest),
		DeclaredValue:           value,
		EntryDate:               entryDate,
		EntryType:               model.EntryType(computeEntryType),
		Composition:             composition,
		MaterialOrigin:          matOrigin,
		TradeAgreementQualified: computeUSMCA,
		MFNRate:                 mfnRate,
		ExclusionClaims:         claims,
	}, nil
}

func loadDescriptor(path string) (*model.ShipmentDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "compute: read %s", path)
	}

	var d model.ShipmentDescriptor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &d)
	default:
		err = json.Unmarshal(data, &d)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "compute: parse %s", path)
	}
	return &d, nil
}

func parseMaterialShares(pairs []string) (map[model.MaterialKind]decimal.Decimal, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[model.MaterialKind]decimal.Decimal, len(pairs))
	for _, p := range pairs {
		kind, val, ok := strings.Cut(p, "=")
		if !ok {
			return nil, eris.Errorf("compute: malformed --material %q, want kind=percent", p)
		}
		pct, err := decimal.NewFromString(val)
		if err != nil {
			return nil, eris.Wrapf(err, "compute: parse material share %q", p)
		}
		out[model.MaterialKind(kind)] = pct
	}
	return out, nil
}

func parseMaterialOrigins(pairs []string) (map[model.MaterialKind]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[model.MaterialKind]string, len(pairs))
	for _, p := range pairs {
		kind, origin, ok := strings.Cut(p, "=")
		if !ok {
			return nil, eris.Errorf("compute: malformed --material-origin %q, want kind=country", p)
		}
		out[model.MaterialKind(kind)] = strings.ToUpper(origin)
	}
	return out, nil
}

func parseClaims(raw []string) ([]model.ExclusionClaim, error) {
	var claims []model.ExclusionClaim
	for _, r := range raw {
		code, qty, hasQty := strings.Cut(r, "=")
		claim := model.ExclusionClaim{Code: code}
		if hasQty {
			q, err := decimal.NewFromString(qty)
			if err != nil {
				return nil, eris.Wrapf(err, "compute: parse claim quantity %q", r)
			}
			claim.Quantity = q
		}
		claims = append(claims, claim)
	}
	return claims, nil
}

// snapshotForClaims fetches ledger usage for every quantity-capped exclusion
// the shipment claims, so cap checks see cumulative consumption.
func snapshotForClaims(ctx context.Context, ledger usage.Ledger, d *model.ShipmentDescriptor, rules []model.AuthorityRule) (model.UsageSnapshot, error) {
	var codes []string
	for _, rule := range rules {
		for _, rec := range rule.Exclusions {
			if rec.QuantityLimit == nil {
				continue
			}
			if d.ClaimFor(rec.Code) != nil {
				codes = append(codes, rec.Code)
			}
		}
	}
	if len(codes) == 0 {
		return nil, nil
	}
	snap, err := ledger.Snapshot(ctx, codes)
	if err != nil {
		return nil, eris.Wrap(err, "compute: usage snapshot")
	}
	return snap, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "compute: encode result")
}

func renderResult(cmd *cobra.Command, result *model.CalculationResult) {
	out := cmd.OutOrStdout()
	for _, line := range result.Lines {
		status := "applies"
		if line.Excluded {
			status = string(line.ReasonCode)
		}
		fmt.Fprintf(out, "%-18s %-32s rate=%-8s duty=%-12s %s\n",
			line.AuthorityID, line.DisplayName,
			line.MatchedRate.String(), line.ComputedAmount.StringFixed(2), status)
		if line.Reason != "" {
			fmt.Fprintf(out, "    %s\n", line.Reason)
		}
	}
	fmt.Fprintf(out, "\nbefore exclusions: %s\n", result.TotalBefore.StringFixed(2))
	fmt.Fprintf(out, "after exclusions:  %s\n", result.TotalAfter.StringFixed(2))
	fmt.Fprintf(out, "savings:           %s\n", result.Savings.StringFixed(2))
}
