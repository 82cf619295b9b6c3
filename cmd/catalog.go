package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/clearway-trade/tariff-cli/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect and validate rule catalogs",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a catalog document",
	Long:  "Parses and statically validates a catalog file. With no argument, validates the configured catalog (or the embedded default).",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Catalog.Path
		if len(args) == 1 {
			path = args[0]
		}
		cat, err := catalog.LoadFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "catalog %s: %d authorities, ok\n", cat.Version(), cat.Len())
		return nil
	},
}

var catalogShowCmd = &cobra.Command{
	Use:   "show [authority-id]",
	Short: "List catalog authorities",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := initCatalog()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			rule, ok := cat.Rule(args[0])
			if !ok {
				return eris.Errorf("catalog: no authority %q", args[0])
			}
			return writeJSON(cmd, rule)
		}

		for _, rule := range cat.All() {
			fmt.Fprintf(out, "%-18s p%-3d %-18s %-24s %s\n",
				rule.ID, rule.PrecedenceLevel, rule.Family, rule.AppliesTo.Kind, rule.DisplayName)
		}
		return nil
	},
}

var (
	candidatesOrigin string
	candidatesDest   string
	candidatesDate   string
)

var catalogCandidatesCmd = &cobra.Command{
	Use:   "candidates <hs-code>",
	Short: "List the authorities applicable to a shipment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := initCatalog()
		if err != nil {
			return err
		}

		entryDate := time.Now().UTC()
		if candidatesDate != "" {
			entryDate, err = time.Parse("2006-01-02", candidatesDate)
			if err != nil {
				return eris.Wrapf(err, "catalog: parse entry date %q", candidatesDate)
			}
		}

		rules := cat.Lookup(args[0], candidatesOrigin, candidatesDest, entryDate)
		if len(rules) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no applicable authorities")
			return nil
		}
		for _, rule := range rules {
			fmt.Fprintf(cmd.OutOrStdout(), "%-18s p%-3d %s\n", rule.ID, rule.PrecedenceLevel, rule.DisplayName)
		}
		return nil
	},
}

func init() {
	catalogCandidatesCmd.Flags().StringVar(&candidatesOrigin, "origin", "", "origin country")
	catalogCandidatesCmd.Flags().StringVar(&candidatesDest, "destination", "US", "destination country")
	catalogCandidatesCmd.Flags().StringVar(&candidatesDate, "entry-date", "", "entry date (YYYY-MM-DD, default today)")
	catalogCandidatesCmd.MarkFlagRequired("origin") //nolint:errcheck

	catalogCmd.AddCommand(catalogValidateCmd)
	catalogCmd.AddCommand(catalogShowCmd)
	catalogCmd.AddCommand(catalogCandidatesCmd)
	rootCmd.AddCommand(catalogCmd)
}
