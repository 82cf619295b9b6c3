package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearway-trade/tariff-cli/pkg/ratefeed"
)

var ratesJSON bool

var ratesCmd = &cobra.Command{
	Use:   "rates <query>",
	Short: "Search the published tariff schedule for headline rates",
	Long:  "Looks up HTS entries from the public schedule feed. Results are advisory reference data; they never feed a duty computation.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		client := ratefeed.NewClient(
			ratefeed.WithBaseURL(cfg.RateFeed.BaseURL),
			ratefeed.WithHTTPClient(&http.Client{
				Timeout: time.Duration(cfg.RateFeed.TimeoutSecs) * time.Second,
			}),
			ratefeed.WithRequestsPerSec(cfg.RateFeed.RequestsPerSec),
		)

		entries, err := client.Search(cmd.Context(), query)
		if err != nil {
			return err
		}

		zap.L().Debug("rates: feed search",
			zap.String("query", query),
			zap.Int("results", len(entries)),
		)

		if ratesJSON {
			return writeJSON(cmd, entries)
		}

		for _, e := range entries {
			if e.HTSNumber == "" {
				// Heading rows carry description only.
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %s\n", "", e.Description)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %-60s general=%s special=%s\n",
				e.HTSNumber, truncate(e.Description, 60), orDash(e.General), orDash(e.Special))
		}
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func init() {
	ratesCmd.Flags().BoolVar(&ratesJSON, "json", false, "emit results as JSON")
	rootCmd.AddCommand(ratesCmd)
}
