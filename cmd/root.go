package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearway-trade/tariff-cli/internal/catalog"
	"github.com/clearway-trade/tariff-cli/internal/config"
	"github.com/clearway-trade/tariff-cli/internal/usage"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tariff",
	Short: "Tariff stacking and rate resolution engine",
	Long:  "Computes stacked import duties for a shipment: resolves per-authority rates, splits declared value into dutiable portions, evaluates exemptions and exclusions, and reports an auditable per-authority breakdown.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// initCatalog loads the configured rule catalog, falling back to the
// embedded default when no path is set.
func initCatalog() (*catalog.Catalog, error) {
	return catalog.LoadFile(cfg.Catalog.Path)
}

// initLedger opens the configured usage ledger and runs migrations.
func initLedger(ctx context.Context) (usage.Ledger, error) {
	l, err := usage.Open(ctx, usage.Config{
		Driver:      cfg.Ledger.Driver,
		DatabaseURL: cfg.Ledger.DatabaseURL,
		Path:        cfg.Ledger.Path,
	})
	if err != nil {
		return nil, err
	}
	if err := l.Migrate(ctx); err != nil {
		l.Close() //nolint:errcheck
		return nil, err
	}
	return l, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
