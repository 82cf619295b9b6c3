package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/clearway-trade/tariff-cli/internal/engine"
	"github.com/clearway-trade/tariff-cli/internal/model"
)

var (
	batchInput       string
	batchLimit       int
	batchConcurrency int
)

// batchRecord pairs one shipment's result (or failure) with its position in
// the input file.
type batchRecord struct {
	Index  int                      `json:"index"`
	Result *model.CalculationResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Compute stacked duties for a file of shipments",
	Long:  "Reads a list of shipment descriptors and computes each concurrently, emitting one JSON record per shipment in input order. Individual failures are reported inline and do not abort the batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shipments, err := loadShipments(batchInput)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(shipments) > batchLimit {
			shipments = shipments[:batchLimit]
		}
		if len(shipments) == 0 {
			zap.L().Info("batch: no shipments in input")
			return nil
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

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentShipments
		}

		zap.L().Info("batch: processing",
			zap.Int("shipments", len(shipments)),
			zap.Int("concurrency", concurrency),
		)

		records := make([]batchRecord, len(shipments))
		var succeeded, failed atomic.Int64

		// Ledger snapshots go through one mutex; the sqlite backend allows a
		// single writer and cheap reads don't merit per-backend tuning here.
		var snapMu sync.Mutex

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		for i := range shipments {
			d := &shipments[i]
			g.Go(func() error {
				rules := cat.Lookup(d.HSCode, d.OriginCountry, d.DestinationCountry, d.EntryDate)

				snapMu.Lock()
				snapshot, err := snapshotForClaims(gctx, ledger, d, rules)
				snapMu.Unlock()
				if err == nil {
					var result *model.CalculationResult
					result, err = engine.Compute(d, rules, snapshot)
					if err == nil {
						records[i] = batchRecord{Index: i, Result: result}
						succeeded.Add(1)
						return nil
					}
				}

				failed.Add(1)
				records[i] = batchRecord{Index: i, Error: err.Error()}
				zap.L().Error("batch: shipment failed",
					zap.Int("index", i),
					zap.String("hs_code", d.HSCode),
					zap.Error(err),
				)
				return nil // individual failure does not abort the batch
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "batch: processing")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return eris.Wrap(err, "batch: encode record")
			}
		}

		zap.L().Info("batch: complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVarP(&batchInput, "input", "i", "", "shipments file (yaml or json list)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of shipments to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "concurrent computations (default from config)")
	batchCmd.MarkFlagRequired("input") //nolint:errcheck
	rootCmd.AddCommand(batchCmd)
}

func loadShipments(path string) ([]model.ShipmentDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read %s", path)
	}

	var shipments []model.ShipmentDescriptor
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &shipments)
	default:
		err = json.Unmarshal(data, &shipments)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "batch: parse %s", path)
	}
	return shipments, nil
}
