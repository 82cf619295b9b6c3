package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearway-trade/tariff-cli/internal/usage"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Manage the exclusion usage ledger",
	Long:  "Records and inspects cumulative consumption against quantity-capped exclusion codes. The ledger is the caller's bookkeeping; computations only read it.",
}

var (
	usageRecordEntry string
	usageEventsLimit int
)

var usageRecordCmd = &cobra.Command{
	Use:   "record <code> <quantity>",
	Short: "Record a consumption event against an exclusion code",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		quantity, err := decimal.NewFromString(args[1])
		if err != nil {
			return eris.Wrapf(err, "usage: parse quantity %q", args[1])
		}

		ledger, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer ledger.Close() //nolint:errcheck

		ev, err := ledger.Record(ctx, args[0], usageRecordEntry, quantity)
		if err != nil {
			return err
		}

		zap.L().Info("usage: recorded",
			zap.String("id", ev.ID),
			zap.String("code", ev.ExclusionCode),
			zap.String("quantity", ev.Quantity.String()),
		)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", ev.ID)
		return nil
	},
}

var usageSnapshotCmd = &cobra.Command{
	Use:   "snapshot <code>...",
	Short: "Show cumulative consumption for exclusion codes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ledger, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer ledger.Close() //nolint:errcheck

		snap, err := ledger.Snapshot(ctx, args)
		if err != nil {
			return err
		}

		for _, code := range args {
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", code, snap.Used(code).String())
		}
		return nil
	},
}

var usageEventsCmd = &cobra.Command{
	Use:   "events <code>",
	Short: "List recorded consumption events for a code, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ledger, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer ledger.Close() //nolint:errcheck

		events, err := ledger.Events(ctx, args[0], usageEventsLimit)
		if err != nil {
			return err
		}

		for _, ev := range events {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-12s %-16s %s\n",
				ev.RecordedAt.Format("2006-01-02 15:04:05"), ev.Quantity.String(), ev.EntryRef, ev.ID)
		}
		return nil
	},
}

var usageImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Bulk-load consumption events from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "usage: read %s", args[0])
		}
		var events []usage.ConsumptionEvent
		if err := json.Unmarshal(data, &events); err != nil {
			return eris.Wrapf(err, "usage: parse %s", args[0])
		}

		ledger, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer ledger.Close() //nolint:errcheck

		// The postgres backend bulk-loads via COPY; other backends insert
		// event by event.
		if pg, ok := ledger.(*usage.PostgresLedger); ok {
			n, err := pg.ImportEvents(ctx, events)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d events\n", n)
			return nil
		}

		for _, ev := range events {
			if _, err := ledger.Record(ctx, ev.ExclusionCode, ev.EntryRef, ev.Quantity); err != nil {
				return eris.Wrapf(err, "usage: import event for %s", ev.ExclusionCode)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d events\n", len(events))
		return nil
	},
}

func init() {
	usageRecordCmd.Flags().StringVar(&usageRecordEntry, "entry", "", "customs entry reference for the event")
	usageEventsCmd.Flags().IntVar(&usageEventsLimit, "limit", 100, "max events to list")

	usageCmd.AddCommand(usageRecordCmd)
	usageCmd.AddCommand(usageSnapshotCmd)
	usageCmd.AddCommand(usageEventsCmd)
	usageCmd.AddCommand(usageImportCmd)
	rootCmd.AddCommand(usageCmd)
}
