package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearway-trade/tariff-cli/internal/catalog"
	"github.com/clearway-trade/tariff-cli/internal/engine"
	"github.com/clearway-trade/tariff-cli/internal/model"
	"github.com/clearway-trade/tariff-cli/internal/usage"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an HTTP server exposing duty computation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cat, err := initCatalog()
		if err != nil {
			return err
		}
		ledger, err := initLedger(ctx)
		if err != nil {
			return err
		}
		defer ledger.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(cat, ledger),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("catalog", cat.Version()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// snapMu serializes ledger snapshots taken by concurrent compute requests.
var serveSnapMu sync.Mutex

func newRouter(cat *catalog.Catalog, ledger usage.Ledger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeHTTPJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"catalog": cat.Version(),
		})
	})

	r.Get("/v1/catalog/authorities", func(w http.ResponseWriter, _ *http.Request) {
		writeHTTPJSON(w, http.StatusOK, cat.All())
	})

	r.Post("/v1/compute", func(w http.ResponseWriter, req *http.Request) {
		var desc model.ShipmentDescriptor
		if err := json.NewDecoder(req.Body).Decode(&desc); err != nil {
			writeHTTPError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rules := cat.Lookup(desc.HSCode, desc.OriginCountry, desc.DestinationCountry, desc.EntryDate)

		serveSnapMu.Lock()
		snap, err := snapshotForClaims(req.Context(), ledger, &desc, rules)
		serveSnapMu.Unlock()
		if err != nil {
			zap.L().Error("compute snapshot failed", zap.Error(err))
			writeHTTPError(w, http.StatusInternalServerError, "usage lookup failed")
			return
		}

		result, err := engine.Compute(&desc, rules, snap)
		if err != nil {
			var verr *engine.ValidationError
			if errors.As(err, &verr) {
				writeHTTPError(w, http.StatusBadRequest, verr.Error())
				return
			}
			zap.L().Error("compute failed",
				zap.String("hs_code", desc.HSCode),
				zap.Error(err),
			)
			writeHTTPError(w, http.StatusInternalServerError, "computation failed")
			return
		}

		writeHTTPJSON(w, http.StatusOK, result)
	})

	return r
}

func writeHTTPJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeHTTPError(w http.ResponseWriter, status int, msg string) {
	writeHTTPJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
