// Package usage persists the consumption ledger for quantity-capped
// exclusions. Every honored claim against a capped exclusion is recorded as
// an immutable event; the engine receives the aggregated totals as a
// read-only snapshot and never writes here itself.
package usage

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/clearway-trade/tariff-cli/internal/model"
)

// ConsumptionEvent is one recorded draw against a quantity-capped exclusion.
type ConsumptionEvent struct {
	ID            string          `json:"id"`
	ExclusionCode string          `json:"exclusion_code"`
	EntryRef      string          `json:"entry_ref"`
	Quantity      decimal.Decimal `json:"quantity"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

// Ledger is the persistence interface for exclusion usage.
type Ledger interface {
	// Record appends a consumption event and returns it with its assigned id.
	Record(ctx context.Context, code, entryRef string, quantity decimal.Decimal) (*ConsumptionEvent, error)

	// Snapshot aggregates cumulative consumption for the given codes. Codes
	// with no recorded events are absent from the snapshot.
	Snapshot(ctx context.Context, codes []string) (model.UsageSnapshot, error)

	// Events lists recorded events for one code, newest first.
	Events(ctx context.Context, code string, limit int) ([]ConsumptionEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a ledger backend.
type Config struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// Open builds the configured ledger backend. The sqlite driver is the
// default so single-user installs work with no external database.
func Open(ctx context.Context, cfg Config) (Ledger, error) {
	switch cfg.Driver {
	case "", "sqlite":
		path := cfg.Path
		if path == "" {
			path = "tariff-usage.db"
		}
		return NewSQLite(path)
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, eris.New("usage: postgres driver requires database_url")
		}
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("usage: unknown driver %q", cfg.Driver)
	}
}
