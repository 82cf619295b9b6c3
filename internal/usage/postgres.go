package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/clearway-trade/tariff-cli/internal/db"
	"github.com/clearway-trade/tariff-cli/internal/model"
)

// PostgresLedger implements Ledger using pgxpool.
type PostgresLedger struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for the
// hot path of snapshot reads before every computation.
var preparedStatements = map[string]string{
	"insert_event":   `INSERT INTO usage_events (id, exclusion_code, entry_ref, quantity, recorded_at) VALUES ($1, $2, $3, $4, $5)`,
	"snapshot_codes": `SELECT exclusion_code, SUM(quantity)::text FROM usage_events WHERE exclusion_code = ANY($1) GROUP BY exclusion_code`,
	"list_events":    `SELECT id, exclusion_code, entry_ref, quantity::text, recorded_at FROM usage_events WHERE exclusion_code = $1 ORDER BY recorded_at DESC LIMIT $2`,
}

// NewPostgres creates a PostgresLedger with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresLedger, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "usage: postgres parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "usage: postgres prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "usage: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "usage: postgres ping")
	}
	return &PostgresLedger{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS usage_events (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	exclusion_code TEXT NOT NULL,
	entry_ref      TEXT NOT NULL,
	quantity       NUMERIC NOT NULL CHECK (quantity >= 0),
	recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_usage_events_code ON usage_events(exclusion_code);
CREATE INDEX IF NOT EXISTS idx_usage_events_recorded_at ON usage_events(recorded_at);
`

func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "usage: postgres migrate")
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

func (l *PostgresLedger) Record(ctx context.Context, code, entryRef string, quantity decimal.Decimal) (*ConsumptionEvent, error) {
	if quantity.IsNegative() {
		return nil, eris.Errorf("usage: negative quantity %s for %s", quantity, code)
	}

	ev := &ConsumptionEvent{
		ID:            uuid.New().String(),
		ExclusionCode: code,
		EntryRef:      entryRef,
		Quantity:      quantity,
		RecordedAt:    time.Now().UTC(),
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO usage_events (id, exclusion_code, entry_ref, quantity, recorded_at) VALUES ($1, $2, $3, $4, $5)`,
		ev.ID, ev.ExclusionCode, ev.EntryRef, ev.Quantity.String(), ev.RecordedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "usage: postgres insert event %s", code)
	}
	return ev, nil
}

func (l *PostgresLedger) Snapshot(ctx context.Context, codes []string) (model.UsageSnapshot, error) {
	snapshot := make(model.UsageSnapshot)
	if len(codes) == 0 {
		return snapshot, nil
	}

	rows, err := l.pool.Query(ctx,
		`SELECT exclusion_code, SUM(quantity)::text FROM usage_events WHERE exclusion_code = ANY($1) GROUP BY exclusion_code`,
		codes,
	)
	if err != nil {
		return nil, eris.Wrap(err, "usage: postgres query snapshot")
	}
	defer rows.Close()

	for rows.Next() {
		var code, total string
		if err := rows.Scan(&code, &total); err != nil {
			return nil, eris.Wrap(err, "usage: postgres scan snapshot")
		}
		d, err := decimal.NewFromString(total)
		if err != nil {
			return nil, eris.Wrapf(err, "usage: postgres bad total %q for %s", total, code)
		}
		snapshot[code] = d
	}
	return snapshot, eris.Wrap(rows.Err(), "usage: postgres iterate snapshot")
}

func (l *PostgresLedger) Events(ctx context.Context, code string, limit int) ([]ConsumptionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, exclusion_code, entry_ref, quantity::text, recorded_at FROM usage_events WHERE exclusion_code = $1 ORDER BY recorded_at DESC LIMIT $2`,
		code, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "usage: postgres list events %s", code)
	}
	defer rows.Close()

	var events []ConsumptionEvent
	for rows.Next() {
		var ev ConsumptionEvent
		var q string
		if err := rows.Scan(&ev.ID, &ev.ExclusionCode, &ev.EntryRef, &q, &ev.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "usage: postgres scan event")
		}
		ev.Quantity, err = decimal.NewFromString(q)
		if err != nil {
			return nil, eris.Wrapf(err, "usage: postgres bad quantity %q", q)
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "usage: postgres iterate events")
}

// ImportEvents bulk-loads consumption events via COPY, used by the usage
// import command to seed a ledger from an exported event file.
func (l *PostgresLedger) ImportEvents(ctx context.Context, events []ConsumptionEvent) (int64, error) {
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		id := ev.ID
		if id == "" {
			id = uuid.New().String()
		}
		recordedAt := ev.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now().UTC()
		}
		rows = append(rows, []any{id, ev.ExclusionCode, ev.EntryRef, ev.Quantity.String(), recordedAt})
	}
	n, err := db.CopyFrom(ctx, l.pool, "usage_events",
		[]string{"id", "exclusion_code", "entry_ref", "quantity", "recorded_at"}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "usage: postgres import events")
	}
	return n, nil
}
