package usage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/clearway-trade/tariff-cli/internal/model"
)

// SQLiteLedger implements Ledger using modernc.org/sqlite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite opens a SQLite ledger at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "usage: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "usage: sqlite exec %s", pragma)
		}
	}
	return &SQLiteLedger{db: db}, nil
}

// Quantities are stored as decimal strings and summed in Go; neither SQLite
// nor float64 arithmetic is allowed near a quantity cap.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS usage_events (
	id             TEXT PRIMARY KEY,
	exclusion_code TEXT NOT NULL,
	entry_ref      TEXT NOT NULL,
	quantity       TEXT NOT NULL,
	recorded_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_usage_events_code ON usage_events(exclusion_code);
CREATE INDEX IF NOT EXISTS idx_usage_events_recorded_at ON usage_events(recorded_at);
`

func (l *SQLiteLedger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "usage: sqlite migrate")
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) Record(ctx context.Context, code, entryRef string, quantity decimal.Decimal) (*ConsumptionEvent, error) {
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

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO usage_events (id, exclusion_code, entry_ref, quantity, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		ev.ID, ev.ExclusionCode, ev.EntryRef, ev.Quantity.String(), ev.RecordedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "usage: sqlite insert event %s", code)
	}
	return ev, nil
}

func (l *SQLiteLedger) Snapshot(ctx context.Context, codes []string) (model.UsageSnapshot, error) {
	snapshot := make(model.UsageSnapshot)
	for _, code := range codes {
		rows, err := l.db.QueryContext(ctx,
			`SELECT quantity FROM usage_events WHERE exclusion_code = ?`, code)
		if err != nil {
			return nil, eris.Wrapf(err, "usage: sqlite query snapshot %s", code)
		}

		total := decimal.Zero
		found := false
		for rows.Next() {
			var q string
			if err := rows.Scan(&q); err != nil {
				rows.Close()
				return nil, eris.Wrap(err, "usage: sqlite scan quantity")
			}
			d, err := decimal.NewFromString(q)
			if err != nil {
				rows.Close()
				return nil, eris.Wrapf(err, "usage: sqlite bad quantity %q for %s", q, code)
			}
			total = total.Add(d)
			found = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, eris.Wrapf(err, "usage: sqlite iterate snapshot %s", code)
		}
		rows.Close()

		if found {
			snapshot[code] = total
		}
	}
	return snapshot, nil
}

func (l *SQLiteLedger) Events(ctx context.Context, code string, limit int) ([]ConsumptionEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, exclusion_code, entry_ref, quantity, recorded_at FROM usage_events
		 WHERE exclusion_code = ? ORDER BY recorded_at DESC LIMIT ?`,
		code, limit,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "usage: sqlite list events %s", code)
	}
	defer rows.Close()

	var events []ConsumptionEvent
	for rows.Next() {
		var ev ConsumptionEvent
		var q string
		if err := rows.Scan(&ev.ID, &ev.ExclusionCode, &ev.EntryRef, &q, &ev.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "usage: sqlite scan event")
		}
		ev.Quantity, err = decimal.NewFromString(q)
		if err != nil {
			return nil, eris.Wrapf(err, "usage: sqlite bad quantity %q", q)
		}
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "usage: sqlite iterate events")
}
