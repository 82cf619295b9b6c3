package usage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "usage.db")
	l, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() }) //nolint:errcheck
	require.NoError(t, l.Migrate(context.Background()))
	return l
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSQLite_RecordAndSnapshot(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	ev, err := l.Record(ctx, "9903.80.60", "ENTRY-001", dec("1200.5"))
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.RecordedAt.IsZero())

	_, err = l.Record(ctx, "9903.80.60", "ENTRY-002", dec("799.5"))
	require.NoError(t, err)
	_, err = l.Record(ctx, "9903.88.69", "ENTRY-003", dec("10"))
	require.NoError(t, err)

	snap, err := l.Snapshot(ctx, []string{"9903.80.60", "9903.88.69", "9903.88.70"})
	require.NoError(t, err)

	assert.True(t, snap["9903.80.60"].Equal(dec("2000")), "got %s", snap["9903.80.60"])
	assert.True(t, snap["9903.88.69"].Equal(dec("10")))
	_, present := snap["9903.88.70"]
	assert.False(t, present, "code with no events must be absent from the snapshot")
}

func TestSQLite_SnapshotEmpty(t *testing.T) {
	l := newTestSQLiteLedger(t)

	snap, err := l.Snapshot(context.Background(), []string{"9903.80.60"})
	require.NoError(t, err)
	assert.Empty(t, snap)
	assert.True(t, snap.Used("9903.80.60").IsZero())
}

func TestSQLite_RecordRejectsNegativeQuantity(t *testing.T) {
	l := newTestSQLiteLedger(t)

	_, err := l.Record(context.Background(), "9903.80.60", "ENTRY-001", dec("-5"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "negative quantity")
}

func TestSQLite_Events(t *testing.T) {
	l := newTestSQLiteLedger(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := l.Record(ctx, "9903.80.60", "ENTRY", dec("1"))
		require.NoError(t, err)
	}
	_, err := l.Record(ctx, "9903.88.69", "OTHER", dec("1"))
	require.NoError(t, err)

	events, err := l.Events(ctx, "9903.80.60", 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
	for _, ev := range events {
		assert.Equal(t, "9903.80.60", ev.ExclusionCode)
		assert.True(t, ev.Quantity.Equal(dec("1")))
	}

	events, err = l.Events(ctx, "no-such-code", 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestOpen_SelectsDriver(t *testing.T) {
	dir := t.TempDir()

	l, err := Open(context.Background(), Config{Driver: "sqlite", Path: filepath.Join(dir, "u.db")})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	_, err = Open(context.Background(), Config{Driver: "postgres"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")

	_, err = Open(context.Background(), Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
