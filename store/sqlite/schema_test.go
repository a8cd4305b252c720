package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func countRows(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.Get(&n, query, args...))
	return n
}

// legacySchema is the layout written by the first release: no install
// qty/unit price, no item references on lines.
const legacySchema = `
	CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, address TEXT, phone TEXT, email TEXT);
	CREATE TABLE categories (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE, sort_order INTEGER);
	CREATE TABLE pricelist (id INTEGER PRIMARY KEY, item_name TEXT NOT NULL, unit_price REAL NOT NULL,
		sort_order INTEGER, category_id INTEGER);
	CREATE TABLE estimate_jobs (job_id INTEGER PRIMARY KEY, customer_id INTEGER, job_name TEXT,
		estimate_date TEXT, total_amount REAL, install_total REAL, markup_percent REAL, misc_charge REAL);
	CREATE TABLE estimate_line_items (item_id INTEGER PRIMARY KEY, job_id INTEGER, item_name TEXT,
		category_name TEXT, quantity INTEGER, unit_price REAL, line_total REAL);
	CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT);

	INSERT INTO customers (id, name, address) VALUES (1, 'Grace Hopper', NULL);
	INSERT INTO categories (id, name, sort_order) VALUES (1, 'Uncategorized', 9999), (2, 'Cabinets', 1);
	INSERT INTO pricelist (item_name, unit_price, sort_order, category_id) VALUES ('Base 24in', 210.0, 1, 2);
	INSERT INTO estimate_jobs VALUES (7, 1, 'Old kitchen', '2023-05-01 10:15', 740.0, 320.0, 0, 0);
	INSERT INTO estimate_line_items (job_id, item_name, category_name, quantity, unit_price, line_total)
		VALUES (7, 'Base 24in', 'Cabinets', 2, 210.0, 420.0),
		       (7, 'Haul away', 'Write-in', 1, 0.0, 0.0),
		       (99, 'Orphan', 'Cabinets', 1, 5.0, 5.0);
`

func writeLegacyDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sqlx.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(legacySchema)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	return path
}

// =============================================================================
// TESTS
// =============================================================================

func TestEnsureSchema_FreshDatabase(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cats, err := store.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.True(t, cats[0].IsSentinel())

	cols, err := store.Columns(ctx, "estimate_jobs")
	require.NoError(t, err)
	assert.Contains(t, cols, "install_qty")
	assert.Contains(t, cols, "install_unit_price")
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))

	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM categories WHERE name = 'Uncategorized'`))
}

func TestEnsureColumn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	added, err := store.EnsureColumn(ctx, "customers", "notes", "TEXT")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.EnsureColumn(ctx, "customers", "notes", "TEXT")
	require.NoError(t, err)
	assert.False(t, added)

	_, err = store.EnsureColumn(ctx, "customers; DROP TABLE customers", "x", "TEXT")
	assert.Error(t, err)

	_, err = store.EnsureColumn(ctx, "no_such_table", "x", "TEXT")
	assert.Error(t, err)
}

func TestEnsureSchema_MigratesLegacyDatabase(t *testing.T) {
	// GIVEN: a database written by the first release
	path := writeLegacyDB(t)

	// WHEN: opened by the current version
	store, err := New(path)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	// THEN: new columns exist, old data is intact, orphan lines are gone
	cols, err := store.Columns(ctx, "estimate_line_items")
	require.NoError(t, err)
	assert.Contains(t, cols, "pricelist_id")
	assert.Contains(t, cols, "line_kind")

	assert.Equal(t, 1, countRows(t, store, `SELECT COUNT(*) FROM categories WHERE name = 'Uncategorized'`))
	assert.Equal(t, 0, countRows(t, store, `SELECT COUNT(*) FROM estimate_line_items WHERE job_id = 99`))

	job, err := store.GetJob(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "Grace Hopper", job.CustomerName)
	assert.Equal(t, "1", job.Adjustments.InstallQty.String())
	assert.Equal(t, "320", job.Adjustments.InstallUnitPrice.String())
	require.Len(t, job.Lines, 2)
	assert.Equal(t, "catalog", string(job.Lines[0].Kind))
	assert.Equal(t, int64(0), job.Lines[0].ItemID)
	assert.True(t, job.Lines[1].IsWriteIn())
	assert.Equal(t, 2023, job.EstimateDate.Year())
}
