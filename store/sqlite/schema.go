package sqlite

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warp/cabinet-estimator/catalog"
)

// sentinelSortOrder keeps Uncategorized after everything else even for
// readers that sort by sort_order alone.
const sentinelSortOrder = 9999

var tables = []struct {
	name string
	ddl  string
}{
	{"customers", `
	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		phone TEXT,
		email TEXT
	)`},
	{"categories", `
	CREATE TABLE IF NOT EXISTS categories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		sort_order INTEGER
	)`},
	{"pricelist", `
	CREATE TABLE IF NOT EXISTS pricelist (
		id INTEGER PRIMARY KEY,
		item_name TEXT NOT NULL,
		unit_price REAL NOT NULL,
		sort_order INTEGER,
		category_id INTEGER,
		FOREIGN KEY (category_id) REFERENCES categories(id)
	)`},
	{"estimate_jobs", `
	CREATE TABLE IF NOT EXISTS estimate_jobs (
		job_id INTEGER PRIMARY KEY,
		customer_id INTEGER,
		job_name TEXT,
		estimate_date TEXT,
		total_amount REAL,
		install_total REAL,
		markup_percent REAL,
		misc_charge REAL,
		FOREIGN KEY (customer_id) REFERENCES customers(id)
	)`},
	{"estimate_line_items", `
	CREATE TABLE IF NOT EXISTS estimate_line_items (
		item_id INTEGER PRIMARY KEY,
		job_id INTEGER,
		item_name TEXT,
		category_name TEXT,
		quantity INTEGER,
		unit_price REAL,
		line_total REAL,
		FOREIGN KEY (job_id) REFERENCES estimate_jobs(job_id)
	)`},
	{"settings", `
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT
	)`},
}

// Columns added after the first release. Older databases get them on open.
var additiveColumns = []struct {
	table, column, typ string
}{
	{"estimate_jobs", "install_qty", "REAL"},
	{"estimate_jobs", "install_unit_price", "REAL"},
	{"estimate_line_items", "pricelist_id", "INTEGER"},
	{"estimate_line_items", "line_kind", "TEXT"},
}

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_pricelist_category ON pricelist(category_id, sort_order)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_customer ON estimate_jobs(customer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_date ON estimate_jobs(estimate_date DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_lines_job ON estimate_line_items(job_id, item_id)`,
}

// EnsureSchema brings any database (new, legacy or current) to the current
// schema. Safe to call on every start.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return ensureSchema(ctx, tx)
	})
}

func ensureSchema(ctx context.Context, tx *sqlx.Tx) error {
	for _, t := range tables {
		exists, err := tableExists(ctx, tx, t.name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := tx.ExecContext(ctx, t.ddl); err != nil {
			return errors.Wrapf(err, "create table %s", t.name)
		}
		log.WithField("table", t.name).Info("created table")
	}

	for _, c := range additiveColumns {
		if _, err := ensureColumn(ctx, tx, c.table, c.column, c.typ); err != nil {
			return err
		}
	}

	for _, ddl := range indexes {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return errors.Wrap(err, "create index")
		}
	}

	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO categories (name, sort_order) VALUES (?, ?)`,
		catalog.UncategorizedName, sentinelSortOrder)
	if err != nil {
		return errors.Wrap(err, "seed Uncategorized category")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.Info("seeded Uncategorized category")
	}

	// Older versions deleted estimates without their lines.
	res, err = tx.ExecContext(ctx,
		`DELETE FROM estimate_line_items
		 WHERE job_id IS NULL OR job_id NOT IN (SELECT job_id FROM estimate_jobs)`)
	if err != nil {
		return errors.Wrap(err, "purge orphaned line items")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		log.WithField("rows", n).Warn("purged orphaned estimate line items")
	}
	return nil
}

// EnsureColumn adds column to table when missing. It never drops or renames
// anything. Reports whether the column was added.
func (s *Store) EnsureColumn(ctx context.Context, table, column, typ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var added bool
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		added, err = ensureColumn(ctx, tx, table, column, typ)
		return err
	})
	return added, err
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
var columnType = regexp.MustCompile(`^[A-Za-z]+( [A-Za-z]+)*$`)

type columnInfo struct {
	CID        int     `db:"cid"`
	Name       string  `db:"name"`
	Type       string  `db:"type"`
	NotNull    int     `db:"notnull"`
	Default    *string `db:"dflt_value"`
	PrimaryKey int     `db:"pk"`
}

func ensureColumn(ctx context.Context, tx *sqlx.Tx, table, column, typ string) (bool, error) {
	if !identifier.MatchString(table) || !identifier.MatchString(column) {
		return false, fmt.Errorf("invalid identifier %q.%q", table, column)
	}
	if !columnType.MatchString(typ) {
		return false, fmt.Errorf("invalid column type %q", typ)
	}

	cols, err := tableColumns(ctx, tx, table)
	if err != nil {
		return false, err
	}
	if len(cols) == 0 {
		return false, fmt.Errorf("table %s does not exist", table)
	}
	for _, c := range cols {
		if c.Name == column {
			return false, nil
		}
	}

	ddl := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typ)
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return false, errors.Wrapf(err, "add column %s.%s", table, column)
	}
	log.WithFields(log.Fields{"table": table, "column": column, "type": typ}).Info("added column")
	return true, nil
}

func tableColumns(ctx context.Context, q sqlx.QueryerContext, table string) ([]columnInfo, error) {
	var cols []columnInfo
	if err := sqlx.SelectContext(ctx, q, &cols, fmt.Sprintf("PRAGMA table_info(%s)", table)); err != nil {
		return nil, errors.Wrapf(err, "inspect table %s", table)
	}
	return cols, nil
}

func tableExists(ctx context.Context, q sqlx.QueryerContext, table string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, table)
	if err != nil {
		return false, errors.Wrapf(err, "look up table %s", table)
	}
	return n > 0, nil
}

// Columns returns the column names of table in definition order.
func (s *Store) Columns(ctx context.Context, table string) ([]string, error) {
	if !identifier.MatchString(table) {
		return nil, fmt.Errorf("invalid identifier %q", table)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	cols, err := tableColumns(ctx, s.db, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}
