/*
Package sqlite provides the SQLite-backed persistence of the estimator.

PURPOSE:
  One Store implements every persistence concern: schema migration, the
  catalog (customers, categories, price list), estimates, settings,
  price-list replacement and backup/restore.

INTERFACES IMPLEMENTED:
  estimate.Repository:  GetJob + WithTx (header upsert, line replacement)
  estimate.PriceLookup: LookupItem
  settings.KV:          GetSetting / SetSetting

KEY TABLES:
  customers:           Clients
  categories:          Price-list groups, "Uncategorized" always present
  pricelist:           Items, ordered within their category
  estimate_jobs:       Estimate headers with a grand-total snapshot
  estimate_line_items: Lines, in insertion order per job
  settings:            key/value preferences

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single pooled connection, so an
  in-memory database is shared by every call and writes are serialized.

ATOMICITY:
  Every multi-statement write (cascading deletes, re-categorization,
  estimate save, price-list import) runs in one transaction and rolls back
  in full on any error.

USAGE:
  store, err := sqlite.New("./estimator.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is migrated on New() by EnsureSchema: CREATE IF NOT EXISTS plus
  additive columns. Databases written by older versions open unchanged.

SEE ALSO:
  - schema.go: EnsureSchema, EnsureColumn
  - catalog.go: Customers, categories, price items
  - estimates.go: Estimate persistence
  - backup.go: Backup and restore
*/
package sqlite

import (
	"context"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db   *sqlx.DB
	path string
	mu   sync.RWMutex
}

// New opens (creating if needed) the database at dbPath and migrates it.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db, path: dbPath}
	if err := store.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate database")
	}

	log.WithField("path", dbPath).Debug("database ready")
	return store, nil
}

func open(dbPath string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "open database %s", dbPath)
	}
	return db, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// inTx runs fn in a database transaction. Callers hold s.mu.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// Helper functions

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// likePattern builds a case-insensitive substring pattern for LIKE.
func likePattern(term string) string {
	term = strings.TrimSpace(term)
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}
