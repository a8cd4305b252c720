package sqlite

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	// ErrInvalidBackup is returned when a restore source is not an estimator
	// database.
	ErrInvalidBackup = errors.New("file is not a valid estimator database")

	// ErrRestoreInMemory is returned when restoring into an in-memory store.
	ErrRestoreInMemory = errors.New("cannot restore into an in-memory database")

	// ErrLiveDatabase is returned when a backup destination or restore source
	// is the database file the store has open.
	ErrLiveDatabase = errors.New("file is the live database")
)

// Backup writes a consistent copy of the whole database to dest, replacing
// any existing file.
func (s *Store) Backup(ctx context.Context, dest string) error {
	if s.isLiveFile(dest) {
		return errors.Wrapf(ErrLiveDatabase, "back up to %s", dest)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "replace %s", dest)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		return errors.Wrapf(err, "back up to %s", dest)
	}
	log.WithField("dest", dest).Info("database backed up")
	return nil
}

// Restore replaces the live database with the backup at src and migrates it
// to the current schema.
func (s *Store) Restore(ctx context.Context, src string) error {
	if s.path == MemoryPath {
		return ErrRestoreInMemory
	}
	if s.isLiveFile(src) {
		return errors.Wrapf(ErrLiveDatabase, "restore from %s", src)
	}
	if err := verifyBackup(ctx, src); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "close database")
	}

	copyErr := replaceFile(src, s.path)

	db, err := open(s.path)
	if err != nil {
		return errors.Wrap(err, "reopen database")
	}
	s.db = db
	if copyErr != nil {
		return errors.Wrapf(copyErr, "restore from %s", src)
	}

	if err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return ensureSchema(ctx, tx)
	}); err != nil {
		return errors.Wrap(err, "migrate restored database")
	}

	log.WithField("src", src).Info("database restored")
	return nil
}

// isLiveFile reports whether path names the open database file or one of
// its WAL sidecars.
func (s *Store) isLiveFile(path string) bool {
	if s.path == MemoryPath {
		return false
	}
	for _, live := range []string{s.path, s.path + "-wal", s.path + "-shm"} {
		if sameFile(path, live) {
			return true
		}
	}
	return false
}

func sameFile(a, b string) bool {
	sa, errA := os.Stat(a)
	sb, errB := os.Stat(b)
	if errA == nil && errB == nil {
		return os.SameFile(sa, sb)
	}
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

func verifyBackup(ctx context.Context, src string) error {
	if _, err := os.Stat(src); err != nil {
		return errors.Wrapf(err, "open backup %s", src)
	}
	db, err := sqlx.Open("sqlite3", "file:"+src+"?mode=ro")
	if err != nil {
		return errors.Wrapf(err, "open backup %s", src)
	}
	defer db.Close()

	var check string
	if err := db.GetContext(ctx, &check, `PRAGMA quick_check`); err != nil || check != "ok" {
		return ErrInvalidBackup
	}
	for _, table := range []string{"customers", "pricelist"} {
		ok, err := tableExists(ctx, db, table)
		if err != nil || !ok {
			return ErrInvalidBackup
		}
	}
	return nil
}

// replaceFile copies src over dst through a temporary file in dst's
// directory and drops stale WAL files.
func replaceFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".restore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(dst + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s%s: %w", dst, suffix, err)
		}
	}
	return os.Rename(tmp.Name(), dst)
}
