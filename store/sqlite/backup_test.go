package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cabinet-estimator/catalog"
)

func newFileStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "estimator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	// GIVEN: a database with one customer, backed up
	_, err := store.SaveCustomer(ctx, catalog.Customer{Name: "Before"})
	require.NoError(t, err)
	dest := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, store.Backup(ctx, dest))

	// WHEN: more data is written and the backup is restored
	_, err = store.SaveCustomer(ctx, catalog.Customer{Name: "After"})
	require.NoError(t, err)
	require.NoError(t, store.Restore(ctx, dest))

	// THEN: the store serves the backed-up state
	customers, err := store.ListCustomers(ctx, "")
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Before", customers[0].Name)

	// and keeps working
	_, err = store.AddCategory(ctx, "Hardware")
	require.NoError(t, err)
}

func TestBackup_OverwritesExistingFile(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	dest := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o600))
	require.NoError(t, store.Backup(ctx, dest))

	restored, err := New(dest)
	require.NoError(t, err)
	defer restored.Close()
	cats, err := restored.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestRestore_RejectsInvalidSource(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()
	_, err := store.SaveCustomer(ctx, catalog.Customer{Name: "Keep"})
	require.NoError(t, err)

	junk := filepath.Join(t.TempDir(), "junk.db")
	require.NoError(t, os.WriteFile(junk, []byte("this is not a database"), 0o600))

	assert.ErrorIs(t, store.Restore(ctx, junk), ErrInvalidBackup)
	assert.Error(t, store.Restore(ctx, filepath.Join(t.TempDir(), "missing.db")))

	customers, err := store.ListCustomers(ctx, "")
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "Keep", customers[0].Name)
}

func TestRestore_MigratesLegacyBackup(t *testing.T) {
	store := newFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.Restore(ctx, writeLegacyDB(t)))

	job, err := store.GetJob(ctx, 7)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "320", job.Adjustments.InstallUnitPrice.String())
}

func TestRestore_InMemoryUnsupported(t *testing.T) {
	store := newTestStore(t)
	assert.ErrorIs(t, store.Restore(context.Background(), "whatever.db"), ErrRestoreInMemory)
}

func TestBackup_RefusesLiveDatabase(t *testing.T) {
	dir := t.TempDir()
	live := filepath.Join(dir, "live.db")
	store, err := New(live)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.SaveCustomer(ctx, catalog.Customer{Name: "Before"})
	require.NoError(t, err)

	// WHEN: the backup destination is the open database, under another spelling
	err = store.Backup(ctx, filepath.Join(dir, ".", "live.db"))

	// THEN: refused, and later writes still land in the live file
	assert.ErrorIs(t, err, ErrLiveDatabase)
	assert.ErrorIs(t, store.Restore(ctx, live), ErrLiveDatabase)

	_, err = store.SaveCustomer(ctx, catalog.Customer{Name: "After"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := New(live)
	require.NoError(t, err)
	defer reopened.Close()
	customers, err := reopened.ListCustomers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, customers, 2)
}
