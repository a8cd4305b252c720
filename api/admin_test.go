package api

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/cabinet-estimator/catalog"
	"github.com/warp/cabinet-estimator/exchange"
	"github.com/warp/cabinet-estimator/store/sqlite"
)

func newFileServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "estimator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store)
	return &testServer{t: t, h: h, router: NewRouter(h, nil)}
}

func (s *testServer) itemNames() []string {
	s.t.Helper()
	rec := s.do(http.MethodGet, "/api/pricelist", nil)
	require.Equal(s.t, http.StatusOK, rec.Code)
	var names []string
	for _, it := range decode[[]PriceItemDTO](s.t, rec) {
		names = append(names, it.ItemName)
	}
	return names
}

func TestPriceList_ExportCSV(t *testing.T) {
	s := newTestServer(t)
	cab := s.category("Cabinets")
	s.item(cab.ID, "Base 24in", "245")

	rec := s.do(http.MethodGet, "/api/pricelist/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "pricelist_export_")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")

	entries, err := exchange.ReadPriceList(rec.Body, exchange.CSV)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Cabinets", entries[0].Category)
	assert.Equal(t, "245.00", entries[0].UnitPrice.StringFixed(2))

	rec = s.do(http.MethodGet, "/api/pricelist/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPriceList_Import(t *testing.T) {
	s := newTestServer(t)
	cab := s.category("Cabinets")
	s.item(cab.ID, "Old item", "1")

	body := "Category,ItemName,UnitPrice\nCabinets,Base 24in,245\nTrim,Toe kick,$18.00\n"

	// WHEN: imported without confirmation
	rec := s.do(http.MethodPost, "/api/pricelist/import", body)

	// THEN: refused and nothing changed
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)
	assert.Equal(t, []string{"Old item"}, s.itemNames())

	rec = s.do(http.MethodPost, "/api/pricelist/import?confirm=true", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[ImportResultDTO](t, rec)
	assert.Equal(t, 2, result.Items)
	assert.Equal(t, 1, result.CategoriesCreated)
	assert.ElementsMatch(t, []string{"Base 24in", "Toe kick"}, s.itemNames())
}

func TestPriceList_ImportBadRowLeavesListUntouched(t *testing.T) {
	s := newTestServer(t)
	cab := s.category("Cabinets")
	s.item(cab.ID, "Keep me", "1")

	body := "Category,ItemName,UnitPrice\nCabinets,Base,245\nCabinets,Wall,abc\n"
	rec := s.do(http.MethodPost, "/api/pricelist/import?confirm=true", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "row 3")
	assert.Equal(t, []string{"Keep me"}, s.itemNames())
}

func TestPriceList_ImportXLSX(t *testing.T) {
	s := newTestServer(t)

	var buf bytes.Buffer
	require.NoError(t, exchange.WritePriceList(&buf, exchange.XLSX, []catalog.PriceListEntry{
		{Category: "Hardware", ItemName: "Hinge", UnitPrice: decimal.RequireFromString("4.5")},
	}))

	rec := s.do(http.MethodPost, "/api/pricelist/import?format=xlsx&confirm=true", buf.Bytes())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"Hinge"}, s.itemNames())
}

func TestBackup_Download(t *testing.T) {
	s := newTestServer(t)
	s.customer("Ada Homes")

	rec := s.do(http.MethodPost, "/api/admin/backup", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("SQLite format 3")))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "estimator_backup_")
}

func TestRestore_InMemoryRejected(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/api/admin/restore?confirm=true", []byte("whatever"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestore_RoundTrip(t *testing.T) {
	s := newFileServer(t)
	ada := s.customer("Ada Homes")

	// GIVEN: a backup taken while Ada exists
	rec := s.do(http.MethodPost, "/api/admin/backup", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	backup := rec.Body.Bytes()

	// and later changes: Ada deleted, a draft open
	rec = s.do(http.MethodDelete, "/api/customers/"+itoa(ada.ID)+"?confirm=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	s.newDraft()

	// WHEN: restore without confirmation
	rec = s.do(http.MethodPost, "/api/admin/restore", backup)
	assert.Equal(t, http.StatusPreconditionRequired, rec.Code)

	// WHEN: confirmed
	rec = s.do(http.MethodPost, "/api/admin/restore?confirm=true", backup)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// THEN: Ada is back and open drafts are gone
	c, err := s.h.Store.GetCustomer(context.Background(), ada.ID)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Ada Homes", c.Name)
	assert.Zero(t, s.h.drafts.count())
}

func TestRestore_InvalidFile(t *testing.T) {
	s := newFileServer(t)
	s.customer("Ada Homes")

	rec := s.do(http.MethodPost, "/api/admin/restore?confirm=true", []byte("not a database"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/customers", nil)
	assert.Len(t, decode[[]CustomerDTO](t, rec), 1)
}
