/*
admin.go - Whole-database and whole-price-list operations

ENDPOINTS:
  GET  /api/pricelist/export   Download the price list (?format=csv|xlsx)
  POST /api/pricelist/import   Replace the price list with the request body
                               (?format=csv|xlsx, ?confirm=true required)
  POST /api/admin/backup       Download a copy of the database
  POST /api/admin/restore      Replace the database with the request body
                               (?confirm=true required)

Import and restore discard data, so both always require confirmation
regardless of the user's confirmation setting.
*/
package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warp/cabinet-estimator/exchange"
)

// maxUpload bounds import and restore bodies.
const maxUpload = 64 << 20

// ExportPriceList streams the price list as a file download.
func (h *Handler) ExportPriceList(w http.ResponseWriter, r *http.Request) {
	format, err := exchange.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeFailure(w, "Invalid format", err)
		return
	}

	entries, err := h.Store.PriceListEntries(r.Context())
	if err != nil {
		writeFailure(w, "Failed to export price list", err)
		return
	}

	var buf bytes.Buffer
	if err := exchange.WritePriceList(&buf, format, entries); err != nil {
		writeFailure(w, "Failed to export price list", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="pricelist_export_%s.%s"`, dateStamp(time.Now()), format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ImportPriceList replaces the whole price list. The file is parsed in full
// before anything is written; any bad row leaves the list untouched.
func (h *Handler) ImportPriceList(w http.ResponseWriter, r *http.Request) {
	format, err := exchange.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeFailure(w, "Invalid format", err)
		return
	}
	if !h.confirm(w, r, true) {
		return
	}

	entries, err := exchange.ReadPriceList(http.MaxBytesReader(w, r.Body, maxUpload), format)
	if err != nil {
		writeFailure(w, "Failed to import price list", err)
		return
	}

	result, err := h.Store.ReplacePriceList(r.Context(), entries)
	if err != nil {
		writeFailure(w, "Failed to import price list", err)
		return
	}
	writeJSON(w, http.StatusOK, toImportResultDTO(result))
}

// Backup streams a consistent copy of the database.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	dir, err := os.MkdirTemp("", "estimator-backup-")
	if err != nil {
		writeFailure(w, "Failed to back up database", err)
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "backup.db")
	if err := h.Store.Backup(r.Context(), path); err != nil {
		writeFailure(w, "Failed to back up database", err)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeFailure(w, "Failed to back up database", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/vnd.sqlite3")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="estimator_backup_%s.db"`, dateStamp(time.Now())))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, f); err != nil {
		log.WithError(err).Warn("backup download interrupted")
	}
}

// Restore replaces the database with the uploaded backup. Open drafts are
// discarded since they may refer to rows that no longer exist.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	if !h.confirm(w, r, true) {
		return
	}

	dir, err := os.MkdirTemp("", "estimator-restore-")
	if err != nil {
		writeFailure(w, "Failed to restore database", err)
		return
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "upload.db")
	if err := saveUpload(path, http.MaxBytesReader(w, r.Body, maxUpload)); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload", err)
		return
	}

	if err := h.Store.Restore(r.Context(), path); err != nil {
		writeFailure(w, "Failed to restore database", err)
		return
	}
	h.drafts.clear()
	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func saveUpload(path string, body io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return errors.Wrap(err, "read body")
	}
	return f.Close()
}
