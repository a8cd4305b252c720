/*
drafts.go - Estimate editing sessions and saved estimates

PURPOSE:
  A draft is one open estimate.Aggregate held by the server between
  requests, addressed by a random id. Clients create a draft (blank or from
  a saved estimate), edit it line by line, then save it. Nothing is written
  to the database until save.

ENDPOINTS:
  Saved estimates:
    GET    /api/estimates                 List, newest first (?q=)
    GET    /api/estimates/{id}            Full estimate as a read-only draft view
    DELETE /api/estimates/{id}            Delete
    POST   /api/estimates/{id}/open       Open as a draft (?duplicate=true copies)
    GET    /api/estimates/{id}/document   Render (?format=pdf|xlsx)

  Drafts:
    POST   /api/drafts                              New blank estimate
    GET    /api/drafts/{draftID}                    Current state and totals
    DELETE /api/drafts/{draftID}                    Discard
    PUT    /api/drafts/{draftID}/header             Customer and job name
    PUT    /api/drafts/{draftID}/adjustments        Raw adjustment text
    POST   /api/drafts/{draftID}/lines/catalog      Add price-list item
    POST   /api/drafts/{draftID}/lines/write-in     Add free-text line
    PUT    /api/drafts/{draftID}/lines/{index}      Edit line
    DELETE /api/drafts/{draftID}/lines/{index}      Remove line
    POST   /api/drafts/{draftID}/lines/{index}/move Move line
    POST   /api/drafts/{draftID}/save               Insert or update
    DELETE /api/drafts/{draftID}/estimate           Delete the saved estimate
    GET    /api/drafts/{draftID}/document           Render (?format=pdf|xlsx)

CONCURRENCY:
  The registry map has its own lock; each draft has another, held for the
  whole request that touches it.
*/
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/warp/cabinet-estimator/catalog"
	"github.com/warp/cabinet-estimator/estimate"
	"github.com/warp/cabinet-estimator/render"
	"github.com/warp/cabinet-estimator/settings"
)

var errDraftNotFound = errors.New("draft not found")

// =============================================================================
// REGISTRY
// =============================================================================

type draft struct {
	mu  sync.Mutex
	agg *estimate.Aggregate
}

type draftRegistry struct {
	mu     sync.Mutex
	drafts map[string]*draft
}

func newDraftRegistry() *draftRegistry {
	return &draftRegistry{drafts: make(map[string]*draft)}
}

func (reg *draftRegistry) add(agg *estimate.Aggregate) string {
	id := uuid.NewString()
	reg.mu.Lock()
	reg.drafts[id] = &draft{agg: agg}
	reg.mu.Unlock()
	return id
}

func (reg *draftRegistry) get(id string) (*draft, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	d, ok := reg.drafts[id]
	return d, ok
}

func (reg *draftRegistry) remove(id string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	_, ok := reg.drafts[id]
	delete(reg.drafts, id)
	return ok
}

func (reg *draftRegistry) count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.drafts)
}

// forgetCustomer detaches drafts from a deleted customer. Drafts of their
// saved estimates are dropped since those rows are gone too.
func (reg *draftRegistry) forgetCustomer(customerID int64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for id, d := range reg.drafts {
		d.mu.Lock()
		if d.agg.CustomerID() == customerID {
			if d.agg.IsSaved() {
				delete(reg.drafts, id)
			} else {
				d.agg.SetCustomer(0)
			}
		}
		d.mu.Unlock()
	}
}

// forgetJob detaches drafts loaded from a deleted estimate so their next
// save inserts a new one instead of failing.
func (reg *draftRegistry) forgetJob(jobID int64) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, d := range reg.drafts {
		d.mu.Lock()
		if d.agg.ID() == jobID {
			d.agg.Detach()
		}
		d.mu.Unlock()
	}
}

// clear drops every draft. Used after the database is swapped out.
func (reg *draftRegistry) clear() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.drafts = make(map[string]*draft)
}

// newAggregate starts an estimate with the user's default markup and
// install price.
func (h *Handler) newAggregate(r *http.Request) (*estimate.Aggregate, error) {
	s, err := settings.Load(r.Context(), h.Store)
	if err != nil {
		return nil, err
	}
	return estimate.New(h.Store, h.Store, s.EstimateDefaults()), nil
}

// withDraft looks up the draft named in the path and runs fn holding its
// lock. fn returns the error to report, if any; on success the draft state
// is written back.
func (h *Handler) withDraft(w http.ResponseWriter, r *http.Request, message string, fn func(d *draft) error) {
	id := chi.URLParam(r, "draftID")
	d, ok := h.drafts.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Draft not found", errDraftNotFound)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := fn(d); err != nil {
		writeFailure(w, message, err)
		return
	}
	writeJSON(w, http.StatusOK, toDraftDTO(id, d.agg.Snapshot()))
}

// =============================================================================
// SAVED ESTIMATES
// =============================================================================

// ListEstimates returns saved estimates, newest first.
func (h *Handler) ListEstimates(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.ListJobs(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeFailure(w, "Failed to list estimates", err)
		return
	}

	dtos := make([]EstimateSummaryDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = toEstimateSummaryDTO(j)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEstimate returns a saved estimate without opening a draft.
func (h *Handler) GetEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.Store.GetJob(r.Context(), id)
	if err != nil {
		writeFailure(w, "Failed to get estimate", err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "Estimate not found", estimate.ErrJobNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toDraftDTO("", estimate.SnapshotOf(*job)))
}

// DeleteEstimate removes a saved estimate.
func (h *Handler) DeleteEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !h.confirm(w, r, false) {
		return
	}

	if err := h.Store.DeleteJob(r.Context(), id); err != nil {
		writeFailure(w, "Failed to delete estimate", err)
		return
	}
	h.drafts.forgetJob(id)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// OpenEstimate loads a saved estimate into a new draft. With
// ?duplicate=true the draft is an unsaved copy.
func (h *Handler) OpenEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	agg, err := h.newAggregate(r)
	if err != nil {
		writeFailure(w, "Failed to open estimate", err)
		return
	}
	if err := agg.Load(r.Context(), id, queryBool(r, "duplicate")); err != nil {
		writeFailure(w, "Failed to open estimate", err)
		return
	}

	draftID := h.drafts.add(agg)
	writeJSON(w, http.StatusCreated, toDraftDTO(draftID, agg.Snapshot()))
}

// RenderEstimate renders a saved estimate as PDF or XLSX.
func (h *Handler) RenderEstimate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.Store.GetJob(r.Context(), id)
	if err != nil {
		writeFailure(w, "Failed to get estimate", err)
		return
	}
	if job == nil {
		writeError(w, http.StatusNotFound, "Estimate not found", estimate.ErrJobNotFound)
		return
	}
	h.writeDocument(w, r, estimate.SnapshotOf(*job))
}

// =============================================================================
// DRAFT LIFECYCLE
// =============================================================================

// CreateDraft starts a blank estimate.
func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	agg, err := h.newAggregate(r)
	if err != nil {
		writeFailure(w, "Failed to create draft", err)
		return
	}
	id := h.drafts.add(agg)
	writeJSON(w, http.StatusCreated, toDraftDTO(id, agg.Snapshot()))
}

// GetDraft returns a draft with fresh totals.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	h.withDraft(w, r, "Failed to get draft", func(*draft) error { return nil })
}

// DiscardDraft drops a draft without saving.
func (h *Handler) DiscardDraft(w http.ResponseWriter, r *http.Request) {
	if !h.drafts.remove(chi.URLParam(r, "draftID")) {
		writeError(w, http.StatusNotFound, "Draft not found", errDraftNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "discarded"})
}

// SaveDraft writes the draft and returns the estimate id.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "draftID")
	d, ok := h.drafts.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "Draft not found", errDraftNotFound)
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	jobID, err := d.agg.Save(r.Context())
	if err != nil {
		writeFailure(w, "Failed to save estimate", err)
		return
	}
	log.WithFields(log.Fields{"estimate_id": jobID, "draft_id": id}).Info("estimate saved")
	writeJSON(w, http.StatusOK, SaveResultDTO{EstimateID: jobID, Draft: toDraftDTO(id, d.agg.Snapshot())})
}

// DeleteDraftEstimate deletes the saved estimate behind a draft; the draft
// becomes a new blank estimate.
func (h *Handler) DeleteDraftEstimate(w http.ResponseWriter, r *http.Request) {
	if !h.confirm(w, r, false) {
		return
	}
	var deleted int64
	h.withDraft(w, r, "Failed to delete estimate", func(d *draft) error {
		id := d.agg.ID()
		if err := d.agg.Delete(r.Context()); err != nil {
			return err
		}
		deleted = id
		return nil
	})
	if deleted != 0 {
		h.drafts.forgetJob(deleted)
	}
}

// RenderDraft renders the draft as it stands, saved or not.
func (h *Handler) RenderDraft(w http.ResponseWriter, r *http.Request) {
	d, ok := h.drafts.get(chi.URLParam(r, "draftID"))
	if !ok {
		writeError(w, http.StatusNotFound, "Draft not found", errDraftNotFound)
		return
	}

	d.mu.Lock()
	snap := d.agg.Snapshot()
	d.mu.Unlock()

	h.writeDocument(w, r, snap)
}

// =============================================================================
// DRAFT EDITING
// =============================================================================

// UpdateDraftHeader sets the customer and job name.
func (h *Handler) UpdateDraftHeader(w http.ResponseWriter, r *http.Request) {
	var req HeaderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withDraft(w, r, "Failed to update estimate", func(d *draft) error {
		if req.CustomerID != 0 {
			c, err := h.Store.GetCustomer(r.Context(), req.CustomerID)
			if err != nil {
				return err
			}
			if c == nil {
				return catalog.ErrCustomerNotFound
			}
		}
		d.agg.SetCustomer(req.CustomerID)
		d.agg.SetJobName(req.JobName)
		return nil
	})
}

// UpdateDraftAdjustments applies the raw adjustment text. Unparsable
// fields count as zero, so this never fails.
func (h *Handler) UpdateDraftAdjustments(w http.ResponseWriter, r *http.Request) {
	var req estimate.AdjustmentInput
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withDraft(w, r, "Failed to update adjustments", func(d *draft) error {
		d.agg.ApplyInput(req)
		return nil
	})
}

// AddCatalogLine appends a price-list item at its current price.
func (h *Handler) AddCatalogLine(w http.ResponseWriter, r *http.Request) {
	var req CatalogLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withDraft(w, r, "Failed to add line", func(d *draft) error {
		_, err := d.agg.AddCatalogItem(r.Context(), req.ItemID, req.Quantity)
		return err
	})
}

// AddWriteInLine appends a free-text line.
func (h *Handler) AddWriteInLine(w http.ResponseWriter, r *http.Request) {
	var req WriteInLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withDraft(w, r, "Failed to add line", func(d *draft) error {
		_, err := d.agg.AddWriteInText(req.Description, req.Quantity, req.UnitPrice)
		return err
	})
}

// EditDraftLine replaces one line in place.
func (h *Handler) EditDraftLine(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	var req EditLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withDraft(w, r, "Failed to edit line", func(d *draft) error {
		_, err := d.agg.EditLine(r.Context(), index, estimate.LineEdit{
			Quantity:    req.Quantity,
			ItemID:      req.ItemID,
			Description: req.Description,
			UnitPrice:   req.UnitPrice,
		})
		return err
	})
}

// RemoveDraftLine deletes one line.
func (h *Handler) RemoveDraftLine(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	h.withDraft(w, r, "Failed to remove line", func(d *draft) error {
		return d.agg.RemoveLine(index)
	})
}

// MoveDraftLine swaps one line with its neighbor.
func (h *Handler) MoveDraftLine(w http.ResponseWriter, r *http.Request) {
	index, ok := lineIndex(w, r)
	if !ok {
		return
	}
	dir, ok := decodeDirection(w, r)
	if !ok {
		return
	}
	h.withDraft(w, r, "Failed to move line", func(d *draft) error {
		return d.agg.MoveLine(index, dir)
	})
}

func lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid line index", err)
		return 0, false
	}
	return index, true
}

// =============================================================================
// DOCUMENTS
// =============================================================================

func (h *Handler) writeDocument(w http.ResponseWriter, r *http.Request, snap estimate.Snapshot) {
	if snap.CustomerID == 0 {
		writeError(w, http.StatusBadRequest, "Please select a customer", estimate.ErrCustomerRequired)
		return
	}
	c, err := h.Store.GetCustomer(r.Context(), snap.CustomerID)
	if err != nil {
		writeFailure(w, "Failed to get customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Customer not found", catalog.ErrCustomerNotFound)
		return
	}

	doc := render.Document{Estimate: snap, Customer: *c, Date: time.Now()}

	var (
		body        []byte
		contentType string
		ext         string
	)
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "pdf":
		body, err = render.PDF(doc)
		contentType, ext = "application/pdf", "pdf"
	case "xlsx":
		body, err = render.XLSX(doc)
		contentType, ext = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	default:
		writeError(w, http.StatusBadRequest, "Unknown format (use pdf or xlsx)", nil)
		return
	}
	if err != nil {
		writeFailure(w, "Failed to render estimate", err)
		return
	}

	name := "estimate"
	if snap.ID != 0 {
		name = fmt.Sprintf("estimate-%d", snap.ID)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, ext))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
