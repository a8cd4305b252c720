/*
handlers.go - HTTP API handlers for the estimator

PURPOSE:
  Exposes the catalog, estimates, settings and admin operations via REST.
  Handles HTTP request/response and JSON serialization, and delegates to
  the store and the estimate aggregate.

ENDPOINTS:
  Customers:
    GET    /api/customers              List (?q= search)
    POST   /api/customers              Create
    GET    /api/customers/{id}         Get
    PUT    /api/customers/{id}         Update
    DELETE /api/customers/{id}         Delete with all their estimates

  Categories:
    GET    /api/categories             List, Uncategorized last
    POST   /api/categories             Create
    PUT    /api/categories/{id}        Rename
    DELETE /api/categories/{id}        Delete, items go to Uncategorized
    POST   /api/categories/{id}/move   Move up or down

  Price list:
    GET    /api/pricelist              List (?category_id=, ?q=)
    POST   /api/pricelist              Create item
    PUT    /api/pricelist/{id}         Update item
    DELETE /api/pricelist/{id}         Delete item
    POST   /api/pricelist/{id}/move    Move within category

  Settings:
    GET    /api/settings               Read preferences
    PUT    /api/settings               Write preferences

CONFIRMATION:
  Destructive endpoints take ?confirm=true. Without it they answer 428
  unless the user turned confirmations off. Restore, price-list import and
  sample loading always need it.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Duplicate category name, protected category
  - 428: Confirmation required
  - 500: Storage errors

SEE ALSO:
  - drafts.go: Estimate editing sessions and saved estimates
  - admin.go: Backup, restore, price-list import/export
  - samples.go: Demo catalogs
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/warp/cabinet-estimator/catalog"
	"github.com/warp/cabinet-estimator/estimate"
	"github.com/warp/cabinet-estimator/exchange"
	"github.com/warp/cabinet-estimator/settings"
	"github.com/warp/cabinet-estimator/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store

	drafts *draftRegistry

	// Track the sample catalog loaded last
	sampleMu      sync.Mutex
	currentSample string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:  store,
		drafts: newDraftRegistry(),
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns customers ordered by name.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.Store.ListCustomers(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeFailure(w, "Failed to list customers", err)
		return
	}

	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCustomer returns a single customer.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	c, err := h.Store.GetCustomer(r.Context(), id)
	if err != nil {
		writeFailure(w, "Failed to get customer", err)
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "Customer not found", catalog.ErrCustomerNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(*c))
}

// CreateCustomer creates a customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = 0

	id, err := h.Store.SaveCustomer(r.Context(), req.toCustomer())
	if err != nil {
		writeFailure(w, "Failed to create customer", err)
		return
	}
	req.ID = id
	writeJSON(w, http.StatusCreated, toCustomerDTO(req.toCustomer().Normalize()))
}

// UpdateCustomer replaces a customer's contact details.
func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CustomerDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = id

	if _, err := h.Store.SaveCustomer(r.Context(), req.toCustomer()); err != nil {
		writeFailure(w, "Failed to update customer", err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(req.toCustomer().Normalize()))
}

// DeleteCustomer removes a customer and every estimate for them.
func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !h.confirm(w, r, false) {
		return
	}

	jobs, err := h.Store.DeleteCustomer(r.Context(), id)
	if err != nil {
		writeFailure(w, "Failed to delete customer", err)
		return
	}
	h.drafts.forgetCustomer(id)
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "estimates_deleted": jobs})
}

// =============================================================================
// CATEGORY HANDLERS
// =============================================================================

// ListCategories returns categories in display order.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Store.ListCategories(r.Context())
	if err != nil {
		writeFailure(w, "Failed to list categories", err)
		return
	}

	dtos := make([]CategoryDTO, len(cats))
	for i, c := range cats {
		dtos[i] = toCategoryDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCategory appends a category before Uncategorized.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cat, err := h.Store.AddCategory(r.Context(), req.Name)
	if err != nil {
		writeFailure(w, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryDTO(cat))
}

// RenameCategory changes a category's name.
func (h *Handler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Store.RenameCategory(r.Context(), id, req.Name); err != nil {
		writeFailure(w, "Failed to rename category", err)
		return
	}
	cat, err := h.Store.GetCategory(r.Context(), id)
	if err := foundOr(err, cat != nil, catalog.ErrCategoryNotFound); err != nil {
		writeFailure(w, "Failed to get category", err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryDTO(*cat))
}

// DeleteCategory removes a category; its items move to Uncategorized.
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !h.confirm(w, r, false) {
		return
	}

	moved, err := h.Store.DeleteCategory(r.Context(), id)
	if err != nil {
		writeFailure(w, "Failed to delete category", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "items_moved": moved})
}

// MoveCategory swaps a category with its neighbor.
func (h *Handler) MoveCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	dir, ok := decodeDirection(w, r)
	if !ok {
		return
	}

	if err := h.Store.MoveCategory(r.Context(), id, dir); err != nil {
		writeFailure(w, "Failed to move category", err)
		return
	}
	h.ListCategories(w, r)
}

// =============================================================================
// PRICE LIST HANDLERS
// =============================================================================

// ListPriceItems returns items in display order. ?category_id= limits to one
// category, ?q= searches item and category names.
func (h *Handler) ListPriceItems(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var categoryID int64
	if raw := q.Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid category_id", err)
			return
		}
		categoryID = id
	}

	var (
		items []catalog.PriceItem
		err   error
	)
	if term := strings.TrimSpace(q.Get("q")); term != "" {
		items, err = h.Store.SearchItems(ctx, term)
	} else {
		items, err = h.Store.ListItems(ctx, categoryID)
	}
	if err != nil {
		writeFailure(w, "Failed to list price items", err)
		return
	}

	dtos := make([]PriceItemDTO, 0, len(items))
	for _, it := range items {
		if categoryID != 0 && it.CategoryID != categoryID {
			continue
		}
		dtos = append(dtos, toPriceItemDTO(it))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePriceItem appends an item to its category.
func (h *Handler) CreatePriceItem(w http.ResponseWriter, r *http.Request) {
	var req PriceItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.Store.AddItem(r.Context(), catalog.PriceItem{
		Name:       req.ItemName,
		UnitPrice:  req.UnitPrice,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		writeFailure(w, "Failed to create price item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPriceItemDTO(item))
}

// UpdatePriceItem changes an item's name, price or category.
func (h *Handler) UpdatePriceItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PriceItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	err := h.Store.UpdateItem(ctx, catalog.PriceItem{
		ID:         id,
		Name:       req.ItemName,
		UnitPrice:  req.UnitPrice,
		CategoryID: req.CategoryID,
	})
	if err != nil {
		writeFailure(w, "Failed to update price item", err)
		return
	}
	item, err := h.Store.GetItem(ctx, id)
	if err := foundOr(err, item != nil, catalog.ErrItemNotFound); err != nil {
		writeFailure(w, "Failed to get price item", err)
		return
	}
	writeJSON(w, http.StatusOK, toPriceItemDTO(*item))
}

// DeletePriceItem removes an item. Saved estimates keep their copy.
func (h *Handler) DeletePriceItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !h.confirm(w, r, false) {
		return
	}

	if err := h.Store.DeleteItem(r.Context(), id); err != nil {
		writeFailure(w, "Failed to delete price item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// MovePriceItem swaps an item with its neighbor in the same category.
func (h *Handler) MovePriceItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	dir, ok := decodeDirection(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.Store.MoveItem(ctx, id, dir); err != nil {
		writeFailure(w, "Failed to move price item", err)
		return
	}
	item, err := h.Store.GetItem(ctx, id)
	if err := foundOr(err, item != nil, catalog.ErrItemNotFound); err != nil {
		writeFailure(w, "Failed to get price item", err)
		return
	}
	items, err := h.Store.ListItems(ctx, item.CategoryID)
	if err != nil {
		writeFailure(w, "Failed to list price items", err)
		return
	}
	dtos := make([]PriceItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toPriceItemDTO(it)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the user preferences.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := settings.Load(r.Context(), h.Store)
	if err != nil {
		writeFailure(w, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// UpdateSettings replaces the user preferences.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	req := settings.Default()
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	if err := settings.Save(ctx, h.Store, req); err != nil {
		writeFailure(w, "Failed to save settings", err)
		return
	}
	s, err := settings.Load(ctx, h.Store)
	if err != nil {
		writeFailure(w, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeFailure maps err to a status code and writes it. Storage errors are
// logged; caller mistakes are not.
func writeFailure(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error(message)
	}
	writeError(w, status, message, err)
}

// statusFor is the single place errors become HTTP status codes.
func statusFor(err error) int {
	var rowErr *exchange.RowError
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.Is(err, settings.ErrConfirmationRequired):
		return http.StatusPreconditionRequired
	case catalog.IsNotFound(err), errors.Is(err, estimate.ErrJobNotFound), errors.Is(err, errDraftNotFound):
		return http.StatusNotFound
	case catalog.IsConflict(err):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrInvalid),
		estimate.IsClientError(err),
		errors.As(err, &rowErr),
		errors.Is(err, exchange.ErrUnknownFormat),
		errors.Is(err, exchange.ErrEmptyFile),
		errors.Is(err, settings.ErrInvalidTheme),
		errors.Is(err, sqlite.ErrInvalidBackup),
		errors.Is(err, sqlite.ErrRestoreInMemory),
		errors.Is(err, sqlite.ErrLiveDatabase),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

// foundOr turns a lookup that succeeded without a row into notFound. A row
// can vanish between a write and the read that reports it.
func foundOr(err error, found bool, notFound error) error {
	if err == nil && !found {
		return notFound
	}
	return err
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func decodeDirection(w http.ResponseWriter, r *http.Request) (catalog.Direction, bool) {
	var req MoveRequest
	if !decodeJSON(w, r, &req) {
		return "", false
	}
	dir, err := catalog.ParseDirection(req.Direction)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid direction", err)
		return "", false
	}
	return dir, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid "+name, err)
		return 0, false
	}
	return id, true
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// confirm applies the destructive-operation gate and writes 428 when it
// fails.
func (h *Handler) confirm(w http.ResponseWriter, r *http.Request, always bool) bool {
	s, err := settings.Load(r.Context(), h.Store)
	if err != nil {
		writeFailure(w, "Failed to load settings", err)
		return false
	}
	if err := s.Confirm(queryBool(r, "confirm"), always); err != nil {
		writeError(w, http.StatusPreconditionRequired, "Confirmation required: repeat with ?confirm=true", err)
		return false
	}
	return true
}
