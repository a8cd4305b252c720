/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the catalog and estimate packages from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are decimal.Decimal and travel as JSON strings ("268.5") so no
  precision is lost. Requests accept either strings or numbers.

SEE ALSO:
  - handlers.go, drafts.go: Use these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/cabinet-estimator/catalog"
	"github.com/warp/cabinet-estimator/estimate"
	"github.com/warp/cabinet-estimator/store/sqlite"
)

// =============================================================================
// CATALOG
// =============================================================================

// CustomerDTO is a customer in requests and responses.
type CustomerDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

func toCustomerDTO(c catalog.Customer) CustomerDTO {
	return CustomerDTO{ID: c.ID, Name: c.Name, Address: c.Address, Phone: c.Phone, Email: c.Email}
}

func (d CustomerDTO) toCustomer() catalog.Customer {
	return catalog.Customer{ID: d.ID, Name: d.Name, Address: d.Address, Phone: d.Phone, Email: d.Email}
}

// CategoryDTO is a price-list category. Protected marks Uncategorized.
type CategoryDTO struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
	Protected bool   `json:"protected"`
}

func toCategoryDTO(c catalog.Category) CategoryDTO {
	return CategoryDTO{ID: c.ID, Name: c.Name, SortOrder: c.SortOrder, Protected: c.IsSentinel()}
}

// CategoryRequest creates or renames a category.
type CategoryRequest struct {
	Name string `json:"name"`
}

// PriceItemDTO is one price-list item.
type PriceItemDTO struct {
	ID           int64           `json:"id"`
	ItemName     string          `json:"item_name"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CategoryID   int64           `json:"category_id"`
	CategoryName string          `json:"category_name"`
	SortOrder    int             `json:"sort_order"`
}

func toPriceItemDTO(p catalog.PriceItem) PriceItemDTO {
	return PriceItemDTO{
		ID:           p.ID,
		ItemName:     p.Name,
		UnitPrice:    p.UnitPrice,
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		SortOrder:    p.SortOrder,
	}
}

// PriceItemRequest creates or updates a price item.
type PriceItemRequest struct {
	ItemName   string          `json:"item_name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	CategoryID int64           `json:"category_id"`
}

// MoveRequest moves a category, item or line one step.
type MoveRequest struct {
	Direction string `json:"direction"`
}

// ImportResultDTO reports a price-list import.
type ImportResultDTO struct {
	Items             int `json:"items"`
	CategoriesCreated int `json:"categories_created"`
}

func toImportResultDTO(r sqlite.ImportResult) ImportResultDTO {
	return ImportResultDTO{Items: r.Items, CategoriesCreated: r.CategoriesCreated}
}

// =============================================================================
// ESTIMATES
// =============================================================================

// EstimateSummaryDTO is one row of the saved-estimates list.
type EstimateSummaryDTO struct {
	ID           int64           `json:"id"`
	DisplayName  string          `json:"display_name"`
	CustomerName string          `json:"customer_name"`
	JobName      string          `json:"job_name"`
	EstimateDate string          `json:"estimate_date"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
}

func toEstimateSummaryDTO(s estimate.JobSummary) EstimateSummaryDTO {
	return EstimateSummaryDTO{
		ID:           s.ID,
		DisplayName:  s.DisplayName(),
		CustomerName: s.CustomerName,
		JobName:      s.JobName,
		EstimateDate: s.EstimateDate.Format(sqlite.DateLayout),
		TotalAmount:  s.TotalAmount,
	}
}

// LineDTO is one estimate line. Index is its position in the estimate.
type LineDTO struct {
	Index     int             `json:"index"`
	Kind      string          `json:"kind"`
	ItemID    int64           `json:"item_id,omitempty"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Total     decimal.Decimal `json:"total"`
}

// AdjustmentsDTO are the parsed adjustment values.
type AdjustmentsDTO struct {
	MarkupPercent    decimal.Decimal `json:"markup_percent"`
	InstallQty       decimal.Decimal `json:"install_qty"`
	InstallUnitPrice decimal.Decimal `json:"install_unit_price"`
	MiscCharge       decimal.Decimal `json:"misc_charge"`
}

// TotalsDTO is the derived money block.
type TotalsDTO struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	MarkupAmount decimal.Decimal `json:"markup_amount"`
	InstallTotal decimal.Decimal `json:"install_total"`
	MiscCharge   decimal.Decimal `json:"misc_charge"`
	GrandTotal   decimal.Decimal `json:"grand_total"`
}

// DraftDTO is the full state of an editing session. EstimateID is zero
// until the first save.
type DraftDTO struct {
	DraftID      string         `json:"draft_id"`
	EstimateID   int64          `json:"estimate_id"`
	Saved        bool           `json:"saved"`
	CustomerID   int64          `json:"customer_id"`
	JobName      string         `json:"job_name"`
	EstimateDate string         `json:"estimate_date"`
	Lines        []LineDTO      `json:"lines"`
	Adjustments  AdjustmentsDTO `json:"adjustments"`
	Totals       TotalsDTO      `json:"totals"`
}

func toDraftDTO(id string, s estimate.Snapshot) DraftDTO {
	lines := make([]LineDTO, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = LineDTO{
			Index:     i,
			Kind:      string(l.Kind),
			ItemID:    l.ItemID,
			Name:      l.Name,
			Category:  l.Category,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Total:     l.Total(),
		}
	}
	return DraftDTO{
		DraftID:      id,
		EstimateID:   s.ID,
		Saved:        s.ID != 0,
		CustomerID:   s.CustomerID,
		JobName:      s.JobName,
		EstimateDate: s.Date.Format(sqlite.DateLayout),
		Lines:        lines,
		Adjustments: AdjustmentsDTO{
			MarkupPercent:    s.Adjustments.MarkupPercent,
			InstallQty:       s.Adjustments.InstallQty,
			InstallUnitPrice: s.Adjustments.InstallUnitPrice,
			MiscCharge:       s.Adjustments.MiscCharge,
		},
		Totals: TotalsDTO{
			Subtotal:     s.Totals.Subtotal,
			MarkupAmount: s.Totals.MarkupAmount,
			InstallTotal: s.Totals.InstallTotal,
			MiscCharge:   s.Totals.MiscCharge,
			GrandTotal:   s.Totals.GrandTotal,
		},
	}
}

// HeaderRequest sets the customer and job name of a draft.
type HeaderRequest struct {
	CustomerID int64  `json:"customer_id"`
	JobName    string `json:"job_name"`
}

// CatalogLineRequest adds a price-list item to a draft.
type CatalogLineRequest struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// WriteInLineRequest adds a free-text line. Quantity and price are the raw
// text the user typed.
type WriteInLineRequest struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

// EditLineRequest replaces one line. Zero or empty fields keep the current
// value.
type EditLineRequest struct {
	Quantity    int              `json:"quantity"`
	ItemID      int64            `json:"item_id"`
	Description string           `json:"description"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

// SaveResultDTO is returned by a draft save.
type SaveResultDTO struct {
	EstimateID int64    `json:"estimate_id"`
	Draft      DraftDTO `json:"draft"`
}

// =============================================================================
// SAMPLES & ERRORS
// =============================================================================

// SampleDTO describes a demo catalog.
type SampleDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadSampleRequest selects a demo catalog.
type LoadSampleRequest struct {
	SampleID string `json:"sample_id"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// dateStamp is used in download file names.
func dateStamp(t time.Time) string {
	return t.Format("2006-01-02")
}
