/*
Package estimate models a cabinet-installation estimate.

PURPOSE:
  An estimate is a customer, an optional job name, an ordered list of line
  items and four adjustment fields. Totals are always derived, never stored
  on the lines themselves.

KEY CONCEPTS IN THIS FILE (types.go):
  - LineItem:    Tagged variant. Catalog lines reference a price item by id,
                 write-in lines carry a free-text description.
  - Adjustments: Markup percent, installation qty x unit price, misc charge
  - Job:         A persisted estimate (header + lines)
  - JobSummary:  One row of the estimate manager listing

TOTALS:
  subtotal     = sum(qty x unit price)
  markup       = subtotal x markup% / 100   (markup never applies to install or misc)
  install      = install qty x install unit price
  grand total  = subtotal + markup + install + misc

NUMERIC POLICY:
  decimal.Decimal throughout. Rounding to cents happens only when a value
  is shown (render, api).

SEE ALSO:
  - aggregate.go: The editing session over one estimate
  - totals.go: Pure totals computation and input parsing
  - store/sqlite/estimates.go: Persistence
*/
package estimate

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/cabinet-estimator/catalog"
)

// WriteInCategory is the category label shown for write-in lines.
const WriteInCategory = "Write-in"

// CopySuffix is appended to the job name of a duplicated estimate.
const CopySuffix = " (Copy)"

// =============================================================================
// LINE ITEM - Tagged variant
// =============================================================================

// LineKind tags a LineItem.
type LineKind string

const (
	KindCatalog LineKind = "catalog"
	KindWriteIn LineKind = "write_in"
)

// LineItem is one row of an estimate.
type LineItem struct {
	Kind LineKind

	// ItemID is the catalog price item for catalog lines. Zero for write-ins
	// and for lines saved before item ids were recorded.
	ItemID int64

	// Name is the item name or write-in description, captured when added.
	Name string

	// Category is the category name captured when added, or WriteInCategory.
	Category string

	Quantity  int
	UnitPrice decimal.Decimal
}

// CatalogLine builds a line from the current state of a price item.
func CatalogLine(item catalog.PriceItem, qty int) LineItem {
	return LineItem{
		Kind:      KindCatalog,
		ItemID:    item.ID,
		Name:      item.Name,
		Category:  item.CategoryName,
		Quantity:  qty,
		UnitPrice: item.UnitPrice,
	}
}

// WriteInLine builds a free-text line.
func WriteInLine(description string, qty int, unitPrice decimal.Decimal) LineItem {
	return LineItem{
		Kind:      KindWriteIn,
		Name:      description,
		Category:  WriteInCategory,
		Quantity:  qty,
		UnitPrice: unitPrice,
	}
}

// Total is quantity x unit price.
func (l LineItem) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// IsWriteIn reports whether l is a write-in line.
func (l LineItem) IsWriteIn() bool {
	return l.Kind == KindWriteIn
}

// KindFromStored infers the kind of a persisted line. Rows written before the
// kind was stored are classified by their category label.
func KindFromStored(kind, category string) LineKind {
	switch LineKind(kind) {
	case KindCatalog, KindWriteIn:
		return LineKind(kind)
	}
	if category == "" || category == WriteInCategory {
		return KindWriteIn
	}
	return KindCatalog
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

// Adjustments are the estimate-level charges applied on top of the lines.
type Adjustments struct {
	MarkupPercent    decimal.Decimal
	InstallQty       decimal.Decimal
	InstallUnitPrice decimal.Decimal
	MiscCharge       decimal.Decimal
}

// InstallTotal is install qty x install unit price.
func (a Adjustments) InstallTotal() decimal.Decimal {
	return a.InstallQty.Mul(a.InstallUnitPrice)
}

// ResolveInstall applies the legacy read rule for installation fields.
// Rows saved before qty/unit price existed only carry a single install total;
// those read back as qty 1 at that total.
func ResolveInstall(qty, unitPrice decimal.NullDecimal, legacyTotal decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	if qty.Valid && unitPrice.Valid && qty.Decimal.IsPositive() {
		return qty.Decimal, unitPrice.Decimal
	}
	if legacyTotal.IsPositive() {
		return decimal.NewFromInt(1), legacyTotal
	}
	return decimal.Zero, decimal.Zero
}

// =============================================================================
// JOB
// =============================================================================

// Job is a persisted estimate.
type Job struct {
	ID           int64
	CustomerID   int64
	CustomerName string
	JobName      string
	EstimateDate time.Time

	// TotalAmount is the grand total captured at the last save.
	TotalAmount decimal.Decimal

	Adjustments Adjustments
	Lines       []LineItem
}

// JobHeader is the estimate_jobs row written on save.
type JobHeader struct {
	ID           int64
	CustomerID   int64
	JobName      string
	EstimateDate time.Time
	TotalAmount  decimal.Decimal
	Adjustments  Adjustments
}

// JobSummary is one row of the estimate listing.
type JobSummary struct {
	ID           int64
	CustomerName string
	JobName      string
	EstimateDate time.Time
	TotalAmount  decimal.Decimal
}

// DisplayName is the job name, or a customer-based fallback when blank.
func (s JobSummary) DisplayName() string {
	if s.JobName != "" {
		return s.JobName
	}
	return "Estimate for " + s.CustomerName
}
