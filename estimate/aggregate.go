/*
aggregate.go - The editing session over one estimate

PURPOSE:
  Aggregate owns the in-memory state of the estimate being edited: header,
  adjustments and the ordered line list. Every mutation goes through a
  method here; nothing else holds the line list.

LIFECYCLE:
  New()                 unsaved, ID 0, defaults applied
  Save()                first save inserts and assigns an ID, later saves
                        update the same row
  Load(id, false)       attach to a persisted estimate
  Load(id, true)        duplicate: fresh unsaved copy, name gets " (Copy)"
  Delete()              remove the persisted estimate, then start over

PERSISTENCE:
  Save writes the header and replaces every line inside one
  Repository.WithTx call. Either all of it lands or none of it does.

SEE ALSO:
  - totals.go: Compute, ParseAdjustments
  - store.go: Repository, Tx, PriceLookup
*/
package estimate

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/warp/cabinet-estimator/catalog"
)

// Defaults seed the adjustment fields of a new estimate.
type Defaults struct {
	MarkupPercent    decimal.Decimal
	InstallUnitPrice decimal.Decimal
}

// Aggregate is one estimate being edited.
type Aggregate struct {
	repo   Repository
	prices PriceLookup
	defs   Defaults
	now    func() time.Time

	id         int64
	customerID int64
	jobName    string
	date       time.Time
	adj        Adjustments
	lines      []LineItem
}

// New returns an unsaved estimate with defaults applied.
func New(repo Repository, prices PriceLookup, defs Defaults) *Aggregate {
	a := &Aggregate{repo: repo, prices: prices, defs: defs, now: time.Now}
	a.Reset()
	return a
}

// WithClock replaces the time source used for estimate dates.
func (a *Aggregate) WithClock(now func() time.Time) *Aggregate {
	a.now = now
	a.date = now()
	return a
}

// Reset discards everything and starts a new unsaved estimate.
func (a *Aggregate) Reset() {
	a.id = 0
	a.customerID = 0
	a.jobName = ""
	a.date = a.now()
	a.lines = nil
	a.adj = Adjustments{
		MarkupPercent:    a.defs.MarkupPercent,
		InstallUnitPrice: a.defs.InstallUnitPrice,
	}
}

// =============================================================================
// ACCESSORS
// =============================================================================

func (a *Aggregate) ID() int64                { return a.id }
func (a *Aggregate) IsSaved() bool            { return a.id != 0 }
func (a *Aggregate) CustomerID() int64        { return a.customerID }
func (a *Aggregate) JobName() string          { return a.jobName }
func (a *Aggregate) Date() time.Time          { return a.date }
func (a *Aggregate) Adjustments() Adjustments { return a.adj }
func (a *Aggregate) Len() int                 { return len(a.lines) }

// Lines returns a copy of the line list.
func (a *Aggregate) Lines() []LineItem {
	out := make([]LineItem, len(a.lines))
	copy(out, a.lines)
	return out
}

// Totals recomputes the money block from the current state.
func (a *Aggregate) Totals() Totals {
	return Compute(a.lines, a.adj)
}

// =============================================================================
// HEADER & ADJUSTMENTS
// =============================================================================

func (a *Aggregate) SetCustomer(id int64) { a.customerID = id }

func (a *Aggregate) SetJobName(name string) { a.jobName = strings.TrimSpace(name) }

func (a *Aggregate) SetAdjustments(adj Adjustments) { a.adj = adj }

// ApplyInput sets the adjustments from raw form text. Never fails.
func (a *Aggregate) ApplyInput(in AdjustmentInput) {
	a.adj = ParseAdjustments(in)
}

// =============================================================================
// LINE OPERATIONS
// =============================================================================

// AddCatalogItem appends a line for a price item at its current price.
func (a *Aggregate) AddCatalogItem(ctx context.Context, itemID int64, qty int) (LineItem, error) {
	if qty <= 0 {
		return LineItem{}, &InputError{Field: "quantity", Reason: "quantity must be a positive whole number"}
	}
	item, err := a.lookup(ctx, itemID)
	if err != nil {
		return LineItem{}, err
	}
	line := CatalogLine(*item, qty)
	a.lines = append(a.lines, line)
	return line, nil
}

// AddWriteIn appends a free-text line.
func (a *Aggregate) AddWriteIn(description string, qty int, unitPrice decimal.Decimal) (LineItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return LineItem{}, &InputError{Field: "description", Reason: "description is required"}
	}
	line := WriteInLine(description, qty, unitPrice)
	a.lines = append(a.lines, line)
	return line, nil
}

// AddWriteInText appends a write-in from raw form text. All three fields are
// required; quantity must be a whole number and price a number.
func (a *Aggregate) AddWriteInText(description, qtyText, priceText string) (LineItem, error) {
	if strings.TrimSpace(description) == "" {
		return LineItem{}, &InputError{Field: "description", Reason: "description is required"}
	}
	qty, err := ParseQuantity(qtyText)
	if err != nil {
		return LineItem{}, err
	}
	price, err := ParsePrice(priceText)
	if err != nil {
		return LineItem{}, err
	}
	return a.AddWriteIn(description, qty, price)
}

// LineEdit is a replacement for one line.
type LineEdit struct {
	// Quantity replaces the quantity. Zero keeps the current one.
	Quantity int

	// ItemID replaces the item of a catalog line. Zero keeps the current one.
	ItemID int64

	// Description replaces write-in text. Blank keeps the current text.
	Description string

	// UnitPrice replaces the price of a write-in line. Nil keeps it.
	UnitPrice *decimal.Decimal
}

// EditLine replaces the line at index in place. Catalog lines pick up the
// current catalog price of their item.
func (a *Aggregate) EditLine(ctx context.Context, index int, edit LineEdit) (LineItem, error) {
	if err := a.checkIndex(index); err != nil {
		return LineItem{}, err
	}
	if edit.Quantity < 0 {
		return LineItem{}, &InputError{Field: "quantity", Reason: "quantity must be a positive whole number"}
	}
	cur := a.lines[index]
	qty := cur.Quantity
	if edit.Quantity > 0 {
		qty = edit.Quantity
	}

	var next LineItem
	switch {
	case cur.IsWriteIn():
		next = cur
		next.Quantity = qty
		if d := strings.TrimSpace(edit.Description); d != "" {
			next.Name = d
		}
		if edit.UnitPrice != nil {
			next.UnitPrice = *edit.UnitPrice
		}
	default:
		itemID := edit.ItemID
		if itemID == 0 {
			itemID = cur.ItemID
		}
		if itemID == 0 {
			// Line predates item ids: only the quantity can change.
			next = cur
			next.Quantity = qty
			break
		}
		item, err := a.lookup(ctx, itemID)
		if err != nil {
			return LineItem{}, err
		}
		next = CatalogLine(*item, qty)
	}

	a.lines[index] = next
	return next, nil
}

// RemoveLine deletes the line at index.
func (a *Aggregate) RemoveLine(index int) error {
	if err := a.checkIndex(index); err != nil {
		return err
	}
	a.lines = append(a.lines[:index], a.lines[index+1:]...)
	return nil
}

// MoveLine swaps the line at index with its neighbor. Moving past either end
// is a no-op.
func (a *Aggregate) MoveLine(index int, dir catalog.Direction) error {
	if err := a.checkIndex(index); err != nil {
		return err
	}
	if n := dir.Neighbor(index, len(a.lines)); n >= 0 {
		a.lines[index], a.lines[n] = a.lines[n], a.lines[index]
	}
	return nil
}

func (a *Aggregate) checkIndex(index int) error {
	if index < 0 || index >= len(a.lines) {
		return &LineIndexError{Index: index, Count: len(a.lines)}
	}
	return nil
}

func (a *Aggregate) lookup(ctx context.Context, itemID int64) (*catalog.PriceItem, error) {
	item, err := a.prices.LookupItem(ctx, itemID)
	if err != nil {
		return nil, errors.Wrapf(err, "look up price item %d", itemID)
	}
	if item == nil {
		return nil, catalog.ErrItemNotFound
	}
	return item, nil
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Save writes the estimate and returns its id.
func (a *Aggregate) Save(ctx context.Context) (int64, error) {
	if a.customerID == 0 {
		return 0, ErrCustomerRequired
	}

	totals := a.Totals()
	header := JobHeader{
		ID:           a.id,
		CustomerID:   a.customerID,
		JobName:      a.jobName,
		EstimateDate: a.now(),
		TotalAmount:  totals.GrandTotal,
		Adjustments:  a.adj,
	}
	lines := a.Lines()

	id := a.id
	err := a.repo.WithTx(ctx, func(tx Tx) error {
		if id == 0 {
			newID, err := tx.InsertJob(ctx, header)
			if err != nil {
				return err
			}
			id = newID
		} else if err := tx.UpdateJob(ctx, header); err != nil {
			return err
		}
		return tx.ReplaceLines(ctx, id, lines)
	})
	if err != nil {
		return 0, errors.Wrap(err, "save estimate")
	}

	a.id = id
	a.date = header.EstimateDate
	return id, nil
}

// Load rehydrates from a persisted estimate. With asDuplicate the result is
// an unsaved copy whose job name ends in " (Copy)".
func (a *Aggregate) Load(ctx context.Context, jobID int64, asDuplicate bool) error {
	job, err := a.repo.GetJob(ctx, jobID)
	if err != nil {
		return errors.Wrapf(err, "load estimate %d", jobID)
	}
	if job == nil {
		return ErrJobNotFound
	}

	a.id = job.ID
	a.customerID = job.CustomerID
	a.jobName = job.JobName
	a.date = job.EstimateDate
	a.adj = job.Adjustments
	a.lines = make([]LineItem, len(job.Lines))
	copy(a.lines, job.Lines)

	if asDuplicate {
		a.id = 0
		a.jobName += CopySuffix
		a.date = a.now()
	}
	return nil
}

// Detach turns the estimate into an unsaved one, keeping its contents. Used
// when the saved row it was loaded from is gone; the next Save inserts.
func (a *Aggregate) Detach() { a.id = 0 }

// Delete removes the persisted estimate and its lines, then resets to a new
// unsaved estimate.
func (a *Aggregate) Delete(ctx context.Context) error {
	if a.id == 0 {
		return ErrNotSaved
	}
	id := a.id
	err := a.repo.WithTx(ctx, func(tx Tx) error {
		return tx.DeleteJob(ctx, id)
	})
	if err != nil {
		return errors.Wrapf(err, "delete estimate %d", id)
	}
	a.Reset()
	return nil
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a read-only copy of an estimate for rendering.
type Snapshot struct {
	ID          int64
	CustomerID  int64
	JobName     string
	Date        time.Time
	Lines       []LineItem
	Adjustments Adjustments
	Totals      Totals
}

// Snapshot captures the current state.
func (a *Aggregate) Snapshot() Snapshot {
	return Snapshot{
		ID:          a.id,
		CustomerID:  a.customerID,
		JobName:     a.jobName,
		Date:        a.date,
		Lines:       a.Lines(),
		Adjustments: a.adj,
		Totals:      a.Totals(),
	}
}

// SnapshotOf builds a snapshot from a persisted job without an editing
// session.
func SnapshotOf(job Job) Snapshot {
	lines := make([]LineItem, len(job.Lines))
	copy(lines, job.Lines)
	return Snapshot{
		ID:          job.ID,
		CustomerID:  job.CustomerID,
		JobName:     job.JobName,
		Date:        job.EstimateDate,
		Lines:       lines,
		Adjustments: job.Adjustments,
		Totals:      Compute(lines, job.Adjustments),
	}
}
