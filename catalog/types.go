/*
Package catalog holds the reference data an estimate is built from.

PURPOSE:
  Customers, price-list categories and price-list items. These are edited
  through explicit manager operations and never depend on an open estimate.

KEY CONCEPTS:
  - Category:  A named, ordered group of price items
  - Sentinel:  The "Uncategorized" category. Always present, always listed
               last, never renamed, moved or deleted. Items of a deleted
               category are reassigned to it.
  - PriceItem: A sellable item with a unit price, ordered within its category
  - Direction: Relative move of a category or item among its siblings

ORDERING:
  SortOrder values are only compared, never shown. Moves swap the SortOrder
  of two adjacent siblings; the store renumbers a scope densely after a
  delete so adjacent values stay adjacent.

SEE ALSO:
  - errors.go: Sentinel and structured errors
  - store/sqlite/catalog.go: Persistence
*/
package catalog

import (
	"strings"

	"github.com/shopspring/decimal"
)

// UncategorizedName is the name of the sentinel category.
const UncategorizedName = "Uncategorized"

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is a client an estimate is prepared for.
type Customer struct {
	ID      int64  `db:"id"`
	Name    string `db:"name"`
	Address string `db:"address"`
	Phone   string `db:"phone"`
	Email   string `db:"email"`
}

// Normalize trims every text field.
func (c Customer) Normalize() Customer {
	c.Name = strings.TrimSpace(c.Name)
	c.Address = strings.TrimSpace(c.Address)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Email = strings.TrimSpace(c.Email)
	return c
}

// Validate checks required fields. Call after Normalize.
func (c Customer) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Reason: "customer name is required"}
	}
	return nil
}

// =============================================================================
// CATEGORY
// =============================================================================

// Category groups price items.
type Category struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	SortOrder int    `db:"sort_order"`
}

// IsSentinel reports whether c is the Uncategorized category.
// Detection is by name, never by id.
func (c Category) IsSentinel() bool {
	return IsSentinelName(c.Name)
}

// IsSentinelName reports whether name refers to the sentinel category.
func IsSentinelName(name string) bool {
	return strings.TrimSpace(name) == UncategorizedName
}

// ValidateCategoryName trims name and checks it is usable for a new or
// renamed category.
func ValidateCategoryName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "name", Reason: "category name is required"}
	}
	return name, nil
}

// =============================================================================
// PRICE ITEM
// =============================================================================

// PriceItem is one row of the price list.
type PriceItem struct {
	ID           int64           `db:"id"`
	Name         string          `db:"item_name"`
	UnitPrice    decimal.Decimal `db:"unit_price"`
	SortOrder    int             `db:"sort_order"`
	CategoryID   int64           `db:"category_id"`
	CategoryName string          `db:"category_name"`
}

// Validate checks name, price and category. Name is trimmed in place.
func (p *PriceItem) Validate() error {
	name, err := validateItem(p.Name, p.UnitPrice)
	if err != nil {
		return err
	}
	p.Name = name
	if p.CategoryID <= 0 {
		return &ValidationError{Field: "category_id", Reason: "category is required"}
	}
	return nil
}

// PriceListEntry is one row of an exported or imported price list. Categories
// are referenced by name so a file can create them.
type PriceListEntry struct {
	Category  string          `db:"category_name"`
	ItemName  string          `db:"item_name"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

// Validate checks the category name, item name and price. Names are trimmed
// in place.
func (e *PriceListEntry) Validate() error {
	category, err := ValidateCategoryName(e.Category)
	if err != nil {
		return err
	}
	name, err := validateItem(e.ItemName, e.UnitPrice)
	if err != nil {
		return err
	}
	e.Category, e.ItemName = category, name
	return nil
}

func validateItem(name string, price decimal.Decimal) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "item_name", Reason: "item name is required"}
	}
	if price.IsNegative() {
		return "", &ValidationError{Field: "unit_price", Reason: "unit price cannot be negative"}
	}
	return name, nil
}

// =============================================================================
// DIRECTION
// =============================================================================

// Direction is a relative move among ordered siblings.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts "up" or "down" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	}
	return "", &ValidationError{Field: "direction", Reason: "direction must be up or down"}
}

// Neighbor returns the index of the sibling to swap with, or -1 when the move
// would leave the list (a no-op).
func (d Direction) Neighbor(index, length int) int {
	switch d {
	case Up:
		if index > 0 && index < length {
			return index - 1
		}
	case Down:
		if index >= 0 && index < length-1 {
			return index + 1
		}
	}
	return -1
}
