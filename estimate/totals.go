package estimate

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Totals is the derived money block of an estimate.
type Totals struct {
	Subtotal     decimal.Decimal
	MarkupAmount decimal.Decimal
	InstallTotal decimal.Decimal
	MiscCharge   decimal.Decimal
	GrandTotal   decimal.Decimal
}

// Compute derives totals from lines and adjustments. It has no side effects.
func Compute(lines []LineItem, adj Adjustments) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.Total())
	}
	markup := subtotal.Mul(adj.MarkupPercent).Div(hundred)
	install := adj.InstallTotal()

	return Totals{
		Subtotal:     subtotal,
		MarkupAmount: markup,
		InstallTotal: install,
		MiscCharge:   adj.MiscCharge,
		GrandTotal:   subtotal.Add(markup).Add(install).Add(adj.MiscCharge),
	}
}

// =============================================================================
// INPUT PARSING - raw form text to numbers
// =============================================================================

// AdjustmentInput is the raw text of the adjustment fields.
type AdjustmentInput struct {
	MarkupPercent    string `json:"markup_percent"`
	InstallQty       string `json:"install_qty"`
	InstallUnitPrice string `json:"install_unit_price"`
	MiscCharge       string `json:"misc_charge"`
}

// ParseOrZero reads a number from live form input. Blank or unparsable text
// is zero. A leading "$", a trailing "%" and thousands separators are ignored.
func ParseOrZero(s string) decimal.Decimal {
	s = cleanNumber(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseAdjustments converts raw adjustment text. Each field parses on its
// own; a blank install quantity is zero even when a price is present.
func ParseAdjustments(in AdjustmentInput) Adjustments {
	return Adjustments{
		MarkupPercent:    ParseOrZero(in.MarkupPercent),
		InstallQty:       ParseOrZero(in.InstallQty),
		InstallUnitPrice: ParseOrZero(in.InstallUnitPrice),
		MiscCharge:       ParseOrZero(in.MiscCharge),
	}
}

// ParseQuantity reads a whole-number quantity.
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &InputError{Field: "quantity", Reason: "quantity is required"}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &InputError{Field: "quantity", Reason: "quantity must be a whole number"}
	}
	return n, nil
}

// ParsePrice reads a required price.
func ParsePrice(s string) (decimal.Decimal, error) {
	s = cleanNumber(s)
	if s == "" {
		return decimal.Zero, &InputError{Field: "unit_price", Reason: "unit price is required"}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &InputError{Field: "unit_price", Reason: "unit price must be a number"}
	}
	return d, nil
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}
