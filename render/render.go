/*
Package render turns an estimate into a printable document.

PURPOSE:
  Produce the customer-facing estimate as a PDF (maroto) or a spreadsheet
  (excelize). Both formats share the same content: title, customer block,
  date, one row per line item and the totals block.

TOTALS BLOCK:
  Subtotal          always
  Markup (p%)       only when the markup amount is positive
  Installation      only when the install total is positive
  Misc              only when non-zero (may be negative)
  Grand Total       always

  Amounts are rounded to cents only here; the estimate keeps exact values.

SEE ALSO:
  - estimate/totals.go: Compute
*/
package render

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/cabinet-estimator/catalog"
	"github.com/warp/cabinet-estimator/estimate"
)

// Title heads every document.
const Title = "Custom Cabinet Estimate"

// DateLayout is the printed date format.
const DateLayout = "01-02-2006"

// Document is everything needed to print one estimate.
type Document struct {
	Estimate estimate.Snapshot
	Customer catalog.Customer
	// Date is printed under the customer block. Zero means the estimate date,
	// or today for an unsaved estimate.
	Date time.Time
}

// PrintedDate resolves the date shown on the document.
func (d Document) PrintedDate() string {
	switch {
	case !d.Date.IsZero():
		return d.Date.Format(DateLayout)
	case !d.Estimate.Date.IsZero():
		return d.Estimate.Date.Format(DateLayout)
	}
	return time.Now().Format(DateLayout)
}

// ContactLines returns the customer name followed by the non-empty address
// and phone.
func (d Document) ContactLines() []string {
	lines := []string{d.Customer.Name}
	for _, s := range []string{d.Customer.Address, d.Customer.Phone} {
		if strings.TrimSpace(s) != "" {
			lines = append(lines, s)
		}
	}
	return lines
}

// SummaryLine is one labelled amount of the totals block.
type SummaryLine struct {
	Label  string
	Amount decimal.Decimal
	Strong bool
}

// Summary returns the totals block in print order.
func (d Document) Summary() []SummaryLine {
	t := d.Estimate.Totals
	out := []SummaryLine{{Label: "Subtotal", Amount: t.Subtotal, Strong: true}}
	if t.MarkupAmount.IsPositive() {
		out = append(out, SummaryLine{
			Label:  "Markup (" + d.Estimate.Adjustments.MarkupPercent.String() + "%)",
			Amount: t.MarkupAmount,
		})
	}
	if t.InstallTotal.IsPositive() {
		out = append(out, SummaryLine{Label: "Installation", Amount: t.InstallTotal})
	}
	if !t.MiscCharge.IsZero() {
		out = append(out, SummaryLine{Label: "Misc", Amount: t.MiscCharge})
	}
	return append(out, SummaryLine{Label: "Grand Total", Amount: t.GrandTotal, Strong: true})
}

// Money formats d as dollars with thousands separators, e.g. $1,234.56.
func Money(d decimal.Decimal) string {
	raw := d.Abs().StringFixed(2)
	intPart, decPart, _ := strings.Cut(raw, ".")

	var b strings.Builder
	if d.Round(2).IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	b.WriteString(groupThousands(intPart))
	b.WriteByte('.')
	b.WriteString(decPart)
	return b.String()
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	head := len(s) % 3
	var b strings.Builder
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
