/*
Package exchange reads and writes price lists as CSV or XLSX files.

PURPOSE:
  Move a whole price list in and out of the estimator. Files carry three
  columns, Category, ItemName and UnitPrice, with categories referenced by
  name so an import can create them.

IMPORT RULES:
  - The first row is a header and is skipped
  - Every data row is parsed before anything is returned; the first bad
    row aborts the whole read with a *RowError
  - Blank lines are ignored
  - Prices accept an optional "$" and thousands separators

SEE ALSO:
  - store/sqlite/pricelist.go: PriceListEntries, ReplacePriceList
*/
package exchange

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/cabinet-estimator/catalog"
)

// Format is a price-list file format.
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
)

// Header is the column header row written on export.
var Header = []string{"Category", "ItemName", "UnitPrice"}

// SheetName is the worksheet used for XLSX price lists.
const SheetName = "Price List"

// ErrUnknownFormat is returned for a format other than csv or xlsx.
var ErrUnknownFormat = errors.New("unknown price list format")

// ErrEmptyFile is returned when a file has no header row.
var ErrEmptyFile = errors.New("price list file is empty")

// RowError identifies the first invalid row of an import. Row is the
// 1-based line number in the file, header included.
type RowError struct {
	Row    int
	Field  string
	Reason string
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Reason)
}

// ParseFormat accepts "csv" or "xlsx" in any case. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", CSV:
		return CSV, nil
	case XLSX:
		return XLSX, nil
	}
	return "", errors.Wrap(ErrUnknownFormat, s)
}

// FormatFromPath picks the format from a file extension, defaulting to CSV.
func FormatFromPath(path string) Format {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return XLSX
	}
	return CSV
}

// ContentType returns the MIME type of files in format f.
func (f Format) ContentType() string {
	if f == XLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// =============================================================================
// READ
// =============================================================================

// ReadPriceList parses a whole price list. Nothing is returned unless every
// row is valid.
func ReadPriceList(r io.Reader, format Format) ([]catalog.PriceListEntry, error) {
	var (
		rows [][]string
		err  error
	)
	switch format {
	case CSV:
		rows, err = readCSV(r)
	case XLSX:
		rows, err = readXLSX(r)
	default:
		return nil, errors.Wrap(ErrUnknownFormat, string(format))
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}

	entries := make([]catalog.PriceListEntry, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		e, err := parseRow(i+2, row)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse CSV")
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "open Excel file")
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, errors.Wrap(err, "read sheet")
	}
	return rows, nil
}

func parseRow(n int, row []string) (catalog.PriceListEntry, error) {
	// Spreadsheets drop trailing empty cells, so short rows are padded.
	for len(row) < len(Header) {
		row = append(row, "")
	}
	if len(row) > len(Header) && !isBlank(row[len(Header):]) {
		return catalog.PriceListEntry{}, &RowError{Row: n, Reason: fmt.Sprintf("expected %d columns, got %d", len(Header), len(row))}
	}

	category := strings.TrimSpace(row[0])
	if category == "" {
		return catalog.PriceListEntry{}, &RowError{Row: n, Field: "Category", Reason: "is required"}
	}
	name := strings.TrimSpace(row[1])
	if name == "" {
		return catalog.PriceListEntry{}, &RowError{Row: n, Field: "ItemName", Reason: "is required"}
	}

	raw := strings.NewReplacer("$", "", ",", "").Replace(strings.TrimSpace(row[2]))
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return catalog.PriceListEntry{}, &RowError{Row: n, Field: "UnitPrice", Reason: fmt.Sprintf("%q is not a number", row[2])}
	}
	if price.IsNegative() {
		return catalog.PriceListEntry{}, &RowError{Row: n, Field: "UnitPrice", Reason: "cannot be negative"}
	}

	return catalog.PriceListEntry{Category: category, ItemName: name, UnitPrice: price}, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// =============================================================================
// WRITE
// =============================================================================

// WritePriceList writes entries with a header row.
func WritePriceList(w io.Writer, format Format, entries []catalog.PriceListEntry) error {
	switch format {
	case CSV:
		return writeCSV(w, entries)
	case XLSX:
		return writeXLSX(w, entries)
	}
	return errors.Wrap(ErrUnknownFormat, string(format))
}

func writeCSV(w io.Writer, entries []catalog.PriceListEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "write CSV header")
	}
	for _, e := range entries {
		if err := cw.Write([]string{e.Category, e.ItemName, e.UnitPrice.String()}); err != nil {
			return errors.Wrap(err, "write CSV row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "write CSV")
}

func writeXLSX(w io.Writer, entries []catalog.PriceListEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return errors.Wrap(err, "name sheet")
	}
	f.SetColWidth(sheet, "A", "A", 24)
	f.SetColWidth(sheet, "B", "B", 40)
	f.SetColWidth(sheet, "C", "C", 14)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
	})
	priceStyle, _ := f.NewStyle(&excelize.Style{NumFmt: 2})

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	f.SetCellStyle(sheet, "A1", "C1", headerStyle)

	for i, e := range entries {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), e.Category)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), e.ItemName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), e.UnitPrice.InexactFloat64())
		f.SetCellStyle(sheet, fmt.Sprintf("C%d", row), fmt.Sprintf("C%d", row), priceStyle)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return errors.Wrap(err, "write Excel file")
	}
	_, err := w.Write(buf.Bytes())
	return err
}
