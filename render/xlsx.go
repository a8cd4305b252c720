package render

import (
	"bytes"
	"strconv"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding a rendered estimate.
const SheetName = "Estimate"

var moneyFormat = "$#,##0.00"

// XLSX renders doc as a single-sheet workbook and returns the file bytes.
// Amounts are written as numbers with a currency format so the sheet can
// be recalculated.
func XLSX(doc Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, errors.Wrap(err, "set sheet name")
	}
	for col, width := range map[string]float64{"A": 48, "B": 12, "C": 16, "D": 16} {
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return nil, errors.Wrapf(err, "set col width %s", col)
		}
	}

	styles, err := newSheetStyles(f)
	if err != nil {
		return nil, err
	}

	// Title and customer block
	if err := f.MergeCell(sheet, "A1", "D1"); err != nil {
		return nil, errors.Wrap(err, "merge title")
	}
	f.SetCellValue(sheet, "A1", Title)
	f.SetCellStyle(sheet, "A1", "D1", styles.title)

	r := 3
	for i, line := range doc.ContactLines() {
		cell := "A" + strconv.Itoa(r)
		f.SetCellValue(sheet, cell, sanitizeCell(line))
		if i == 0 {
			f.SetCellStyle(sheet, cell, cell, styles.bold)
		}
		r++
	}
	f.SetCellValue(sheet, "A"+strconv.Itoa(r), doc.PrintedDate())
	r += 2

	// Line table
	header := strconv.Itoa(r)
	for i, h := range []string{"Item Description", "Quantity", "Unit Price", "Total Price"} {
		cell, _ := excelize.CoordinatesToCellName(i+1, r)
		f.SetCellValue(sheet, cell, h)
	}
	f.SetCellStyle(sheet, "A"+header, "D"+header, styles.header)
	r++

	for _, l := range doc.Estimate.Lines {
		n := strconv.Itoa(r)
		f.SetCellValue(sheet, "A"+n, sanitizeCell(l.Name))
		f.SetCellValue(sheet, "B"+n, l.Quantity)
		f.SetCellValue(sheet, "C"+n, l.UnitPrice.InexactFloat64())
		f.SetCellValue(sheet, "D"+n, l.Total().InexactFloat64())
		f.SetCellStyle(sheet, "C"+n, "D"+n, styles.money)
		r++
	}
	r++

	// Totals block
	for _, s := range doc.Summary() {
		n := strconv.Itoa(r)
		f.SetCellValue(sheet, "C"+n, s.Label+":")
		f.SetCellValue(sheet, "D"+n, s.Amount.Round(2).InexactFloat64())
		label, value := styles.label, styles.money
		if s.Strong {
			label, value = styles.strongLabel, styles.strongMoney
		}
		f.SetCellStyle(sheet, "C"+n, "C"+n, label)
		f.SetCellStyle(sheet, "D"+n, "D"+n, value)
		r++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, errors.Wrap(err, "write workbook")
	}
	return buf.Bytes(), nil
}

type sheetStyles struct {
	title, bold, header int
	money, strongMoney  int
	label, strongLabel  int
}

func newSheetStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&s.title, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 16},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&s.bold, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&s.header, &excelize.Style{
			Font: &excelize.Font{Bold: true, Color: "#FFFFFF"},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#333333"}, Pattern: 1},
		}},
		{&s.money, &excelize.Style{CustomNumFmt: &moneyFormat}},
		{&s.strongMoney, &excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFormat}},
		{&s.label, &excelize.Style{Alignment: &excelize.Alignment{Horizontal: "right"}}},
		{&s.strongLabel, &excelize.Style{
			Font:      &excelize.Font{Bold: true},
			Alignment: &excelize.Alignment{Horizontal: "right"},
		}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return s, errors.Wrap(err, "create style")
		}
		*d.dst = id
	}
	return s, nil
}

// sanitizeCell stops free text from being read as a formula.
func sanitizeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r', '|':
		return "'" + s
	}
	return s
}
