package render

import (
	"strconv"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/pkg/errors"

	"github.com/warp/cabinet-estimator/estimate"
)

var (
	grey      = &props.Color{Red: 120, Green: 120, Blue: 120}
	lightGrey = &props.Color{Red: 240, Green: 240, Blue: 240}
	dark      = &props.Color{Red: 33, Green: 37, Blue: 41}
	white     = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// PDF renders doc as an A4 portrait PDF and returns the file bytes.
func PDF(doc Document) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    7,
			Color:   grey,
		}).
		Build()

	m := maroto.New(cfg)

	addPDFHeader(m, doc)
	addPDFTableHeader(m)
	for _, l := range doc.Estimate.Lines {
		addPDFLine(m, l)
	}
	addPDFSummary(m, doc)

	out, err := m.Generate()
	if err != nil {
		return nil, errors.Wrap(err, "generate PDF")
	}
	return out.GetBytes(), nil
}

func addPDFHeader(m core.Maroto, doc Document) {
	m.AddRows(
		row.New(12).Add(
			col.New(12).Add(
				text.New(Title, props.Text{Size: 18, Style: fontstyle.Bold, Align: align.Center}),
			),
		),
		row.New(5),
	)

	for i, line := range doc.ContactLines() {
		style := props.Text{Size: 11}
		if i == 0 {
			style.Style = fontstyle.Bold
		}
		m.AddRows(row.New(6).Add(col.New(12).Add(text.New(line, style))))
	}
	m.AddRows(
		row.New(6).Add(col.New(12).Add(text.New(doc.PrintedDate(), props.Text{Size: 11}))),
		row.New(8),
	)
}

func addPDFTableHeader(m core.Maroto) {
	header := props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Center, Color: white}
	left := header
	left.Align = align.Left
	right := header
	right.Align = align.Right
	cell := &props.Cell{BackgroundColor: dark}

	m.AddRows(
		row.New(8).Add(
			col.New(6).Add(text.New("Item Description", left)).WithStyle(cell),
			col.New(2).Add(text.New("Quantity", header)).WithStyle(cell),
			col.New(2).Add(text.New("Unit Price", right)).WithStyle(cell),
			col.New(2).Add(text.New("Total Price", right)).WithStyle(cell),
		),
	)
}

func addPDFLine(m core.Maroto, l estimate.LineItem) {
	base := props.Text{Size: 10, Align: align.Center, Top: 1}
	left := base
	left.Align = align.Left
	right := base
	right.Align = align.Right

	m.AddRows(
		row.New(7).Add(
			col.New(6).Add(text.New(l.Name, left)),
			col.New(2).Add(text.New(strconv.Itoa(l.Quantity), base)),
			col.New(2).Add(text.New(Money(l.UnitPrice), right)),
			col.New(2).Add(text.New(Money(l.Total()), right)),
		),
	)
}

func addPDFSummary(m core.Maroto, doc Document) {
	m.AddRows(row.New(4))

	for _, s := range doc.Summary() {
		style := props.Text{Size: 10, Align: align.Right}
		height := 7.0
		var cell *props.Cell
		if s.Strong {
			style.Style = fontstyle.Bold
		}
		if s.Label == "Grand Total" {
			style.Size = 12
			height = 9
			cell = &props.Cell{BackgroundColor: lightGrey}
		}

		label := col.New(9).Add(text.New(s.Label+":", style))
		value := col.New(3).Add(text.New(Money(s.Amount), style))
		if cell != nil {
			label = label.WithStyle(cell)
			value = value.WithStyle(cell)
		}
		m.AddRows(row.New(height).Add(label, value))
	}
}
