package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// word places text at (x, y) with 5pt per character and 8pt height.
func word(text string, x, y float64) ocr.Word {
	return ocr.Word{Text: text, X0: x, X1: x + 5*float64(len(text)), Y0: y, Y1: y + 8}
}

// ruledInvoicePage draws a six column grid with a header and two item rows.
func ruledInvoicePage() ocr.PageLayout {
	xs := []float64{10, 40, 200, 260, 330, 400, 480}
	ys := []float64{700, 680, 660, 640}

	var page ocr.PageLayout
	for _, y := range ys {
		page.Rules = append(page.Rules, ocr.Rule{X0: 10, Y0: y, X1: 480, Y1: y})
	}
	for _, x := range xs {
		page.Rules = append(page.Rules, ocr.Rule{X0: x, Y0: 640, X1: x, Y1: 700})
	}
	header := 686.0
	row1 := 666.0
	row2 := 646.0
	page.Words = []ocr.Word{
		word("Sl", 15, header), word("Description", 45, header), word("HSN", 205, header),
		word("Quantity", 262, header), word("Rate", 335, header), word("Amount", 405, header),

		word("1", 15, row1), word("Ceramic", 45, row1), word("Tile", 90, row1), word("600x600", 115, row1),
		word("6907", 205, row1), word("10", 265, row1), word("NOS", 280, row1),
		word("250.00", 335, row1), word("2,500.00", 405, row1),

		word("2", 15, row2), word("Wall", 45, row2), word("Putty", 70, row2),
		word("3214", 205, row2), word("4", 265, row2), word("NOS", 275, row2),
		word("125.50", 335, row2), word("502.00", 405, row2),
	}
	return page
}

func TestGridsReadsRuledCells(t *testing.T) {
	te := NewTableExtractor(lexicon.Default(), DefaultTableOptions())
	grids := te.Grids(ruledInvoicePage())
	require.Len(t, grids, 1)
	grid := grids[0]
	require.Len(t, grid, 3)
	require.Len(t, grid[0], 6)
	assert.Equal(t, "Description", grid[0][1])
	assert.Equal(t, "Ceramic Tile 600x600", grid[1][1])
	assert.Equal(t, "10 NOS", grid[1][3])
	assert.Equal(t, "2,500.00", grid[1][5])
}

func TestGridsNeedTwoRows(t *testing.T) {
	te := NewTableExtractor(lexicon.Default(), DefaultTableOptions())
	page := ocr.PageLayout{Rules: []ocr.Rule{
		{X0: 10, Y0: 700, X1: 480, Y1: 700},
		{X0: 10, Y0: 680, X1: 480, Y1: 680},
		{X0: 10, Y0: 680, X1: 10, Y1: 700},
		{X0: 480, Y0: 680, X1: 480, Y1: 700},
	}}
	assert.Empty(t, te.Grids(page))
}

func TestTableExtractMapsHeaderColumns(t *testing.T) {
	te := NewTableExtractor(lexicon.Default(), DefaultTableOptions())
	lines := te.Extract([]ocr.PageLayout{ruledInvoicePage()})
	require.Len(t, lines, 2)

	first := lines[0]
	assert.Equal(t, "Ceramic Tile 600x600", first.Description)
	assert.Equal(t, "6907", first.TaxCode)
	assert.Equal(t, "NOS", first.UOM)
	assert.Equal(t, "10.000", first.Quantity.StringFixed(3))
	assert.Equal(t, "250.00", first.UnitPrice.StringFixed(2))
	assert.Equal(t, "2500.00", first.LineTotal.StringFixed(2))
	assert.Equal(t, 0.985, first.Confidence)
	assert.Equal(t, constants.SourceTable, first.Source)

	assert.Equal(t, "Wall Putty", lines[1].Description)
	assert.Equal(t, "502.00", lines[1].LineTotal.StringFixed(2))
}

func TestTableHeaderIndexExcludesTaxColumns(t *testing.T) {
	cm, found := headerIndex([]string{"Sl", "Particulars", "HSN/SAC", "Qty", "GST %", "Rate", "Taxable Value", "Amount"})
	assert.Equal(t, 5, found)
	assert.Equal(t, 1, cm.desc)
	assert.Equal(t, 2, cm.hsn)
	assert.Equal(t, 3, cm.qty)
	assert.Equal(t, 5, cm.rate)
	assert.Equal(t, 7, cm.amount)
}

func TestTableWithoutHeaderUsesPositions(t *testing.T) {
	te := NewTableExtractor(lexicon.Default(), DefaultTableOptions())
	lines := te.rows([][]string{
		{"1", "Glazed Tile", "6907", "5 BOX", "400.00", "2,000.00"},
		{"2", "Tile Spacer", "3926", "2 PKT", "50.00", "100.00"},
	})
	require.Len(t, lines, 2)
	assert.Equal(t, "BOX", lines[0].UOM)
	assert.Equal(t, "2000.00", lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "Tile Spacer", lines[1].Description)
}
