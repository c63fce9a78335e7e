package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

type stubSource struct {
	res ocr.Result
	err error
}

func (s stubSource) Extract(context.Context, string) (ocr.Result, error) {
	return s.res, s.err
}

func newTestEngine(src TextSource) *Engine {
	return NewEngine(lexicon.Default(), src, DefaultOptions(), nil)
}

const tallyInvoice = tallyHeader +
	"Sl No. Description of Goods HSN/SAC Quantity Rate per Amount\n" +
	"1 Ceramic Tile 600x600 3305 10 NOS 250.00 NOS 2,500.00\n" +
	"2 Wall Putty White 3214 4 NOS 125.50 NOS 502.00\n" +
	"CGST @9% 270.18\n" +
	"SGST @9% 270.18\n" +
	"Total 3,542.36\n"

func TestExtractTextSingleLine(t *testing.T) {
	e := newTestEngine(nil)
	b, err := e.ExtractText(context.Background(), "Ceramic Tile 600x600 3305 10 NOS 250.00 2500.00", nil, nil)
	require.NoError(t, err)
	require.Len(t, b.Lines, 1)

	l := b.Lines[0]
	assert.Equal(t, "Ceramic Tile 600x600", l.Description)
	assert.Equal(t, "3305", l.TaxCode)
	assert.Equal(t, "10.000", l.Quantity.StringFixed(3))
	assert.Equal(t, "250.00", l.UnitPrice.StringFixed(2))
	assert.Equal(t, "2500.00", l.LineTotal.StringFixed(2))
	assert.Equal(t, 0.95, l.Confidence)
	assert.False(t, l.Flagged)
	assert.NotNil(t, l.CandidateProductIDs)
	assert.Nil(t, l.ResolvedProductID)

	assert.Equal(t, constants.TotalSumOfLines, b.Header.GrandTotalSource)
	assert.Equal(t, "2500.00", b.Header.GrandTotal.StringFixed(2))
	// no tax id on the page
	assert.True(t, b.Header.HasReview(constants.ReviewVendorLowConfidence))
}

func TestExtractTextTallyInvoice(t *testing.T) {
	e := newTestEngine(nil)
	b, err := e.ExtractText(context.Background(), tallyInvoice, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "A2Z Buildwares", b.Header.VendorName)
	assert.Equal(t, "32ABCDE1234F1Z5", b.Header.TaxID)
	assert.Equal(t, "A2Z/1234/24-25", b.Header.InvoiceNumber)
	assert.Equal(t, "3542.36", b.Header.GrandTotal.StringFixed(2))
	assert.Equal(t, constants.TotalStated, b.Header.GrandTotalSource)
	assert.Equal(t, "270.18", b.Header.Taxes.CGST.StringFixed(2))
	assert.False(t, b.Header.NeedsReview, b.Header.ReviewReasons)
	assert.Empty(t, b.Header.ReviewReasons)

	require.Len(t, b.Lines, 2)
	assert.Equal(t, "Ceramic Tile 600x600", b.Lines[0].Description)
	assert.Equal(t, "Wall Putty White", b.Lines[1].Description)

	require.NotNil(t, b.Vendor)
	assert.Equal(t, "A2Z Buildwares", b.Vendor.CanonicalName)
	assert.Equal(t, "32", b.Vendor.StateCode)
	assert.Equal(t, "+914802731800, +919876543210", b.Vendor.Phone)
	assert.Equal(t, VendorSourceGSTIN, b.Vendor.Source)
}

func TestExtractTextTotalsMismatch(t *testing.T) {
	text := "Ceramic Tile 600x600 3305 1 NOS 1000.00 1000.00\n" +
		"CGST @9% 90.00\n" +
		"SGST @9% 89.50\n" +
		"Grand Total 1400.00\n"
	b, err := newTestEngine(nil).ExtractText(context.Background(), text, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "1400.00", b.Header.GrandTotal.StringFixed(2))
	assert.True(t, b.Header.HasReview(constants.ReviewTotalsMismatch))
	assert.True(t, b.Header.NeedsReview)
}

func TestExtractTextQuantityBound(t *testing.T) {
	e := newTestEngine(nil)

	_, err := e.ExtractText(context.Background(), "Steel Bar 7214 2,000,000 NOS 1.00 2,000,000.00", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNoUsableLines))
	var xerr *ExtractionError
	require.True(t, errors.As(err, &xerr))
	assert.Equal(t, CodeNoUsableLines, xerr.Code)
	require.NotNil(t, xerr.Partial)
	assert.True(t, xerr.Partial.Header.NeedsReview)
	assert.True(t, xerr.Partial.Header.HasReview(constants.ReviewNoUsableLines))

	b, err := e.ExtractText(context.Background(), "Steel Bar 7214 999,999 NOS 1.00 999,999.00", nil, nil)
	require.NoError(t, err)
	require.Len(t, b.Lines, 1)
	assert.Equal(t, "999999.000", b.Lines[0].Quantity.StringFixed(3))
}

func TestExtractTextIsDeterministic(t *testing.T) {
	e := newTestEngine(nil)
	first, err := e.ExtractText(context.Background(), tallyInvoice, nil, nil)
	require.NoError(t, err)
	second, err := e.ExtractText(context.Background(), tallyInvoice, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractTextPrefersRuledTable(t *testing.T) {
	e := newTestEngine(nil)
	text := "1 Ceramic Tile 600x600 6907 10 NOS 250.00 2,500.00\n2 Wall Putty 3214 4 NOS 125.50 502.00\n"
	b, err := e.ExtractText(context.Background(), text, []ocr.PageLayout{ruledInvoicePage()}, nil)
	require.NoError(t, err)
	require.Len(t, b.Lines, 2)
	for _, l := range b.Lines {
		assert.Equal(t, constants.SourceTable, l.Source)
		assert.Equal(t, 0.985, l.Confidence)
	}
	assert.False(t, b.Header.HasReview(constants.ReviewStrategyDivergence))
}

func TestExtractTextResolvesCatalog(t *testing.T) {
	catalog := []entity.CatalogItem{
		{ID: "p-1", Code: "CT-600", Name: "Ceramic Tile 600x600"},
		{ID: "p-2", Code: "WP-40", Name: "Wall Putty 40kg"},
	}
	b, err := newTestEngine(nil).ExtractText(context.Background(), "Ceramic Tile 600x600 3305 10 NOS 250.00 2500.00", nil, catalog)
	require.NoError(t, err)
	require.Len(t, b.Lines, 1)
	l := b.Lines[0]
	require.NotNil(t, l.ResolvedProductID)
	assert.Equal(t, "p-1", *l.ResolvedProductID)
	assert.InDelta(t, 1.0, l.MatchScore, 1e-9)
	assert.Equal(t, 0.95, l.Confidence)
}

func TestExtractFlagsFileNameAsInvoiceNumber(t *testing.T) {
	src := stubSource{res: ocr.Result{
		Text:   "Invoice No. : SCAN0042\nCeramic Tile 600x600 3305 10 NOS 250.00 2500.00",
		Pages:  1,
		Method: ocr.MethodOCR,
	}}
	b, err := newTestEngine(src).Extract(context.Background(), "/inbox/scan0042.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, "SCAN0042", b.Header.InvoiceNumber)
	assert.True(t, b.Header.HasReview(constants.ReviewInvoiceNumberIsFile))
	assert.Equal(t, ocr.MethodOCR, b.TextMethod)
	assert.Equal(t, 1, b.Pages)
}

func TestExtractUnreadable(t *testing.T) {
	src := stubSource{err: common.NewAppError("UNREADABLE_DOCUMENT", "no text", common.ErrUnreadableDocument)}
	_, err := newTestEngine(src).Extract(context.Background(), "/inbox/blank.pdf", nil)
	var xerr *ExtractionError
	require.True(t, errors.As(err, &xerr))
	assert.Equal(t, CodeUnreadableDocument, xerr.Code)
	assert.True(t, errors.Is(err, common.ErrUnreadableDocument))

	_, err = newTestEngine(nil).ExtractText(context.Background(), "  \n ", nil, nil)
	assert.True(t, errors.Is(err, common.ErrUnreadableDocument))
}

func TestExtractTextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine(nil).ExtractText(ctx, tallyInvoice, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
