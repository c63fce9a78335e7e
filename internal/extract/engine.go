package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
	"github.com/joseph-ayodele/invoice-extractor/internal/matching"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// Options are the tunable engine thresholds.
type Options struct {
	TableMinRows      int
	HeaderScanLines   int
	FuzzyMatchMinimum float64
	Table             TableOptions
}

func DefaultOptions() Options {
	return Options{
		TableMinRows:      DefaultReconcileConfig().TableMinRows,
		HeaderScanLines:   35,
		FuzzyMatchMinimum: matching.DefaultFuzzyMinimum,
		Table:             DefaultTableOptions(),
	}
}

// OptionsFromApp maps the environment configuration onto engine options.
func OptionsFromApp(c common.ExtractConfig) Options {
	o := DefaultOptions()
	if c.TableMinRows > 0 {
		o.TableMinRows = c.TableMinRows
	}
	if c.HeaderScanLines > 0 {
		o.HeaderScanLines = c.HeaderScanLines
	}
	if c.FuzzyMatchMinimum > 0 {
		o.FuzzyMatchMinimum = c.FuzzyMatchMinimum
	}
	return o
}

// Engine turns one invoice into an ExtractionBundle. It keeps no state
// between calls and is safe for concurrent use.
type Engine struct {
	source     TextSource
	header     *HeaderParser
	grammar    *Grammar
	table      *TableExtractor
	reconciler *Reconciler
	fuzzyMin   float64
	logger     *slog.Logger
}

func NewEngine(lx *lexicon.Lexicon, source TextSource, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if lx == nil {
		lx = lexicon.Default()
	}
	if opts.Table == (TableOptions{}) {
		opts.Table = DefaultTableOptions()
	}
	return &Engine{
		source:     source,
		header:     NewHeaderParser(lx, opts.HeaderScanLines),
		grammar:    NewGrammar(lx),
		table:      NewTableExtractor(lx, opts.Table),
		reconciler: NewReconciler(lx, ReconcileConfig{TableMinRows: opts.TableMinRows}),
		fuzzyMin:   opts.FuzzyMatchMinimum,
		logger:     logger,
	}
}

// Extract acquires the text of the PDF at path and extracts it. A nil
// catalog leaves every line unresolved.
func (e *Engine) Extract(ctx context.Context, path string, catalog []entity.CatalogItem) (*entity.ExtractionBundle, error) {
	if e.source == nil {
		return nil, common.NewAppError("CONFIG_ERROR", "engine has no text source", common.ErrInvalidInput)
	}
	start := time.Now()
	res, err := e.source.Extract(ctx, path)
	if err != nil {
		if errors.Is(err, common.ErrUnreadableDocument) {
			return nil, &ExtractionError{Code: CodeUnreadableDocument, Message: "no text could be read from " + filepath.Base(path), Cause: err}
		}
		return nil, fmt.Errorf("acquire text: %w", err)
	}
	for _, w := range res.Warnings {
		e.logger.Warn("text acquisition warning", "path", path, "warning", w)
	}

	bundle, err := e.run(ctx, res.Text, res.Layout, catalog, path)
	var xerr *ExtractionError
	if errors.As(err, &xerr) && xerr.Partial != nil {
		xerr.Partial.TextMethod, xerr.Partial.Pages = res.Method, res.Pages
	}
	if err != nil {
		e.logger.Warn("extraction failed", "path", path, "method", res.Method, "error", err)
		return nil, err
	}
	bundle.TextMethod, bundle.Pages = res.Method, res.Pages
	e.logger.Info("extraction complete",
		"path", path,
		"method", res.Method,
		"pages", res.Pages,
		"lines", len(bundle.Lines),
		"needs_review", bundle.Header.NeedsReview,
		"duration", time.Since(start))
	return bundle, nil
}

// ExtractText runs the parsing stages on already acquired text. layout may
// be nil, in which case no ruled tables are read.
func (e *Engine) ExtractText(ctx context.Context, text string, layout []ocr.PageLayout, catalog []entity.CatalogItem) (*entity.ExtractionBundle, error) {
	return e.run(ctx, text, layout, catalog, "")
}

func (e *Engine) run(ctx context.Context, text string, layout []ocr.PageLayout, catalog []entity.CatalogItem, path string) (bundle *entity.ExtractionBundle, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("parser panic", "path", path, "panic", r)
			bundle = nil
			err = &ExtractionError{
				Code:    CodeUnreadableDocument,
				Message: fmt.Sprintf("parsing failed: %v", r),
				Cause:   common.ErrUnreadableDocument,
			}
		}
	}()
	if strings.TrimSpace(text) == "" {
		return nil, &ExtractionError{Code: CodeUnreadableDocument, Message: "document has no text", Cause: common.ErrUnreadableDocument}
	}

	h := e.header.Parse(text)
	bill := entity.ExtractedBill{
		VendorName:    h.VendorName,
		TaxID:         h.TaxID,
		InvoiceNumber: h.InvoiceNumber,
		InvoiceDate:   h.InvoiceDate,
		ReviewReasons: []constants.ReviewReason{},
	}
	if h.VendorLowConfidence {
		bill.AddReview(constants.ReviewVendorLowConfidence)
	}
	if invoiceNumberIsFileName(h.InvoiceNumber, path) {
		bill.AddReview(constants.ReviewInvoiceNumberIsFile)
	}

	textLines := e.grammar.Parse(text)
	tableLines := e.table.Extract(layout)
	rec := e.reconciler.Reconcile(textLines, tableLines)
	if len(rec.Rejected) > 0 {
		e.logger.Debug("candidate lines rejected", "path", path, "reasons", rec.Rejected)
	}
	totals := ParseTotals(text)

	bundle = &entity.ExtractionBundle{Header: bill, Vendor: vendorIdentity(h)}
	if len(rec.Lines) == 0 {
		bundle.Header.Taxes = totals.Taxes
		if totals.HasStated {
			bundle.Header.GrandTotal, bundle.Header.GrandTotalSource = totals.Stated, constants.TotalStated
		}
		bundle.Header.AddReview(constants.ReviewNoUsableLines)
		bundle.Lines = []entity.ExtractedLine{}
		return nil, &ExtractionError{
			Code:    CodeNoUsableLines,
			Message: fmt.Sprintf("%d text and %d table candidates, none usable", len(textLines), len(tableLines)),
			Partial: bundle,
			Cause:   common.ErrNoUsableLines,
		}
	}

	if rec.AnyFlagged {
		bundle.Header.AddReview(constants.ReviewLineFlagged)
	}
	ReconcileTotals(&bundle.Header, totals, rec.Sum, lineSum(textLines), lineSum(tableLines))

	var matcher *matching.CatalogMatcher
	if len(catalog) > 0 {
		matcher = matching.NewCatalogMatcher(catalog, e.fuzzyMin)
	}
	for i := range rec.Lines {
		if matcher != nil {
			matcher.Apply(&rec.Lines[i])
		} else {
			rec.Lines[i].CandidateProductIDs = []string{}
		}
	}
	bundle.Lines = rec.Lines
	return bundle, nil
}

func vendorIdentity(h Header) *entity.VendorIdentity {
	if h.VendorName == "" && h.TaxID == "" {
		return nil
	}
	return &entity.VendorIdentity{
		CanonicalName: h.VendorName,
		TaxID:         h.TaxID,
		StateCode:     h.StateCode,
		Address:       h.Address,
		Phone:         h.Phone,
		Email:         h.Email,
		Score:         h.VendorScore,
		Source:        h.VendorSource,
	}
}

// invoiceNumberIsFileName catches headers where the only "number" found was
// the scan's file name printed in a footer.
func invoiceNumberIsFileName(number, path string) bool {
	if number == "" || path == "" {
		return false
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.EqualFold(number, base) || strings.EqualFold(number, stem)
}
