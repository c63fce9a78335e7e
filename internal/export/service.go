package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const (
	billsSheet = "Bills"
	linesSheet = "Lines"
)

// Document is one extracted file for the workbook. Err is set when the
// extraction failed; Bundle may then hold a partial header.
type Document struct {
	Source string
	Status constants.BillStatus // derived from Err when empty
	Bundle *entity.ExtractionBundle
	Err    error
}

// Service produces XLSX workbooks of extracted bills.
type Service struct {
	bills  repository.BillRepository
	logger *slog.Logger
}

// NewService builds the export service. bills may be nil when only
// in-memory documents are exported.
func NewService(bills repository.BillRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{bills: bills, logger: logger}
}

// ExportBillsXLSX returns a workbook of the stored bills with the given
// status.
func (s *Service) ExportBillsXLSX(ctx context.Context, status constants.BillStatus) ([]byte, error) {
	if s.bills == nil {
		return nil, fmt.Errorf("export: no bill repository")
	}
	bills, err := s.bills.ListByStatus(ctx, status, 0)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	docs := make([]Document, 0, len(bills))
	for _, b := range bills {
		lines, err := s.bills.Lines(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("query lines of %s: %w", b.ID, err)
		}
		docs = append(docs, Document{Source: b.SourcePath, Status: b.Status, Bundle: BundleFromBill(b, lines)})
	}
	return s.BundlesXLSX(ctx, docs)
}

// BundleFromBill rebuilds a bundle from a stored bill and its lines.
func BundleFromBill(b *entity.Bill, lines []entity.ExtractedLine) *entity.ExtractionBundle {
	h := entity.ExtractedBill{
		VendorName:       b.VendorName,
		TaxID:            b.TaxID,
		InvoiceNumber:    b.InvoiceNumber,
		InvoiceDate:      b.InvoiceDate,
		GrandTotal:       b.GrandTotal,
		GrandTotalSource: b.GrandTotalSource,
		Taxes:            b.Taxes,
		NeedsReview:      b.NeedsReview,
		ReviewReasons:    []constants.ReviewReason{},
	}
	for _, r := range b.ReviewReasons {
		h.ReviewReasons = append(h.ReviewReasons, constants.ReviewReason(r))
	}
	return &entity.ExtractionBundle{Header: h, Lines: lines, TextMethod: b.TextMethod, Pages: b.Pages}
}

var billHeaders = []string{
	"Source", "Status", "Vendor", "GSTIN", "Invoice No", "Invoice Date",
	"CGST", "SGST", "IGST", "Grand Total", "Total Source",
	"Needs Review", "Review Reasons", "Text Method", "Pages", "Error",
}

var lineHeaders = []string{
	"Source", "Invoice No", "#", "Description", "HSN/SAC", "Quantity", "UOM",
	"Rate", "Amount", "Confidence", "Flagged", "Strategy", "Product", "Match Score",
}

// BundlesXLSX returns an XLSX workbook (as bytes) with one Bills row per
// document and one Lines row per extracted line.
func (s *Service) BundlesXLSX(ctx context.Context, docs []Document) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", billsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(linesSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(billsSheet)
	f.SetActiveSheet(activeIndex)

	if err := writeRow(f, billsSheet, 1, toAny(billHeaders)); err != nil {
		return nil, err
	}
	if err := writeRow(f, linesSheet, 1, toAny(lineHeaders)); err != nil {
		return nil, err
	}

	billRow, lineRow := 2, 2
	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeRow(f, billsSheet, billRow, billValues(d)); err != nil {
			return nil, err
		}
		billRow++
		if d.Bundle == nil {
			continue
		}
		for i, l := range d.Bundle.Lines {
			if err := writeRow(f, linesSheet, lineRow, lineValues(d, i+1, l)); err != nil {
				return nil, err
			}
			lineRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(billsSheet, "A", "A", 40) // source
	_ = f.SetColWidth(billsSheet, "C", "C", 32) // vendor
	_ = f.SetColWidth(billsSheet, "D", "E", 18)
	_ = f.SetColWidth(billsSheet, "M", "M", 40) // reasons
	_ = f.SetColWidth(linesSheet, "A", "A", 40)
	_ = f.SetColWidth(linesSheet, "D", "D", 48) // description
	_ = f.SetPanes(billsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	_ = f.SetPanes(linesSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"bills", billRow-2,
		"lines", lineRow-2,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func billValues(d Document) []any {
	status, errText := d.Status, ""
	if d.Err != nil {
		errText = truncate(d.Err.Error(), 255)
	}
	if status == "" {
		status = constants.BillStatusProcessed
		if d.Err != nil {
			status = constants.BillStatusFailed
		}
	}
	if d.Bundle == nil {
		return []any{d.Source, string(status), "", "", "", "", nil, nil, nil, nil, "", true, "", "", nil, errText}
	}
	h := d.Bundle.Header
	date := ""
	if h.InvoiceDate != nil {
		date = h.InvoiceDate.Format("2006-01-02")
	}
	reasons := make([]string, len(h.ReviewReasons))
	for i, r := range h.ReviewReasons {
		reasons[i] = string(r)
	}
	return []any{
		d.Source, string(status), h.VendorName, h.TaxID, h.InvoiceNumber, date,
		money(h.Taxes.CGST), money(h.Taxes.SGST), money(h.Taxes.IGST), money(h.GrandTotal), string(h.GrandTotalSource),
		h.NeedsReview || d.Err != nil, strings.Join(reasons, ", "), d.Bundle.TextMethod, d.Bundle.Pages, errText,
	}
}

func lineValues(d Document, n int, l entity.ExtractedLine) []any {
	product := ""
	if l.ResolvedProductID != nil {
		product = *l.ResolvedProductID
	}
	return []any{
		d.Source, d.Bundle.Header.InvoiceNumber, n, truncate(l.Description, 255), l.TaxCode,
		l.Quantity.InexactFloat64(), l.UOM, money(l.UnitPrice), money(l.LineTotal),
		l.Confidence, l.Flagged, string(l.Source), product, l.MatchScore,
	}
}

// money rounds to paise for display; the bundle keeps the exact value.
func money(v decimal.Decimal) float64 {
	return v.Round(2).InexactFloat64()
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
