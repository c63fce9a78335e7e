package entity

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// TaxBuckets holds the three GST components printed on an invoice.
type TaxBuckets struct {
	CGST decimal.Decimal `json:"cgst"`
	SGST decimal.Decimal `json:"sgst"`
	IGST decimal.Decimal `json:"igst"`
}

// Sum returns CGST + SGST + IGST.
func (t TaxBuckets) Sum() decimal.Decimal {
	return t.CGST.Add(t.SGST).Add(t.IGST)
}

// ExtractedBill is the header of one extracted invoice.
type ExtractedBill struct {
	VendorName       string                     `json:"vendor_name"`
	TaxID            string                     `json:"tax_id,omitempty"`
	InvoiceNumber    string                     `json:"invoice_number,omitempty"`
	InvoiceDate      *time.Time                 `json:"invoice_date,omitempty"`
	GrandTotal       decimal.Decimal            `json:"grand_total"`
	GrandTotalSource constants.GrandTotalSource `json:"grand_total_source,omitempty"`
	Taxes            TaxBuckets                 `json:"tax_buckets"`
	NeedsReview      bool                       `json:"needs_review"`
	ReviewReasons    []constants.ReviewReason   `json:"review_reasons"`
}

// AddReview records a review reason once and raises NeedsReview.
// Reasons are kept sorted so equal inputs produce equal bills.
func (b *ExtractedBill) AddReview(reason constants.ReviewReason) {
	b.NeedsReview = true
	if slices.Contains(b.ReviewReasons, reason) {
		return
	}
	b.ReviewReasons = append(b.ReviewReasons, reason)
	slices.Sort(b.ReviewReasons)
}

// HasReview reports whether reason was recorded.
func (b *ExtractedBill) HasReview(reason constants.ReviewReason) bool {
	return slices.Contains(b.ReviewReasons, reason)
}

// Bill is a persisted bill row for data transfer between layers.
type Bill struct {
	ID               uuid.UUID                  `json:"id"`
	SourcePath       string                     `json:"source_path"`
	Status           constants.BillStatus       `json:"status"`
	VendorID         *uuid.UUID                 `json:"vendor_id,omitempty"`
	VendorName       string                     `json:"vendor_name"`
	TaxID            string                     `json:"tax_id,omitempty"`
	InvoiceNumber    string                     `json:"invoice_number"`
	InvoiceDate      *time.Time                 `json:"invoice_date,omitempty"`
	GrandTotal       decimal.Decimal            `json:"grand_total"`
	GrandTotalSource constants.GrandTotalSource `json:"grand_total_source,omitempty"`
	Taxes            TaxBuckets                 `json:"tax_buckets"`
	NeedsReview      bool                       `json:"needs_review"`
	ReviewReasons    []string                   `json:"review_reasons"`
	TextMethod       string                     `json:"text_method,omitempty"`
	Pages            int                        `json:"pages"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}
