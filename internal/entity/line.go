package entity

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// MaxDescriptionRunes bounds ExtractedLine.Description.
const MaxDescriptionRunes = 512

// ExtractedLine is one reconciled invoice line item.
type ExtractedLine struct {
	Description string               `json:"description"`
	Quantity    decimal.Decimal      `json:"quantity"`
	UnitPrice   decimal.Decimal      `json:"unit_price"`
	LineTotal   decimal.Decimal      `json:"line_total"`
	TaxCode     string               `json:"tax_classification_code,omitempty"`
	UOM         string               `json:"unit_of_measure,omitempty"`
	Confidence  float64              `json:"confidence"`
	Flagged     bool                 `json:"flagged"`
	Source      constants.LineSource `json:"source"`

	CandidateProductIDs []string `json:"candidate_product_ids"`
	ResolvedProductID   *string  `json:"resolved_product_id"`
	MatchScore          float64  `json:"match_score"`
}
