package extract

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

func TestParseTotals(t *testing.T) {
	text := "Sub Total 1,000.00\nCGST @9% 90.00\nSGST @ 9 % 89.50\nGrand Total 5,700.00\n"
	tot := ParseTotals(text)
	assert.True(t, tot.HasStated)
	assert.Equal(t, "5700.00", tot.Stated.StringFixed(2))
	assert.Equal(t, "90.00", tot.Taxes.CGST.StringFixed(2))
	assert.Equal(t, "89.50", tot.Taxes.SGST.StringFixed(2))
	assert.True(t, tot.Taxes.IGST.IsZero())
}

func TestReconcileTotals(t *testing.T) {
	taxes := entity.TaxBuckets{CGST: d("90"), SGST: d("89.50")}
	tests := []struct {
		name       string
		totals     Totals
		lineSum    string
		textSum    string
		tableSum   string
		wantTotal  string
		wantSource constants.GrandTotalSource
		wantReview []constants.ReviewReason
	}{
		{
			name:       "stated total far from lines plus taxes",
			totals:     Totals{Taxes: taxes, Stated: d("1400"), HasStated: true},
			lineSum:    "1000",
			wantTotal:  "1400.00",
			wantSource: constants.TotalStated,
			wantReview: []constants.ReviewReason{constants.ReviewTotalsMismatch},
		},
		{
			name:       "stated total within tolerance",
			totals:     Totals{Taxes: taxes, Stated: d("1180"), HasStated: true},
			lineSum:    "1000",
			wantTotal:  "1180.00",
			wantSource: constants.TotalStated,
		},
		{
			name:       "no stated total",
			totals:     Totals{Taxes: taxes},
			lineSum:    "1000",
			wantTotal:  "1000.00",
			wantSource: constants.TotalSumOfLines,
		},
		{
			name:       "text and table disagree",
			totals:     Totals{},
			lineSum:    "1200",
			textSum:    "1000",
			tableSum:   "1200",
			wantTotal:  "1200.00",
			wantSource: constants.TotalSumOfLines,
			wantReview: []constants.ReviewReason{constants.ReviewStrategyDivergence},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bill entity.ExtractedBill
			ReconcileTotals(&bill, tt.totals, d(tt.lineSum), orZero(tt.textSum), orZero(tt.tableSum))
			assert.Equal(t, tt.wantTotal, bill.GrandTotal.StringFixed(2))
			assert.Equal(t, tt.wantSource, bill.GrandTotalSource)
			assert.Equal(t, tt.wantReview, bill.ReviewReasons)
			assert.Equal(t, len(tt.wantReview) > 0, bill.NeedsReview)
		})
	}
}

func orZero(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return d(s)
}
