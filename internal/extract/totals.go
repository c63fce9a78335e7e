package extract

import (
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

const moneyPattern = `(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?`

// a rate such as "9%" or "@ 9 %" may sit between the label and the amount
const taxRatePattern = `(?:@?\s*\d{1,2}(?:\.\d+)?\s*%\s*)?`

var (
	reCGST  = regexp.MustCompile(`(?i)\bCGST\b\s*` + taxRatePattern + `(` + moneyPattern + `)`)
	reSGST  = regexp.MustCompile(`(?i)\bSGST\b\s*` + taxRatePattern + `(` + moneyPattern + `)`)
	reIGST  = regexp.MustCompile(`(?i)\bIGST\b\s*` + taxRatePattern + `(` + moneyPattern + `)`)
	reTotal = regexp.MustCompile(`(?i)(?:Grand\s*Total|Total\s*Amount|Total)\s*₹?\s*(` + moneyPattern + `)`)

	totalsTolerance    = decimal.NewFromInt(1)
	totalsTolerancePct = decimal.RequireFromString("0.03")
	divergencePct      = decimal.RequireFromString("0.10")
)

// Totals are the tax buckets and grand total printed on the document.
type Totals struct {
	Taxes     entity.TaxBuckets
	Stated    decimal.Decimal
	HasStated bool
}

func firstAmount(re *regexp.Regexp, text string) decimal.Decimal {
	if m := re.FindStringSubmatch(text); m != nil {
		if d, ok := parseNumber(m[1]); ok {
			return d.Round(2)
		}
	}
	return decimal.Zero
}

// ParseTotals reads the first CGST, SGST and IGST amounts and the largest
// total; smaller totals are usually subtotal restatements.
func ParseTotals(text string) Totals {
	t := Totals{
		Taxes: entity.TaxBuckets{
			CGST: firstAmount(reCGST, text),
			SGST: firstAmount(reSGST, text),
			IGST: firstAmount(reIGST, text),
		},
	}
	for _, m := range reTotal.FindAllStringSubmatch(text, -1) {
		d, ok := parseNumber(m[1])
		if !ok {
			continue
		}
		if !t.HasStated || d.GreaterThan(t.Stated) {
			t.Stated, t.HasStated = d.Round(2), true
		}
	}
	return t
}

// ReconcileTotals fills the bill totals and raises totals_mismatch when the
// stated grand total disagrees with lines plus taxes by more than
// max(1, 3% of the larger), and strategy_divergence when text and table
// line sums differ by more than 10%.
func ReconcileTotals(bill *entity.ExtractedBill, t Totals, lineSum, textSum, tableSum decimal.Decimal) {
	bill.Taxes = t.Taxes
	if !t.HasStated {
		bill.GrandTotal = lineSum.Round(2)
		bill.GrandTotalSource = constants.TotalSumOfLines
	} else {
		bill.GrandTotal = t.Stated
		bill.GrandTotalSource = constants.TotalStated

		expected := lineSum.Add(t.Taxes.Sum())
		tol := decimal.Max(totalsTolerance, decimal.Max(expected, t.Stated).Mul(totalsTolerancePct))
		if t.Stated.Sub(expected).Abs().GreaterThan(tol) {
			bill.AddReview(constants.ReviewTotalsMismatch)
		}
	}

	if textSum.IsPositive() && tableSum.IsPositive() {
		tol := decimal.Max(totalsTolerance, decimal.Max(textSum, tableSum).Mul(divergencePct))
		if textSum.Sub(tableSum).Abs().GreaterThan(tol) {
			bill.AddReview(constants.ReviewStrategyDivergence)
		}
	}
}
