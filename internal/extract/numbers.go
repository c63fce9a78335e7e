package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

const decPattern = `(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,3})?`

var (
	reDigitComma = regexp.MustCompile(`(\d),(\d)`)
	reSpaces     = regexp.MustCompile(`[ \t]{2,}`)
	reNonDigit   = regexp.MustCompile(`\D`)
)

var (
	one         = decimal.NewFromInt(1)
	fivePercent = decimal.RequireFromString("0.05")
)

// parseNumber reads a printed amount or quantity. Digit-group commas are ignored.
// Zero and unparsable values are reported as absent.
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsZero() {
		return decimal.Zero, false
	}
	return d, true
}

func stripDigitCommas(s string) string {
	for {
		next := reDigitComma.ReplaceAllString(s, "${1}${2}")
		if next == s {
			return s
		}
		s = next
	}
}

// stripNoise removes OCR artifacts that break the line grammars.
func stripNoise(s string) string {
	s = stripDigitCommas(s)
	s = strings.NewReplacer("|", " ", "[", " ", "INOS", " NOS ").Replace(s)
	return reSpaces.ReplaceAllString(s, " ")
}

// TripleFix says how a quantity/rate/amount triple was validated.
type TripleFix int

const (
	FixNone TripleFix = iota // inconsistent, left as read
	FixAsIs
	FixSwapped
	FixDerived
)

func (f TripleFix) String() string {
	switch f {
	case FixAsIs:
		return "as-is"
	case FixSwapped:
		return "swapped"
	case FixDerived:
		return "derived"
	}
	return "unchanged"
}

// Triple is a quantity/rate/amount reading; zero means the value was not read.
type Triple struct {
	Qty, Rate, Amount decimal.Decimal
}

func within(diff, ref decimal.Decimal) bool {
	return diff.Abs().LessThanOrEqual(decimal.Max(one, ref.Mul(fivePercent)))
}

// ValidateTriple checks qty*rate against amount. When qty*amount matches
// rate instead the two columns were swapped; when one of rate or amount is
// missing it is derived from the others.
func ValidateTriple(t Triple) (Triple, TripleFix) {
	q, r, a := t.Qty, t.Rate, t.Amount
	switch {
	case !q.IsZero() && !r.IsZero() && !a.IsZero():
		if within(q.Mul(r).Sub(a), a) {
			return t, FixAsIs
		}
		if within(q.Mul(a).Sub(r), r) {
			return Triple{Qty: q, Rate: a, Amount: r}, FixSwapped
		}
	case !q.IsZero() && !r.IsZero():
		return Triple{Qty: q, Rate: r, Amount: q.Mul(r).Round(2)}, FixDerived
	case !q.IsZero() && !a.IsZero():
		return Triple{Qty: q, Rate: a.Div(q).Round(2), Amount: a}, FixDerived
	}
	return t, FixNone
}

// digitsOnly keeps the digits of s.
func digitsOnly(s string) string {
	return reNonDigit.ReplaceAllString(s, "")
}

// taxCode returns s as a classification code when it has 4 to 8 digits.
func taxCode(s string) string {
	d := digitsOnly(s)
	if len(d) < 4 || len(d) > 8 {
		return ""
	}
	return d
}
