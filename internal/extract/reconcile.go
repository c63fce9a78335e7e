package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
)

var (
	maxQuantity  = decimal.NewFromInt(1_000_000)
	maxUnitPrice = decimal.NewFromInt(10_000_000)
	maxLineTotal = decimal.NewFromInt(50_000_000)

	lineTolerance    = decimal.RequireFromString("0.50")
	lineTolerancePct = decimal.RequireFromString("0.03")
)

var (
	reDimToken     = regexp.MustCompile(`(?i)^(?:(\d{2,4}\s*\*\s*\d{2,4}\s*CM|\d{2,4}\s*MM|\d{1,3}\s*CM|\d{1,4}x\d{1,4})\b|(\d{1,2}\s*"))`)
	reSerialAtHead = regexp.MustCompile(`^\s*\d{1,3}\s+`)
	reSerialInside = regexp.MustCompile(`\b(\d{1,3})\b\s+`)
	reUnitAfter    = regexp.MustCompile(`(?i)^(?:MM|CM|M|MTR|MTRS|METER|KG|KGS|G|GM|L|LTR|ML|INCH|IN|FT|NOS|PCS|X)\b`)
	reSpaceUnit    = regexp.MustCompile(`(?i)\s+(CM|MM)\b`)
	reStar         = regexp.MustCompile(`\s*\*\s*`)
	reSpaceQuote   = regexp.MustCompile(`\s+"`)
)

// ReconcileConfig holds the tunable reconciler thresholds.
type ReconcileConfig struct {
	// TableMinRows is the number of plausible table rows at which table
	// lines are used exclusively. A positive table sum has the same effect.
	TableMinRows int
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{TableMinRows: 3}
}

// Verdict is the outcome of a plausibility check.
type Verdict struct {
	OK     bool
	Reason string
}

func accept() Verdict              { return Verdict{OK: true} }
func reject(reason string) Verdict { return Verdict{Reason: reason} }

// Reconciled is the final line set of one document.
type Reconciled struct {
	Lines []entity.ExtractedLine
	// Sum adds up qty*price of every kept line.
	Sum        decimal.Decimal
	AnyFlagged bool
	UsedTable  bool
	Rejected   map[string]int
}

type Reconciler struct {
	lx  *lexicon.Lexicon
	cfg ReconcileConfig
}

func NewReconciler(lx *lexicon.Lexicon, cfg ReconcileConfig) *Reconciler {
	if cfg.TableMinRows <= 0 {
		cfg.TableMinRows = DefaultReconcileConfig().TableMinRows
	}
	return &Reconciler{lx: lx, cfg: cfg}
}

// Plausible rejects candidates whose numbers or description cannot be an item row.
func (r *Reconciler) Plausible(l entity.ExtractedLine) Verdict {
	switch {
	case blockedDesc(r.lx, l.Description):
		return reject("description empty or blocked")
	case !l.Quantity.IsPositive():
		return reject("quantity not positive")
	case l.UnitPrice.IsNegative():
		return reject("negative unit price")
	case l.LineTotal.IsNegative():
		return reject("negative line total")
	case l.Quantity.GreaterThan(maxQuantity):
		return reject(fmt.Sprintf("quantity %s above %s", l.Quantity, maxQuantity))
	case l.UnitPrice.GreaterThan(maxUnitPrice):
		return reject(fmt.Sprintf("unit price %s above %s", l.UnitPrice, maxUnitPrice))
	case l.LineTotal.GreaterThan(maxLineTotal):
		return reject(fmt.Sprintf("line total %s above %s", l.LineTotal, maxLineTotal))
	}
	return accept()
}

func (r *Reconciler) plausible(lines []entity.ExtractedLine, rejected map[string]int) []entity.ExtractedLine {
	var out []entity.ExtractedLine
	for _, l := range lines {
		if v := r.Plausible(l); !v.OK {
			rejected[v.Reason]++
			continue
		}
		out = append(out, l)
	}
	return out
}

// Reconcile picks the line source, repairs continuations, deduplicates and
// recomputes line totals.
func (r *Reconciler) Reconcile(textLines, tableLines []entity.ExtractedLine) Reconciled {
	res := Reconciled{Sum: decimal.Zero, Rejected: map[string]int{}}

	table := r.plausible(tableLines, res.Rejected)
	var chosen []entity.ExtractedLine
	if len(table) >= r.cfg.TableMinRows || lineSum(table).IsPositive() {
		chosen, res.UsedTable = table, true
	} else {
		chosen = r.plausible(append(append([]entity.ExtractedLine{}, textLines...), tableLines...), res.Rejected)
	}

	lines := dedup(repairContinuations(chosen))
	for _, l := range lines {
		l.Description = truncateRunes(l.Description, entity.MaxDescriptionRunes)
		// repairs can empty a description
		if v := r.Plausible(l); !v.OK {
			res.Rejected[v.Reason]++
			continue
		}
		var expected decimal.Decimal
		l, expected = recompute(l)
		res.AnyFlagged = res.AnyFlagged || l.Flagged
		res.Sum = res.Sum.Add(expected)
		res.Lines = append(res.Lines, l)
	}
	return res
}

// recompute sets the line total to qty*price rounded half-up when the
// stated total agrees within max(0.50, 3%); otherwise the stated total is
// kept and the line flagged. It returns the expected total either way.
func recompute(l entity.ExtractedLine) (entity.ExtractedLine, decimal.Decimal) {
	expected := l.Quantity.Mul(l.UnitPrice).Round(2)
	stated := l.LineTotal.Round(2)
	tol := decimal.Max(lineTolerance, stated.Mul(lineTolerancePct))
	if expected.Sub(stated).Abs().LessThanOrEqual(tol) {
		l.LineTotal = expected
	} else {
		l.LineTotal = stated
		l.Flagged = true
	}
	return l, expected
}

func normalizeQuotesSpaces(s string) string {
	s = strings.NewReplacer("”", `"`, "“", `"`, "′", "'").Replace(s)
	s = reAnySpace.ReplaceAllString(s, " ")
	s = reSpaceUnit.ReplaceAllString(s, " $1")
	s = reStar.ReplaceAllString(s, "* ")
	s = reSpaceQuote.ReplaceAllString(s, `"`)
	return strings.TrimSpace(s)
}

// repairContinuations moves a leading dimension token (a size OCR split
// onto its own row) to the end of the previous description, and lifts a
// serial number found mid-description to its head.
func repairContinuations(lines []entity.ExtractedLine) []entity.ExtractedLine {
	out := make([]entity.ExtractedLine, 0, len(lines))
	for _, l := range lines {
		desc := normalizeQuotesSpaces(l.Description)

		if loc := reDimToken.FindStringSubmatchIndex(desc); loc != nil && len(out) > 0 {
			dim := strings.TrimSpace(desc[loc[0]:loc[1]])
			prev := &out[len(out)-1]
			pdesc := normalizeQuotesSpaces(prev.Description)
			if !strings.Contains(strings.ToLower(pdesc), strings.ToLower(dim)) {
				pdesc = strings.TrimSpace(pdesc + " " + dim)
			}
			prev.Description = pdesc
			desc = strings.TrimLeft(desc[loc[1]:], " ")
		}

		if !reSerialAtHead.MatchString(desc) {
			desc = liftSerial(desc)
		}
		l.Description = strings.TrimSpace(desc)
		out = append(out, l)
	}
	return out
}

// liftSerial moves the first bare 1-3 digit number followed by an
// uppercase word or digit to the front, unless it is a measurement.
func liftSerial(desc string) string {
	for _, loc := range reSerialInside.FindAllStringSubmatchIndex(desc, -1) {
		rest := desc[loc[1]:]
		if rest == "" {
			continue
		}
		c := rest[0]
		if !(c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') || reUnitAfter.MatchString(rest) {
			continue
		}
		if loc[0] > 0 && strings.ContainsAny(desc[loc[0]-1:loc[0]], "x*/.") {
			continue
		}
		sno := desc[loc[2]:loc[3]]
		return sno + " " + desc[:loc[0]] + rest
	}
	return desc
}

type dedupKey struct {
	desc, qty, price, total, code string
}

func dedup(lines []entity.ExtractedLine) []entity.ExtractedLine {
	seen := map[dedupKey]bool{}
	out := make([]entity.ExtractedLine, 0, len(lines))
	for _, l := range lines {
		k := dedupKey{
			desc:  truncateRunes(strings.ToLower(strings.TrimSpace(l.Description)), 160),
			qty:   l.Quantity.StringFixed(3),
			price: l.UnitPrice.StringFixed(3),
			total: l.LineTotal.StringFixed(2),
			code:  l.TaxCode,
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, l)
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
