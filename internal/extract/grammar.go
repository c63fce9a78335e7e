package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
)

// Base confidences of the two grammars. Lines whose triple needed a fix
// drop by confidencePenalty, inconsistent ones by twice that.
const (
	confidencePatternA = 0.95
	confidencePatternB = 0.93
	confidencePenalty  = 0.10
)

// Grammar runs the two tolerant line-item patterns over plain text:
//
//	A (code first):   desc  HSN  qty UOM  rate [UOM]  amount
//	B (amount first): amount [UOM]  rate  qty UOM  HSN
type Grammar struct {
	lx       *lexicon.Lexicon
	patternA *regexp.Regexp
	patternB *regexp.Regexp
}

func NewGrammar(lx *lexicon.Lexicon) *Grammar {
	uom := lx.UOMPattern()
	a := `(?i)(?P<desc>[A-Za-z0-9/\-. \t"]+?)\s+` +
		`\b(?P<hsn>\d{4,8})\b\s+` +
		`(?P<qty>\d{1,7})\s*(?P<uom>` + uom + `)\s+` +
		`(?P<rate>` + decPattern + `)\s*(?:` + uom + `)?\s+` +
		`(?P<amount>` + decPattern + `)`
	b := `(?i)\b(?P<amount>` + decPattern + `)\s*(?P<uom>` + uom + `)?\s+` +
		`(?P<rate>` + decPattern + `)\s+` +
		`(?P<qty>\d{1,7})\s*(?P<uom2>` + uom + `)\s+` +
		`\b(?P<hsn>\d{4,8})\b`
	return &Grammar{lx: lx, patternA: regexp.MustCompile(a), patternB: regexp.MustCompile(b)}
}

type finding struct {
	source     constants.LineSource
	start, end int
	groups     map[string]string
}

func (g *Grammar) findings(s string) []finding {
	var out []finding
	collect := func(re *regexp.Regexp, src constants.LineSource) {
		names := re.SubexpNames()
		for _, loc := range re.FindAllStringSubmatchIndex(s, -1) {
			f := finding{source: src, start: loc[0], end: loc[1], groups: map[string]string{}}
			for i, name := range names {
				if name == "" || loc[2*i] < 0 {
					continue
				}
				f.groups[name] = s[loc[2*i]:loc[2*i+1]]
			}
			out = append(out, f)
		}
	}
	collect(g.patternB, constants.SourcePatternB)
	collect(g.patternA, constants.SourcePatternA)
	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// Parse returns the candidate lines found in text, in document order.
// A match overlapping an earlier one is dropped.
func (g *Grammar) Parse(text string) []entity.ExtractedLine {
	s := stripNoise(text)

	var lines []entity.ExtractedLine
	prevEnd := 0
	for _, f := range g.findings(s) {
		if f.start < prevEnd {
			continue
		}
		descLeft := pickDescLines(g.lx, strings.Split(s[prevEnd:f.start], "\n"))
		prevEnd = f.end

		qty, _ := parseNumber(f.groups["qty"])
		rate, _ := parseNumber(f.groups["rate"])
		amount, _ := parseNumber(f.groups["amount"])
		t, fix := ValidateTriple(Triple{Qty: qty, Rate: rate, Amount: amount})

		var desc, uom string
		base := confidencePatternA
		if f.source == constants.SourcePatternB {
			base = confidencePatternB
			desc = descLeft
			uom = f.groups["uom2"]
			if uom == "" {
				uom = f.groups["uom"]
			}
		} else {
			desc = cleanDesc(strings.TrimSpace(descLeft + " " + f.groups["desc"]))
			uom = f.groups["uom"]
		}
		if blockedDesc(g.lx, desc) {
			continue
		}

		lines = append(lines, entity.ExtractedLine{
			Description: desc,
			Quantity:    t.Qty.Round(3),
			UnitPrice:   t.Rate.Round(2),
			LineTotal:   t.Amount.Round(2),
			TaxCode:     f.groups["hsn"],
			UOM:         canonicalUOM(uom),
			Confidence:  tripleConfidence(base, fix),
			Source:      f.source,
		})
	}
	return lines
}

func tripleConfidence(base float64, fix TripleFix) float64 {
	switch fix {
	case FixAsIs:
		return base
	case FixSwapped, FixDerived:
		return base - confidencePenalty
	}
	return base - 2*confidencePenalty
}

func canonicalUOM(s string) string {
	if s == "" {
		return ""
	}
	if u, ok := constants.CanonicalizeUOM(s); ok {
		return string(u)
	}
	return strings.ToUpper(s)
}

// lineSum adds up the stated line totals.
func lineSum(lines []entity.ExtractedLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum.Round(2)
}
