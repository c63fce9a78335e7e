package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
)

var (
	reDescHeaderWords = regexp.MustCompile(`(?i)\b(?:Sl\.?|No\.?|Description of|Goods and Services|Amount|HSN/SAC|HSN|SAC|Quantity|Qty|Rate|per|Disc\.?\s*%?)\b`)
	reLeadingIndex    = regexp.MustCompile(`^\s*\d{1,3}\s+`)
	reAnySpace        = regexp.MustCompile(`\s+`)
	reDescCue         = regexp.MustCompile(`\d|[*"/:-]`)
)

// cleanDesc removes table header words and a leading row index.
func cleanDesc(s string) string {
	s = reDescHeaderWords.ReplaceAllString(s, " ")
	s = reLeadingIndex.ReplaceAllString(s, " ")
	s = reAnySpace.ReplaceAllString(s, " ")
	return strings.Trim(s, " :-,.")
}

func mostlyNumbers(s string) bool {
	letters, digits := 0, 0
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		}
	}
	return digits > 0 && letters < 3
}

// pickDescLines keeps the last one or two lines before an item's numeric
// tail, skipping party, panel, address and date crumbs.
func pickDescLines(lx *lexicon.Lexicon, lines []string) string {
	var kept []string
	for i := len(lines) - 1; i >= 0 && len(kept) < 2; i-- {
		l := strings.TrimSpace(lines[i])
		if l == "" {
			continue
		}
		if lx.DropInDesc.MatchString(l) ||
			lx.RightPanel.MatchString(l) ||
			lx.ItemBlocklist.MatchString(l) ||
			lx.HeaderNoise.MatchString(l) ||
			lx.Email.MatchString(l) ||
			lx.AddressTokens.MatchString(l) ||
			lx.InvoiceValueish.MatchString(l) ||
			lx.DateToken.MatchString(l) ||
			lx.MonthToken.MatchString(l) {
			continue
		}
		// all-caps names without any size or code cue are party lines
		if lx.AllCaps.MatchString(l) && !reDescCue.MatchString(l) {
			continue
		}
		if mostlyNumbers(l) {
			continue
		}
		kept = append(kept, l)
	}
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return cleanDesc(strings.Join(kept, " "))
}

// blockedDesc reports whether a description is empty or known non-item text.
func blockedDesc(lx *lexicon.Lexicon, desc string) bool {
	desc = strings.TrimSpace(desc)
	return desc == "" || lx.ItemBlocklist.MatchString(desc) || lx.DropInDesc.MatchString(desc)
}
