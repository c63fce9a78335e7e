package extract

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
)

var (
	rePartyAnchor = regexp.MustCompile(`(?i)Consignee\s*\(Ship\s*to\)|Buyer\s*\(Bill\s*to\)`)
	reGSTLabelled = regexp.MustCompile(`(?i)(?:GSTIN/UIN|GSTIN|GST\s*No\.?)\s*[:\-]?\s*([0-9A-Z]{15})`)
	reGSTLoose    = regexp.MustCompile(`(?i)\b[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][A-Z0-9]{3}\b`)
	reGSTCue      = regexp.MustCompile(`(?i)\bGST(?:IN)?\b|STATE\s*NAME`)
	reFiscalYear  = regexp.MustCompile(`\b\d{2}\s*-\s*\d{2}\b`)

	reNameDateTail    = regexp.MustCompile(`\b\d{1,2}[-/][A-Za-z]{3}[-/]\d{2,4}\b.*$`)
	reNameCodeTail    = regexp.MustCompile(`\s+(?:[A-Za-z0-9]+[/\-])+[A-Za-z0-9\-/]+.*$`)
	reNameDigitTail   = regexp.MustCompile(`\s+\d.*$`)
	reA2Z             = regexp.MustCompile(`(?i)\bA\s*[- ]?\s*2\s*[- ]?\s*Z\b`)
	reBuildwares      = regexp.MustCompile(`(?i)BUILDW\w*R\w*ES?`)
	reAddressStop     = regexp.MustCompile(`(?i)GST|GSTIN|Invoice|Bill\s*No|Dated|Phone|E[-\s]?mail|Buyer|Consignee|Delivery|Reference|Dispatch|Terms|State\s*Name`)
	reNumericLine     = regexp.MustCompile(`^\d[\d\s,\-]+$`)
	reInvoiceLabel    = regexp.MustCompile(`(?i)(?:Invoice\s*(?:No\.?|#)|Bill\s*(?:No\.?|#))\s*[:\-]?`)
	reDatedInline     = regexp.MustCompile(`(?i)Dated\s*[:\-]?\s*([0-9]{1,2}[-/][A-Za-z]{3}[-/][0-9]{2,4}|[0-9]{2}[-/][0-9]{2}[-/][0-9]{2,4})`)
	reDatedLabel      = regexp.MustCompile(`(?i)\bDated\b[:\s\-]*`)
	invoiceDateLayout = []string{"2-Jan-06", "2-Jan-2006", "2/Jan/06", "2/Jan/2006", "02/01/2006", "02-01-2006", "02/01/06", "02-01-06", "2006-01-02"}
)

// Vendor source tags.
const (
	VendorSourceGSTIN  = "gstin+heuristics"
	VendorSourceHeader = "header"
)

// Header is what the resolver reads from the invoice's own header block.
type Header struct {
	VendorName    string
	TaxID         string
	StateCode     string
	Address       string
	Phone         string
	Email         string
	InvoiceNumber string
	InvoiceDate   *time.Time

	// VendorScore rates the chosen name line by its distance to the tax ID.
	VendorScore  float64
	VendorSource string
	// VendorLowConfidence is set when there is no tax ID or the name is
	// missing or reads like an address.
	VendorLowConfidence bool
}

// HeaderParser resolves vendor and invoice fields from the text preceding
// the buyer/consignee block.
type HeaderParser struct {
	lx        *lexicon.Lexicon
	scanLines int
}

func NewHeaderParser(lx *lexicon.Lexicon, scanLines int) *HeaderParser {
	if scanLines <= 0 {
		scanLines = 35
	}
	return &HeaderParser{lx: lx, scanLines: scanLines}
}

// headerWindow returns the text before the first party anchor.
func headerWindow(text string) string {
	if loc := rePartyAnchor.FindStringIndex(text); loc != nil {
		return text[:loc[0]]
	}
	return text
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Parse reads the header of text.
func (p *HeaderParser) Parse(text string) Header {
	lines := nonEmptyLines(headerWindow(text))
	blob := strings.Join(lines, "\n")

	var h Header
	h.TaxID = findTaxID(blob)
	if len(h.TaxID) >= 2 {
		h.StateCode = h.TaxID[:2]
	}
	h.Email = p.lx.Email.FindString(blob)
	h.Phone = strings.Join(NormalizePhones(blob), ", ")

	nameIdx, tail := -1, ""
	if idx, ok := p.bestVendorLine(lines); ok {
		nameIdx = idx
		h.VendorName, tail = p.SanitizeVendorName(lines[idx])
	}
	if nameIdx >= 0 {
		h.Address = p.address(lines, nameIdx, tail)
	}
	h.VendorScore = p.vendorScore(lines, nameIdx)
	h.VendorSource = VendorSourceHeader
	if h.TaxID != "" {
		h.VendorSource = VendorSourceGSTIN
	}
	h.VendorLowConfidence = h.TaxID == "" || h.VendorName == "" || p.lx.IsAddressLike(h.VendorName)

	h.InvoiceNumber = extractInvoiceNumber(p.lx, text)
	h.InvoiceDate = extractInvoiceDate(p.lx, text)
	return h
}

func findTaxID(blob string) string {
	if m := reGSTLabelled.FindStringSubmatch(blob); m != nil {
		return strings.ToUpper(m[1])
	}
	return strings.ToUpper(reGSTLoose.FindString(blob))
}

// candidate is the part of a line before its first address token.
func (p *HeaderParser) candidate(line string) string {
	if i := p.lx.AddressIndex(line); i >= 0 {
		return line[:i]
	}
	return line
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

// bestVendorLine scores the first scan lines of the header and returns the
// index (into lines) of the most vendor-like one.
func (p *HeaderParser) bestVendorLine(lines []string) (int, bool) {
	bestIdx, bestScore := -1, 0
	rank := 0
	for i, raw := range lines {
		if i >= p.scanLines {
			break
		}
		if p.lx.RightPanel.MatchString(raw) {
			continue
		}
		pos := rank
		rank++
		if p.lx.InvoiceValueish.MatchString(raw) || p.lx.DateToken.MatchString(raw) || p.lx.MonthToken.MatchString(raw) {
			continue
		}
		cand := strings.TrimSpace(p.candidate(raw))
		if letterCount(cand) < 3 {
			continue
		}

		score := 0
		if p.lx.AllCaps.MatchString(cand) {
			score += 8
		}
		score += 14 * p.lx.VendorTokenCount(cand)
		if pos <= 2 {
			score += 6
		}
		if p.lx.Email.MatchString(raw) {
			score -= 30
		}
		if reGSTCue.MatchString(raw) {
			score -= 30
		}
		if strings.Count(raw, "/") >= 2 && strings.ContainsAny(raw, "0123456789") {
			score -= 40
		}
		if reFiscalYear.MatchString(raw) {
			score -= 25
		}
		if bestIdx < 0 || score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return bestIdx, bestIdx >= 0
}

// SanitizeVendorName trims a header line down to the vendor name and
// returns the address tail it cut off, if any.
func (p *HeaderParser) SanitizeVendorName(line string) (name, addressTail string) {
	s := strings.TrimSpace(line)
	if i := p.lx.AddressIndex(s); i >= 0 {
		s, addressTail = s[:i], strings.Trim(s[i:], " -,./")
	}
	s = reA2Z.ReplaceAllString(s, "A2Z")
	s = reBuildwares.ReplaceAllString(s, "BUILDWARES")
	s = reNameDateTail.ReplaceAllString(s, "")
	if loc := p.lx.MonthToken.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = reNameCodeTail.ReplaceAllString(s, "")
	// only a spaced numeric tail is cut
	s = reNameDigitTail.ReplaceAllString(s, "")
	s = strings.Trim(s, " -,./")
	if s == "" {
		return "", addressTail
	}
	return strings.Trim(p.lx.TitleCase(s), " -,./"), addressTail
}

// address joins up to nine lines under the vendor name, stopping at panel
// labels and contact cues.
func (p *HeaderParser) address(lines []string, nameIdx int, tail string) string {
	var block []string
	if tail != "" {
		block = append(block, tail)
	}
	for i := nameIdx + 1; i < len(lines) && i <= nameIdx+9; i++ {
		ln := lines[i]
		if p.lx.RightPanel.MatchString(ln) || reAddressStop.MatchString(ln) {
			break
		}
		if rePhone.MatchString(ln) || reNumericLine.MatchString(ln) {
			continue
		}
		block = append(block, ln)
	}
	return strings.Join(block, ", ")
}

// vendorScore rates the name line by its proximity to the tax ID line.
func (p *HeaderParser) vendorScore(lines []string, nameIdx int) float64 {
	if nameIdx < 0 {
		return 0
	}
	var gstIdx []int
	for i, l := range lines {
		if reGSTLoose.MatchString(l) {
			gstIdx = append(gstIdx, i)
		}
	}
	score := 0.0
	line := lines[nameIdx]
	near := false
	for _, g := range gstIdx {
		if g == nameIdx {
			score += 50
		}
		if d := g - nameIdx; d >= -3 && d <= 3 {
			near = true
		}
	}
	if near {
		score += 20
	}
	if p.lx.IsAddressLike(line) {
		score -= 10
	}
	if n := len(strings.TrimSpace(line)); n >= 10 && n <= 60 {
		score += 5
	}
	if len(gstIdx) > 0 {
		score += 5
	}
	return score
}

// extractInvoiceNumber reads the value after an invoice/bill number label,
// inline or on one of the next three lines. The value must contain a digit.
func extractInvoiceNumber(lx *lexicon.Lexicon, text string) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		loc := reInvoiceLabel.FindStringIndex(ln)
		if loc == nil {
			continue
		}
		if v := invoiceValue(lx, ln[loc[1]:]); v != "" {
			return v
		}
		for j := i + 1; j < len(lines) && j <= i+3; j++ {
			if strings.TrimSpace(lines[j]) == "" {
				continue
			}
			if v := invoiceValue(lx, lines[j]); v != "" {
				return v
			}
		}
		return ""
	}
	return ""
}

func invoiceValue(lx *lexicon.Lexicon, s string) string {
	for _, tok := range strings.Fields(s) {
		tok = strings.Trim(tok, ":-.,")
		if strings.EqualFold(tok, "dated") {
			return ""
		}
		if strings.ContainsAny(tok, "0123456789") && lx.DateToken.FindString(tok) != tok {
			return tok
		}
	}
	return ""
}

// extractInvoiceDate finds the date printed next to a "Dated" label.
func extractInvoiceDate(lx *lexicon.Lexicon, text string) *time.Time {
	if m := reDatedInline.FindStringSubmatch(text); m != nil {
		if d := parseInvoiceDate(m[1]); d != nil {
			return d
		}
	}
	for _, loc := range reDatedLabel.FindAllStringIndex(text, -1) {
		after := strings.SplitN(text[loc[1]:], "\n", 5)
		for _, ln := range after {
			// invoice codes such as 12/24-25 also look like dates
			for _, m := range lx.DateToken.FindAllString(ln, -1) {
				if d := parseInvoiceDate(m); d != nil {
					return d
				}
			}
		}
	}
	return nil
}

func parseInvoiceDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range invoiceDateLayout {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
