package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate    = regexp.MustCompile(`\b\d{1,2}[-/](?:\d{2}|[a-z]{3})[-/]\d{2,4}\b`)
	reGSTIN   = regexp.MustCompile(`\b\d{2}[a-z]{5}\d{4}[a-z][a-z0-9]{3}\b`)
	reAmount  = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+\.\d{2}\b`)
	reInvoice = regexp.MustCompile(`\b(invoice|bill)\b`)
)

// naive heuristic confidence based on decoded text characteristics
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reDate.MatchString(txtL) {
		score += 0.15
	}
	if reGSTIN.MatchString(txtL) {
		score += 0.2
	}
	if reAmount.MatchString(txtL) {
		score += 0.2
	}
	if reInvoice.MatchString(txtL) {
		score += 0.1
	}
	if len(txt) > 400 {
		score += 0.15
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
