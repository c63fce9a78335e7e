package extract

import (
	"regexp"
	"strings"
)

var rePhone = regexp.MustCompile(`(?:\+91[\-\s]?)?\b\d{10}\b|\b\d{3,5}[-\s]?\d{6,8}\b`)

// NormalizePhones finds phone numbers in s and returns them as +91 followed
// by the last ten digits, deduplicated on those ten digits. Numbers with
// fewer than ten digits are dropped.
func NormalizePhones(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, raw := range rePhone.FindAllString(s, -1) {
		digits := digitsOnly(raw)
		if strings.HasPrefix(raw, "+91") {
			digits = strings.TrimPrefix(digits, "91")
		}
		if len(digits) < 10 {
			continue
		}
		key := digits[len(digits)-10:]
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, "+91"+key)
	}
	return out
}
