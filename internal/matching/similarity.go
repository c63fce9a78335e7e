package matching

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

var reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// fold lowercases s and reduces punctuation to single spaces.
func fold(s string) string {
	return strings.TrimSpace(reNonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

func sortTokens(s string) string {
	toks := strings.Fields(s)
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

// Similarity is the better of the Levenshtein ratio on the folded strings
// and on their sorted tokens, so word order does not count against a match.
func Similarity(a, b string) float64 {
	fa, fb := fold(a), fold(b)
	if fa == "" || fb == "" {
		return 0
	}
	direct := levenshtein.Similarity(fa, fb, nil)
	sorted := levenshtein.Similarity(sortTokens(fa), sortTokens(fb), nil)
	if sorted > direct {
		return sorted
	}
	return direct
}
