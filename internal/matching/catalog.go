package matching

import (
	"regexp"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// Resolution methods, in priority order.
const (
	MethodCode  = "code"
	MethodToken = "token"
	MethodFuzzy = "fuzzy"
	MethodNone  = "none"
)

const (
	DefaultFuzzyMinimum = 0.75
	maxCandidates       = 3
	noMatchCeiling      = 0.6
)

var reToken = regexp.MustCompile(`[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*`)

// ocrFold maps the letters OCR confuses with digits.
var ocrFold = strings.NewReplacer("O", "0", "I", "1")

// Match is the catalog resolution of one line.
type Match struct {
	Method       string
	ProductID    string // empty when unresolved
	CandidateIDs []string
	Confidence   float64
}

type fuzzyEntry struct {
	id, name string
}

// CatalogMatcher resolves line descriptions against a catalog snapshot.
// It is read-only after construction.
type CatalogMatcher struct {
	exact    map[string]string // upper(code) -> id
	folded   map[string]string // ocrFold(upper(code)) -> id
	names    []fuzzyEntry
	minScore float64
}

func NewCatalogMatcher(items []entity.CatalogItem, minScore float64) *CatalogMatcher {
	if minScore <= 0 || minScore > 1 {
		minScore = DefaultFuzzyMinimum
	}
	m := &CatalogMatcher{
		exact:    map[string]string{},
		folded:   map[string]string{},
		minScore: minScore,
	}
	for _, it := range items {
		if code := strings.ToUpper(strings.TrimSpace(it.Code)); code != "" {
			// first one wins on duplicate codes
			if _, ok := m.exact[code]; !ok {
				m.exact[code] = it.ID
			}
			if _, ok := m.folded[ocrFold.Replace(code)]; !ok {
				m.folded[ocrFold.Replace(code)] = it.ID
			}
		}
		if strings.TrimSpace(it.Name) != "" {
			m.names = append(m.names, fuzzyEntry{id: it.ID, name: it.Name})
		}
	}
	return m
}

func (m *CatalogMatcher) lookup(tok string) (id string, normalized bool, ok bool) {
	up := strings.ToUpper(tok)
	if id, ok := m.exact[up]; ok {
		return id, false, true
	}
	if id, ok := m.folded[ocrFold.Replace(up)]; ok {
		return id, true, true
	}
	return "", false, false
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// Match resolves a line: explicit code tokens first, then any token of four
// or more characters, then fuzzy name similarity.
func (m *CatalogMatcher) Match(line entity.ExtractedLine) Match {
	tokens := reToken.FindAllString(line.Description, -1)

	for _, tok := range tokens {
		if !hasDigit(tok) || tok == line.TaxCode {
			continue
		}
		if id, normalized, ok := m.lookup(tok); ok {
			conf := 1.0
			if normalized {
				conf = 0.95
			}
			return Match{Method: MethodCode, ProductID: id, CandidateIDs: []string{id}, Confidence: conf}
		}
	}
	for _, tok := range tokens {
		if len(tok) < 4 || hasDigit(tok) {
			continue
		}
		if id, _, ok := m.lookup(tok); ok {
			return Match{Method: MethodToken, ProductID: id, CandidateIDs: []string{id}, Confidence: 0.9}
		}
	}

	type scored struct {
		id    string
		score float64
	}
	var hits []scored
	best := 0.0
	for _, e := range m.names {
		s := Similarity(line.Description, e.name)
		if s > best {
			best = s
		}
		if s >= m.minScore {
			hits = append(hits, scored{id: e.id, score: s})
		}
	}
	if len(hits) == 0 {
		return Match{Method: MethodNone, Confidence: min(best, noMatchCeiling)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > maxCandidates {
		hits = hits[:maxCandidates]
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return Match{Method: MethodFuzzy, ProductID: hits[0].id, CandidateIDs: ids, Confidence: hits[0].score}
}

// Apply stores the resolution on the line.
func (m *CatalogMatcher) Apply(line *entity.ExtractedLine) Match {
	res := m.Match(*line)
	line.CandidateProductIDs = res.CandidateIDs
	if line.CandidateProductIDs == nil {
		line.CandidateProductIDs = []string{}
	}
	line.ResolvedProductID = nil
	if res.ProductID != "" {
		id := res.ProductID
		line.ResolvedProductID = &id
	}
	line.MatchScore = res.Confidence
	return res
}
