// Package lexicon holds the token lists and patterns used to read invoice
// headers and line items. A Lexicon is built once and shared read-only.
package lexicon

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

var (
	defaultVendorTokens = []string{
		`A2Z`, `BUILDWARES?`, `TILES?`, `SANIT\w*`, `HARDWARES?`, `CERAM\w*`, `BATH\w*`,
		`PVT`, `LTD`, `LLP`, `CO`, `COMPANY`, `ENTERPRISES?`, `AGENC\w*`, `TRADERS?`,
	}
	defaultAddressTokens = []string{
		`GROUND`, `FLOOR`, `BLDGS?`, `BUILDING`, `ASSOCIATION`, `MERCHANTS`, `NEAR`, `BANK`,
		`ROAD`, `RD`, `STREET`, `ST`, `LANE`, `POST`, `PO`, `PIN`, `STATE\s*NAME`,
		`KORATTY`, `THRISSUR`, `KERALA`, `EMAIL`, `E[-\s]?MAIL`, `PHONE`, `CONTRACTOR`,
	}
	// words counted by IsAddressLike
	defaultAddressWords = []string{
		"road", "rd", "street", "st", "lane", "ln", "near", "po", "post", "taluk", "district",
		"dist", "pin", "zip", "phone", "ph", "mob", "mobile", "email", "gst", "gstin", "fax",
		"landmark", "india", "kerala", "thrissur", "kochi", "ernakulam", "koratty", "building",
		"bldg", "bldgs", "floor",
	}
	defaultAcronyms = []string{"A2Z", "LLP", "GST", "GSTIN", "HSN", "PVC", "UPVC", "CPVC", "GI", "MS", "SS"}
	defaultBlocklist = []string{
		`\bGSTIN\b`, `\bState\s*Name\b`, `\bBuyer\b`, `\bConsignee\b`, `\bBank\b`, `\bIFSC\b`,
		`\bTransportation\b`, `\bOUTPUT\s+(?:CGST|SGST)\b`, `\bDelivery\s*Note\b`, `\bReference\b`,
		`continued\s*\.\.\.`, `Computer Generated Invoice`, `^Amount\s*Chargeable\b`, `^Declaration\b`,
		`^Company’s Bank Details\b`, `^for\s+`, `\bTax\s*Invoice\b`, `Accounting\s*Voucher\s*Display`,
		`^Page\s*\d+\b`,
	}
)

// Overrides extends the built-in lists. It is read from a YAML file.
type Overrides struct {
	VendorTokens  []string `yaml:"vendor_tokens"`
	AddressTokens []string `yaml:"address_tokens"`
	AddressWords  []string `yaml:"address_words"`
	Acronyms      []string `yaml:"acronyms"`
	ItemBlocklist []string `yaml:"item_blocklist"`
	UOMs          []string `yaml:"uoms"`
}

type Lexicon struct {
	// RightPanel matches the labels of the invoice meta panel (Invoice No, Dated, ...).
	RightPanel *regexp.Regexp
	// DropInDesc matches party and panel text that must never reach a description.
	DropInDesc *regexp.Regexp
	// ItemBlocklist matches text that is never an item row.
	ItemBlocklist *regexp.Regexp
	// HeaderNoise matches the column header row of the items table.
	HeaderNoise     *regexp.Regexp
	InvoiceValueish *regexp.Regexp
	DateToken       *regexp.Regexp
	MonthToken      *regexp.Regexp
	Email           *regexp.Regexp
	AllCaps         *regexp.Regexp
	VendorTokens    *regexp.Regexp
	AddressTokens   *regexp.Regexp

	uoms         []string
	addressWords map[string]struct{}
	acronyms     map[string]string
}

var (
	rightPanelRe = regexp.MustCompile(`(?i)(?:Tax\s*Invoice|Accounting\s*Voucher\s*Display|e[-\s]?Way\s*Bill|` +
		`Invoice\s*(?:No\.?|#)|Bill\s*(?:No\.?|#)|Dated|Delivery\s*Note|Mode/Terms|Reference\b|Buyer’s\s*Order|` +
		`Dispatch(?:ed)?\s*through|Other\s*References|Destination|Terms\s*of\s*Delivery|Page\s*\d+)`)
	dropInDescRe = regexp.MustCompile(`(?i)(?:\bConsignee\b|\bBuyer\b|Invoice\s*(?:No\.?|#)|\bDated\b|` +
		`Terms\s*of\s*Delivery|Dispatch(?:ed)?\s*through|Destination|` +
		`Delivery\s*Note|Mode/Terms|Other\s*References|Buyer’?s?\s*Order|` +
		`State\s*Name|GSTIN|Reference\b|E[-\s]?mail|Page\s*\d+|Tax\s*Invoice|Accounting\s*Voucher\s*Display|Contractor)`)
	headerNoiseRe = regexp.MustCompile(`(?i)^\s*(?:Sl\s*No\.?|No\.\s*|No\s+Goods\s+and\s+Services|Description\s+of\s+Goods.*|Amount\s*$)`)
	invoiceishRe  = regexp.MustCompile(`(?i)\b[A-Z0-9]{2,}(?:[/\-][A-Z0-9]+)+\b|\b\d{2,}[/\-]\d{2,}(?:[/\-]\d{2,})+\b`)
	dateTokenRe   = regexp.MustCompile(`([0-9]{1,2}[-/][A-Za-z]{3}[-/][0-9]{2,4}|[0-9]{2}[-/][0-9]{2}[-/][0-9]{2,4})`)
	monthTokenRe  = regexp.MustCompile(`(?i)\b(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sept?(?:ember)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\b`)
	emailRe       = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	allCapsRe     = regexp.MustCompile(`^[A-Z0-9\s&\-.]{3,}$`)
	wordRe        = regexp.MustCompile(`[A-Za-z0-9]+`)
	addrSplitRe   = regexp.MustCompile(`[\s,.;:/\-|]+`)
)

// Default returns the built-in lexicon.
func Default() *Lexicon {
	lx, err := New(Overrides{})
	if err != nil {
		// built-in patterns are constants
		panic(err)
	}
	return lx
}

// New builds a lexicon from the built-in lists extended by o.
func New(o Overrides) (*Lexicon, error) {
	vendorRe, err := wordAlternation(append(append([]string{}, defaultVendorTokens...), o.VendorTokens...))
	if err != nil {
		return nil, fmt.Errorf("vendor_tokens: %w", err)
	}
	addressRe, err := wordAlternation(append(append([]string{}, defaultAddressTokens...), o.AddressTokens...))
	if err != nil {
		return nil, fmt.Errorf("address_tokens: %w", err)
	}
	blocklist := append(append([]string{}, defaultBlocklist...), o.ItemBlocklist...)
	blockRe, err := regexp.Compile(`(?i)(?:` + strings.Join(blocklist, "|") + `)`)
	if err != nil {
		return nil, fmt.Errorf("item_blocklist: %w", err)
	}

	lx := &Lexicon{
		RightPanel:      rightPanelRe,
		DropInDesc:      dropInDescRe,
		ItemBlocklist:   blockRe,
		HeaderNoise:     headerNoiseRe,
		InvoiceValueish: invoiceishRe,
		DateToken:       dateTokenRe,
		MonthToken:      monthTokenRe,
		Email:           emailRe,
		AllCaps:         allCapsRe,
		VendorTokens:    vendorRe,
		AddressTokens:   addressRe,
		addressWords:    map[string]struct{}{},
		acronyms:        map[string]string{},
	}
	for _, w := range append(append([]string{}, defaultAddressWords...), o.AddressWords...) {
		lx.addressWords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	for _, a := range append(append([]string{}, defaultAcronyms...), o.Acronyms...) {
		a = strings.TrimSpace(a)
		if a != "" {
			lx.acronyms[strings.ToUpper(a)] = a
		}
	}
	seen := map[string]bool{}
	for _, u := range append(constants.UOMTokens(), o.UOMs...) {
		u = strings.ToUpper(strings.TrimSpace(u))
		if u == "" || seen[u] || !isAlpha(u) {
			continue
		}
		seen[u] = true
		lx.uoms = append(lx.uoms, u)
	}
	return lx, nil
}

// Load reads overrides from a YAML file and builds the lexicon. An empty
// path returns the built-in lexicon.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return New(Overrides{})
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon file: %w", err)
	}
	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse lexicon file %s: %w", path, err)
	}
	return New(o)
}

func wordAlternation(tokens []string) (*regexp.Regexp, error) {
	var parts []string
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return regexp.Compile(`(?i)\b(?:` + strings.Join(parts, "|") + `)\b`)
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// UOMPattern is a regexp alternation of the unit tokens, longest first.
func (l *Lexicon) UOMPattern() string {
	uoms := append([]string{}, l.uoms...)
	for i := 1; i < len(uoms); i++ {
		for j := i; j > 0 && len(uoms[j]) > len(uoms[j-1]); j-- {
			uoms[j], uoms[j-1] = uoms[j-1], uoms[j]
		}
	}
	return `(?:` + strings.Join(uoms, "|") + `)`
}

// VendorTokenCount counts vendor-lexicon tokens in s.
func (l *Lexicon) VendorTokenCount(s string) int {
	return len(l.VendorTokens.FindAllStringIndex(s, -1))
}

// AddressIndex returns the byte offset of the first address token in s, or -1.
func (l *Lexicon) AddressIndex(s string) int {
	loc := l.AddressTokens.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// IsAddressLike reports whether s reads like an address rather than a name.
func (l *Lexicon) IsAddressLike(s string) bool {
	clean := strings.TrimSpace(addrSplitRe.ReplaceAllString(strings.ToLower(s), " "))
	if clean == "" {
		return false
	}
	hits := 0
	for _, w := range strings.Fields(clean) {
		if _, ok := l.addressWords[w]; ok {
			hits++
		}
	}
	digits := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	return hits >= 2 || strings.Count(s, ",") >= 2 || digits >= 6 || len(s) > 70
}

// VendorLikeness scores how much s reads like a business name.
func (l *Lexicon) VendorLikeness(s string) int {
	if strings.TrimSpace(s) == "" {
		return 0
	}
	score := 14 * l.VendorTokenCount(s)
	if l.AddressIndex(s) >= 0 {
		score -= 10
	}
	if l.IsAddressLike(s) {
		score -= 30
	}
	return score
}

// TitleCase title-cases s and restores known acronyms.
func (l *Lexicon) TitleCase(s string) string {
	// a Caser keeps state, so one per call
	titled := cases.Title(language.English).String(strings.ToLower(s))
	return wordRe.ReplaceAllStringFunc(titled, func(w string) string {
		if a, ok := l.acronyms[strings.ToUpper(w)]; ok {
			return a
		}
		return w
	})
}
