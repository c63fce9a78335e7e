package extract

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

const confidenceTable = 0.985

// TableOptions tune ruled grid detection.
type TableOptions struct {
	SnapTolerance float64 // rules closer than this are one rule
	EdgeMinLength float64 // shorter rules are ignored
	TextTolerance float64 // baseline drift within one cell line
}

func DefaultTableOptions() TableOptions {
	return TableOptions{SnapTolerance: 3, EdgeMinLength: 15, TextTolerance: 3}
}

// TableExtractor reads line items from ruled grids in the page geometry.
type TableExtractor struct {
	lx    *lexicon.Lexicon
	opt   TableOptions
	qtyRe *regexp.Regexp
}

func NewTableExtractor(lx *lexicon.Lexicon, opt TableOptions) *TableExtractor {
	return &TableExtractor{
		lx:    lx,
		opt:   opt,
		qtyRe: regexp.MustCompile(`(?i)^\s*(` + decPattern + `)\s*(` + lx.UOMPattern() + `)?\b`),
	}
}

type band struct {
	top, bottom float64 // top > bottom, PDF space
	cols        []float64
}

// Grids returns the cell text of every ruled grid on the page, one
// [][]string per grid, rows top to bottom.
func (t *TableExtractor) Grids(page ocr.PageLayout) [][][]string {
	var hs, vs []ocr.Rule
	for _, r := range page.Rules {
		length := math.Hypot(r.X1-r.X0, r.Y1-r.Y0)
		if length < t.opt.EdgeMinLength {
			continue
		}
		if r.Horizontal() {
			hs = append(hs, r)
		} else {
			vs = append(vs, r)
		}
	}
	var rawYs []float64
	for _, r := range hs {
		rawYs = append(rawYs, r.Y0)
	}
	ys := t.snap(rawYs)
	if len(ys) < 2 || len(vs) < 2 {
		return nil
	}
	// top of page first
	sort.Sort(sort.Reverse(sort.Float64Slice(ys)))

	var bands []band
	for i := 0; i+1 < len(ys); i++ {
		b := band{top: ys[i], bottom: ys[i+1]}
		mid := (b.top + b.bottom) / 2
		var xs []float64
		for _, r := range vs {
			lo, hi := math.Min(r.Y0, r.Y1), math.Max(r.Y0, r.Y1)
			if lo-t.opt.SnapTolerance <= mid && mid <= hi+t.opt.SnapTolerance {
				xs = append(xs, r.X0)
			}
		}
		b.cols = t.snap(xs)
		if len(b.cols) >= 2 {
			bands = append(bands, b)
		}
	}

	// consecutive bands sharing one column layout form a grid
	var grids [][][]string
	var cur []band
	flush := func() {
		if len(cur) >= 2 {
			grids = append(grids, t.cells(page.Words, cur))
		}
		cur = nil
	}
	for _, b := range bands {
		if len(cur) > 0 {
			last := cur[len(cur)-1]
			if math.Abs(last.bottom-b.top) > t.opt.SnapTolerance || !sameCols(last.cols, b.cols, t.opt.SnapTolerance) {
				flush()
			}
		}
		cur = append(cur, b)
	}
	flush()
	return grids
}

// snap merges positions closer than the snap tolerance.
func (t *TableExtractor) snap(raw []float64) []float64 {
	sort.Float64s(raw)
	var out []float64
	for _, v := range raw {
		if len(out) > 0 && v-out[len(out)-1] <= t.opt.SnapTolerance {
			continue
		}
		out = append(out, v)
	}
	return out
}

func sameCols(a, b []float64, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}

func (t *TableExtractor) cells(words []ocr.Word, bands []band) [][]string {
	rows := make([][]string, 0, len(bands))
	for _, b := range bands {
		row := make([]string, len(b.cols)-1)
		for j := 0; j+1 < len(b.cols); j++ {
			var in []ocr.Word
			for _, w := range words {
				cx, cy := (w.X0+w.X1)/2, (w.Y0+w.Y1)/2
				if cx >= b.cols[j] && cx <= b.cols[j+1] && cy <= b.top && cy >= b.bottom {
					in = append(in, w)
				}
			}
			row[j] = t.cellText(in)
		}
		rows = append(rows, row)
	}
	return rows
}

func (t *TableExtractor) cellText(words []ocr.Word) string {
	sort.SliceStable(words, func(i, j int) bool {
		if math.Abs(words[i].Y0-words[j].Y0) > t.opt.TextTolerance {
			return words[i].Y0 > words[j].Y0
		}
		return words[i].X0 < words[j].X0
	})
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			if math.Abs(w.Y0-words[i-1].Y0) > t.opt.TextTolerance {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.Text)
	}
	return b.String()
}

type columnMap struct {
	desc, hsn, qty, rate, amount int
}

var headerColumns = []struct {
	tokens  []string
	exclude []string
}{
	{tokens: []string{"description", "goods", "services", "particulars", "item"}},
	{tokens: []string{"hsn", "sac"}},
	{tokens: []string{"quantity", "qty"}},
	{tokens: []string{"rate", "price"}, exclude: []string{"gst", "tax", "%"}},
	{tokens: []string{"amount", "amt", "value", "total"}, exclude: []string{"taxable"}},
}

// headerIndex maps the header row to column indexes. Each field takes the
// first column holding its most specific token.
func headerIndex(cols []string) (columnMap, int) {
	low := make([]string, len(cols))
	for i, c := range cols {
		low[i] = strings.ToLower(c)
	}
	idx := [5]int{-1, -1, -1, -1, -1}
	found := 0
	for f, hc := range headerColumns {
	tokens:
		for _, tok := range hc.tokens {
			for i, c := range low {
				if !strings.Contains(c, tok) || containsAny(c, hc.exclude) {
					continue
				}
				idx[f] = i
				found++
				break tokens
			}
		}
	}
	return columnMap{desc: idx[0], hsn: idx[1], qty: idx[2], rate: idx[3], amount: idx[4]}, found
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (m columnMap) complete() bool {
	return m.desc >= 0 && m.hsn >= 0 && m.qty >= 0 && m.rate >= 0 && m.amount >= 0
}

func cell(cols []string, i int) string {
	if i < 0 || i >= len(cols) {
		return ""
	}
	return cols[i]
}

// Extract returns the item rows of every grid on the given pages.
func (t *TableExtractor) Extract(pages []ocr.PageLayout) []entity.ExtractedLine {
	var out []entity.ExtractedLine
	for _, page := range pages {
		for _, grid := range t.Grids(page) {
			out = append(out, t.rows(grid)...)
		}
	}
	return out
}

func (t *TableExtractor) rows(grid [][]string) []entity.ExtractedLine {
	// a header needs at least two named columns; a data row such as
	// "10 NOS" must not pass for one
	headerRow := -1
	var cm columnMap
	for i := 0; i < len(grid) && i < 3; i++ {
		if m, found := headerIndex(grid[i]); found >= 2 {
			headerRow, cm = i, m
			break
		}
	}

	var out []entity.ExtractedLine
	for i, cols := range grid {
		if i == headerRow || allEmpty(cols) {
			continue
		}
		var desc, hsn, qtyCell, rateCell, amountCell string
		switch {
		case headerRow >= 0 && cm.complete():
			desc, hsn, qtyCell, rateCell = cell(cols, cm.desc), cell(cols, cm.hsn), cell(cols, cm.qty), cell(cols, cm.rate)
			amountCell = cell(cols, cm.amount)
			if cm.amount >= len(cols) {
				amountCell = cols[len(cols)-1]
			}
		case len(cols) >= 5:
			// serial, description, code, quantity, rate, ..., amount
			desc, hsn, qtyCell, rateCell, amountCell = cols[1], cols[2], cols[3], cols[4], cols[len(cols)-1]
		default:
			continue
		}

		var qty decimal.Decimal
		var qtyOK bool
		var uom string
		if m := t.qtyRe.FindStringSubmatch(qtyCell); m != nil {
			qty, qtyOK = parseNumber(m[1])
			uom = m[2]
		}
		rate, _ := parseNumber(rateCell)
		amount, _ := parseNumber(amountCell)
		tr, _ := ValidateTriple(Triple{Qty: qty, Rate: rate, Amount: amount})
		if !qtyOK || (tr.Rate.IsZero() && tr.Amount.IsZero()) {
			continue
		}
		out = append(out, entity.ExtractedLine{
			Description: cleanDesc(strings.NewReplacer("\n", " ", "\r", " ").Replace(desc)),
			Quantity:    tr.Qty.Round(3),
			UnitPrice:   tr.Rate.Round(2),
			LineTotal:   tr.Amount.Round(2),
			TaxCode:     taxCode(hsn),
			UOM:         canonicalUOM(uom),
			Confidence:  confidenceTable,
			Source:      constants.SourceTable,
		})
	}
	return out
}

func allEmpty(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
