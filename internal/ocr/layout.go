package ocr

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Word is a run of glyphs on one baseline, in PDF user space (origin bottom left).
type Word struct {
	Text   string
	X0, X1 float64
	Y0, Y1 float64
}

// Rule is a ruling segment drawn on the page; horizontal rules have Y0 == Y1
// after snapping, vertical rules X0 == X1.
type Rule struct {
	X0, Y0, X1, Y1 float64
}

// Horizontal reports whether the rule runs left to right.
func (r Rule) Horizontal() bool { return math.Abs(r.Y1-r.Y0) <= math.Abs(r.X1-r.X0) }

// PageLayout is the geometry of one page of the text layer.
type PageLayout struct {
	Number int
	Words  []Word
	Rules  []Rule
	Lines  []string
}

// LayoutOptions tune how glyphs are grouped.
type LayoutOptions struct {
	XTolerance    float64 // max gap between glyphs of one word
	YTolerance    float64 // max baseline drift within one row
	RuleThickness float64 // rects thinner than this are rules, not boxes
	RuleMinLength float64 // shorter segments are ignored
}

func defaultLayoutOptions() LayoutOptions {
	return LayoutOptions{XTolerance: 1.5, YTolerance: 2.0, RuleThickness: 3, RuleMinLength: 15}
}

type row struct {
	y     float64
	texts []pdf.Text
}

// buildLayout groups the page glyphs into rows and words and collects ruling
// segments from the drawn rectangles.
func buildLayout(number int, texts []pdf.Text, rects []pdf.Rect, opt LayoutOptions) PageLayout {
	layout := PageLayout{Number: number}

	for _, r := range groupTextsIntoRows(texts, opt.YTolerance) {
		words := splitWords(r, opt.XTolerance)
		if len(words) == 0 {
			continue
		}
		parts := make([]string, 0, len(words))
		for _, w := range words {
			parts = append(parts, w.Text)
		}
		layout.Words = append(layout.Words, words...)
		layout.Lines = append(layout.Lines, strings.Join(parts, " "))
	}

	for _, rc := range rects {
		layout.Rules = append(layout.Rules, rectToRules(rc, opt)...)
	}
	return layout
}

// Text renders the page rows top to bottom.
func (p PageLayout) Text() string {
	return strings.Join(p.Lines, "\n")
}

func groupTextsIntoRows(texts []pdf.Text, tolerance float64) []row {
	var rows []row
	for _, t := range texts {
		if t.S == "" {
			continue
		}
		placed := false
		for i := range rows {
			if math.Abs(rows[i].y-t.Y) < tolerance {
				rows[i].texts = append(rows[i].texts, t)
				placed = true
				break
			}
		}
		if !placed {
			rows = append(rows, row{y: t.Y, texts: []pdf.Text{t}})
		}
	}
	// top of page first
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })
	for i := range rows {
		sort.SliceStable(rows[i].texts, func(a, b int) bool { return rows[i].texts[a].X < rows[i].texts[b].X })
	}
	return rows
}

func splitWords(r row, xTol float64) []Word {
	var words []Word
	var cur *Word
	var b strings.Builder
	flush := func() {
		if cur == nil {
			return
		}
		cur.Text = strings.TrimSpace(b.String())
		if cur.Text != "" {
			words = append(words, *cur)
		}
		cur = nil
		b.Reset()
	}

	for _, t := range r.texts {
		if strings.TrimSpace(t.S) == "" {
			flush()
			continue
		}
		if cur != nil && t.X-cur.X1 > xTol {
			flush()
		}
		if cur == nil {
			cur = &Word{X0: t.X, X1: t.X, Y0: t.Y, Y1: t.Y + t.FontSize}
		}
		b.WriteString(t.S)
		cur.X1 = math.Max(cur.X1, t.X+t.W)
		cur.Y1 = math.Max(cur.Y1, t.Y+t.FontSize)
	}
	flush()
	return words
}

func rectToRules(rc pdf.Rect, opt LayoutOptions) []Rule {
	x0, x1 := math.Min(rc.Min.X, rc.Max.X), math.Max(rc.Min.X, rc.Max.X)
	y0, y1 := math.Min(rc.Min.Y, rc.Max.Y), math.Max(rc.Min.Y, rc.Max.Y)
	w, h := x1-x0, y1-y0

	switch {
	case h <= opt.RuleThickness && w >= opt.RuleMinLength:
		y := (y0 + y1) / 2
		return []Rule{{X0: x0, Y0: y, X1: x1, Y1: y}}
	case w <= opt.RuleThickness && h >= opt.RuleMinLength:
		x := (x0 + x1) / 2
		return []Rule{{X0: x, Y0: y0, X1: x, Y1: y1}}
	case w >= opt.RuleMinLength && h >= opt.RuleMinLength:
		// a stroked box: each edge counts as a rule
		return []Rule{
			{X0: x0, Y0: y0, X1: x1, Y1: y0},
			{X0: x0, Y0: y1, X1: x1, Y1: y1},
			{X0: x0, Y0: y0, X1: x0, Y1: y1},
			{X0: x1, Y0: y0, X1: x1, Y1: y1},
		}
	}
	return nil
}
