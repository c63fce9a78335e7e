package ocr

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readTextLayer renders the embedded text of every page and keeps the page
// geometry for table detection. The pdf reader panics on some malformed
// content streams, so panics are turned into errors here.
func (e *Extractor) readTextLayer(path string) (text string, layouts []PageLayout, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text layer: panic reading %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("text layer: open: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	if e.cfg.MaxPages > 0 && total > e.cfg.MaxPages {
		total = e.cfg.MaxPages
	}

	opt := defaultLayoutOptions()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content := p.Content()
		layout := buildLayout(i, content.Text, content.Rect, opt)
		layouts = append(layouts, layout)
		pages = append(pages, layout.Text())
	}
	return strings.Join(pages, "\n"), layouts, nil
}
