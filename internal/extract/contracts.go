package extract

import (
	"context"

	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
)

// TextSource turns a document into text, and page geometry when the text
// came from an embedded text layer. *ocr.Extractor satisfies it.
type TextSource interface {
	Extract(ctx context.Context, path string) (ocr.Result, error)
}

var _ TextSource = (*ocr.Extractor)(nil)
