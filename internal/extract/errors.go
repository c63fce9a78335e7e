package extract

import (
	"fmt"

	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// ExtractionErrorCode classifies a failed extraction.
type ExtractionErrorCode string

const (
	CodeUnreadableDocument ExtractionErrorCode = "unreadable_document"
	CodeNoUsableLines      ExtractionErrorCode = "no_usable_lines"
)

// ExtractionError is returned when a document yields no bundle. Partial
// carries the header that could still be read, for the caller to store
// alongside the FAILED status.
type ExtractionError struct {
	Code    ExtractionErrorCode
	Message string
	Partial *entity.ExtractionBundle
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
