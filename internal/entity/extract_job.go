package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExtractJob represents an extract job for data transfer between layers.
type ExtractJob struct {
	ID           uuid.UUID  `json:"id"`
	BillID       uuid.UUID  `json:"bill_id"`
	Format       string     `json:"format"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	Method       *string    `json:"method,omitempty"`
	Confidence   *float64   `json:"confidence,omitempty"`
	NeedsReview  bool       `json:"needs_review"`
	LineCount    int        `json:"line_count"`
}
