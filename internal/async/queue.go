package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrQueueClosed is returned by Enqueue after Shutdown.
	ErrQueueClosed = errors.New("queue is shutting down")
	// ErrAlreadyQueued means the bill is queued or being processed.
	ErrAlreadyQueued = errors.New("bill already queued")
)

// Job is one bill waiting for extraction.
type Job struct {
	BillID      uuid.UUID
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// BillProcessor is what the workers run for each job.
type BillProcessor interface {
	ProcessBill(ctx context.Context, billID uuid.UUID) (uuid.UUID, error)
}
