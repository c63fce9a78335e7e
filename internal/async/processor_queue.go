package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
)

// ProcessorQueue runs bills through a fixed worker pool. A bill is held at
// most once between Enqueue and the end of its processing.
type ProcessorQueue struct {
	proc    BillProcessor
	logger  *slog.Logger
	metrics *metrics.ExtractionMetrics
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	sendMu  sync.RWMutex
	mu      sync.Mutex
	closed  bool
	pending map[uuid.UUID]struct{}
}

var _ Queue = (*ProcessorQueue)(nil)

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithMetrics(m *metrics.ExtractionMetrics) Option {
	return func(q *ProcessorQueue) {
		q.metrics = m
	}
}

// FromConfig maps the queue settings onto options.
func FromConfig(c common.QueueConfig) []Option {
	return []Option{WithWorkers(c.Workers), WithQueueSize(c.Size), WithProcessTimeout(c.ProcessTimeout)}
}

func NewProcessorQueue(proc BillProcessor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
		pending: make(map[uuid.UUID]struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ProcessorQueue) run(workerID int, job Job) {
	defer q.release(job.BillID)
	if !job.SubmittedAt.IsZero() {
		q.metrics.ObserveQueueLag(time.Since(job.SubmittedAt))
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	jobID, err := q.proc.ProcessBill(ctx, job.BillID)
	if err != nil {
		q.logger.Error("processing failed", "worker_id", workerID, "bill_id", job.BillID, "job_id", jobID, "error", err)
		return
	}
	q.logger.Info("processed bill successfully", "worker_id", workerID, "bill_id", job.BillID, "job_id", jobID)
}

func (q *ProcessorQueue) release(id uuid.UUID) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}

// Enqueue hands a bill to the workers. It blocks while the queue is full,
// until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	// sendMu keeps Shutdown from closing the channel under a blocked send
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("cannot enqueue: queue is shutting down", "bill_id", job.BillID)
		return ErrQueueClosed
	}
	if _, dup := q.pending[job.BillID]; dup {
		q.mu.Unlock()
		q.logger.Info("bill already queued", "bill_id", job.BillID)
		return ErrAlreadyQueued
	}
	q.pending[job.BillID] = struct{}{}
	q.mu.Unlock()

	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue full, applying backpressure", "bill_id", job.BillID)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			q.release(job.BillID)
			return ctx.Err()
		}
	}
	q.logger.Info("queued bill for processing", "bill_id", job.BillID)
	return nil
}

// Shutdown stops accepting jobs and waits for the queued ones to finish.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.sendMu.Lock()
	close(q.ch)
	q.sendMu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
