package async

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
)

type recordingProcessor struct {
	mu        sync.Mutex
	seen      []uuid.UUID
	gate      chan struct{}
	started   chan uuid.UUID
	deadlines []bool
}

func newRecordingProcessor(gated bool) *recordingProcessor {
	p := &recordingProcessor{started: make(chan uuid.UUID, 16)}
	if gated {
		p.gate = make(chan struct{})
	}
	return p
}

func (p *recordingProcessor) ProcessBill(ctx context.Context, billID uuid.UUID) (uuid.UUID, error) {
	p.started <- billID
	if p.gate != nil {
		<-p.gate
	}
	_, hasDeadline := ctx.Deadline()
	p.mu.Lock()
	p.seen = append(p.seen, billID)
	p.deadlines = append(p.deadlines, hasDeadline)
	p.mu.Unlock()
	return uuid.New(), nil
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

func TestQueueProcessesAllJobs(t *testing.T) {
	proc := newRecordingProcessor(false)
	q := NewProcessorQueue(proc, nil, WithWorkers(3), WithQueueSize(8), WithMetrics(metrics.NewExtractionMetrics("test")))

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(context.Background(), Job{BillID: uuid.New()}))
	}
	q.Shutdown(context.Background())

	assert.Equal(t, 10, proc.count())
	for _, d := range proc.deadlines {
		assert.True(t, d)
	}
}

func TestQueueRejectsDuplicateInFlightBill(t *testing.T) {
	proc := newRecordingProcessor(true)
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	id := uuid.New()

	require.NoError(t, q.Enqueue(context.Background(), Job{BillID: id}))
	<-proc.started
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{BillID: id}), ErrAlreadyQueued)

	proc.gate <- struct{}{}
	require.Eventually(t, func() bool {
		return q.Enqueue(context.Background(), Job{BillID: id}) == nil
	}, time.Second, 5*time.Millisecond)
	<-proc.started
	proc.gate <- struct{}{}

	q.Shutdown(context.Background())
	assert.Equal(t, 2, proc.count())
}

func TestQueueClosed(t *testing.T) {
	q := NewProcessorQueue(newRecordingProcessor(false), nil)
	q.Shutdown(context.Background())
	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{BillID: uuid.New()}), ErrQueueClosed)
	// second shutdown is a no-op
	q.Shutdown(context.Background())
}

func TestQueueEnqueueHonoursContextWhenFull(t *testing.T) {
	proc := newRecordingProcessor(true)
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{BillID: uuid.New()}))
	<-proc.started
	require.NoError(t, q.Enqueue(context.Background(), Job{BillID: uuid.New()}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	blocked := uuid.New()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{BillID: blocked}), context.DeadlineExceeded)

	// the bill was released and can be queued again later
	close(proc.gate)
	require.NoError(t, q.Enqueue(context.Background(), Job{BillID: blocked}))
	q.Shutdown(context.Background())
	assert.Equal(t, 3, proc.count())
}
