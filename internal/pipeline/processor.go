package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// Processor coordinates extraction then persistence for one bill.
type Processor struct {
	Logger  *slog.Logger
	Extract *ExtractStage
	Persist *PersistStage
	Bills   repository.BillRepository
	Metrics *metrics.ExtractionMetrics
}

func NewProcessor(logger *slog.Logger, extract *ExtractStage, persist *PersistStage, bills repository.BillRepository, m *metrics.ExtractionMetrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Extract: extract, Persist: persist, Bills: bills, Metrics: m}
}

// ProcessBill runs the engine on a bill's source file and stores the
// result. The bill ends PROCESSED, or FAILED with the extraction error
// returned. Returns the extract_job ID when a job was started.
func (p *Processor) ProcessBill(ctx context.Context, billID uuid.UUID) (uuid.UUID, error) {
	ctx = common.WithBillID(ctx, billID)
	log := p.Logger.With(common.LogAttrs(ctx)...)
	start := time.Now()
	p.Metrics.StartBill()

	res, err := p.Extract.Run(ctx, billID)
	if err != nil {
		p.Metrics.FinishBill("", metrics.OutcomeFailed, time.Since(start), 0, nil)
		log.Error("processor.extract.failed", "err", err)
		return uuid.Nil, err
	}

	err = p.Persist.Run(ctx, res)
	p.record(res, err, time.Since(start))
	if err != nil {
		log.Error("processor.persist.failed", "job_id", res.JobID, "err", err)
		return res.JobID, err
	}
	log.Info("processor.ok", "job_id", res.JobID, "needs_review", res.Bundle.Header.NeedsReview)
	return res.JobID, nil
}

func (p *Processor) record(res *StageResult, err error, took time.Duration) {
	method, outcome, lines := "", metrics.OutcomeFailed, 0
	var reasons []string
	if res.Bundle != nil {
		method = res.Bundle.TextMethod
		for _, r := range res.Bundle.Header.ReviewReasons {
			reasons = append(reasons, string(r))
		}
		if err == nil {
			lines = len(res.Bundle.Lines)
			outcome = metrics.OutcomeProcessed
			if res.Bundle.Header.NeedsReview {
				outcome = metrics.OutcomeReview
			}
		}
	}
	p.Metrics.FinishBill(method, outcome, took, lines, reasons)
}

// Confirm approves a bill; it fails with common.ErrReviewPending while the
// bill still needs review.
func (p *Processor) Confirm(ctx context.Context, billID uuid.UUID) error {
	if err := p.Bills.Confirm(ctx, billID); err != nil {
		p.Logger.Warn("processor.confirm.refused", "bill_id", billID, "err", err)
		return err
	}
	return nil
}
