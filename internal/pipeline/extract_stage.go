package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// Extractor runs the extraction engine over one file.
type Extractor interface {
	Extract(ctx context.Context, path string, catalog []entity.CatalogItem) (*entity.ExtractionBundle, error)
}

var _ Extractor = (*extract.Engine)(nil)

// ExtractStage starts an extract_job, snapshots the catalog and runs the
// engine. It does not touch the bill row.
type ExtractStage struct {
	Bills    repository.BillRepository
	Jobs     repository.ExtractJobRepository
	Products repository.ProductRepository
	Engine   Extractor
	Logger   *slog.Logger
}

func NewExtractStage(bills repository.BillRepository, jobs repository.ExtractJobRepository, products repository.ProductRepository, engine Extractor, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractStage{Bills: bills, Jobs: jobs, Products: products, Engine: engine, Logger: logger}
}

// StageResult is what the extract stage hands to the persist stage.
type StageResult struct {
	Bill   *entity.Bill
	JobID  uuid.UUID
	Bundle *entity.ExtractionBundle
	// Err is the engine failure, if any. Bundle then holds the partial
	// header, or nil when nothing could be read.
	Err error
}

// Run returns an error only when the job could not be started; engine
// failures travel in StageResult.Err.
func (s *ExtractStage) Run(ctx context.Context, billID uuid.UUID) (*StageResult, error) {
	bill, err := s.Bills.Get(ctx, billID)
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}

	format := constants.MapExtToFormat(filepath.Ext(bill.SourcePath))
	if format == "" {
		return nil, fmt.Errorf("unsupported format: %s", filepath.Ext(bill.SourcePath))
	}

	job, err := s.Jobs.Start(ctx, bill.ID, format)
	if err != nil {
		return nil, err
	}
	res := &StageResult{Bill: bill, JobID: job.ID}

	catalog, err := s.Products.Snapshot(ctx)
	if err != nil {
		res.Err = err
		return res, nil
	}

	bundle, err := s.Engine.Extract(ctx, bill.SourcePath, catalog)
	if err != nil {
		res.Err = err
		var xe *extract.ExtractionError
		if errors.As(err, &xe) {
			res.Bundle = xe.Partial
		}
		s.Logger.Warn("extraction failed", "bill_id", bill.ID, "job_id", job.ID, "err", err)
		return res, nil
	}
	res.Bundle = bundle
	s.Logger.Info("extraction ok",
		"bill_id", bill.ID,
		"job_id", job.ID,
		"method", bundle.TextMethod,
		"lines", len(bundle.Lines),
		"needs_review", bundle.Header.NeedsReview,
	)
	return res, nil
}
