package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

// VendorResolver maps an extracted vendor onto the stored directory.
type VendorResolver interface {
	Resolve(ctx context.Context, in entity.VendorIdentity) (*entity.VendorIdentity, error)
}

// PersistStage resolves the vendor, stores the bundle and closes the job.
type PersistStage struct {
	Bills   repository.BillRepository
	Jobs    repository.ExtractJobRepository
	Vendors VendorResolver
	Logger  *slog.Logger
}

func NewPersistStage(bills repository.BillRepository, jobs repository.ExtractJobRepository, vendors VendorResolver, logger *slog.Logger) *PersistStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStage{Bills: bills, Jobs: jobs, Vendors: vendors, Logger: logger}
}

// Run stores the stage result. A failed extraction, vendor resolution or
// save leaves the bill FAILED with needs_review and returns the error.
func (s *PersistStage) Run(ctx context.Context, res *StageResult) error {
	if res.Err != nil {
		return s.fail(ctx, res)
	}

	var vendorID *uuid.UUID
	if res.Bundle.Vendor != nil && s.Vendors != nil {
		v, err := s.Vendors.Resolve(ctx, *res.Bundle.Vendor)
		if err != nil {
			return s.abandon(ctx, res, fmt.Errorf("resolve vendor: %w", err))
		}
		if v != nil {
			res.Bundle.Vendor = v
			vendorID = &v.ID
		}
	}

	if err := s.Bills.SaveBundle(ctx, res.Bill.ID, res.Bundle, vendorID); err != nil {
		return s.abandon(ctx, res, fmt.Errorf("save bundle: %w", err))
	}
	if err := s.Jobs.FinishSuccess(ctx, res.JobID, res.Bundle.TextMethod, meanConfidence(res.Bundle.Lines),
		res.Bundle.Header.NeedsReview, len(res.Bundle.Lines)); err != nil {
		return err
	}
	return nil
}

func (s *PersistStage) fail(ctx context.Context, res *StageResult) error {
	if err := s.Bills.MarkFailed(ctx, res.Bill.ID, res.Bundle); err != nil {
		s.finishFailure(ctx, res.JobID, err)
		return errors.Join(res.Err, fmt.Errorf("mark failed: %w", err))
	}
	s.finishFailure(ctx, res.JobID, res.Err)
	return res.Err
}

// abandon handles a bundle that was extracted but could not be stored: the
// bill goes FAILED with needs_review so Confirm refuses it until a rerun
// or a human check.
func (s *PersistStage) abandon(ctx context.Context, res *StageResult, cause error) error {
	s.finishFailure(ctx, res.JobID, cause)
	if err := s.Bills.MarkFailed(ctx, res.Bill.ID, nil); err != nil {
		s.Logger.Error("could not mark bill failed", "bill_id", res.Bill.ID, "err", err)
		return errors.Join(cause, fmt.Errorf("mark failed: %w", err))
	}
	return cause
}

func (s *PersistStage) finishFailure(ctx context.Context, jobID uuid.UUID, cause error) {
	if err := s.Jobs.FinishFailure(ctx, jobID, cause.Error()); err != nil && !errors.Is(err, common.ErrNotFound) {
		s.Logger.Error("could not record job failure", "job_id", jobID, "err", err)
	}
}

func meanConfidence(lines []entity.ExtractedLine) float64 {
	if len(lines) == 0 {
		return 0
	}
	sum := 0.0
	for _, l := range lines {
		sum += l.Confidence
	}
	return sum / float64(len(lines))
}
