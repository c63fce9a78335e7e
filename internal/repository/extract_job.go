package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

type ExtractJobRepository interface {
	Start(ctx context.Context, billID uuid.UUID, format string) (*entity.ExtractJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, method string, confidence float64, needsReview bool, lineCount int) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	ListByBill(ctx context.Context, billID uuid.UUID) ([]*entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log}
}

func (r *extractJobRepo) Start(ctx context.Context, billID uuid.UUID, format string) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:        uuid.New(),
		BillID:    billID,
		Format:    format,
		StartedAt: time.Now().UTC(),
		Status:    string(constants.JobStatusRunning),
	}
	ins := r.db.builder().Insert(extractJobsTable.Name).
		Columns("id", "bill_id", "format", "status", "started_at", "needs_review", "line_count").
		Values(job.ID, job.BillID, job.Format, job.Status, job.StartedAt, false, 0)
	if _, err := execStmt(ctx, r.db.drv, ins); err != nil {
		r.log.Error("extract_job start failed", "bill_id", billID, "err", err)
		return nil, err
	}
	r.log.Info("extract_job started", "job_id", job.ID, "bill_id", billID, "format", format)
	return job, nil
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, method string, confidence float64, needsReview bool, lineCount int) error {
	upd := r.db.builder().Update(extractJobsTable.Name).
		Set("finished_at", time.Now().UTC()).
		Set("status", string(constants.JobStatusOK)).
		Set("method", nullString(method)).
		Set("confidence", confidence).
		Set("needs_review", needsReview).
		Set("line_count", lineCount).
		Where(entsql.EQ("id", jobID))
	if err := r.finish(ctx, jobID, upd); err != nil {
		r.log.Error("extract_job finish(OK) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("extract_job finished (OK)", "job_id", jobID, "method", method, "lines", lineCount)
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	upd := r.db.builder().Update(extractJobsTable.Name).
		Set("finished_at", time.Now().UTC()).
		Set("status", string(constants.JobStatusFailed)).
		Set("error_message", message).
		Set("needs_review", true).
		Where(entsql.EQ("id", jobID))
	if err := r.finish(ctx, jobID, upd); err != nil {
		r.log.Error("extract_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("extract_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

func (r *extractJobRepo) finish(ctx context.Context, jobID uuid.UUID, upd *entsql.UpdateBuilder) error {
	n, err := execStmt(ctx, r.db.drv, upd)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("extract job %s: %w", jobID, common.ErrNotFound)
	}
	return nil
}

// ListByBill returns the jobs of a bill, oldest first.
func (r *extractJobRepo) ListByBill(ctx context.Context, billID uuid.UUID) ([]*entity.ExtractJob, error) {
	b := r.db.builder()
	sel := b.Select("id", "bill_id", "format", "status", "started_at", "finished_at",
		"error_message", "method", "confidence", "needs_review", "line_count").
		From(b.Table(extractJobsTable.Name)).
		Where(entsql.EQ("bill_id", billID)).
		OrderBy("started_at", "id")

	jobs := []*entity.ExtractJob{}
	err := queryRows(ctx, r.db.drv, sel, func(rows *entsql.Rows) error {
		var (
			j           entity.ExtractJob
			finished    sql.NullTime
			msg, method sql.NullString
			confidence  sql.NullFloat64
		)
		if err := rows.Scan(&j.ID, &j.BillID, &j.Format, &j.Status, &j.StartedAt, &finished,
			&msg, &method, &confidence, &j.NeedsReview, &j.LineCount); err != nil {
			return err
		}
		if finished.Valid {
			t := finished.Time
			j.FinishedAt = &t
		}
		if msg.Valid {
			s := msg.String
			j.ErrorMessage = &s
		}
		if method.Valid {
			s := method.String
			j.Method = &s
		}
		if confidence.Valid {
			c := confidence.Float64
			j.Confidence = &c
		}
		jobs = append(jobs, &j)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list extract jobs: %w", err)
	}
	return jobs, nil
}
