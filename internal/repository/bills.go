package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

// BillRepository drives bills through PENDING -> PROCESSED | FAILED -> CONFIRMED.
type BillRepository interface {
	Create(ctx context.Context, sourcePath string) (*entity.Bill, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Bill, error)
	ListByStatus(ctx context.Context, status constants.BillStatus, limit int) ([]*entity.Bill, error)
	Lines(ctx context.Context, id uuid.UUID) ([]entity.ExtractedLine, error)
	SaveBundle(ctx context.Context, id uuid.UUID, bundle *entity.ExtractionBundle, vendorID *uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, partial *entity.ExtractionBundle) error
	ClearReview(ctx context.Context, id uuid.UUID) error
	Confirm(ctx context.Context, id uuid.UUID) error
}

var billColumns = []string{
	"id", "source_path", "status", "vendor_id", "vendor_name", "tax_id",
	"invoice_number", "invoice_date", "grand_total", "grand_total_source",
	"cgst", "sgst", "igst", "needs_review", "review_reasons", "text_method",
	"pages", "created_at", "updated_at",
}

var lineColumns = []string{
	"id", "bill_id", "position", "description", "quantity", "unit_price",
	"line_total", "tax_code", "uom", "confidence", "flagged", "source",
	"candidate_product_ids", "resolved_product_id", "match_score",
}

type billRepository struct {
	db     *DB
	logger *slog.Logger
}

// NewBillRepository creates a new bill repository
func NewBillRepository(db *DB, logger *slog.Logger) BillRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &billRepository{db: db, logger: logger}
}

func (r *billRepository) Create(ctx context.Context, sourcePath string) (*entity.Bill, error) {
	sourcePath = strings.TrimSpace(sourcePath)
	if sourcePath == "" {
		return nil, common.NewAppError("INVALID_BILL", "source path is required", common.ErrInvalidInput)
	}
	now := time.Now().UTC()
	bill := &entity.Bill{
		ID:            uuid.New(),
		SourcePath:    sourcePath,
		Status:        constants.BillStatusPending,
		ReviewReasons: []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ins := r.db.builder().Insert(billsTable.Name).
		Columns("id", "source_path", "status", "vendor_name", "invoice_number",
			"grand_total", "cgst", "sgst", "igst", "needs_review", "review_reasons",
			"pages", "created_at", "updated_at").
		Values(bill.ID, bill.SourcePath, string(bill.Status), "", "",
			decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero, false, "[]",
			0, now, now)
	if _, err := execStmt(ctx, r.db.drv, ins); err != nil {
		r.logger.Error("failed to create bill", "source_path", sourcePath, "error", err)
		return nil, fmt.Errorf("insert bill: %w", err)
	}
	r.logger.Info("bill created", "bill_id", bill.ID, "source_path", sourcePath)
	return bill, nil
}

func (r *billRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Bill, error) {
	return r.get(ctx, r.db.drv, id)
}

func (r *billRepository) get(ctx context.Context, q dialect.ExecQuerier, id uuid.UUID) (*entity.Bill, error) {
	b := r.db.builder()
	sel := b.Select(billColumns...).From(b.Table(billsTable.Name)).Where(entsql.EQ("id", id)).Limit(1)

	var bill entity.Bill
	err := queryOne(ctx, q, sel, func(rows *entsql.Rows) error {
		return scanBill(rows, &bill)
	})
	if errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		r.logger.Error("failed to query bill", "bill_id", id, "error", err)
		return nil, fmt.Errorf("query bill: %w", err)
	}
	return &bill, nil
}

func (r *billRepository) ListByStatus(ctx context.Context, status constants.BillStatus, limit int) ([]*entity.Bill, error) {
	b := r.db.builder()
	sel := b.Select(billColumns...).From(b.Table(billsTable.Name)).
		Where(entsql.EQ("status", string(status))).
		OrderBy("created_at", "id")
	if limit > 0 {
		sel = sel.Limit(limit)
	}

	bills := []*entity.Bill{}
	err := queryRows(ctx, r.db.drv, sel, func(rows *entsql.Rows) error {
		var bill entity.Bill
		if err := scanBill(rows, &bill); err != nil {
			return err
		}
		bills = append(bills, &bill)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

func scanBill(rows *entsql.Rows, bill *entity.Bill) error {
	var (
		status, taxID, totalSource, reasons, method sql.NullString
		vendorID                                    uuid.NullUUID
		date                                        sql.NullTime
	)
	if err := rows.Scan(&bill.ID, &bill.SourcePath, &status, &vendorID, &bill.VendorName, &taxID,
		&bill.InvoiceNumber, &date, &bill.GrandTotal, &totalSource,
		&bill.Taxes.CGST, &bill.Taxes.SGST, &bill.Taxes.IGST, &bill.NeedsReview, &reasons, &method,
		&bill.Pages, &bill.CreatedAt, &bill.UpdatedAt); err != nil {
		return err
	}
	bill.Status = constants.BillStatus(status.String)
	if vendorID.Valid {
		id := vendorID.UUID
		bill.VendorID = &id
	}
	bill.TaxID = taxID.String
	if date.Valid {
		d := date.Time
		bill.InvoiceDate = &d
	}
	bill.GrandTotalSource = constants.GrandTotalSource(totalSource.String)
	bill.TextMethod = method.String
	bill.ReviewReasons = []string{}
	if reasons.Valid && reasons.String != "" {
		if err := json.Unmarshal([]byte(reasons.String), &bill.ReviewReasons); err != nil {
			return fmt.Errorf("decode review reasons: %w", err)
		}
	}
	return nil
}

func (r *billRepository) Lines(ctx context.Context, id uuid.UUID) ([]entity.ExtractedLine, error) {
	b := r.db.builder()
	sel := b.Select(lineColumns[3:]...).From(b.Table(billLinesTable.Name)).
		Where(entsql.EQ("bill_id", id)).OrderBy("position")

	lines := []entity.ExtractedLine{}
	err := queryRows(ctx, r.db.drv, sel, func(rows *entsql.Rows) error {
		var (
			l                        entity.ExtractedLine
			taxCode, uom, candidates sql.NullString
			resolved                 sql.NullString
			source                   string
		)
		if err := rows.Scan(&l.Description, &l.Quantity, &l.UnitPrice, &l.LineTotal, &taxCode, &uom,
			&l.Confidence, &l.Flagged, &source, &candidates, &resolved, &l.MatchScore); err != nil {
			return err
		}
		l.TaxCode = taxCode.String
		l.UOM = uom.String
		l.Source = constants.LineSource(source)
		l.CandidateProductIDs = []string{}
		if candidates.Valid && candidates.String != "" {
			if err := json.Unmarshal([]byte(candidates.String), &l.CandidateProductIDs); err != nil {
				return fmt.Errorf("decode candidates: %w", err)
			}
		}
		if resolved.Valid {
			p := resolved.String
			l.ResolvedProductID = &p
		}
		lines = append(lines, l)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query bill lines: %w", err)
	}
	return lines, nil
}

// SaveBundle replaces the bill header and lines with bundle and marks the
// bill PROCESSED, all in one transaction.
func (r *billRepository) SaveBundle(ctx context.Context, id uuid.UUID, bundle *entity.ExtractionBundle, vendorID *uuid.UUID) error {
	if bundle == nil {
		return common.NewAppError("INVALID_BUNDLE", "bundle is required", common.ErrInvalidInput)
	}
	reasons, err := encodeReasons(bundle.Header.ReviewReasons)
	if err != nil {
		return err
	}

	err = r.db.withTx(ctx, func(tx dialect.Tx) error {
		upd := r.headerUpdate(bundle, reasons, vendorID).
			Set("status", string(constants.BillStatusProcessed)).
			Where(entsql.EQ("id", id))
		n, err := execStmt(ctx, tx, upd)
		if err != nil {
			return fmt.Errorf("update bill: %w", err)
		}
		if n == 0 {
			return common.ErrNotFound
		}

		del := r.db.builder().Delete(billLinesTable.Name).Where(entsql.EQ("bill_id", id))
		if _, err := execStmt(ctx, tx, del); err != nil {
			return fmt.Errorf("delete bill lines: %w", err)
		}
		if len(bundle.Lines) == 0 {
			return nil
		}

		ins := r.db.builder().Insert(billLinesTable.Name).Columns(lineColumns...)
		for i, l := range bundle.Lines {
			candidates := l.CandidateProductIDs
			if candidates == nil {
				candidates = []string{}
			}
			raw, err := json.Marshal(candidates)
			if err != nil {
				return fmt.Errorf("encode candidates: %w", err)
			}
			var resolved sql.NullString
			if l.ResolvedProductID != nil {
				resolved = sql.NullString{String: *l.ResolvedProductID, Valid: true}
			}
			ins.Values(uuid.New(), id, i, l.Description, l.Quantity, l.UnitPrice, l.LineTotal,
				nullString(l.TaxCode), nullString(l.UOM), l.Confidence, l.Flagged, string(l.Source),
				string(raw), resolved, l.MatchScore)
		}
		if _, err := execStmt(ctx, tx, ins); err != nil {
			return fmt.Errorf("insert bill lines: %w", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			r.logger.Error("failed to save bundle", "bill_id", id, "error", err)
		}
		return err
	}
	r.logger.Info("bundle saved", "bill_id", id, "lines", len(bundle.Lines), "needs_review", bundle.Header.NeedsReview)
	return nil
}

// MarkFailed stores whatever header the failed extraction recovered and
// leaves the bill FAILED and under review. Existing lines are removed.
func (r *billRepository) MarkFailed(ctx context.Context, id uuid.UUID, partial *entity.ExtractionBundle) error {
	return r.db.withTx(ctx, func(tx dialect.Tx) error {
		var upd *entsql.UpdateBuilder
		if partial != nil {
			reasons, err := encodeReasons(partial.Header.ReviewReasons)
			if err != nil {
				return err
			}
			upd = r.headerUpdate(partial, reasons, nil)
		} else {
			upd = r.db.builder().Update(billsTable.Name).Set("updated_at", time.Now().UTC())
		}
		upd = upd.Set("status", string(constants.BillStatusFailed)).
			Set("needs_review", true).
			Where(entsql.EQ("id", id))
		n, err := execStmt(ctx, tx, upd)
		if err != nil {
			return fmt.Errorf("update bill: %w", err)
		}
		if n == 0 {
			return common.ErrNotFound
		}
		del := r.db.builder().Delete(billLinesTable.Name).Where(entsql.EQ("bill_id", id))
		if _, err := execStmt(ctx, tx, del); err != nil {
			return fmt.Errorf("delete bill lines: %w", err)
		}
		r.logger.Warn("bill marked failed", "bill_id", id)
		return nil
	})
}

func (r *billRepository) headerUpdate(bundle *entity.ExtractionBundle, reasons string, vendorID *uuid.UUID) *entsql.UpdateBuilder {
	h := bundle.Header
	var vid uuid.NullUUID
	if vendorID != nil {
		vid = uuid.NullUUID{UUID: *vendorID, Valid: true}
	}
	return r.db.builder().Update(billsTable.Name).
		Set("vendor_id", vid).
		Set("vendor_name", h.VendorName).
		Set("tax_id", nullString(h.TaxID)).
		Set("invoice_number", h.InvoiceNumber).
		Set("invoice_date", nullTime(h.InvoiceDate)).
		Set("grand_total", h.GrandTotal).
		Set("grand_total_source", nullString(string(h.GrandTotalSource))).
		Set("cgst", h.Taxes.CGST).
		Set("sgst", h.Taxes.SGST).
		Set("igst", h.Taxes.IGST).
		Set("needs_review", h.NeedsReview).
		Set("review_reasons", reasons).
		Set("text_method", nullString(bundle.TextMethod)).
		Set("pages", bundle.Pages).
		Set("updated_at", time.Now().UTC())
}

func encodeReasons(reasons []constants.ReviewReason) (string, error) {
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		out = append(out, string(r))
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode review reasons: %w", err)
	}
	return string(raw), nil
}

// ClearReview records that a human has checked the bill.
func (r *billRepository) ClearReview(ctx context.Context, id uuid.UUID) error {
	upd := r.db.builder().Update(billsTable.Name).
		Set("needs_review", false).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.NEQ("status", string(constants.BillStatusPending)),
		))
	n, err := execStmt(ctx, r.db.drv, upd)
	if err != nil {
		return fmt.Errorf("clear review: %w", err)
	}
	if n == 0 {
		return r.stateError(ctx, id, "bill has not been processed")
	}
	r.logger.Info("bill review cleared", "bill_id", id)
	return nil
}

// Confirm moves a processed or failed bill to CONFIRMED. It returns
// common.ErrReviewPending while the bill still needs review.
func (r *billRepository) Confirm(ctx context.Context, id uuid.UUID) error {
	upd := r.db.builder().Update(billsTable.Name).
		Set("status", string(constants.BillStatusConfirmed)).
		Set("updated_at", time.Now().UTC()).
		Where(entsql.And(
			entsql.EQ("id", id),
			entsql.EQ("needs_review", false),
			entsql.In("status", string(constants.BillStatusProcessed), string(constants.BillStatusFailed)),
		))
	n, err := execStmt(ctx, r.db.drv, upd)
	if err != nil {
		return fmt.Errorf("confirm bill: %w", err)
	}
	if n == 1 {
		r.logger.Info("bill confirmed", "bill_id", id)
		return nil
	}

	bill, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if bill.NeedsReview {
		return common.NewAppError("REVIEW_PENDING", "bill "+id.String()+" needs review", common.ErrReviewPending)
	}
	return r.stateError(ctx, id, "bill cannot be confirmed from status "+string(bill.Status))
}

func (r *billRepository) stateError(ctx context.Context, id uuid.UUID, msg string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return common.NewAppError("INVALID_STATE", msg, common.ErrInvalidInput)
}
