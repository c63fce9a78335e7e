package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"entgo.io/ent/dialect"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleBundle(review bool) *entity.ExtractionBundle {
	date := time.Date(2024, 4, 12, 0, 0, 0, 0, time.UTC)
	code := "prod-1"
	b := &entity.ExtractionBundle{
		Header: entity.ExtractedBill{
			VendorName:       "A2Z Buildwares",
			TaxID:            "32ABCDE1234F1Z5",
			InvoiceNumber:    "A2Z/1234/24-25",
			InvoiceDate:      &date,
			GrandTotal:       d("3542.36"),
			GrandTotalSource: constants.TotalStated,
			Taxes:            entity.TaxBuckets{CGST: d("270.18"), SGST: d("270.18")},
			ReviewReasons:    []constants.ReviewReason{},
		},
		Lines: []entity.ExtractedLine{
			{
				Description: "Wall Putty White", Quantity: d("10"), UnitPrice: d("250"), LineTotal: d("2500"),
				TaxCode: "3214", UOM: "NOS", Confidence: 0.95, Source: constants.SourceTable,
				CandidateProductIDs: []string{code}, ResolvedProductID: &code, MatchScore: 1,
			},
			{
				Description: "Tile Adhesive", Quantity: d("1.5"), UnitPrice: d("335"), LineTotal: d("502.5"),
				Confidence: 0.85, Flagged: true, Source: constants.SourcePatternA,
			},
		},
		TextMethod: "text_layer",
		Pages:      1,
	}
	if review {
		b.Header.AddReview(constants.ReviewLineFlagged)
	}
	return b
}

func TestBillCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(newTestDB(t), nil)

	bill, err := repo.Create(ctx, "/in/a2z-1234.pdf")
	require.NoError(t, err)
	assert.Equal(t, constants.BillStatusPending, bill.Status)

	got, err := repo.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, "/in/a2z-1234.pdf", got.SourcePath)
	assert.Equal(t, constants.BillStatusPending, got.Status)
	assert.Equal(t, []string{}, got.ReviewReasons)
	assert.Nil(t, got.VendorID)
	assert.Nil(t, got.InvoiceDate)
	assert.True(t, got.GrandTotal.IsZero())

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = repo.Create(ctx, " ")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestBillSaveBundle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewBillRepository(db, nil)
	vendor, err := NewVendorRepository(db, nil).Create(ctx, &entity.VendorIdentity{CanonicalName: "A2Z Buildwares"}, "a2z buildwares")
	require.NoError(t, err)

	bill, err := repo.Create(ctx, "/in/a2z-1234.pdf")
	require.NoError(t, err)
	require.NoError(t, repo.SaveBundle(ctx, bill.ID, sampleBundle(true), &vendor.ID))

	got, err := repo.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BillStatusProcessed, got.Status)
	require.NotNil(t, got.VendorID)
	assert.Equal(t, vendor.ID, *got.VendorID)
	assert.Equal(t, "A2Z/1234/24-25", got.InvoiceNumber)
	assert.Equal(t, "32ABCDE1234F1Z5", got.TaxID)
	require.NotNil(t, got.InvoiceDate)
	assert.True(t, got.InvoiceDate.Equal(time.Date(2024, 4, 12, 0, 0, 0, 0, time.UTC)))
	assert.True(t, d("3542.36").Equal(got.GrandTotal), got.GrandTotal.String())
	assert.True(t, d("270.18").Equal(got.Taxes.SGST))
	assert.Equal(t, constants.TotalStated, got.GrandTotalSource)
	assert.True(t, got.NeedsReview)
	assert.Equal(t, []string{"line_flagged"}, got.ReviewReasons)
	assert.Equal(t, "text_layer", got.TextMethod)
	assert.Equal(t, 1, got.Pages)

	lines, err := repo.Lines(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "Wall Putty White", lines[0].Description)
	assert.True(t, d("2500").Equal(lines[0].LineTotal))
	assert.Equal(t, "3214", lines[0].TaxCode)
	assert.Equal(t, []string{"prod-1"}, lines[0].CandidateProductIDs)
	require.NotNil(t, lines[0].ResolvedProductID)
	assert.Equal(t, "prod-1", *lines[0].ResolvedProductID)
	assert.Equal(t, constants.SourceTable, lines[0].Source)
	assert.True(t, d("1.5").Equal(lines[1].Quantity))
	assert.True(t, lines[1].Flagged)
	assert.Equal(t, []string{}, lines[1].CandidateProductIDs)
	assert.Nil(t, lines[1].ResolvedProductID)

	// a re-run replaces the lines
	again := sampleBundle(false)
	again.Lines = again.Lines[:1]
	require.NoError(t, repo.SaveBundle(ctx, bill.ID, again, nil))
	lines, err = repo.Lines(ctx, bill.ID)
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	got, err = repo.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Nil(t, got.VendorID)
	assert.False(t, got.NeedsReview)
}

func TestBillSaveBundleMissing(t *testing.T) {
	repo := NewBillRepository(newTestDB(t), nil)
	err := repo.SaveBundle(context.Background(), uuid.New(), sampleBundle(false), nil)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.SaveBundle(context.Background(), uuid.New(), nil, nil), common.ErrInvalidInput)
}

func TestBillMarkFailed(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(newTestDB(t), nil)

	withPartial, err := repo.Create(ctx, "/in/partial.pdf")
	require.NoError(t, err)
	partial := sampleBundle(false)
	partial.Lines = nil
	partial.Header.AddReview(constants.ReviewNoUsableLines)
	require.NoError(t, repo.MarkFailed(ctx, withPartial.ID, partial))

	got, err := repo.Get(ctx, withPartial.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BillStatusFailed, got.Status)
	assert.True(t, got.NeedsReview)
	assert.Equal(t, []string{"no_usable_lines"}, got.ReviewReasons)
	assert.Equal(t, "A2Z Buildwares", got.VendorName)

	unreadable, err := repo.Create(ctx, "/in/blank.pdf")
	require.NoError(t, err)
	require.NoError(t, repo.MarkFailed(ctx, unreadable.ID, nil))
	got, err = repo.Get(ctx, unreadable.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BillStatusFailed, got.Status)
	assert.True(t, got.NeedsReview)

	assert.ErrorIs(t, repo.MarkFailed(ctx, uuid.New(), nil), common.ErrNotFound)
}

func TestBillConfirm(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(newTestDB(t), nil)

	pending, err := repo.Create(ctx, "/in/pending.pdf")
	require.NoError(t, err)
	err = repo.Confirm(ctx, pending.ID)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.True(t, common.IsCode(err, "INVALID_STATE"))
	assert.ErrorIs(t, repo.ClearReview(ctx, pending.ID), common.ErrInvalidInput)

	flagged, err := repo.Create(ctx, "/in/flagged.pdf")
	require.NoError(t, err)
	require.NoError(t, repo.SaveBundle(ctx, flagged.ID, sampleBundle(true), nil))
	assert.ErrorIs(t, repo.Confirm(ctx, flagged.ID), common.ErrReviewPending)

	require.NoError(t, repo.ClearReview(ctx, flagged.ID))
	require.NoError(t, repo.Confirm(ctx, flagged.ID))
	got, err := repo.Get(ctx, flagged.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BillStatusConfirmed, got.Status)

	// confirming twice is a state error
	assert.ErrorIs(t, repo.Confirm(ctx, flagged.ID), common.ErrInvalidInput)
	assert.ErrorIs(t, repo.Confirm(ctx, uuid.New()), common.ErrNotFound)
}

func TestBillListByStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewBillRepository(newTestDB(t), nil)
	a, err := repo.Create(ctx, "/in/a.pdf")
	require.NoError(t, err)
	b, err := repo.Create(ctx, "/in/b.pdf")
	require.NoError(t, err)
	require.NoError(t, repo.SaveBundle(ctx, b.ID, sampleBundle(false), nil))

	pending, err := repo.ListByStatus(ctx, constants.BillStatusPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, a.ID, pending[0].ID)

	failed, err := repo.ListByStatus(ctx, constants.BillStatusFailed, 10)
	require.NoError(t, err)
	assert.Empty(t, failed)
}

func TestBillSaveBundleRollsBackOnLineInsertError(t *testing.T) {
	sqldb, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqldb.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE \"bills\"").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM \"bill_lines\"").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO \"bill_lines\"").WillReturnError(errors.New("check constraint"))
	mock.ExpectRollback()

	repo := NewBillRepository(NewDB(sqldb, dialect.Postgres), nil)
	err = repo.SaveBundle(context.Background(), id, sampleBundle(false), nil)
	assert.ErrorContains(t, err, "insert bill lines")
	assert.NoError(t, mock.ExpectationsWereMet())
}
