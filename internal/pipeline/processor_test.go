package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/entity"
	"github.com/joseph-ayodele/invoice-extractor/internal/extract"
	"github.com/joseph-ayodele/invoice-extractor/internal/lexicon"
	"github.com/joseph-ayodele/invoice-extractor/internal/matching"
	"github.com/joseph-ayodele/invoice-extractor/internal/metrics"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/repository"
)

const invoiceText = `Tax Invoice
A2Z BUILDWARES NEAR SOUTH BANK
Main Road, Koratty
Phone: 0480 2731800, 9876543210
GSTIN/UIN: 32ABCDE1234F1Z5
State Name : Kerala, Code : 32
E-Mail : a2zbuildwares@gmail.com
Invoice No.             Dated
A2Z/1234/24-25          12-Apr-24
Buyer (Bill to)
JOHN CONTRACTOR
GSTIN/UIN: 32ZZZZZ9999Z1Z9
Sl No. Description of Goods HSN/SAC Quantity Rate per Amount
1 Ceramic Tile 600x600 3305 10 NOS 250.00 NOS 2,500.00
2 Wall Putty White 3214 4 NOS 125.50 NOS 502.00
CGST @9% 270.18
SGST @9% 270.18
Total 3,542.36
`

// textByPath serves canned text per source path.
type textByPath map[string]string

func (s textByPath) Extract(_ context.Context, path string) (ocr.Result, error) {
	text, ok := s[path]
	if !ok || text == "" {
		return ocr.Result{}, common.ErrUnreadableDocument
	}
	return ocr.Result{Text: text, Pages: 1, Method: ocr.MethodTextLayer}, nil
}

type fixture struct {
	proc     *Processor
	bills    repository.BillRepository
	jobs     repository.ExtractJobRepository
	products repository.ProductRepository
	vendors  repository.VendorRepository
}

func newFixture(t *testing.T, texts textByPath) *fixture {
	t.Helper()
	ctx := context.Background()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_pragma=foreign_keys(1)"
	db, err := repository.Open(ctx, common.DatabaseConfig{DSN: dsn}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	require.NoError(t, db.Migrate(ctx))

	f := &fixture{
		bills:    repository.NewBillRepository(db, nil),
		jobs:     repository.NewExtractJobRepository(db, nil),
		products: repository.NewProductRepository(db, nil),
		vendors:  repository.NewVendorRepository(db, nil),
	}
	lx := lexicon.Default()
	engine := extract.NewEngine(lx, texts, extract.DefaultOptions(), nil)
	f.proc = NewProcessor(nil,
		NewExtractStage(f.bills, f.jobs, f.products, engine, nil),
		NewPersistStage(f.bills, f.jobs, matching.NewVendorResolver(f.vendors, lx, nil), nil),
		f.bills,
		metrics.NewExtractionMetrics("test"),
	)
	return f
}

func TestProcessBillStoresBundle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, textByPath{"/in/a2z.pdf": invoiceText})
	putty, err := f.products.Create(ctx, "WP-40", "Wall Putty White")
	require.NoError(t, err)

	bill, err := f.bills.Create(ctx, "/in/a2z.pdf")
	require.NoError(t, err)
	jobID, err := f.proc.ProcessBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, jobID)

	got, err := f.bills.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BillStatusProcessed, got.Status)
	assert.Equal(t, "A2Z/1234/24-25", got.InvoiceNumber)
	assert.Equal(t, "3542.36", got.GrandTotal.StringFixed(2))
	assert.False(t, got.NeedsReview, got.ReviewReasons)
	require.NotNil(t, got.VendorID)

	vendor, err := f.vendors.FindByTaxID(ctx, "32ABCDE1234F1Z5")
	require.NoError(t, err)
	assert.Equal(t, vendor.ID, *got.VendorID)
	assert.Equal(t, "A2Z Buildwares", vendor.CanonicalName)

	lines, err := f.bills.Lines(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.NotNil(t, lines[1].ResolvedProductID)
	assert.Equal(t, putty.ID, *lines[1].ResolvedProductID)

	jobs, err := f.jobs.ListByBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, string(constants.JobStatusOK), jobs[0].Status)
	assert.Equal(t, 2, jobs[0].LineCount)

	require.NoError(t, f.proc.Confirm(ctx, bill.ID))
}

func TestProcessBillReusesVendor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, textByPath{"/in/one.pdf": invoiceText, "/in/two.pdf": invoiceText})

	one, err := f.bills.Create(ctx, "/in/one.pdf")
	require.NoError(t, err)
	two, err := f.bills.Create(ctx, "/in/two.pdf")
	require.NoError(t, err)
	_, err = f.proc.ProcessBill(ctx, one.ID)
	require.NoError(t, err)
	_, err = f.proc.ProcessBill(ctx, two.ID)
	require.NoError(t, err)

	a, err := f.bills.Get(ctx, one.ID)
	require.NoError(t, err)
	b, err := f.bills.Get(ctx, two.ID)
	require.NoError(t, err)
	require.NotNil(t, a.VendorID)
	require.NotNil(t, b.VendorID)
	assert.Equal(t, *a.VendorID, *b.VendorID)
}

func TestProcessBillUnreadable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, textByPath{})

	bill, err := f.bills.Create(ctx, "/in/blank.pdf")
	require.NoError(t, err)
	jobID, err := f.proc.ProcessBill(ctx, bill.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrUnreadableDocument))
	assert.NotEqual(t, uuid.Nil, jobID)

	got, err := f.bills.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BillStatusFailed, got.Status)
	assert.True(t, got.NeedsReview)

	jobs, err := f.jobs.ListByBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, string(constants.JobStatusFailed), jobs[0].Status)
	require.NotNil(t, jobs[0].ErrorMessage)

	assert.ErrorIs(t, f.proc.Confirm(ctx, bill.ID), common.ErrReviewPending)
}

func TestProcessBillNoUsableLinesKeepsHeader(t *testing.T) {
	ctx := context.Background()
	text := "GSTIN/UIN: 32ABCDE1234F1Z5\nSteel Bar 7214 2,000,000 NOS 1.00 2,000,000.00\n"
	f := newFixture(t, textByPath{"/in/steel.pdf": text})

	bill, err := f.bills.Create(ctx, "/in/steel.pdf")
	require.NoError(t, err)
	_, err = f.proc.ProcessBill(ctx, bill.ID)
	assert.ErrorIs(t, err, common.ErrNoUsableLines)

	got, err := f.bills.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BillStatusFailed, got.Status)
	assert.Equal(t, "32ABCDE1234F1Z5", got.TaxID)
	assert.Contains(t, got.ReviewReasons, string(constants.ReviewNoUsableLines))
}

type failingResolver struct{ err error }

func (r failingResolver) Resolve(context.Context, entity.VendorIdentity) (*entity.VendorIdentity, error) {
	return nil, r.err
}

func TestProcessBillVendorFailureMarksBillFailed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, textByPath{"/in/a2z.pdf": invoiceText})
	errDirectory := errors.New("vendor directory unavailable")
	f.proc.Persist.Vendors = failingResolver{err: errDirectory}

	bill, err := f.bills.Create(ctx, "/in/a2z.pdf")
	require.NoError(t, err)
	_, err = f.proc.ProcessBill(ctx, bill.ID)
	require.ErrorIs(t, err, errDirectory)

	got, err := f.bills.Get(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.BillStatusFailed, got.Status)
	assert.True(t, got.NeedsReview)

	lines, err := f.bills.Lines(ctx, bill.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)

	jobs, err := f.jobs.ListByBill(ctx, bill.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, string(constants.JobStatusFailed), jobs[0].Status)

	assert.ErrorIs(t, f.proc.Confirm(ctx, bill.ID), common.ErrReviewPending)
}

func TestProcessBillUnsupportedFormat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, textByPath{})
	bill, err := f.bills.Create(ctx, "/in/photo.heic")
	require.NoError(t, err)

	jobID, err := f.proc.ProcessBill(ctx, bill.ID)
	assert.ErrorContains(t, err, "unsupported format")
	assert.Equal(t, uuid.Nil, jobID)
}

func TestProcessBillMissing(t *testing.T) {
	f := newFixture(t, textByPath{})
	_, err := f.proc.ProcessBill(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}
